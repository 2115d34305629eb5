package services_test

import (
	"context"
	"testing"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"gorm.io/gorm"
)

var ctx = context.Background()

// createUser stores a verified account with the given role
func createUser(t *testing.T, db *gorm.DB, name, email, role string) *models.User {
	t.Helper()
	user, err := services.CreateUser(ctx, db, services.NewUser{
		Name:     name,
		Email:    email,
		Password: "password123",
		Role:     role,
		Verified: true,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", email, err)
	}
	return user
}

func createCase(t *testing.T, db *gorm.DB, title string, owner *models.User) *models.Case {
	t.Helper()
	c, err := services.CreateCase(ctx, db, services.CaseInput{Title: &title}, owner)
	if err != nil {
		t.Fatalf("Failed to create case %s: %v", title, err)
	}
	return c
}

func createEntity(t *testing.T, db *gorm.DB, entityType, name string, actor *models.User) *models.Entity {
	t.Helper()
	entity, err := services.CreateEntity(ctx, db, services.EntityInput{Type: &entityType, PrimaryName: &name}, actor)
	if err != nil {
		t.Fatalf("Failed to create entity %s: %v", name, err)
	}
	return entity
}

func countAudit(t *testing.T, db *gorm.DB, action string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count audit entries: %v", err)
	}
	return count
}

func str(s string) *string {
	return &s
}
