package database_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/localnerve/casefile/internal/config"
	"github.com/localnerve/casefile/internal/database"
	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/testsupport"
	"gorm.io/gorm/logger"
)

func TestDialector(t *testing.T) {
	for _, dbType := range []string{"mysql", "mariadb", "postgres", "postgresql", "sqlite", "sqlite-pure", "sqlserver", "mssql"} {
		dialector, err := database.Dialector(&config.Config{DBType: dbType, DBDatabase: "casefile"})
		if err != nil {
			t.Errorf("%s: unexpected error %v", dbType, err)
			continue
		}
		if dialector == nil {
			t.Errorf("%s: expected a dialector", dbType)
		}
	}

	if _, err := database.Dialector(&config.Config{DBType: "oracle"}); err == nil {
		t.Error("Expected an unsupported database type to fail")
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"silent": logger.Silent,
		"error":  logger.Error,
		"info":   logger.Info,
		"warn":   logger.Warn,
		"":       logger.Warn,
	}
	for level, expected := range tests {
		if got := database.LogLevel(level); got != expected {
			t.Errorf("LogLevel(%q) = %v, expected %v", level, got, expected)
		}
	}
}

func TestPureSQLiteMigrates(t *testing.T) {
	db, err := database.Connect(&config.Config{
		DBType:     "sqlite-pure",
		DBDatabase: filepath.Join(t.TempDir(), "pure.db"),
		DBLogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	for _, model := range database.Models() {
		if !db.Migrator().HasTable(model) {
			t.Errorf("Expected a table for %T", model)
		}
	}
}

// TestWithContainerDatabase runs the attribute ledger against the database named by DB_IMAGE
func TestWithContainerDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("DB_IMAGE") == "" {
		t.Skip("DB_IMAGE not set")
	}

	ctx := context.Background()
	tc, err := testsupport.StartDatabase(t)
	if err != nil {
		t.Fatalf("Failed to start database container: %v", err)
	}
	defer tc.Terminate(t)

	cfg, err := tc.HostConfig(ctx)
	if err != nil {
		t.Fatalf("Failed to resolve database address: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	owner, err := services.CreateUser(ctx, db, services.NewUser{
		Name: "Director Vance", Email: "vance@ncis.gov", Password: "password123",
		Role: models.RoleOwner, Verified: true,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	title := "Operation NIGHTFALL"
	c, err := services.CreateCase(ctx, db, services.CaseInput{Title: &title}, owner)
	if err != nil {
		t.Fatalf("Failed to create case: %v", err)
	}
	if c.OwnerID == nil || *c.OwnerID != owner.ID {
		t.Errorf("Expected owner %s", owner.ID)
	}

	typ, name := "person", "Jane Doe"
	entity, err := services.CreateEntity(ctx, db, services.EntityInput{Type: &typ, PrimaryName: &name}, owner)
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	attrs, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{
		{Category: "physical", Key: "height", Value: "170cm"},
	}, owner)
	if err != nil {
		t.Fatalf("Failed to add attribute: %v", err)
	}

	value := "172cm"
	next, err := services.UpdateAttribute(ctx, db, entity.ID, attrs[0].ID, services.AttributePatch{Value: &value}, owner)
	if err != nil {
		t.Fatalf("Failed to update attribute: %v", err)
	}
	if _, err := services.UpdateAttribute(ctx, db, entity.ID, attrs[0].ID, services.AttributePatch{Value: &value}, owner); err == nil {
		t.Error("Expected a superseded version to be rejected")
	}

	history, err := services.AttributeHistory(ctx, db, entity.ID, next.ID)
	if err != nil {
		t.Fatalf("Failed to load history: %v", err)
	}
	if len(history) != 2 || history[1].ID != next.ID {
		t.Errorf("Expected two versions ending at %s, got %d", next.ID, len(history))
	}
}
