package models

import (
	"time"

	"gorm.io/gorm"
)

// Global roles. Per-case roles on CaseMember are free text.
const (
	RoleOwner        = "OWNER"
	RoleInvestigator = "INVESTIGATOR"
	RoleAnalyst      = "ANALYST"
)

// ValidRole reports whether role is one of the global roles
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleInvestigator, RoleAnalyst:
		return true
	}
	return false
}

// User is an account able to authenticate against the API
type User struct {
	ID               string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	Email            string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash     string    `gorm:"size:255;not null" json:"-"`
	Role             string    `gorm:"size:32;not null;default:ANALYST" json:"role"`
	IsVerified       bool      `gorm:"not null;default:false" json:"isVerified"`
	VerificationCode *string   `gorm:"size:16" json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Session stores the sha256 of an issued bearer token; the plain token is never persisted
type Session struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"userId"`
	TokenHash string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserSummary is the public projection of a user embedded in other payloads
type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Summary returns the public projection of the user
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Role: u.Role}
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// TableName overrides the table name for User
func (User) TableName() string {
	return "users"
}

// TableName overrides the table name for Session
func (Session) TableName() string {
	return "sessions"
}
