package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/types"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	minPasswordLength = 8
	// bcrypt only hashes the first 72 bytes
	maxPasswordLength = 72
)

// LoginResult is returned once per login; the token is never retrievable again
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// SignupResult carries the verification code out to the caller that delivers it
type SignupResult struct {
	User             models.User `json:"user"`
	VerificationCode string      `json:"-"`
}

// NewUser describes an account to create directly, bypassing signup verification
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     string
	Verified bool
}

// Signup creates an unverified ANALYST account and a 6-digit verification code
func Signup(ctx context.Context, db *gorm.DB, name, email, password string) (*SignupResult, error) {
	code, err := verificationCode()
	if err != nil {
		return nil, err
	}
	user, err := CreateUser(ctx, db, NewUser{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleAnalyst,
	}, &code)
	if err != nil {
		return nil, err
	}
	return &SignupResult{User: *user, VerificationCode: code}, nil
}

// CreateUser validates and stores a new account. A nil code creates the account without a
// pending verification.
func CreateUser(ctx context.Context, db *gorm.DB, in NewUser, code *string) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, types.Invalid("name is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, types.Invalid("password must be at least %d characters", minPasswordLength)
	}
	if len(in.Password) > maxPasswordLength {
		return nil, types.Invalid("password must be at most %d bytes", maxPasswordLength)
	}
	role := in.Role
	if role == "" {
		role = models.RoleAnalyst
	}
	if !models.ValidRole(role) {
		return nil, types.Invalid("unknown role %q", role)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Name:             name,
		Email:            email,
		PasswordHash:     hash,
		Role:             role,
		IsVerified:       in.Verified,
		VerificationCode: code,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.Conflict("email %s is already registered", email)
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Verify marks the account verified when the code matches
func Verify(ctx context.Context, db *gorm.DB, email, code string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("user")
		}
		return nil, err
	}
	if user.IsVerified {
		return &user, nil
	}
	if user.VerificationCode == nil || subtle.ConstantTimeCompare([]byte(*user.VerificationCode), []byte(strings.TrimSpace(code))) != 1 {
		return nil, types.Invalid("invalid verification code")
	}

	err = db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"is_verified":       true,
		"verification_code": nil,
	}).Error
	if err != nil {
		return nil, err
	}
	user.IsVerified = true
	user.VerificationCode = nil
	return &user, nil
}

// Login checks the credentials and opens a session valid for ttl
func Login(ctx context.Context, db *gorm.DB, email, password string, ttl time.Duration) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, types.Unauthenticated("invalid credentials")
	}
	if !user.IsVerified {
		return nil, types.Forbidden("account is not verified")
	}

	plain, hashed, err := newTokenPair()
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}
	session := models.Session{
		UserID:    user.ID,
		TokenHash: hashed,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}

	return &LoginResult{Token: plain, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to its user. Unknown and expired tokens are
// indistinguishable to the caller.
func Authenticate(ctx context.Context, db *gorm.DB, token string) (*models.User, error) {
	if token == "" {
		return nil, types.Unauthenticated("missing bearer token")
	}
	quiet := db.WithContext(ctx).Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})

	var session models.Session
	if err := quiet.Where("token_hash = ?", hashToken(token)).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.Unauthenticated("invalid or expired token")
		}
		return nil, err
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		if err := quiet.Delete(&models.Session{}, "id = ?", session.ID).Error; err != nil {
			log.Printf("Failed to delete expired session %s: %v", session.ID, err)
		}
		return nil, types.Unauthenticated("invalid or expired token")
	}

	var user models.User
	if err := quiet.First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.Unauthenticated("invalid or expired token")
		}
		return nil, err
	}
	return &user, nil
}

// Logout ends the session identified by token
func Logout(ctx context.Context, db *gorm.DB, token string) error {
	return db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).Delete(&models.Session{}).Error
}

// PurgeExpiredSessions deletes sessions past their expiry
func PurgeExpiredSessions(ctx context.Context, db *gorm.DB) (int64, error) {
	result := db.WithContext(ctx).Where("expires_at < ?", time.Now().UTC()).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

// BootstrapOwner creates a verified OWNER when no user exists yet. It reports whether an
// account was created.
func BootstrapOwner(ctx context.Context, db *gorm.DB, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	user, err := CreateUser(ctx, db, NewUser{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleOwner,
		Verified: true,
	}, nil)
	if err != nil {
		return false, err
	}
	log.Printf("Bootstrapped owner account %s", user.Email)
	return true, nil
}

// ListUsers returns every account ordered by name
func ListUsers(ctx context.Context, db *gorm.DB) ([]models.User, error) {
	var users []models.User
	err := db.WithContext(ctx).Order("name ASC").Find(&users).Error
	return users, err
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", types.Invalid("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", types.Invalid("invalid email address")
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
