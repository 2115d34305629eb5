package services_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/testsupport"
	"github.com/localnerve/casefile/internal/types"
)

func TestSignupVerifyLogin(t *testing.T) {
	db := testsupport.NewSQLite(t)

	signup, err := services.Signup(ctx, db, "Abby", " Abby@NCIS.gov ", "caf-pow-2024")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if signup.User.Role != models.RoleAnalyst || signup.User.IsVerified {
		t.Errorf("Expected an unverified ANALYST, got %s verified=%v", signup.User.Role, signup.User.IsVerified)
	}
	if signup.User.Email != "abby@ncis.gov" {
		t.Errorf("Expected normalized email, got %s", signup.User.Email)
	}
	if len(signup.VerificationCode) != 6 {
		t.Errorf("Expected a 6 digit code, got %q", signup.VerificationCode)
	}
	if signup.User.PasswordHash == "caf-pow-2024" {
		t.Error("Expected the password to be hashed")
	}

	if _, err := services.Login(ctx, db, "abby@ncis.gov", "caf-pow-2024", time.Hour); !errors.Is(err, types.ErrForbidden) {
		t.Errorf("Expected forbidden before verification, got %v", err)
	}
	if _, err := services.Verify(ctx, db, "abby@ncis.gov", "not-it"); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for a wrong code, got %v", err)
	}
	verified, err := services.Verify(ctx, db, "abby@ncis.gov", signup.VerificationCode)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !verified.IsVerified {
		t.Error("Expected the account to be verified")
	}

	if _, err := services.Login(ctx, db, "abby@ncis.gov", "wrong-password", time.Hour); !errors.Is(err, types.ErrUnauthenticated) {
		t.Errorf("Expected unauthenticated for a wrong password, got %v", err)
	}
	if _, err := services.Login(ctx, db, "nobody@ncis.gov", "caf-pow-2024", time.Hour); !errors.Is(err, types.ErrUnauthenticated) {
		t.Errorf("Expected unauthenticated for an unknown email, got %v", err)
	}

	login, err := services.Login(ctx, db, "ABBY@ncis.gov", "caf-pow-2024", time.Hour)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Token == "" || !login.ExpiresAt.After(time.Now()) {
		t.Errorf("Expected a live token, got %q until %v", login.Token, login.ExpiresAt)
	}

	var session models.Session
	db.First(&session)
	if session.TokenHash == login.Token {
		t.Error("Expected only the token hash to be stored")
	}

	user, err := services.Authenticate(ctx, db, login.Token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if user.ID != signup.User.ID {
		t.Errorf("Expected user %s, got %s", signup.User.ID, user.ID)
	}

	if err := services.Logout(ctx, db, login.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := services.Authenticate(ctx, db, login.Token); !errors.Is(err, types.ErrUnauthenticated) {
		t.Errorf("Expected unauthenticated after logout, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	db := testsupport.NewSQLite(t)
	createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)

	tests := []struct {
		name, email, password string
		want                  error
	}{
		{"Gibbs", "GIBBS@ncis.gov", "password123", types.ErrConflict},
		{"Short", "short@ncis.gov", "1234567", types.ErrValidation},
		{"Long", "long@ncis.gov", strings.Repeat("p", 73), types.ErrValidation},
		{"Bad", "not-an-email", "password123", types.ErrValidation},
		{"", "blank@ncis.gov", "password123", types.ErrValidation},
	}
	for _, tt := range tests {
		if _, err := services.Signup(ctx, db, tt.name, tt.email, tt.password); !errors.Is(err, tt.want) {
			t.Errorf("Signup(%q, %q): expected %v, got %v", tt.name, tt.email, tt.want, err)
		}
	}

	if _, err := services.Signup(ctx, db, "Edge", "edge@ncis.gov", strings.Repeat("p", 72)); err != nil {
		t.Errorf("Expected a 72-byte password to be accepted, got %v", err)
	}

	if _, err := services.CreateUser(ctx, db, services.NewUser{Name: "X", Email: "x@ncis.gov", Password: "password123", Role: "ADMIN"}, nil); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for an unknown role, got %v", err)
	}
}

func TestExpiredSessions(t *testing.T) {
	db := testsupport.NewSQLite(t)
	createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)

	expired, err := services.Login(ctx, db, "gibbs@ncis.gov", "password123", -time.Minute)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := services.Authenticate(ctx, db, expired.Token); !errors.Is(err, types.ErrUnauthenticated) {
		t.Errorf("Expected unauthenticated for an expired token, got %v", err)
	}
	var count int64
	db.Model(&models.Session{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected the expired session to be removed, got %d", count)
	}

	if _, err := services.Login(ctx, db, "gibbs@ncis.gov", "password123", -time.Minute); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := services.Login(ctx, db, "gibbs@ncis.gov", "password123", time.Hour); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	purged, err := services.PurgeExpiredSessions(ctx, db)
	if err != nil {
		t.Fatalf("PurgeExpiredSessions failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged session, got %d", purged)
	}

	if _, err := services.Authenticate(ctx, db, ""); !errors.Is(err, types.ErrUnauthenticated) {
		t.Errorf("Expected unauthenticated for an empty token, got %v", err)
	}
}

func TestBootstrapOwner(t *testing.T) {
	db := testsupport.NewSQLite(t)

	created, err := services.BootstrapOwner(ctx, db, "Director Vance", "vance@ncis.gov", "password123")
	if err != nil {
		t.Fatalf("BootstrapOwner failed: %v", err)
	}
	if !created {
		t.Fatal("Expected an owner on an empty database")
	}
	users, _ := services.ListUsers(ctx, db)
	if len(users) != 1 || users[0].Role != models.RoleOwner || !users[0].IsVerified {
		t.Errorf("Expected one verified OWNER, got %+v", users)
	}

	created, err = services.BootstrapOwner(ctx, db, "Someone", "other@ncis.gov", "password123")
	if err != nil || created {
		t.Errorf("Expected no second bootstrap, got created=%v err=%v", created, err)
	}
	created, _ = services.BootstrapOwner(ctx, db, "Someone", "", "")
	if created {
		t.Error("Expected no bootstrap without credentials")
	}
}
