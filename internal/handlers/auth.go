package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/middleware"
	"github.com/localnerve/casefile/internal/services"
	"gorm.io/gorm"
)

// AuthHandler handles account and session routes
type AuthHandler struct {
	DB         *gorm.DB
	SessionTTL time.Duration
}

// SignupRequest is the body of POST /auth/signup
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyRequest is the body of POST /auth/verify
type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /api/auth/signup
// @Summary Create an account
// @Description Creates an unverified ANALYST account. The verification code is delivered out of band.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body SignupRequest true "Account details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 429 {object} utils.ErrorResponseStruct
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "signup")
	}

	result, err := services.Signup(c.UserContext(), h.DB, req.Name, req.Email, req.Password)
	if err != nil {
		return fail(c, err, "signup")
	}

	// No mail transport; operators relay the code
	log.Printf("Verification code for %s: %s", result.User.Email, result.VerificationCode)

	return created(c, fiber.Map{
		"message": "Account created. Verify your email to sign in.",
		"user":    result.User,
	})
}

// Verify handles POST /api/auth/verify
// @Summary Verify an account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body VerifyRequest true "Email and verification code"
// @Success 200 {object} models.User
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "verify")
	}
	user, err := services.Verify(c.UserContext(), h.DB, req.Email, req.Code)
	if err != nil {
		return fail(c, err, "verify")
	}
	return ok(c, user)
}

// Login handles POST /api/auth/login
// @Summary Sign in
// @Description Returns a bearer token valid for the configured session lifetime
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} services.LoginResult
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 429 {object} utils.ErrorResponseStruct
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "login")
	}
	result, err := services.Login(c.UserContext(), h.DB, req.Email, req.Password, h.SessionTTL)
	if err != nil {
		return fail(c, err, "login")
	}
	return ok(c, result)
}

// Logout handles POST /api/auth/logout
// @Summary Sign out
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := services.Logout(c.UserContext(), h.DB, middleware.BearerToken(c)); err != nil {
		return fail(c, err, "logout")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return ok(c, middleware.CurrentUser(c))
}

// ListUsers handles GET /api/users
// @Summary List users
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /users [get]
func (h *AuthHandler) ListUsers(c *fiber.Ctx) error {
	users, err := services.ListUsers(c.UserContext(), h.DB)
	if err != nil {
		return fail(c, err, "listUsers")
	}
	return ok(c, users)
}
