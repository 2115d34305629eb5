package middleware

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
)

const userKey = "user"

// Mutators are the roles allowed to change case content
var Mutators = []string{models.RoleOwner, models.RoleInvestigator}

// Authorize resolves the acting user from the bearer token and admits only the given roles.
// With no roles any authenticated user is admitted.
func Authorize(db *gorm.DB, roles ...string) fiber.Handler {
	errorType := "authorization"
	if len(roles) > 0 {
		errorType = "authorization." + strings.ToLower(strings.Join(roles, "."))
	}
	return func(c *fiber.Ctx) error {
		return authorize(c, db, roles, errorType)
	}
}

// authorize performs the authorization check
func authorize(c *fiber.Ctx, db *gorm.DB, roles []string, errorType string) error {
	token := BearerToken(c)
	if token == "" {
		return &types.CustomError{
			Code:    fiber.StatusUnauthorized,
			Message: "Bearer token not found",
			Type:    errorType,
		}
	}

	user, err := services.Authenticate(c.UserContext(), db, token)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: "Invalid or expired session",
				Type:    errorType,
			}
		}
		return err
	}

	if len(roles) > 0 && !slices.Contains(roles, user.Role) {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: fmt.Sprintf("Role %s is not permitted", user.Role),
			Type:    errorType,
		}
	}

	c.Locals(userKey, user)
	return c.Next()
}

// BearerToken returns the token from the Authorization header, or an empty string
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// CurrentUser returns the user Authorize admitted, or nil on unauthenticated routes
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}
