package utils

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends the standard error envelope
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(ErrorResponseStruct{
		Error:     message,
		Status:    status,
		Message:   message,
		Ok:        false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		URL:       c.OriginalURL(),
		Type:      errorType,
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusNotFound, "notFound")
}

// ServiceError translates an error returned by the services layer into the error envelope.
// Anything outside the known taxonomy is logged and reported as a generic 500.
func ServiceError(c *fiber.Ctx, err error, errorType string) error {
	status := StatusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("%s failed: %v", errorType, err)
		return ErrorResponse(c, "Internal server error", status, errorType)
	}
	return ErrorResponse(c, err.Error(), status, errorType)
}

// StatusFor maps the services error taxonomy to an HTTP status
func StatusFor(err error) int {
	var custom *types.CustomError
	switch {
	case errors.As(err, &custom):
		return custom.Code
	case errors.Is(err, types.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, types.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, types.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, types.ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Ok        bool   `json:"ok"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Type      string `json:"type,omitempty"`
}

// DeleteResponseStruct defines the schema for delete responses
type DeleteResponseStruct struct {
	Message      string `json:"message"`
	Ok           bool   `json:"ok"`
	Timestamp    string `json:"timestamp"`
	AffectedRows int64  `json:"affectedRows"`
}

// DeleteSuccessResponse sends a success response for deletions
func DeleteSuccessResponse(c *fiber.Ctx, affectedRows int64) error {
	return c.Status(fiber.StatusOK).JSON(DeleteResponseStruct{
		Message:      "Success",
		Ok:           true,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		AffectedRows: affectedRows,
	})
}

// ErrorHandler renders any error that escapes a handler or middleware with the error envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ErrorResponse(c, fiberErr.Message, fiberErr.Code, "http")
	}
	var custom *types.CustomError
	if errors.As(err, &custom) {
		return ErrorResponse(c, custom.Message, custom.Code, custom.Type)
	}
	return ServiceError(c, err, "unknown")
}
