package middleware_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/localnerve/casefile/internal/middleware"
	"github.com/localnerve/casefile/internal/ratelimit"
	"github.com/localnerve/casefile/internal/utils"
)

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc123":   "abc123",
		"bearer abc123":   "abc123",
		"Bearer  abc123 ": "abc123",
		"Basic abc123":    "",
		"abc123":          "",
		"":                "",
	}

	for header, expected := range tests {
		app := fiber.New()
		var got string
		app.Get("/", func(c *fiber.Ctx) error {
			got = middleware.BearerToken(c)
			return c.SendStatus(fiber.StatusOK)
		})
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if _, err := app.Test(req); err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		if got != expected {
			t.Errorf("BearerToken(%q) = %q, expected %q", header, got, expected)
		}
	}
}

func rateLimitedApp(limiter ratelimit.Limiter, limit int) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	app.Post("/login", middleware.RateLimit(limiter, "login", limit, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestRateLimitHeaders(t *testing.T) {
	app := rateLimitedApp(ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{}), 2)

	for i, remaining := range []string{"1", "0"} {
		resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("Request %d: expected 204, got %d", i+1, resp.StatusCode)
		}
		if got := resp.Header.Get("RateLimit-Remaining"); got != remaining {
			t.Errorf("Request %d: expected remaining %s, got %s", i+1, remaining, got)
		}
	}

	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderRetryAfter) == "" {
		t.Error("Expected Retry-After on a rejected request")
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis: connection refused")
}

func TestRateLimitFailsOpen(t *testing.T) {
	app := rateLimitedApp(failingLimiter{}, 1)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		if resp.StatusCode != fiber.StatusNoContent {
			t.Errorf("Expected limiter errors to let requests through, got %d", resp.StatusCode)
		}
	}
}

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("requestId").(string))
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/", nil))
	if _, err := uuid.Parse(resp.Header.Get(fiber.HeaderXRequestID)); err != nil {
		t.Errorf("Expected a generated request id, got %q", resp.Header.Get(fiber.HeaderXRequestID))
	}

	sent := uuid.NewString()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, sent)
	resp, _ = app.Test(req)
	if got := resp.Header.Get(fiber.HeaderXRequestID); got != sent {
		t.Errorf("Expected %s to be reused, got %s", sent, got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "<script>")
	resp, _ = app.Test(req)
	if got := resp.Header.Get(fiber.HeaderXRequestID); got == "<script>" {
		t.Error("Expected a malformed request id to be replaced")
	}
}

func TestVersionMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.VersionMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("apiVersion").(string))
	})

	for sent, expected := range map[string]string{"": "1.0.0", "1": "1.0.0", "1.0": "1.0.0", "2.0.0": "2.0.0"} {
		req := httptest.NewRequest("GET", "/", nil)
		if sent != "" {
			req.Header.Set("X-Api-Version", sent)
		}
		resp, _ := app.Test(req)
		if got := resp.Header.Get("X-Api-Version"); got != expected {
			t.Errorf("X-Api-Version %q: expected %s, got %s", sent, expected, got)
		}
	}
}
