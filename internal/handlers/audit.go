package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/config"
	"github.com/localnerve/casefile/internal/services"
	"gorm.io/gorm"
)

// AuditHandler handles the audit trail
type AuditHandler struct {
	DB *gorm.DB
}

// HealthHandler reports service health
type HealthHandler struct {
	DB     *gorm.DB
	Config *config.Config
}

// ListAuditLogs handles GET /api/audit-logs
// @Summary Audit trail
// @Description Newest first, optionally scoped to one case
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param caseId query string false "Case ID"
// @Success 200 {array} services.AuditLogEntry
// @Router /audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *fiber.Ctx) error {
	logs, err := services.QueryAudit(c.UserContext(), h.DB, c.Query("caseId"))
	if err != nil {
		return fail(c, err, "auditLogs")
	}
	return ok(c, logs)
}

// Health handles GET /api/health
// @Summary Service health
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	result := services.HealthCheck(c.UserContext(), h.Config, h.DB)
	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}
