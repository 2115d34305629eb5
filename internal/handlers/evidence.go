package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/middleware"
	"github.com/localnerve/casefile/internal/services"
	"gorm.io/gorm"
)

// EvidenceHandler handles the evidence vault and hypotheses board
type EvidenceHandler struct {
	DB *gorm.DB
}

// HypothesisStatusRequest is the body of PUT /hypotheses/:id/status
type HypothesisStatusRequest struct {
	Status string `json:"status"`
}

// ListEvidence handles GET /api/evidence
// @Summary Evidence of a case
// @Tags Evidence
// @Produce json
// @Security BearerAuth
// @Param caseId query string true "Case ID"
// @Success 200 {array} models.Evidence
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /evidence [get]
func (h *EvidenceHandler) ListEvidence(c *fiber.Ctx) error {
	items, err := services.ListEvidence(c.UserContext(), h.DB, c.Query("caseId"))
	if err != nil {
		return fail(c, err, "listEvidence")
	}
	return ok(c, items)
}

// CreateEvidence handles POST /api/evidence
// @Summary Record evidence metadata
// @Description File bytes are stored elsewhere; only label, type and hash are kept
// @Tags Evidence
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.EvidenceInput true "Evidence"
// @Success 201 {object} models.Evidence
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /evidence [post]
func (h *EvidenceHandler) CreateEvidence(c *fiber.Ctx) error {
	var in services.EvidenceInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "createEvidence")
	}
	item, err := services.CreateEvidence(c.UserContext(), h.DB, in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "createEvidence")
	}
	return created(c, item)
}

// DeleteEvidence handles DELETE /api/evidence/:id
// @Summary Remove evidence
// @Tags Evidence
// @Produce json
// @Security BearerAuth
// @Param id path string true "Evidence ID"
// @Success 200 {object} utils.DeleteResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /evidence/{id} [delete]
func (h *EvidenceHandler) DeleteEvidence(c *fiber.Ctx) error {
	if err := services.DeleteEvidence(c.UserContext(), h.DB, c.Params("id"), middleware.CurrentUser(c)); err != nil {
		return fail(c, err, "deleteEvidence")
	}
	return deleted(c, 1)
}

// LinkEvidence handles POST /api/evidence-links
// @Summary Back a record with evidence
// @Description At least one of attributeId, noteId or relationshipId is required
// @Tags Evidence
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.EvidenceLinkInput true "Link"
// @Success 201 {object} models.EvidenceLink
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /evidence-links [post]
func (h *EvidenceHandler) LinkEvidence(c *fiber.Ctx) error {
	var in services.EvidenceLinkInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "linkEvidence")
	}
	link, err := services.LinkEvidence(c.UserContext(), h.DB, in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "linkEvidence")
	}
	return created(c, link)
}

// ListHypotheses handles GET /api/hypotheses
// @Summary Hypotheses
// @Tags Hypotheses
// @Produce json
// @Security BearerAuth
// @Param caseId query string false "Case ID"
// @Success 200 {array} models.Hypothesis
// @Router /hypotheses [get]
func (h *EvidenceHandler) ListHypotheses(c *fiber.Ctx) error {
	items, err := services.ListHypotheses(c.UserContext(), h.DB, c.Query("caseId"))
	if err != nil {
		return fail(c, err, "listHypotheses")
	}
	return ok(c, items)
}

// CreateHypothesis handles POST /api/hypotheses
// @Summary Propose a hypothesis
// @Tags Hypotheses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.HypothesisInput true "Hypothesis"
// @Success 201 {object} models.Hypothesis
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /hypotheses [post]
func (h *EvidenceHandler) CreateHypothesis(c *fiber.Ctx) error {
	var in services.HypothesisInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "createHypothesis")
	}
	item, err := services.CreateHypothesis(c.UserContext(), h.DB, in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "createHypothesis")
	}
	return created(c, item)
}

// UpdateHypothesisStatus handles PUT /api/hypotheses/:id/status
// @Summary Move a hypothesis to a new status
// @Tags Hypotheses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Hypothesis ID"
// @Param body body HypothesisStatusRequest true "Status"
// @Success 200 {object} models.Hypothesis
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /hypotheses/{id}/status [put]
func (h *EvidenceHandler) UpdateHypothesisStatus(c *fiber.Ctx) error {
	var req HypothesisStatusRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "updateHypothesis")
	}
	item, err := services.UpdateHypothesisStatus(c.UserContext(), h.DB, c.Params("id"), req.Status, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "updateHypothesis")
	}
	return ok(c, item)
}
