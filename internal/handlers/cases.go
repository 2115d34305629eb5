package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/middleware"
	"github.com/localnerve/casefile/internal/services"
	"gorm.io/gorm"
)

// CaseHandler handles case, membership and case-link routes
type CaseHandler struct {
	DB *gorm.DB
}

// MemberRequest is the body of POST /cases/:id/members
type MemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// ListCases handles GET /api/cases
// @Summary List cases
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Success 200 {array} services.CaseListItem
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /cases [get]
func (h *CaseHandler) ListCases(c *fiber.Ctx) error {
	cases, err := services.ListCases(c.UserContext(), h.DB)
	if err != nil {
		return fail(c, err, "listCases")
	}
	return ok(c, cases)
}

// CreateCase handles POST /api/cases
// @Summary Open a case
// @Description The caller becomes the case owner and its first member
// @Tags Cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CaseInput true "Case"
// @Success 201 {object} models.Case
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /cases [post]
func (h *CaseHandler) CreateCase(c *fiber.Ctx) error {
	var in services.CaseInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "createCase")
	}
	newCase, err := services.CreateCase(c.UserContext(), h.DB, in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "createCase")
	}
	return created(c, newCase)
}

// GetCase handles GET /api/cases/:id
// @Summary Case detail
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Success 200 {object} services.CaseDetail
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /cases/{id} [get]
func (h *CaseHandler) GetCase(c *fiber.Ctx) error {
	detail, err := services.GetCase(c.UserContext(), h.DB, c.Params("id"))
	if err != nil {
		return fail(c, err, "getCase")
	}
	return ok(c, detail)
}

// UpdateCase handles PUT /api/cases/:id
// @Summary Update a case
// @Tags Cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Param body body services.CaseInput true "Fields to change"
// @Success 200 {object} models.Case
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /cases/{id} [put]
func (h *CaseHandler) UpdateCase(c *fiber.Ctx) error {
	var in services.CaseInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "updateCase")
	}
	updated, err := services.UpdateCase(c.UserContext(), h.DB, c.Params("id"), in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "updateCase")
	}
	return ok(c, updated)
}

// AddMember handles POST /api/cases/:id/members
// @Summary Add a case member
// @Description Only the case owner or a global OWNER can manage the team
// @Tags Cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Param body body MemberRequest true "Member"
// @Success 201 {object} models.CaseMember
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /cases/{id}/members [post]
func (h *CaseHandler) AddMember(c *fiber.Ctx) error {
	var req MemberRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "addMember")
	}
	member, err := services.AddCaseMember(c.UserContext(), h.DB, c.Params("id"), req.UserID, req.Role, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "addMember")
	}
	return created(c, member)
}

// ListMembers handles GET /api/cases/:id/members
// @Summary List case members
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Success 200 {array} models.CaseMember
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /cases/{id}/members [get]
func (h *CaseHandler) ListMembers(c *fiber.Ctx) error {
	members, err := services.ListCaseMembers(c.UserContext(), h.DB, c.Params("id"))
	if err != nil {
		return fail(c, err, "listMembers")
	}
	return ok(c, members)
}

// ListCaseEntities handles GET /api/cases/:caseId/entities
// @Summary Entities linked into a case
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param caseId path string true "Case ID"
// @Success 200 {array} services.CaseEntity
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /cases/{caseId}/entities [get]
func (h *CaseHandler) ListCaseEntities(c *fiber.Ctx) error {
	entities, err := services.ListCaseEntities(c.UserContext(), h.DB, c.Params("caseId"))
	if err != nil {
		return fail(c, err, "listCaseEntities")
	}
	return ok(c, entities)
}

// LinkEntity handles POST /api/cases/:caseId/entities
// @Summary Link an entity into a case
// @Description An entity can be linked into a case once
// @Tags Cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param caseId path string true "Case ID"
// @Param body body services.LinkInput true "Link"
// @Success 201 {object} models.EntityCaseLink
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /cases/{caseId}/entities [post]
func (h *CaseHandler) LinkEntity(c *fiber.Ctx) error {
	var in services.LinkInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "linkEntity")
	}
	link, err := services.LinkEntityToCase(c.UserContext(), h.DB, c.Params("caseId"), in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "linkEntity")
	}
	return created(c, link)
}

// UpdateCaseLink handles PUT /api/cases/:caseId/entities/:entityId
// @Summary Update an entity's role in a case
// @Tags Cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param caseId path string true "Case ID"
// @Param entityId path string true "Entity ID"
// @Param body body services.LinkInput true "Fields to change"
// @Success 200 {object} models.EntityCaseLink
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /cases/{caseId}/entities/{entityId} [put]
func (h *CaseHandler) UpdateCaseLink(c *fiber.Ctx) error {
	var in services.LinkInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "updateCaseLink")
	}
	link, err := services.UpdateCaseLink(c.UserContext(), h.DB, c.Params("caseId"), c.Params("entityId"), in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "updateCaseLink")
	}
	return ok(c, link)
}
