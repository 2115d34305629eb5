package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/middleware"
	"github.com/localnerve/casefile/internal/services"
	"gorm.io/gorm"
)

// RelationshipHandler handles typed relationships between entities
type RelationshipHandler struct {
	DB *gorm.DB
}

// CreateRelationship handles POST /api/relationships
// @Summary Relate two entities
// @Tags Relationships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.RelationshipInput true "Relationship"
// @Success 201 {object} models.EntityRelationship
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /relationships [post]
func (h *RelationshipHandler) CreateRelationship(c *fiber.Ctx) error {
	var in services.RelationshipInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "createRelationship")
	}
	rel, err := services.CreateRelationship(c.UserContext(), h.DB, in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "createRelationship")
	}
	return created(c, rel)
}

// GetRelationship handles GET /api/relationships/:id
// @Summary Relationship detail
// @Tags Relationships
// @Produce json
// @Security BearerAuth
// @Param id path string true "Relationship ID"
// @Success 200 {object} services.RelationshipView
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /relationships/{id} [get]
func (h *RelationshipHandler) GetRelationship(c *fiber.Ctx) error {
	rel, err := services.GetRelationship(c.UserContext(), h.DB, c.Params("id"))
	if err != nil {
		return fail(c, err, "getRelationship")
	}
	return ok(c, rel)
}

// UpdateRelationship handles PUT /api/relationships/:id
// @Summary Patch a relationship
// @Description Only supplied fields change; endpoints are fixed
// @Tags Relationships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Relationship ID"
// @Param body body services.RelationshipInput true "Fields to change"
// @Success 200 {object} models.EntityRelationship
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /relationships/{id} [put]
func (h *RelationshipHandler) UpdateRelationship(c *fiber.Ctx) error {
	var in services.RelationshipInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "updateRelationship")
	}
	rel, err := services.UpdateRelationship(c.UserContext(), h.DB, c.Params("id"), in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "updateRelationship")
	}
	return ok(c, rel)
}
