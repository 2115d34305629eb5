// entities.go
//
// Case-management data service for investigative teams
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of casefile.
// casefile is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// casefile is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with casefile.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/middleware"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
)

// EntityHandler handles the entity registry, attribute ledger and notes
type EntityHandler struct {
	DB *gorm.DB
}

// NoteRequest is the body of POST /entities/:id/notes
type NoteRequest struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// SearchEntities handles GET /api/entities
// @Summary Search entities
// @Description At most 50 results, most recently updated first. q matches names case-insensitively.
// @Tags Entities
// @Produce json
// @Security BearerAuth
// @Param q query string false "Name substring"
// @Param type query string false "Entity type"
// @Param caseId query string false "Only entities linked into this case"
// @Success 200 {array} models.Entity
// @Router /entities [get]
func (h *EntityHandler) SearchEntities(c *fiber.Ctx) error {
	entities, err := services.SearchEntities(c.UserContext(), h.DB, services.EntitySearch{
		Query:  c.Query("q"),
		Type:   c.Query("type"),
		CaseID: c.Query("caseId"),
	})
	if err != nil {
		return fail(c, err, "searchEntities")
	}
	return ok(c, entities)
}

// CreateEntity handles POST /api/entities
// @Summary Register an entity
// @Tags Entities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.EntityInput true "Entity"
// @Success 201 {object} models.Entity
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /entities [post]
func (h *EntityHandler) CreateEntity(c *fiber.Ctx) error {
	var in services.EntityInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "createEntity")
	}
	entity, err := services.CreateEntity(c.UserContext(), h.DB, in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "createEntity")
	}
	return created(c, entity)
}

// GetEntity handles GET /api/entities/:id
// @Summary Entity profile
// @Description Current attributes by category, notes newest first, relationships, case links and creator
// @Tags Entities
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Success 200 {object} services.EntityProfile
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entities/{id} [get]
func (h *EntityHandler) GetEntity(c *fiber.Ctx) error {
	profile, err := services.GetEntityProfile(c.UserContext(), h.DB, c.Params("id"))
	if err != nil {
		return fail(c, err, "getEntity")
	}
	return ok(c, profile)
}

// UpdateEntity handles PUT /api/entities/:id
// @Summary Update an entity's identity fields
// @Description Only primaryName, confidence and status can change
// @Tags Entities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Param body body services.EntityInput true "Fields to change"
// @Success 200 {object} models.Entity
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entities/{id} [put]
func (h *EntityHandler) UpdateEntity(c *fiber.Ctx) error {
	var in services.EntityInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "updateEntity")
	}
	entity, err := services.UpdateEntity(c.UserContext(), h.DB, c.Params("id"), in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "updateEntity")
	}
	return ok(c, entity)
}

// ListAttributes handles GET /api/entities/:id/attributes
// @Summary Current attributes
// @Tags Attributes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Success 200 {array} models.EntityAttribute
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entities/{id}/attributes [get]
func (h *EntityHandler) ListAttributes(c *fiber.Ctx) error {
	attrs, err := services.ListAttributes(c.UserContext(), h.DB, c.Params("id"))
	if err != nil {
		return fail(c, err, "listAttributes")
	}
	return ok(c, attrs)
}

// AddAttributes handles POST /api/entities/:id/attributes
// @Summary Add attributes
// @Description Accepts one attribute object or an array of them
// @Tags Attributes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Param body body []services.AttributeInput true "Attribute or attributes"
// @Success 201 {array} models.EntityAttribute
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entities/{id}/attributes [post]
func (h *EntityHandler) AddAttributes(c *fiber.Ctx) error {
	var in types.FlexList[services.AttributeInput]
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "addAttributes")
	}
	attrs, err := services.AddAttributes(c.UserContext(), h.DB, c.Params("id"), in.Slice(), middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "addAttributes")
	}
	if !types.IsJSONArray(c.Body()) && len(attrs) == 1 {
		return created(c, attrs[0])
	}
	return created(c, attrs)
}

// UpdateAttribute handles PUT /api/entities/:id/attributes/:attrId
// @Summary Supersede an attribute with a new version
// @Description The addressed version must be current; a stale version fails with 409
// @Tags Attributes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Param attrId path string true "Attribute ID"
// @Param body body services.AttributePatch true "Fields to change"
// @Success 200 {object} models.EntityAttribute
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /entities/{id}/attributes/{attrId} [put]
func (h *EntityHandler) UpdateAttribute(c *fiber.Ctx) error {
	var patch services.AttributePatch
	if err := parseBody(c, &patch); err != nil {
		return fail(c, err, "updateAttribute")
	}
	attr, err := services.UpdateAttribute(c.UserContext(), h.DB, c.Params("id"), c.Params("attrId"), patch, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "updateAttribute")
	}
	return ok(c, attr)
}

// DeprecateAttribute handles DELETE /api/entities/:id/attributes/:attrId
// @Summary Deprecate an attribute
// @Description Ends the lineage without a replacement; history is kept
// @Tags Attributes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Param attrId path string true "Attribute ID"
// @Success 200 {object} models.EntityAttribute
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /entities/{id}/attributes/{attrId} [delete]
func (h *EntityHandler) DeprecateAttribute(c *fiber.Ctx) error {
	attr, err := services.DeprecateAttribute(c.UserContext(), h.DB, c.Params("id"), c.Params("attrId"), middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "deprecateAttribute")
	}
	return ok(c, attr)
}

// AttributeHistory handles GET /api/entities/:id/attributes/:attrId/history
// @Summary Attribute lineage
// @Description Every version of the fact, oldest first
// @Tags Attributes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Param attrId path string true "Attribute ID"
// @Success 200 {array} models.EntityAttribute
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entities/{id}/attributes/{attrId}/history [get]
func (h *EntityHandler) AttributeHistory(c *fiber.Ctx) error {
	history, err := services.AttributeHistory(c.UserContext(), h.DB, c.Params("id"), c.Params("attrId"))
	if err != nil {
		return fail(c, err, "attributeHistory")
	}
	return ok(c, history)
}

// ListNotes handles GET /api/entities/:id/notes
// @Summary Entity notes
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Success 200 {array} services.NoteView
// @Router /entities/{id}/notes [get]
func (h *EntityHandler) ListNotes(c *fiber.Ctx) error {
	notes, err := services.ListNotes(c.UserContext(), h.DB, c.Params("id"))
	if err != nil {
		return fail(c, err, "listNotes")
	}
	return ok(c, notes)
}

// AddNote handles POST /api/entities/:id/notes
// @Summary Add a note
// @Description Notes cannot be edited or deleted
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Param body body NoteRequest true "Note"
// @Success 201 {object} services.NoteView
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entities/{id}/notes [post]
func (h *EntityHandler) AddNote(c *fiber.Ctx) error {
	var req NoteRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "addNote")
	}
	note, err := services.AddNote(c.UserContext(), h.DB, c.Params("id"), req.Content, req.Category, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "addNote")
	}
	return created(c, note)
}

// Relationships handles GET /api/entities/:id/relationships
// @Summary Relationships touching an entity
// @Description Outgoing and incoming relationships as two disjoint lists
// @Tags Relationships
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entity ID"
// @Success 200 {object} services.RelationshipSet
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /entities/{id}/relationships [get]
func (h *EntityHandler) Relationships(c *fiber.Ctx) error {
	set, err := services.GetRelationshipsFor(c.UserContext(), h.DB, c.Params("id"))
	if err != nil {
		return fail(c, err, "entityRelationships")
	}
	return ok(c, set)
}
