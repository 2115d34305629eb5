package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/middleware"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
)

// GraphHandler handles the case canvas: nodes and edges
type GraphHandler struct {
	DB *gorm.DB
}

// PositionRequest is the body of PUT /nodes/:id/position
type PositionRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// NodeContentRequest is the body of PUT /nodes/:id
type NodeContentRequest struct {
	Label  *string `json:"label"`
	Detail *string `json:"detail"`
}

// PlaceEntityRequest is the body of POST /nodes/place-entity
type PlaceEntityRequest struct {
	CaseID   string  `json:"caseId"`
	EntityID string  `json:"entityId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// EdgeLabelRequest is the body of PUT /edges/:id
type EdgeLabelRequest struct {
	Label string `json:"label"`
}

// ListNodes handles GET /api/nodes
// @Summary List canvas nodes
// @Tags Graph
// @Produce json
// @Security BearerAuth
// @Param caseId query string false "Case ID"
// @Param type query string false "Node type"
// @Success 200 {array} models.Node
// @Router /nodes [get]
func (h *GraphHandler) ListNodes(c *fiber.Ctx) error {
	nodes, err := services.ListNodes(c.UserContext(), h.DB, c.Query("caseId"), c.Query("type"))
	if err != nil {
		return fail(c, err, "listNodes")
	}
	return ok(c, nodes)
}

// CreateNode handles POST /api/nodes
// @Summary Add a node to a case canvas
// @Tags Graph
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.NodeInput true "Node"
// @Success 201 {object} models.Node
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /nodes [post]
func (h *GraphHandler) CreateNode(c *fiber.Ctx) error {
	var in services.NodeInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "createNode")
	}
	node, err := services.CreateNode(c.UserContext(), h.DB, in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "createNode")
	}
	return created(c, node)
}

// UpdateNodeContent handles PUT /api/nodes/:id
// @Summary Change a node's label or detail
// @Tags Graph
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Node ID"
// @Param body body NodeContentRequest true "Fields to change"
// @Success 200 {object} models.Node
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /nodes/{id} [put]
func (h *GraphHandler) UpdateNodeContent(c *fiber.Ctx) error {
	var req NodeContentRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "updateNode")
	}
	node, err := services.UpdateNodeContent(c.UserContext(), h.DB, c.Params("id"), req.Label, req.Detail, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "updateNode")
	}
	return ok(c, node)
}

// UpdateNodePosition handles PUT /api/nodes/:id/position
// @Summary Move a node
// @Description Position changes are not audited
// @Tags Graph
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Node ID"
// @Param body body PositionRequest true "Coordinates"
// @Success 200 {object} models.Node
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /nodes/{id}/position [put]
func (h *GraphHandler) UpdateNodePosition(c *fiber.Ctx) error {
	var req PositionRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "moveNode")
	}
	if req.X == nil || req.Y == nil {
		return fail(c, types.Invalid("x and y are required"), "moveNode")
	}
	node, err := services.UpdateNodePosition(c.UserContext(), h.DB, c.Params("id"), *req.X, *req.Y)
	if err != nil {
		return fail(c, err, "moveNode")
	}
	return ok(c, node)
}

// DeleteNode handles DELETE /api/nodes/:id
// @Summary Remove a node
// @Description Every edge touching the node is removed with it
// @Tags Graph
// @Produce json
// @Security BearerAuth
// @Param id path string true "Node ID"
// @Success 200 {object} utils.DeleteResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /nodes/{id} [delete]
func (h *GraphHandler) DeleteNode(c *fiber.Ctx) error {
	edges, err := services.DeleteNode(c.UserContext(), h.DB, c.Params("id"), middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "deleteNode")
	}
	return deleted(c, 1+edges)
}

// PlaceEntity handles POST /api/nodes/place-entity
// @Summary Project an entity onto a case canvas
// @Description Creates the entity's node in the case, or moves it when already placed
// @Tags Graph
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body PlaceEntityRequest true "Placement"
// @Success 200 {object} models.Node
// @Success 201 {object} models.Node
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /nodes/place-entity [post]
func (h *GraphHandler) PlaceEntity(c *fiber.Ctx) error {
	var req PlaceEntityRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "placeEntity")
	}
	node, isNew, err := services.PlaceEntity(c.UserContext(), h.DB, req.CaseID, req.EntityID, req.X, req.Y, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "placeEntity")
	}
	if isNew {
		return created(c, node)
	}
	return ok(c, node)
}

// ListEdges handles GET /api/edges
// @Summary List canvas edges
// @Tags Graph
// @Produce json
// @Security BearerAuth
// @Param caseId query string false "Case ID"
// @Success 200 {array} models.Edge
// @Router /edges [get]
func (h *GraphHandler) ListEdges(c *fiber.Ctx) error {
	edges, err := services.ListEdges(c.UserContext(), h.DB, c.Query("caseId"))
	if err != nil {
		return fail(c, err, "listEdges")
	}
	return ok(c, edges)
}

// CreateEdge handles POST /api/edges
// @Summary Connect two nodes
// @Tags Graph
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.EdgeInput true "Edge"
// @Success 201 {object} models.Edge
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /edges [post]
func (h *GraphHandler) CreateEdge(c *fiber.Ctx) error {
	var in services.EdgeInput
	if err := parseBody(c, &in); err != nil {
		return fail(c, err, "createEdge")
	}
	edge, err := services.CreateEdge(c.UserContext(), h.DB, in, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "createEdge")
	}
	return created(c, edge)
}

// UpdateEdge handles PUT /api/edges/:id
// @Summary Rename an edge
// @Tags Graph
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Edge ID"
// @Param body body EdgeLabelRequest true "Label"
// @Success 200 {object} models.Edge
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /edges/{id} [put]
func (h *GraphHandler) UpdateEdge(c *fiber.Ctx) error {
	var req EdgeLabelRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err, "updateEdge")
	}
	edge, err := services.UpdateEdge(c.UserContext(), h.DB, c.Params("id"), req.Label, middleware.CurrentUser(c))
	if err != nil {
		return fail(c, err, "updateEdge")
	}
	return ok(c, edge)
}

// DeleteEdge handles DELETE /api/edges/:id
// @Summary Remove an edge
// @Tags Graph
// @Produce json
// @Security BearerAuth
// @Param id path string true "Edge ID"
// @Success 200 {object} utils.DeleteResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /edges/{id} [delete]
func (h *GraphHandler) DeleteEdge(c *fiber.Ctx) error {
	if err := services.DeleteEdge(c.UserContext(), h.DB, c.Params("id"), middleware.CurrentUser(c)); err != nil {
		return fail(c, err, "deleteEdge")
	}
	return deleted(c, 1)
}
