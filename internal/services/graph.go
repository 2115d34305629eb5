// graph.go
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

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// NodeInput carries the fields of a new canvas node
type NodeInput struct {
	CaseID string      `json:"caseId"`
	Type   string      `json:"type"`
	Label  string      `json:"label"`
	Detail string      `json:"detail"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Data   models.JSON `json:"data" swaggertype:"object"`
}

// EdgeInput carries the fields of a new canvas edge
type EdgeInput struct {
	CaseID   string `json:"caseId"`
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	Label    string `json:"label"`
}

// ListNodes returns canvas nodes newest first, filtered by case and type when given
func ListNodes(ctx context.Context, db *gorm.DB, caseID, nodeType string) ([]models.Node, error) {
	var nodes []models.Node
	query := db.WithContext(ctx).Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Order("created_at DESC")
	if caseID != "" {
		query = query.Where("case_id = ?", caseID)
	}
	if nodeType != "" {
		query = query.Where("type = ?", nodeType)
	}
	err := query.Find(&nodes).Error
	return nodes, err
}

// CreateNode places a new node on a case canvas
func CreateNode(ctx context.Context, db *gorm.DB, in NodeInput, actor *models.User) (*models.Node, error) {
	if in.CaseID == "" {
		return nil, types.Invalid("caseId is required")
	}
	if strings.TrimSpace(in.Type) == "" || strings.TrimSpace(in.Label) == "" {
		return nil, types.Invalid("type and label are required")
	}
	if _, err := findCase(ctx, db, in.CaseID); err != nil {
		return nil, err
	}

	node := models.Node{
		CaseID: in.CaseID,
		Type:   in.Type,
		Label:  strings.TrimSpace(in.Label),
		Detail: in.Detail,
		X:      in.X,
		Y:      in.Y,
		Data:   in.Data,
	}
	if err := db.WithContext(ctx).Create(&node).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &node.CaseID, ActionAddEntity, fmt.Sprintf("Added %s: %s", node.Type, node.Label), actor)
	return &node, nil
}

// UpdateNodePosition moves a node. Position changes are cosmetic and not audited.
func UpdateNodePosition(ctx context.Context, db *gorm.DB, id string, x, y float64) (*models.Node, error) {
	result := db.WithContext(ctx).Model(&models.Node{}).Where("id = ?", id).
		Updates(map[string]interface{}{"x": x, "y": y})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, types.NotFound("node")
	}
	return findNode(ctx, db, id)
}

// UpdateNodeContent changes the label and detail shown for a node
func UpdateNodeContent(ctx context.Context, db *gorm.DB, id string, label, detail *string, actor *models.User) (*models.Node, error) {
	updates := map[string]interface{}{}
	if label != nil {
		if strings.TrimSpace(*label) == "" {
			return nil, types.Invalid("label cannot be empty")
		}
		updates["label"] = strings.TrimSpace(*label)
	}
	if detail != nil {
		updates["detail"] = *detail
	}

	node, err := findNode(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return node, nil
	}
	if err := db.WithContext(ctx).Model(node).Updates(updates).Error; err != nil {
		return nil, err
	}
	if node, err = findNode(ctx, db, id); err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &node.CaseID, ActionUpdateEntity, "Updated entity: "+node.Label, actor)
	return node, nil
}

// DeleteNode removes a node and every edge touching it in one transaction
func DeleteNode(ctx context.Context, db *gorm.DB, id string, actor *models.User) (int64, error) {
	var node models.Node
	var edgesRemoved int64

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&node, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NotFound("node")
			}
			return err
		}
		result := tx.Where("source_id = ? OR target_id = ?", id, id).Delete(&models.Edge{})
		if result.Error != nil {
			return result.Error
		}
		edgesRemoved = result.RowsAffected
		return tx.Delete(&node).Error
	})
	if err != nil {
		return 0, err
	}

	emitAudit(ctx, db, &node.CaseID, ActionDeleteEntity,
		fmt.Sprintf("Removed %s: %s (%d connections)", node.Type, node.Label, edgesRemoved), actor)
	return edgesRemoved, nil
}

// PlaceEntity projects a global entity onto a case canvas. The entity's node in that case is
// created on first placement and re-positioned afterwards; nothing flows back to the entity.
func PlaceEntity(ctx context.Context, db *gorm.DB, caseID, entityID string, x, y float64, actor *models.User) (*models.Node, bool, error) {
	if caseID == "" || entityID == "" {
		return nil, false, types.Invalid("caseId and entityId are required")
	}
	if _, err := findCase(ctx, db, caseID); err != nil {
		return nil, false, err
	}
	entity, err := findEntity(ctx, db, entityID)
	if err != nil {
		return nil, false, err
	}

	var node models.Node
	created := false
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("case_id = ? AND entity_id = ?", caseID, entityID).First(&node).Error
		if err == nil {
			if err := tx.Model(&node).Updates(map[string]interface{}{"x": x, "y": y}).Error; err != nil {
				return err
			}
			node.X, node.Y = x, y
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		node = models.Node{
			CaseID:   caseID,
			EntityID: &entity.ID,
			Type:     entity.Type,
			Label:    entity.PrimaryName,
			X:        x,
			Y:        y,
		}
		created = true
		return tx.Create(&node).Error
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		emitAudit(ctx, db, &caseID, ActionPlaceEntity, fmt.Sprintf("Placed %s: %s", entity.Type, entity.PrimaryName), actor)
	}
	return &node, created, nil
}

// ListEdges returns the edges of a case in creation order
func ListEdges(ctx context.Context, db *gorm.DB, caseID string) ([]models.Edge, error) {
	var edges []models.Edge
	query := db.WithContext(ctx).Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Order("created_at ASC")
	if caseID != "" {
		query = query.Where("case_id = ?", caseID)
	}
	err := query.Find(&edges).Error
	return edges, err
}

// CreateEdge connects two nodes of the same case
func CreateEdge(ctx context.Context, db *gorm.DB, in EdgeInput, actor *models.User) (*models.Edge, error) {
	if in.CaseID == "" || in.SourceID == "" || in.TargetID == "" {
		return nil, types.Invalid("caseId, sourceId and targetId are required")
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.Node{}).
		Where("case_id = ? AND id IN ?", in.CaseID, []string{in.SourceID, in.TargetID}).
		Count(&count).Error; err != nil {
		return nil, err
	}
	want := int64(2)
	if in.SourceID == in.TargetID {
		want = 1
	}
	if count != want {
		return nil, types.NotFound("node")
	}

	edge := models.Edge{
		CaseID:   in.CaseID,
		SourceID: in.SourceID,
		TargetID: in.TargetID,
		Label:    in.Label,
	}
	if err := db.WithContext(ctx).Create(&edge).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &edge.CaseID, ActionConnectEntities, "Connected nodes: "+edge.Label, actor)
	return &edge, nil
}

// UpdateEdge renames an edge
func UpdateEdge(ctx context.Context, db *gorm.DB, id, label string, actor *models.User) (*models.Edge, error) {
	edge, err := findEdge(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(edge).Update("label", label).Error; err != nil {
		return nil, err
	}
	edge.Label = label

	emitAudit(ctx, db, &edge.CaseID, ActionUpdateEdge, "Renamed connection to: "+label, actor)
	return edge, nil
}

// DeleteEdge removes an edge
func DeleteEdge(ctx context.Context, db *gorm.DB, id string, actor *models.User) error {
	edge, err := findEdge(ctx, db, id)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Delete(edge).Error; err != nil {
		return err
	}

	emitAudit(ctx, db, &edge.CaseID, ActionDeleteEdge, "Removed connection: "+edge.Label, actor)
	return nil
}

func findNode(ctx context.Context, db *gorm.DB, id string) (*models.Node, error) {
	var node models.Node
	if err := db.WithContext(ctx).First(&node, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("node")
		}
		return nil, err
	}
	return &node, nil
}

func findEdge(ctx context.Context, db *gorm.DB, id string) (*models.Edge, error) {
	var edge models.Edge
	if err := db.WithContext(ctx).First(&edge, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("edge")
		}
		return nil, err
	}
	return &edge, nil
}
