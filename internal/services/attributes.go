// attributes.go
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
)

// maxLineageLength bounds history walks so a corrupted chain cannot loop forever
const maxLineageLength = 10000

// AttributeInput carries a new attribute version
type AttributeInput struct {
	Category   string          `json:"category"`
	Key        string          `json:"key"`
	Value      string          `json:"value"`
	ValueType  string          `json:"valueType"`
	Confidence types.FlexFloat `json:"confidence" swaggertype:"number"`
	Source     string          `json:"source"`
}

// AttributePatch carries the fields to change on an attribute. Unset fields are copied forward
// from the version being superseded.
type AttributePatch struct {
	Value      *string         `json:"value"`
	Confidence types.FlexFloat `json:"confidence" swaggertype:"number"`
	Source     *string         `json:"source"`
}

// AddAttributes stores each input as a new current version on the entity, all or nothing.
// An input whose (category, key) lineage already has a current version supersedes it, so a
// lineage never holds more than one current row.
func AddAttributes(ctx context.Context, db *gorm.DB, entityID string, inputs []AttributeInput, actor *models.User) ([]models.EntityAttribute, error) {
	if len(inputs) == 0 {
		return nil, types.Invalid("at least one attribute is required")
	}
	entity, err := findEntity(ctx, db, entityID)
	if err != nil {
		return nil, err
	}

	attrs := make([]models.EntityAttribute, len(inputs))
	for i, in := range inputs {
		category := strings.TrimSpace(in.Category)
		key := strings.TrimSpace(in.Key)
		if category == "" || key == "" || in.Value == "" {
			return nil, types.Invalid("category, key and value are required")
		}
		confidence := in.Confidence.Or(0.5)
		if err := checkConfidence(confidence); err != nil {
			return nil, err
		}
		valueType := in.ValueType
		if valueType == "" {
			valueType = "text"
		}
		attrs[i] = models.EntityAttribute{
			EntityID:    entity.ID,
			Category:    category,
			Key:         key,
			Value:       in.Value,
			ValueType:   valueType,
			Confidence:  confidence,
			Source:      in.Source,
			CreatedByID: actorID(actor),
		}
	}

	replaced := make([]string, len(attrs))
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		added := make(map[string]int, len(attrs))
		for i := range attrs {
			var current []models.EntityAttribute
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("entity_id = ? AND category = ? AND attr_key = ? AND superseded_by IS NULL",
					entity.ID, attrs[i].Category, attrs[i].Key).
				Find(&current).Error; err != nil {
				return err
			}
			if err := tx.Create(&attrs[i]).Error; err != nil {
				return err
			}
			if len(current) == 0 {
				added[attrs[i].Category+"."+attrs[i].Key] = i
				continue
			}

			ids := make([]string, len(current))
			for j, c := range current {
				ids[j] = c.ID
			}
			result := tx.Model(&models.EntityAttribute{}).
				Where("id IN ? AND superseded_by IS NULL", ids).
				Update("superseded_by", attrs[i].ID)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected != int64(len(ids)) {
				return types.Conflict("%s.%s was superseded concurrently", attrs[i].Category, attrs[i].Key)
			}

			lineage := attrs[i].Category + "." + attrs[i].Key
			if prev, ok := added[lineage]; ok {
				attrs[prev].SupersededBy = &attrs[i].ID
			}
			added[lineage] = i
			replaced[i] = current[len(current)-1].Value
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, a := range attrs {
		details := fmt.Sprintf("%s: %s.%s = %s", entity.PrimaryName, a.Category, a.Key, a.Value)
		if replaced[i] != "" {
			details += fmt.Sprintf(" (was %s)", replaced[i])
		}
		emitAudit(ctx, db, nil, ActionAddAttribute, details, actor)
	}
	return attrs, nil
}

// UpdateAttribute supersedes the current version attributeID with a new version carrying the
// patch. The read, insert and supersede run in one transaction; the supersede only succeeds
// while the read version is still current, otherwise the whole update fails with a conflict.
func UpdateAttribute(ctx context.Context, db *gorm.DB, entityID, attributeID string, patch AttributePatch, actor *models.User) (*models.EntityAttribute, error) {
	if patch.Confidence.Set {
		if err := checkConfidence(patch.Confidence.Value); err != nil {
			return nil, err
		}
	}
	if patch.Value != nil && *patch.Value == "" {
		return nil, types.Invalid("value cannot be empty")
	}

	var prior, next models.EntityAttribute
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&prior, "id = ? AND entity_id = ?", attributeID, entityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NotFound("attribute")
			}
			return err
		}
		if !prior.Current() {
			return types.Conflict("attribute %s is no longer the current version", prior.ID)
		}

		next = models.EntityAttribute{
			EntityID:    prior.EntityID,
			Category:    prior.Category,
			Key:         prior.Key,
			Value:       prior.Value,
			ValueType:   prior.ValueType,
			Confidence:  prior.Confidence,
			Source:      prior.Source,
			CreatedByID: actorID(actor),
		}
		if patch.Value != nil {
			next.Value = *patch.Value
		}
		if patch.Confidence.Set {
			next.Confidence = patch.Confidence.Value
		}
		if patch.Source != nil {
			next.Source = *patch.Source
		}
		if err := tx.Create(&next).Error; err != nil {
			return err
		}

		result := tx.Model(&models.EntityAttribute{}).
			Where("id = ? AND superseded_by IS NULL", prior.ID).
			Update("superseded_by", next.ID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.Conflict("attribute %s was superseded concurrently", prior.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, db, nil, ActionUpdateAttribute,
		fmt.Sprintf("%s.%s: %s -> %s", next.Category, next.Key, prior.Value, next.Value), actor)
	return &next, nil
}

// DeprecateAttribute ends the lineage at attributeID without a replacement
func DeprecateAttribute(ctx context.Context, db *gorm.DB, entityID, attributeID string, actor *models.User) (*models.EntityAttribute, error) {
	var attr models.EntityAttribute
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&attr, "id = ? AND entity_id = ?", attributeID, entityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NotFound("attribute")
			}
			return err
		}
		result := tx.Model(&models.EntityAttribute{}).
			Where("id = ? AND superseded_by IS NULL", attr.ID).
			Update("superseded_by", models.Deprecated)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.Conflict("attribute %s is no longer the current version", attr.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	deprecated := models.Deprecated
	attr.SupersededBy = &deprecated

	emitAudit(ctx, db, nil, ActionDeprecateAttribute, fmt.Sprintf("%s.%s deprecated", attr.Category, attr.Key), actor)
	return &attr, nil
}

// CurrentAttributes returns the live version of every lineage on the entity, ordered by
// category then key
func CurrentAttributes(ctx context.Context, db *gorm.DB, entityID string) ([]models.EntityAttribute, error) {
	attrs := []models.EntityAttribute{}
	err := db.WithContext(ctx).
		Where("entity_id = ? AND superseded_by IS NULL", entityID).
		Order("category ASC").Order("attr_key ASC").Order("first_seen ASC").
		Find(&attrs).Error
	return attrs, err
}

// AttributeHistory returns the whole lineage containing attributeID, oldest version first
func AttributeHistory(ctx context.Context, db *gorm.DB, entityID, attributeID string) ([]models.EntityAttribute, error) {
	var anchor models.EntityAttribute
	if err := db.WithContext(ctx).First(&anchor, "id = ? AND entity_id = ?", attributeID, entityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("attribute")
		}
		return nil, err
	}

	// Walk back to the first version
	older := []models.EntityAttribute{}
	cursor := anchor.ID
	for range maxLineageLength {
		var prev models.EntityAttribute
		err := db.WithContext(ctx).Where("superseded_by = ?", cursor).First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		older = append(older, prev)
		cursor = prev.ID
	}

	history := make([]models.EntityAttribute, 0, len(older)+1)
	for i := len(older) - 1; i >= 0; i-- {
		history = append(history, older[i])
	}
	history = append(history, anchor)

	// Walk forward to the current version or the deprecation marker
	next := anchor
	for range maxLineageLength {
		if next.SupersededBy == nil || next.IsDeprecated() {
			break
		}
		var successor models.EntityAttribute
		err := db.WithContext(ctx).First(&successor, "id = ?", *next.SupersededBy).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		history = append(history, successor)
		next = successor
	}

	return history, nil
}

// ListAttributes returns the current attributes of an existing entity
func ListAttributes(ctx context.Context, db *gorm.DB, entityID string) ([]models.EntityAttribute, error) {
	if _, err := findEntity(ctx, db, entityID); err != nil {
		return nil, err
	}
	return CurrentAttributes(ctx, db, entityID)
}
