package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
)

// RelationshipInput carries a relationship. On update only supplied fields change.
type RelationshipInput struct {
	SourceID         string          `json:"sourceId"`
	TargetID         string          `json:"targetId"`
	RelationshipType *string         `json:"relationshipType"`
	Direction        *string         `json:"direction"`
	Confidence       types.FlexFloat `json:"confidence" swaggertype:"number"`
	Status           *string         `json:"status"`
	ValidFrom        *time.Time      `json:"validFrom"`
	ValidTo          *time.Time      `json:"validTo"`
}

// RelationshipView is a relationship with a summary of the entity on the far side
type RelationshipView struct {
	models.EntityRelationship
	Source *models.EntitySummary `json:"source,omitempty"`
	Target *models.EntitySummary `json:"target,omitempty"`
}

// RelationshipSet splits the relationships touching an entity by stored direction.
// A self-relationship is listed only under Outgoing.
type RelationshipSet struct {
	Outgoing []RelationshipView `json:"outgoing"`
	Incoming []RelationshipView `json:"incoming"`
}

// CreateRelationship links two existing entities
func CreateRelationship(ctx context.Context, db *gorm.DB, in RelationshipInput, actor *models.User) (*models.EntityRelationship, error) {
	relType := trimmed(in.RelationshipType)
	if in.SourceID == "" || in.TargetID == "" || relType == "" {
		return nil, types.Invalid("sourceId, targetId and relationshipType are required")
	}
	direction := orDefault(in.Direction, models.DirectionBidirectional)
	if !validDirection(direction) {
		return nil, types.Invalid("unknown direction %q", direction)
	}
	status := orDefault(in.Status, models.RelationshipAssumed)
	if !validRelationshipStatus(status) {
		return nil, types.Invalid("unknown relationship status %q", status)
	}
	confidence := in.Confidence.Or(0.5)
	if err := checkConfidence(confidence); err != nil {
		return nil, err
	}
	if err := checkValidity(in.ValidFrom, in.ValidTo); err != nil {
		return nil, err
	}

	source, err := findEntity(ctx, db, in.SourceID)
	if err != nil {
		return nil, err
	}
	target, err := findEntity(ctx, db, in.TargetID)
	if err != nil {
		return nil, err
	}

	rel := models.EntityRelationship{
		SourceID:         source.ID,
		TargetID:         target.ID,
		RelationshipType: relType,
		Direction:        direction,
		Confidence:       confidence,
		Status:           status,
		ValidFrom:        in.ValidFrom,
		ValidTo:          in.ValidTo,
		CreatedByID:      actorID(actor),
	}
	if err := db.WithContext(ctx).Create(&rel).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, nil, ActionCreateRelationship,
		fmt.Sprintf("%s %s %s", source.PrimaryName, rel.RelationshipType, target.PrimaryName), actor)
	return &rel, nil
}

// GetRelationshipsFor returns the relationships touching an entity as two disjoint sequences
func GetRelationshipsFor(ctx context.Context, db *gorm.DB, entityID string) (*RelationshipSet, error) {
	if _, err := findEntity(ctx, db, entityID); err != nil {
		return nil, err
	}
	return relationshipsFor(ctx, db, entityID)
}

// GetRelationship returns one relationship with both endpoint summaries
func GetRelationship(ctx context.Context, db *gorm.DB, id string) (*RelationshipView, error) {
	rel, err := findRelationship(ctx, db, id)
	if err != nil {
		return nil, err
	}
	peers, err := entitySummaries(ctx, db, []string{rel.SourceID, rel.TargetID})
	if err != nil {
		return nil, err
	}
	view := RelationshipView{EntityRelationship: *rel}
	if s, ok := peers[rel.SourceID]; ok {
		view.Source = &s
	}
	if t, ok := peers[rel.TargetID]; ok {
		view.Target = &t
	}
	return &view, nil
}

// UpdateRelationship patches only the supplied fields. Endpoints are immutable.
func UpdateRelationship(ctx context.Context, db *gorm.DB, id string, in RelationshipInput, actor *models.User) (*models.EntityRelationship, error) {
	rel, err := findRelationship(ctx, db, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.RelationshipType != nil {
		relType := strings.TrimSpace(*in.RelationshipType)
		if relType == "" {
			return nil, types.Invalid("relationshipType cannot be empty")
		}
		updates["relationship_type"] = relType
	}
	if in.Direction != nil {
		if !validDirection(*in.Direction) {
			return nil, types.Invalid("unknown direction %q", *in.Direction)
		}
		updates["direction"] = *in.Direction
	}
	if in.Status != nil {
		if !validRelationshipStatus(*in.Status) {
			return nil, types.Invalid("unknown relationship status %q", *in.Status)
		}
		updates["status"] = *in.Status
	}
	if in.Confidence.Set {
		if err := checkConfidence(in.Confidence.Value); err != nil {
			return nil, err
		}
		updates["confidence"] = in.Confidence.Value
	}
	validFrom, validTo := rel.ValidFrom, rel.ValidTo
	if in.ValidFrom != nil {
		validFrom = in.ValidFrom
		updates["valid_from"] = *in.ValidFrom
	}
	if in.ValidTo != nil {
		validTo = in.ValidTo
		updates["valid_to"] = *in.ValidTo
	}
	if err := checkValidity(validFrom, validTo); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return rel, nil
	}

	if err := db.WithContext(ctx).Model(rel).Updates(updates).Error; err != nil {
		return nil, err
	}
	if rel, err = findRelationship(ctx, db, id); err != nil {
		return nil, err
	}

	emitAudit(ctx, db, nil, ActionUpdateRelationship, fmt.Sprintf("Updated %s relationship %s", rel.RelationshipType, rel.ID), actor)
	return rel, nil
}

func relationshipsFor(ctx context.Context, db *gorm.DB, entityID string) (*RelationshipSet, error) {
	var outgoing, incoming []models.EntityRelationship
	if err := db.WithContext(ctx).Where("source_id = ?", entityID).Order("created_at DESC").Find(&outgoing).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Where("target_id = ? AND source_id <> ?", entityID, entityID).
		Order("created_at DESC").Find(&incoming).Error; err != nil {
		return nil, err
	}

	peerIDs := make([]string, 0, len(outgoing)+len(incoming))
	for _, r := range outgoing {
		peerIDs = append(peerIDs, r.TargetID)
	}
	for _, r := range incoming {
		peerIDs = append(peerIDs, r.SourceID)
	}
	peers, err := entitySummaries(ctx, db, peerIDs)
	if err != nil {
		return nil, err
	}

	set := &RelationshipSet{
		Outgoing: make([]RelationshipView, len(outgoing)),
		Incoming: make([]RelationshipView, len(incoming)),
	}
	for i, r := range outgoing {
		set.Outgoing[i] = RelationshipView{EntityRelationship: r}
		if p, ok := peers[r.TargetID]; ok {
			set.Outgoing[i].Target = &p
		}
	}
	for i, r := range incoming {
		set.Incoming[i] = RelationshipView{EntityRelationship: r}
		if p, ok := peers[r.SourceID]; ok {
			set.Incoming[i].Source = &p
		}
	}
	return set, nil
}

func entitySummaries(ctx context.Context, db *gorm.DB, ids []string) (map[string]models.EntitySummary, error) {
	result := make(map[string]models.EntitySummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var entities []models.Entity
	if err := db.WithContext(ctx).Select("id", "primary_name", "type").Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, err
	}
	for _, e := range entities {
		result[e.ID] = e.Summary()
	}
	return result, nil
}

func findRelationship(ctx context.Context, db *gorm.DB, id string) (*models.EntityRelationship, error) {
	var rel models.EntityRelationship
	if err := db.WithContext(ctx).First(&rel, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("relationship")
		}
		return nil, err
	}
	return &rel, nil
}

func checkValidity(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return types.Invalid("validTo must not be before validFrom")
	}
	return nil
}

func validDirection(direction string) bool {
	switch direction {
	case models.DirectionBidirectional, models.DirectionOutgoing, models.DirectionIncoming:
		return true
	}
	return false
}

func validRelationshipStatus(status string) bool {
	switch status {
	case models.RelationshipAssumed, models.RelationshipConfirmed, models.RelationshipRefuted:
		return true
	}
	return false
}
