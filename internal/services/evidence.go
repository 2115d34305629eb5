package services

import (
	"context"
	"errors"
	"strings"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
)

// EvidenceInput carries the metadata of a new evidence item
type EvidenceInput struct {
	CaseID string `json:"caseId"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Hash   string `json:"hash"`
}

// EvidenceLinkInput names the evidence and at least one record it backs
type EvidenceLinkInput struct {
	EvidenceID     string  `json:"evidenceId"`
	AttributeID    *string `json:"attributeId"`
	NoteID         *string `json:"noteId"`
	RelationshipID *string `json:"relationshipId"`
}

// HypothesisInput carries a new hypothesis
type HypothesisInput struct {
	CaseID      string `json:"caseId"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Description string `json:"desc"`
}

// ListEvidence returns the evidence of a case newest first
func ListEvidence(ctx context.Context, db *gorm.DB, caseID string) ([]models.Evidence, error) {
	if caseID == "" {
		return nil, types.Invalid("caseId is required")
	}
	items := []models.Evidence{}
	err := db.WithContext(ctx).Where("case_id = ?", caseID).Order("created_at DESC").Find(&items).Error
	return items, err
}

// CreateEvidence records evidence metadata against a case
func CreateEvidence(ctx context.Context, db *gorm.DB, in EvidenceInput, actor *models.User) (*models.Evidence, error) {
	label := strings.TrimSpace(in.Label)
	if in.CaseID == "" || label == "" {
		return nil, types.Invalid("caseId and label are required")
	}
	if _, err := findCase(ctx, db, in.CaseID); err != nil {
		return nil, err
	}

	item := models.Evidence{CaseID: in.CaseID, Label: label, Type: in.Type, Hash: in.Hash}
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &item.CaseID, ActionUploadEvidence, "Uploaded evidence: "+item.Label, actor)
	return &item, nil
}

// DeleteEvidence removes an evidence item and the links that cite it
func DeleteEvidence(ctx context.Context, db *gorm.DB, id string, actor *models.User) error {
	var item models.Evidence
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.NotFound("evidence")
			}
			return err
		}
		if err := tx.Where("evidence_id = ?", id).Delete(&models.EvidenceLink{}).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		return err
	}

	emitAudit(ctx, db, &item.CaseID, ActionDeleteEvidence, "Removed evidence: "+item.Label, actor)
	return nil
}

// LinkEvidence backs an attribute, note or relationship with an evidence item
func LinkEvidence(ctx context.Context, db *gorm.DB, in EvidenceLinkInput, actor *models.User) (*models.EvidenceLink, error) {
	if in.EvidenceID == "" {
		return nil, types.Invalid("evidenceId is required")
	}
	in.AttributeID, in.NoteID, in.RelationshipID = nonEmpty(in.AttributeID), nonEmpty(in.NoteID), nonEmpty(in.RelationshipID)
	if in.AttributeID == nil && in.NoteID == nil && in.RelationshipID == nil {
		return nil, types.Invalid("one of attributeId, noteId or relationshipId is required")
	}

	var item models.Evidence
	if err := db.WithContext(ctx).First(&item, "id = ?", in.EvidenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("evidence")
		}
		return nil, err
	}
	targets := []struct {
		id    *string
		model interface{}
		kind  string
	}{
		{in.AttributeID, &models.EntityAttribute{}, "attribute"},
		{in.NoteID, &models.EntityNote{}, "note"},
		{in.RelationshipID, &models.EntityRelationship{}, "relationship"},
	}
	for _, target := range targets {
		if target.id == nil {
			continue
		}
		var count int64
		if err := db.WithContext(ctx).Model(target.model).Where("id = ?", *target.id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, types.NotFound(target.kind)
		}
	}

	link := models.EvidenceLink{
		EvidenceID:     item.ID,
		AttributeID:    in.AttributeID,
		NoteID:         in.NoteID,
		RelationshipID: in.RelationshipID,
	}
	if err := db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &item.CaseID, ActionLinkEvidence, "Linked evidence: "+item.Label, actor)
	return &link, nil
}

// ListHypotheses returns hypotheses newest first, scoped to caseID when it is not empty
func ListHypotheses(ctx context.Context, db *gorm.DB, caseID string) ([]models.Hypothesis, error) {
	items := []models.Hypothesis{}
	query := db.WithContext(ctx).Order("created_at DESC")
	if caseID != "" {
		query = query.Where("case_id = ?", caseID)
	}
	err := query.Find(&items).Error
	return items, err
}

// CreateHypothesis records a working theory against a case
func CreateHypothesis(ctx context.Context, db *gorm.DB, in HypothesisInput, actor *models.User) (*models.Hypothesis, error) {
	title := strings.TrimSpace(in.Title)
	if in.CaseID == "" || title == "" {
		return nil, types.Invalid("caseId and title are required")
	}
	status := in.Status
	if status == "" {
		status = models.HypothesisOpen
	}
	if _, err := findCase(ctx, db, in.CaseID); err != nil {
		return nil, err
	}

	item := models.Hypothesis{CaseID: in.CaseID, Title: title, Status: status, Description: in.Description}
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &item.CaseID, ActionCreateHypothesis, "New hypothesis: "+item.Title, actor)
	return &item, nil
}

// UpdateHypothesisStatus moves a hypothesis to a new status
func UpdateHypothesisStatus(ctx context.Context, db *gorm.DB, id, status string, actor *models.User) (*models.Hypothesis, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, types.Invalid("status is required")
	}
	var item models.Hypothesis
	if err := db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("hypothesis")
		}
		return nil, err
	}
	previous := item.Status
	if err := db.WithContext(ctx).Model(&item).Update("status", status).Error; err != nil {
		return nil, err
	}
	item.Status = status

	emitAudit(ctx, db, &item.CaseID, ActionUpdateHypothesis, item.Title+": "+previous+" -> "+status, actor)
	return &item, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
