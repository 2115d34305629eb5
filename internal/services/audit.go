package services

import (
	"context"
	"log"

	"github.com/localnerve/casefile/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

// Audit actions
const (
	ActionCreateCase         = "CREATE_CASE"
	ActionUpdateCase         = "UPDATE_CASE"
	ActionAddMember          = "ADD_MEMBER"
	ActionAddEntity          = "ADD_ENTITY"
	ActionUpdateEntity       = "UPDATE_ENTITY"
	ActionDeleteEntity       = "DELETE_ENTITY"
	ActionConnectEntities    = "CONNECT_ENTITIES"
	ActionUpdateEdge         = "UPDATE_EDGE"
	ActionDeleteEdge         = "DELETE_EDGE"
	ActionPlaceEntity        = "PLACE_ENTITY"
	ActionCreateEntity       = "CREATE_ENTITY"
	ActionEditEntity         = "EDIT_ENTITY"
	ActionLinkEntity         = "LINK_ENTITY"
	ActionUpdateLink         = "UPDATE_LINK"
	ActionAddAttribute       = "ADD_ATTRIBUTE"
	ActionUpdateAttribute    = "UPDATE_ATTRIBUTE"
	ActionDeprecateAttribute = "DEPRECATE_ATTRIBUTE"
	ActionAddNote            = "ADD_NOTE"
	ActionCreateRelationship = "CREATE_RELATIONSHIP"
	ActionUpdateRelationship = "UPDATE_RELATIONSHIP"
	ActionUploadEvidence     = "UPLOAD_EVIDENCE"
	ActionDeleteEvidence     = "DELETE_EVIDENCE"
	ActionLinkEvidence       = "LINK_EVIDENCE"
	ActionCreateHypothesis   = "CREATE_HYPOTHESIS"
	ActionUpdateHypothesis   = "UPDATE_HYPOTHESIS"
)

var auditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "casefile_audit_write_failures_total",
	Help: "Audit entries that could not be written after their mutation committed.",
})

// AuditLogEntry is an audit row with the title of the case it belongs to
type AuditLogEntry struct {
	models.AuditLog
	CaseTitle string `json:"caseTitle,omitempty"`
}

// RecordAudit appends one audit row. caseID is nil for global mutations.
func RecordAudit(ctx context.Context, db *gorm.DB, caseID *string, action, details string, actor *models.User) error {
	entry := models.AuditLog{
		CaseID:  caseID,
		Action:  action,
		Details: details,
	}
	if actor != nil {
		entry.User = actor.Name
		entry.UserID = &actor.ID
	}
	return db.WithContext(ctx).Create(&entry).Error
}

// emitAudit is the post-commit hook every mutation calls once its transaction has committed.
// A failed write is logged and counted, never retried, and never surfaces to the caller.
func emitAudit(ctx context.Context, db *gorm.DB, caseID *string, action, details string, actor *models.User) {
	if err := RecordAudit(ctx, db, caseID, action, details, actor); err != nil {
		auditWriteFailures.Inc()
		log.Printf("Audit write failed for %s: %v", action, err)
	}
}

// QueryAudit returns audit entries newest first, scoped to caseID when it is not empty
func QueryAudit(ctx context.Context, db *gorm.DB, caseID string) ([]AuditLogEntry, error) {
	var logs []models.AuditLog
	query := db.WithContext(ctx).Order("timestamp DESC").Order("id DESC")
	if caseID != "" {
		query = query.Where("case_id = ?", caseID)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}

	caseIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, l := range logs {
		if l.CaseID == nil {
			continue
		}
		if _, ok := seen[*l.CaseID]; !ok {
			seen[*l.CaseID] = struct{}{}
			caseIDs = append(caseIDs, *l.CaseID)
		}
	}

	titles := make(map[string]string, len(caseIDs))
	if len(caseIDs) > 0 {
		var cases []models.Case
		if err := db.WithContext(ctx).Select("id", "title").Where("id IN ?", caseIDs).Find(&cases).Error; err != nil {
			return nil, err
		}
		for _, c := range cases {
			titles[c.ID] = c.Title
		}
	}

	entries := make([]AuditLogEntry, len(logs))
	for i, l := range logs {
		entries[i] = AuditLogEntry{AuditLog: l}
		if l.CaseID != nil {
			entries[i].CaseTitle = titles[*l.CaseID]
		}
	}
	return entries, nil
}
