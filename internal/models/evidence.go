package models

import (
	"time"

	"gorm.io/gorm"
)

// Evidence is metadata for an item in a case's evidence vault. File bytes live elsewhere.
type Evidence struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CaseID    string    `gorm:"type:varchar(36);not null;index" json:"caseId"`
	Label     string    `gorm:"size:255;not null" json:"label"`
	Type      string    `gorm:"size:64" json:"type"`
	Hash      string    `gorm:"size:128" json:"hash"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// EvidenceLink backs an attribute, note or relationship with a piece of evidence
type EvidenceLink struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EvidenceID     string    `gorm:"type:varchar(36);not null;index" json:"evidenceId"`
	AttributeID    *string   `gorm:"type:varchar(36);index" json:"attributeId,omitempty"`
	NoteID         *string   `gorm:"type:varchar(36);index" json:"noteId,omitempty"`
	RelationshipID *string   `gorm:"type:varchar(36);index" json:"relationshipId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Hypothesis statuses
const (
	HypothesisOpen      = "OPEN"
	HypothesisSupported = "SUPPORTED"
	HypothesisRefuted   = "REFUTED"
)

// Hypothesis is a working theory attached to a case
type Hypothesis struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CaseID      string    `gorm:"type:varchar(36);not null;index" json:"caseId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"desc"`
	Status      string    `gorm:"size:32;not null;default:OPEN" json:"status"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (e *Evidence) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}

func (l *EvidenceLink) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}

func (h *Hypothesis) BeforeCreate(tx *gorm.DB) error {
	assignID(&h.ID)
	return nil
}

// TableName overrides the table name for Evidence
func (Evidence) TableName() string {
	return "evidence"
}

// TableName overrides the table name for EvidenceLink
func (EvidenceLink) TableName() string {
	return "evidence_links"
}

// TableName overrides the table name for Hypothesis
func (Hypothesis) TableName() string {
	return "hypotheses"
}
