package models

import (
	"time"

	"gorm.io/gorm"
)

// Case lifecycle states
const (
	CaseActive  = "active"
	CaseDormant = "dormant"
	CaseClosed  = "closed"
)

// ValidCaseStatus reports whether status is a known case state
func ValidCaseStatus(status string) bool {
	switch status {
	case CaseActive, CaseDormant, CaseClosed:
		return true
	}
	return false
}

// Case is an investigation, the unit that scopes nodes, edges, evidence, hypotheses and audit entries
type Case struct {
	ID        string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title     string       `gorm:"size:255;not null" json:"title"`
	Status    string       `gorm:"size:32;not null;default:active" json:"status"`
	Lead      string       `gorm:"size:255" json:"lead"`
	Summary   string       `gorm:"type:text" json:"summary"`
	OwnerID   *string      `gorm:"type:varchar(36);index" json:"ownerId"`
	Members   []CaseMember `gorm:"foreignKey:CaseID" json:"members,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `gorm:"index" json:"updatedAt"`
}

// CaseMember grants a user a per-case role
type CaseMember struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CaseID    string    `gorm:"type:varchar(36);not null;index:idx_case_member,unique" json:"caseId"`
	UserID    string    `gorm:"type:varchar(36);not null;index:idx_case_member,unique" json:"userId"`
	Role      string    `gorm:"size:64;not null" json:"role"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Case) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (m *CaseMember) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// TableName overrides the table name for Case
func (Case) TableName() string {
	return "cases"
}

// TableName overrides the table name for CaseMember
func (CaseMember) TableName() string {
	return "case_members"
}
