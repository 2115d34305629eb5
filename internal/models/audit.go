package models

import (
	"time"

	"gorm.io/gorm"
)

// AuditLog is an append-only record of a mutating action. Rows are never updated or deleted.
type AuditLog struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CaseID    *string   `gorm:"type:varchar(36);index" json:"caseId"`
	Action    string    `gorm:"size:64;not null;index" json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
	User      string    `gorm:"size:255" json:"user"`
	UserID    *string   `gorm:"type:varchar(36);index" json:"userId"`
	Timestamp time.Time `gorm:"autoCreateTime;index" json:"timestamp"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// BeforeUpdate rejects any attempt to rewrite history through the ORM
func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}

// BeforeDelete rejects any attempt to remove history through the ORM
func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return gorm.ErrInvalidData
}

// TableName overrides the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}
