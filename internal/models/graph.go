package models

import (
	"time"

	"gorm.io/gorm"
)

// Node is a placement on a case canvas. EntityID is set only when the node is a projection
// of a global Entity.
type Node struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CaseID    string    `gorm:"type:varchar(36);not null;index;index:idx_node_case_entity" json:"caseId"`
	EntityID  *string   `gorm:"type:varchar(36);index:idx_node_case_entity" json:"entityId"`
	Type      string    `gorm:"size:64;not null;index" json:"type"`
	Label     string    `gorm:"size:255;not null" json:"label"`
	Detail    string    `gorm:"type:text" json:"detail"`
	X         float64   `gorm:"not null;default:0" json:"x"`
	Y         float64   `gorm:"not null;default:0" json:"y"`
	Data      JSON      `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Edge connects two nodes of the same case
type Edge struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CaseID    string    `gorm:"type:varchar(36);not null;index" json:"caseId"`
	SourceID  string    `gorm:"type:varchar(36);not null;index" json:"sourceId"`
	TargetID  string    `gorm:"type:varchar(36);not null;index" json:"targetId"`
	Label     string    `gorm:"size:255" json:"label"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n *Node) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	if n.Data.IsEmpty() {
		n.Data, _ = NewJSON(map[string]any{})
	}
	return nil
}

func (e *Edge) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}

// TableName overrides the table name for Node
func (Node) TableName() string {
	return "nodes"
}

// TableName overrides the table name for Edge
func (Edge) TableName() string {
	return "edges"
}
