package models

import (
	"time"

	"gorm.io/gorm"
)

// Entity statuses
const (
	EntityActive   = "ACTIVE"
	EntityDisputed = "DISPUTED"
	EntityArchived = "ARCHIVED"
)

// ValidEntityStatus reports whether status is a known entity status
func ValidEntityStatus(status string) bool {
	switch status {
	case EntityActive, EntityDisputed, EntityArchived:
		return true
	}
	return false
}

// Deprecated is the supersededBy marker for an attribute lineage that ended without a replacement.
// It is never a row id.
const Deprecated = "DEPRECATED"

// Relationship directions. Direction is advisory; queries never filter on it.
const (
	DirectionBidirectional = "BIDIRECTIONAL"
	DirectionOutgoing      = "OUTGOING"
	DirectionIncoming      = "INCOMING"
)

// Relationship statuses
const (
	RelationshipAssumed   = "ASSUMED"
	RelationshipConfirmed = "CONFIRMED"
	RelationshipRefuted   = "REFUTED"
)

// Entity is a global, case-independent record of a person, place, device, organization or piece of evidence
type Entity struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Type        string    `gorm:"size:64;not null;index" json:"type"`
	PrimaryName string    `gorm:"size:255;not null;index" json:"primaryName"`
	Confidence  float64   `gorm:"not null" json:"confidence"`
	Status      string    `gorm:"size:32;not null;default:ACTIVE" json:"status"`
	CreatedByID *string   `gorm:"type:varchar(36);index" json:"createdById"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `gorm:"index:idx_entities_updated_at" json:"updatedAt"`
}

// EntitySummary is the peer projection embedded in relationship and link payloads
type EntitySummary struct {
	ID          string `json:"id"`
	PrimaryName string `json:"primaryName"`
	Type        string `json:"type"`
}

// Summary returns the peer projection of the entity
func (e Entity) Summary() EntitySummary {
	return EntitySummary{ID: e.ID, PrimaryName: e.PrimaryName, Type: e.Type}
}

// EntityCaseLink places an entity in a case with a case-specific role. One link per (entity, case).
type EntityCaseLink struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EntityID   string    `gorm:"type:varchar(36);not null;index:idx_entity_case,unique" json:"entityId"`
	CaseID     string    `gorm:"type:varchar(36);not null;index:idx_entity_case,unique;index" json:"caseId"`
	Role       string    `gorm:"size:64;not null;default:UNKNOWN" json:"role"`
	Visibility string    `gorm:"size:32;not null;default:TEAM" json:"visibility"`
	Notes      string    `gorm:"type:text" json:"notes"`
	AddedByID  *string   `gorm:"type:varchar(36)" json:"addedById"`
	AddedAt    time.Time `gorm:"autoCreateTime" json:"addedAt"`
}

// EntityAttribute is one version of a fact about an entity. A nil SupersededBy marks the current
// version of its lineage.
type EntityAttribute struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EntityID     string    `gorm:"type:varchar(36);not null;index:idx_attr_lineage" json:"entityId"`
	Category     string    `gorm:"size:64;not null;index:idx_attr_lineage" json:"category"`
	Key          string    `gorm:"column:attr_key;size:128;not null;index:idx_attr_lineage" json:"key"`
	Value        string    `gorm:"type:text;not null" json:"value"`
	ValueType    string    `gorm:"size:32;not null;default:text" json:"valueType"`
	Confidence   float64   `gorm:"not null" json:"confidence"`
	Source       string    `gorm:"size:255" json:"source"`
	CreatedByID  *string   `gorm:"type:varchar(36)" json:"createdById"`
	FirstSeen    time.Time `gorm:"autoCreateTime" json:"firstSeen"`
	SupersededBy *string   `gorm:"type:varchar(36);index" json:"supersededBy"`
}

// Current reports whether this version is the live value of its lineage
func (a EntityAttribute) Current() bool {
	return a.SupersededBy == nil
}

// IsDeprecated reports whether the lineage ended at this version without a replacement
func (a EntityAttribute) IsDeprecated() bool {
	return a.SupersededBy != nil && *a.SupersededBy == Deprecated
}

// EntityNote is free-text intelligence about an entity. Notes are never edited or deleted.
type EntityNote struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EntityID  string    `gorm:"type:varchar(36);not null;index" json:"entityId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Category  string    `gorm:"size:64" json:"category"`
	AuthorID  *string   `gorm:"type:varchar(36)" json:"authorId"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// EntityRelationship is a typed, stored-directed link between two entities
type EntityRelationship struct {
	ID               string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	SourceID         string     `gorm:"type:varchar(36);not null;index" json:"sourceId"`
	TargetID         string     `gorm:"type:varchar(36);not null;index" json:"targetId"`
	RelationshipType string     `gorm:"size:64;not null" json:"relationshipType"`
	Direction        string     `gorm:"size:32;not null;default:BIDIRECTIONAL" json:"direction"`
	Confidence       float64    `gorm:"not null" json:"confidence"`
	Status           string     `gorm:"size:32;not null;default:ASSUMED" json:"status"`
	ValidFrom        *time.Time `json:"validFrom"`
	ValidTo          *time.Time `json:"validTo"`
	CreatedByID      *string    `gorm:"type:varchar(36)" json:"createdById"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (e *Entity) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}

func (l *EntityCaseLink) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}

func (a *EntityAttribute) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

func (n *EntityNote) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	return nil
}

func (r *EntityRelationship) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// TableName overrides the table name for Entity
func (Entity) TableName() string {
	return "entities"
}

// TableName overrides the table name for EntityCaseLink
func (EntityCaseLink) TableName() string {
	return "entity_case_links"
}

// TableName overrides the table name for EntityAttribute
func (EntityAttribute) TableName() string {
	return "entity_attributes"
}

// TableName overrides the table name for EntityNote
func (EntityNote) TableName() string {
	return "entity_notes"
}

// TableName overrides the table name for EntityRelationship
func (EntityRelationship) TableName() string {
	return "entity_relationships"
}
