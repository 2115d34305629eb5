package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/hints"
)

// SearchLimit caps the number of entities a search returns
const SearchLimit = 50

// caseLinkAttributeLimit caps the attributes shown per entity in a case roster
const caseLinkAttributeLimit = 5

// EntityInput carries the identity fields of an entity. Nil fields are left unchanged on update.
type EntityInput struct {
	Type        *string         `json:"type"`
	PrimaryName *string         `json:"primaryName"`
	Confidence  types.FlexFloat `json:"confidence" swaggertype:"number"`
	Status      *string         `json:"status"`
}

// LinkInput carries the per-case fields of an entity placement
type LinkInput struct {
	EntityID   string  `json:"entityId"`
	Role       *string `json:"role"`
	Visibility *string `json:"visibility"`
	Notes      *string `json:"notes"`
}

// EntitySearch filters SearchEntities; empty fields do not filter
type EntitySearch struct {
	Query  string
	Type   string
	CaseID string
}

// CaseEntity is a case link with its entity and a preview of current attributes
type CaseEntity struct {
	models.EntityCaseLink
	Entity     models.Entity            `json:"entity"`
	Attributes []models.EntityAttribute `json:"attributes"`
}

// CaseLinkView is a case link with the case title and who added it
type CaseLinkView struct {
	models.EntityCaseLink
	CaseTitle string              `json:"caseTitle"`
	AddedBy   *models.UserSummary `json:"addedBy,omitempty"`
}

// NoteView is a note with its author's summary
type NoteView struct {
	models.EntityNote
	Author *models.UserSummary `json:"author,omitempty"`
}

// EntityProfile aggregates everything known about an entity
type EntityProfile struct {
	models.Entity
	CreatedBy     *models.UserSummary                 `json:"createdBy,omitempty"`
	Attributes    map[string][]models.EntityAttribute `json:"attributes"`
	Notes         []NoteView                          `json:"notes"`
	Relationships *RelationshipSet                    `json:"relationships"`
	CaseLinks     []CaseLinkView                      `json:"caseLinks"`
}

// CreateEntity registers a global entity
func CreateEntity(ctx context.Context, db *gorm.DB, in EntityInput, actor *models.User) (*models.Entity, error) {
	entityType := trimmed(in.Type)
	name := trimmed(in.PrimaryName)
	if entityType == "" || name == "" {
		return nil, types.Invalid("type and primaryName are required")
	}
	confidence := in.Confidence.Or(0.5)
	if err := checkConfidence(confidence); err != nil {
		return nil, err
	}
	status := models.EntityActive
	if in.Status != nil && *in.Status != "" {
		status = *in.Status
	}
	if !models.ValidEntityStatus(status) {
		return nil, types.Invalid("unknown entity status %q", status)
	}

	entity := models.Entity{
		Type:        entityType,
		PrimaryName: name,
		Confidence:  confidence,
		Status:      status,
		CreatedByID: actorID(actor),
	}
	if err := db.WithContext(ctx).Create(&entity).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, nil, ActionCreateEntity, fmt.Sprintf("Created %s: %s", entity.Type, entity.PrimaryName), actor)
	return &entity, nil
}

// UpdateEntity patches the identity fields of an entity: name, confidence and status
func UpdateEntity(ctx context.Context, db *gorm.DB, id string, in EntityInput, actor *models.User) (*models.Entity, error) {
	updates := map[string]interface{}{}
	if in.PrimaryName != nil {
		name := strings.TrimSpace(*in.PrimaryName)
		if name == "" {
			return nil, types.Invalid("primaryName cannot be empty")
		}
		updates["primary_name"] = name
	}
	if in.Confidence.Set {
		if err := checkConfidence(in.Confidence.Value); err != nil {
			return nil, err
		}
		updates["confidence"] = in.Confidence.Value
	}
	if in.Status != nil {
		if !models.ValidEntityStatus(*in.Status) {
			return nil, types.Invalid("unknown entity status %q", *in.Status)
		}
		updates["status"] = *in.Status
	}

	entity, err := findEntity(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return entity, nil
	}
	if err := db.WithContext(ctx).Model(entity).Updates(updates).Error; err != nil {
		return nil, err
	}
	if entity, err = findEntity(ctx, db, id); err != nil {
		return nil, err
	}

	emitAudit(ctx, db, nil, ActionEditEntity, "Updated entity: "+entity.PrimaryName, actor)
	return entity, nil
}

// SearchEntities returns at most SearchLimit entities, most recently updated first.
// Name matching is a case-insensitive substring match.
func SearchEntities(ctx context.Context, db *gorm.DB, search EntitySearch) ([]models.Entity, error) {
	query := db.WithContext(ctx).Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)}).
		Model(&models.Entity{})
	if db.Dialector.Name() == "mysql" {
		query = query.Clauses(hints.UseIndex("idx_entities_updated_at"))
	}
	if q := strings.TrimSpace(search.Query); q != "" {
		query = query.Where("LOWER(primary_name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(q))+"%")
	}
	if search.Type != "" {
		query = query.Where("type = ?", search.Type)
	}
	if search.CaseID != "" {
		query = query.Where("id IN (?)", db.Model(&models.EntityCaseLink{}).Select("entity_id").Where("case_id = ?", search.CaseID))
	}

	entities := []models.Entity{}
	err := query.Order("updated_at DESC").Limit(SearchLimit).Find(&entities).Error
	return entities, err
}

// LinkEntityToCase places an entity in a case. A pair can be linked only once.
func LinkEntityToCase(ctx context.Context, db *gorm.DB, caseID string, in LinkInput, actor *models.User) (*models.EntityCaseLink, error) {
	if in.EntityID == "" {
		return nil, types.Invalid("entityId is required")
	}
	c, err := findCase(ctx, db, caseID)
	if err != nil {
		return nil, err
	}
	entity, err := findEntity(ctx, db, in.EntityID)
	if err != nil {
		return nil, err
	}

	link := models.EntityCaseLink{
		EntityID:   entity.ID,
		CaseID:     c.ID,
		Role:       orDefault(in.Role, "UNKNOWN"),
		Visibility: orDefault(in.Visibility, "TEAM"),
		AddedByID:  actorID(actor),
	}
	if in.Notes != nil {
		link.Notes = *in.Notes
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.EntityCaseLink{}).Where("entity_id = ? AND case_id = ?", entity.ID, c.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.Conflict("%s is already linked to this case", entity.PrimaryName)
		}
		if err := tx.Create(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return types.Conflict("%s is already linked to this case", entity.PrimaryName)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &c.ID, ActionLinkEntity, fmt.Sprintf("Linked %s as %s", entity.PrimaryName, link.Role), actor)
	return &link, nil
}

// ListCaseEntities returns the entities linked into a case with a preview of their attributes
func ListCaseEntities(ctx context.Context, db *gorm.DB, caseID string) ([]CaseEntity, error) {
	if _, err := findCase(ctx, db, caseID); err != nil {
		return nil, err
	}
	quiet := db.WithContext(ctx).Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})

	var links []models.EntityCaseLink
	if err := quiet.Where("case_id = ?", caseID).Order("added_at DESC").Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []CaseEntity{}, nil
	}

	entityIDs := make([]string, len(links))
	for i, l := range links {
		entityIDs[i] = l.EntityID
	}

	var entities []models.Entity
	if err := quiet.Where("id IN ?", entityIDs).Find(&entities).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	var attrs []models.EntityAttribute
	if err := quiet.Where("entity_id IN ? AND superseded_by IS NULL", entityIDs).
		Order("category ASC").Order("attr_key ASC").Find(&attrs).Error; err != nil {
		return nil, err
	}
	preview := make(map[string][]models.EntityAttribute)
	for _, a := range attrs {
		if len(preview[a.EntityID]) < caseLinkAttributeLimit {
			preview[a.EntityID] = append(preview[a.EntityID], a)
		}
	}

	result := make([]CaseEntity, 0, len(links))
	for _, l := range links {
		entity, ok := byID[l.EntityID]
		if !ok {
			continue
		}
		item := CaseEntity{EntityCaseLink: l, Entity: entity, Attributes: preview[l.EntityID]}
		if item.Attributes == nil {
			item.Attributes = []models.EntityAttribute{}
		}
		result = append(result, item)
	}
	return result, nil
}

// UpdateCaseLink changes the per-case role, visibility or notes of a linked entity
func UpdateCaseLink(ctx context.Context, db *gorm.DB, caseID, entityID string, in LinkInput, actor *models.User) (*models.EntityCaseLink, error) {
	updates := map[string]interface{}{}
	if in.Role != nil && *in.Role != "" {
		updates["role"] = *in.Role
	}
	if in.Visibility != nil && *in.Visibility != "" {
		updates["visibility"] = *in.Visibility
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}

	var link models.EntityCaseLink
	if err := db.WithContext(ctx).Where("case_id = ? AND entity_id = ?", caseID, entityID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("case link")
		}
		return nil, err
	}
	if len(updates) == 0 {
		return &link, nil
	}
	if err := db.WithContext(ctx).Model(&link).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).First(&link, "id = ?", link.ID).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &caseID, ActionUpdateLink, fmt.Sprintf("Updated link for entity %s", entityID), actor)
	return &link, nil
}

// GetEntityProfile returns the entity with its current attributes grouped by category, notes
// newest first, relationships in both directions, case links and creator
func GetEntityProfile(ctx context.Context, db *gorm.DB, id string) (*EntityProfile, error) {
	entity, err := findEntity(ctx, db, id)
	if err != nil {
		return nil, err
	}
	quiet := db.WithContext(ctx).Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})

	profile := EntityProfile{Entity: *entity, Attributes: map[string][]models.EntityAttribute{}}

	current, err := CurrentAttributes(ctx, quiet, id)
	if err != nil {
		return nil, err
	}
	for _, a := range current {
		profile.Attributes[a.Category] = append(profile.Attributes[a.Category], a)
	}

	if profile.Notes, err = ListNotes(ctx, quiet, id); err != nil {
		return nil, err
	}
	if profile.Relationships, err = relationshipsFor(ctx, quiet, id); err != nil {
		return nil, err
	}

	var links []models.EntityCaseLink
	if err := quiet.Where("entity_id = ?", id).Order("added_at DESC").Find(&links).Error; err != nil {
		return nil, err
	}
	caseIDs := make([]string, 0, len(links))
	userIDs := make([]string, 0, len(links)+1)
	for _, l := range links {
		caseIDs = append(caseIDs, l.CaseID)
		if l.AddedByID != nil {
			userIDs = append(userIDs, *l.AddedByID)
		}
	}
	if entity.CreatedByID != nil {
		userIDs = append(userIDs, *entity.CreatedByID)
	}

	titles := map[string]string{}
	if len(caseIDs) > 0 {
		var cases []models.Case
		if err := quiet.Select("id", "title").Where("id IN ?", caseIDs).Find(&cases).Error; err != nil {
			return nil, err
		}
		for _, c := range cases {
			titles[c.ID] = c.Title
		}
	}
	users, err := userSummaries(ctx, quiet, userIDs)
	if err != nil {
		return nil, err
	}

	profile.CaseLinks = make([]CaseLinkView, len(links))
	for i, l := range links {
		profile.CaseLinks[i] = CaseLinkView{EntityCaseLink: l, CaseTitle: titles[l.CaseID]}
		if l.AddedByID != nil {
			if u, ok := users[*l.AddedByID]; ok {
				profile.CaseLinks[i].AddedBy = &u
			}
		}
	}
	if entity.CreatedByID != nil {
		if u, ok := users[*entity.CreatedByID]; ok {
			profile.CreatedBy = &u
		}
	}

	return &profile, nil
}

// AddNote attaches an immutable note to an entity
func AddNote(ctx context.Context, db *gorm.DB, entityID, content, category string, actor *models.User) (*NoteView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, types.Invalid("content is required")
	}
	entity, err := findEntity(ctx, db, entityID)
	if err != nil {
		return nil, err
	}

	note := models.EntityNote{
		EntityID: entity.ID,
		Content:  content,
		Category: category,
		AuthorID: actorID(actor),
	}
	if err := db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, nil, ActionAddNote, "Added note to "+entity.PrimaryName, actor)

	view := NoteView{EntityNote: note}
	if actor != nil {
		summary := actor.Summary()
		view.Author = &summary
	}
	return &view, nil
}

// ListNotes returns the notes of an entity newest first
func ListNotes(ctx context.Context, db *gorm.DB, entityID string) ([]NoteView, error) {
	var notes []models.EntityNote
	if err := db.WithContext(ctx).Preload("Author").Where("entity_id = ?", entityID).
		Order("created_at DESC").Find(&notes).Error; err != nil {
		return nil, err
	}
	views := make([]NoteView, len(notes))
	for i, n := range notes {
		views[i] = NoteView{EntityNote: n}
		if n.Author != nil {
			summary := n.Author.Summary()
			views[i].Author = &summary
		}
	}
	return views, nil
}

func findEntity(ctx context.Context, db *gorm.DB, id string) (*models.Entity, error) {
	var entity models.Entity
	if err := db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("entity")
		}
		return nil, err
	}
	return &entity, nil
}

func userSummaries(ctx context.Context, db *gorm.DB, ids []string) (map[string]models.UserSummary, error) {
	result := make(map[string]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []models.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u.Summary()
	}
	return result, nil
}

func checkConfidence(confidence float64) error {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return types.Invalid("confidence must be between 0 and 1")
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func orDefault(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return strings.TrimSpace(*s)
}

func actorID(actor *models.User) *string {
	if actor == nil {
		return nil
	}
	id := actor.ID
	return &id
}
