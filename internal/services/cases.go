package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CaseInput carries the writable fields of a case. Nil fields are left unchanged on update.
type CaseInput struct {
	Title   *string `json:"title"`
	Status  *string `json:"status"`
	Lead    *string `json:"lead"`
	Summary *string `json:"summary"`
}

// CaseListItem is a case with the size of its canvas and workload
type CaseListItem struct {
	models.Case
	NodeCount       int64 `json:"nodeCount"`
	EdgeCount       int64 `json:"edgeCount"`
	HypothesisCount int64 `json:"hypothesisCount"`
}

// CaseDetail is a case with everything scoped to it
type CaseDetail struct {
	models.Case
	Owner      *models.UserSummary `json:"owner,omitempty"`
	Nodes      []models.Node       `json:"nodes"`
	Edges      []models.Edge       `json:"edges"`
	Hypotheses []models.Hypothesis `json:"hypotheses"`
	AuditLogs  []models.AuditLog   `json:"auditLogs"`
}

type caseCount struct {
	CaseID string
	Total  int64
}

// ListCases returns all cases, most recently updated first
func ListCases(ctx context.Context, db *gorm.DB) ([]CaseListItem, error) {
	var cases []models.Case
	if err := db.WithContext(ctx).Order("updated_at DESC").Find(&cases).Error; err != nil {
		return nil, err
	}

	quiet := db.WithContext(ctx).Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})
	counts := make(map[string]*CaseListItem, len(cases))
	items := make([]CaseListItem, len(cases))
	for i := range cases {
		items[i] = CaseListItem{Case: cases[i]}
		counts[cases[i].ID] = &items[i]
	}

	tally := func(model interface{}, assign func(*CaseListItem, int64)) error {
		var rows []caseCount
		if err := quiet.Model(model).Select("case_id, COUNT(*) AS total").Group("case_id").Scan(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			if item, ok := counts[row.CaseID]; ok {
				assign(item, row.Total)
			}
		}
		return nil
	}

	if err := tally(&models.Node{}, func(item *CaseListItem, n int64) { item.NodeCount = n }); err != nil {
		return nil, err
	}
	if err := tally(&models.Edge{}, func(item *CaseListItem, n int64) { item.EdgeCount = n }); err != nil {
		return nil, err
	}
	if err := tally(&models.Hypothesis{}, func(item *CaseListItem, n int64) { item.HypothesisCount = n }); err != nil {
		return nil, err
	}

	return items, nil
}

// CreateCase stores a case owned by actor and enrolls actor as its first member
func CreateCase(ctx context.Context, db *gorm.DB, in CaseInput, actor *models.User) (*models.Case, error) {
	if actor == nil {
		return nil, types.Unauthenticated("no acting user")
	}
	title := ""
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
	}
	if title == "" {
		return nil, types.Invalid("title is required")
	}
	status := models.CaseActive
	if in.Status != nil && *in.Status != "" {
		status = *in.Status
	}
	if !models.ValidCaseStatus(status) {
		return nil, types.Invalid("unknown case status %q", status)
	}

	c := models.Case{
		Title:   title,
		Status:  status,
		OwnerID: &actor.ID,
	}
	if in.Lead != nil {
		c.Lead = *in.Lead
	}
	if in.Summary != nil {
		c.Summary = *in.Summary
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return tx.Create(&models.CaseMember{CaseID: c.ID, UserID: actor.ID, Role: actor.Role}).Error
	})
	if err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &c.ID, ActionCreateCase, "Case created: "+c.Title, actor)
	return &c, nil
}

// GetCase returns a case with its nodes, edges, hypotheses and audit trail
func GetCase(ctx context.Context, db *gorm.DB, id string) (*CaseDetail, error) {
	c, err := findCase(ctx, db, id)
	if err != nil {
		return nil, err
	}

	detail := CaseDetail{
		Case:       *c,
		Nodes:      []models.Node{},
		Edges:      []models.Edge{},
		Hypotheses: []models.Hypothesis{},
		AuditLogs:  []models.AuditLog{},
	}
	quiet := db.WithContext(ctx).Session(&gorm.Session{Logger: db.Logger.LogMode(logger.Silent)})

	if c.OwnerID != nil {
		var owner models.User
		if err := quiet.First(&owner, "id = ?", *c.OwnerID).Error; err == nil {
			summary := owner.Summary()
			detail.Owner = &summary
		}
	}
	if err := quiet.Where("case_id = ?", id).Order("created_at DESC").Find(&detail.Nodes).Error; err != nil {
		return nil, err
	}
	if err := quiet.Where("case_id = ?", id).Order("created_at ASC").Find(&detail.Edges).Error; err != nil {
		return nil, err
	}
	if err := quiet.Where("case_id = ?", id).Order("created_at DESC").Find(&detail.Hypotheses).Error; err != nil {
		return nil, err
	}
	if err := quiet.Where("case_id = ?", id).Order("timestamp DESC").Find(&detail.AuditLogs).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdateCase patches the supplied fields of a case
func UpdateCase(ctx context.Context, db *gorm.DB, id string, in CaseInput, actor *models.User) (*models.Case, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, types.Invalid("title cannot be empty")
		}
		updates["title"] = title
	}
	if in.Status != nil {
		if !models.ValidCaseStatus(*in.Status) {
			return nil, types.Invalid("unknown case status %q", *in.Status)
		}
		updates["status"] = *in.Status
	}
	if in.Lead != nil {
		updates["lead"] = *in.Lead
	}
	if in.Summary != nil {
		updates["summary"] = *in.Summary
	}

	c, err := findCase(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return c, nil
	}
	if err := db.WithContext(ctx).Model(c).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).First(c, "id = ?", id).Error; err != nil {
		return nil, err
	}

	emitAudit(ctx, db, &c.ID, ActionUpdateCase, "Case updated: "+c.Title, actor)
	return c, nil
}

// AddCaseMember enrolls userID in the case. Only the case owner or a global OWNER may do this.
func AddCaseMember(ctx context.Context, db *gorm.DB, caseID, userID, role string, actor *models.User) (*models.CaseMember, error) {
	if actor == nil {
		return nil, types.Unauthenticated("no acting user")
	}
	if userID == "" {
		return nil, types.Invalid("userId is required")
	}
	if role == "" {
		return nil, types.Invalid("role is required")
	}

	c, err := findCase(ctx, db, caseID)
	if err != nil {
		return nil, err
	}
	if !CanManageCase(c, actor) {
		return nil, types.Forbidden("only the case owner can manage the team")
	}

	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("user")
		}
		return nil, err
	}

	member := models.CaseMember{CaseID: caseID, UserID: userID, Role: role}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.CaseMember{}).Where("case_id = ? AND user_id = ?", caseID, userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.Conflict("user is already a member")
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}
	member.User = &user

	emitAudit(ctx, db, &caseID, ActionAddMember, fmt.Sprintf("Added member: %s as %s", user.Name, role), actor)
	return &member, nil
}

// ListCaseMembers returns the members of a case with their user summaries
func ListCaseMembers(ctx context.Context, db *gorm.DB, caseID string) ([]models.CaseMember, error) {
	if _, err := findCase(ctx, db, caseID); err != nil {
		return nil, err
	}
	var members []models.CaseMember
	err := db.WithContext(ctx).Preload("User").Where("case_id = ?", caseID).Order("created_at ASC").Find(&members).Error
	return members, err
}

// CanManageCase reports whether actor may manage the membership of c
func CanManageCase(c *models.Case, actor *models.User) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleOwner {
		return true
	}
	return c.OwnerID != nil && *c.OwnerID == actor.ID
}

func findCase(ctx context.Context, db *gorm.DB, id string) (*models.Case, error) {
	var c models.Case
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("case")
		}
		return nil, err
	}
	return &c, nil
}
