package services_test

import (
	"testing"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/testsupport"
	dto "github.com/prometheus/client_model/go"
)

func auditFailures(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := services.AuditWriteFailures.Write(&m); err != nil {
		t.Fatalf("Failed to read audit failure counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestAuditFailureKeepsMutation(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)

	if err := db.Migrator().DropTable(&models.AuditLog{}); err != nil {
		t.Fatalf("Failed to drop audit table: %v", err)
	}
	before := auditFailures(t)

	title := "Operation NIGHTFALL"
	c, err := services.CreateCase(ctx, db, services.CaseInput{Title: &title}, gibbs)
	if err != nil {
		t.Fatalf("Expected CreateCase to succeed without an audit table, got %v", err)
	}
	node, err := services.CreateNode(ctx, db, services.NodeInput{CaseID: c.ID, Type: "person", Label: "Robert Deckard"}, gibbs)
	if err != nil {
		t.Fatalf("Expected CreateNode to succeed without an audit table, got %v", err)
	}

	var cases, members, nodes int64
	db.Model(&models.Case{}).Where("id = ?", c.ID).Count(&cases)
	db.Model(&models.CaseMember{}).Where("case_id = ? AND user_id = ?", c.ID, gibbs.ID).Count(&members)
	db.Model(&models.Node{}).Where("id = ?", node.ID).Count(&nodes)
	if cases != 1 || members != 1 || nodes != 1 {
		t.Errorf("Expected case, owner membership and node to persist, got %d %d %d", cases, members, nodes)
	}

	if got := auditFailures(t) - before; got != 2 {
		t.Errorf("Expected 2 counted audit failures, got %v", got)
	}
}
