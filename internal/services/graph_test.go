package services_test

import (
	"errors"
	"testing"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/testsupport"
	"github.com/localnerve/casefile/internal/types"
)

func TestDeleteNodeCascadesEdges(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	c := createCase(t, db, "Operation NIGHTFALL", gibbs)

	a, err := services.CreateNode(ctx, db, services.NodeInput{CaseID: c.ID, Type: "person", Label: "A", X: 10, Y: 20}, gibbs)
	if err != nil {
		t.Fatalf("CreateNode A failed: %v", err)
	}
	b, err := services.CreateNode(ctx, db, services.NodeInput{CaseID: c.ID, Type: "location", Label: "B"}, gibbs)
	if err != nil {
		t.Fatalf("CreateNode B failed: %v", err)
	}
	if _, err := services.CreateEdge(ctx, db, services.EdgeInput{CaseID: c.ID, SourceID: a.ID, TargetID: b.ID, Label: "SURVEILLED"}, gibbs); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}

	removed, err := services.DeleteNode(ctx, db, a.ID, gibbs)
	if err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 edge removed, got %d", removed)
	}

	nodes, err := services.ListNodes(ctx, db, c.ID, "")
	if err != nil {
		t.Fatalf("ListNodes failed: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != b.ID {
		t.Errorf("Expected only node B to remain, got %+v", nodes)
	}

	edges, err := services.ListEdges(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ListEdges failed: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("Expected the incident edge to be deleted with its node, got %d edges", len(edges))
	}

	if _, err := services.DeleteNode(ctx, db, a.ID, gibbs); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found deleting twice, got %v", err)
	}
	if got := countAudit(t, db, services.ActionDeleteEntity); got != 1 {
		t.Errorf("Expected 1 DELETE_ENTITY entry, got %d", got)
	}
}

func TestCreateEdgeRequiresNodesInCase(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	nightfall := createCase(t, db, "Operation NIGHTFALL", gibbs)
	chimera := createCase(t, db, "Project CHIMERA", gibbs)

	a, _ := services.CreateNode(ctx, db, services.NodeInput{CaseID: nightfall.ID, Type: "person", Label: "A"}, gibbs)
	b, _ := services.CreateNode(ctx, db, services.NodeInput{CaseID: chimera.ID, Type: "person", Label: "B"}, gibbs)

	if _, err := services.CreateEdge(ctx, db, services.EdgeInput{CaseID: nightfall.ID, SourceID: a.ID, TargetID: b.ID}, gibbs); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found connecting across cases, got %v", err)
	}
	if _, err := services.CreateEdge(ctx, db, services.EdgeInput{CaseID: nightfall.ID, SourceID: a.ID}, gibbs); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error without a target, got %v", err)
	}
	if _, err := services.CreateEdge(ctx, db, services.EdgeInput{CaseID: nightfall.ID, SourceID: a.ID, TargetID: a.ID, Label: "self"}, gibbs); err != nil {
		t.Errorf("Expected a self loop to be allowed, got %v", err)
	}
}

func TestNodeUpdates(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	c := createCase(t, db, "Operation NIGHTFALL", gibbs)
	node, err := services.CreateNode(ctx, db, services.NodeInput{CaseID: c.ID, Type: "evidence", Label: "Encrypted Drive"}, gibbs)
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	if string(node.Data.JSON) != "{}" {
		t.Errorf("Expected empty object data, got %s", node.Data.JSON)
	}

	moved, err := services.UpdateNodePosition(ctx, db, node.ID, 400, 300)
	if err != nil {
		t.Fatalf("UpdateNodePosition failed: %v", err)
	}
	if moved.X != 400 || moved.Y != 300 {
		t.Errorf("Expected position 400,300, got %v,%v", moved.X, moved.Y)
	}
	if got := countAudit(t, db, services.ActionUpdateEntity); got != 0 {
		t.Errorf("Expected moves not to be audited, got %d entries", got)
	}
	if _, err := services.UpdateNodePosition(ctx, db, "missing", 1, 1); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found moving an unknown node, got %v", err)
	}

	renamed, err := services.UpdateNodeContent(ctx, db, node.ID, str("Drive #2"), str("Recovered at scene"), gibbs)
	if err != nil {
		t.Fatalf("UpdateNodeContent failed: %v", err)
	}
	if renamed.Label != "Drive #2" || renamed.Detail != "Recovered at scene" {
		t.Errorf("Expected new label and detail, got %q %q", renamed.Label, renamed.Detail)
	}
	if renamed.X != 400 {
		t.Errorf("Expected position to survive a content update, got %v", renamed.X)
	}
	if _, err := services.UpdateNodeContent(ctx, db, node.ID, str(""), nil, gibbs); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for an empty label, got %v", err)
	}
	if got := countAudit(t, db, services.ActionUpdateEntity); got != 1 {
		t.Errorf("Expected 1 UPDATE_ENTITY entry, got %d", got)
	}

	evidence, err := services.ListNodes(ctx, db, c.ID, "evidence")
	if err != nil {
		t.Fatalf("ListNodes failed: %v", err)
	}
	people, _ := services.ListNodes(ctx, db, c.ID, "person")
	if len(evidence) != 1 || len(people) != 0 {
		t.Errorf("Expected the type filter to apply, got %d evidence and %d people", len(evidence), len(people))
	}
}

func TestPlaceEntityProjectsOnce(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	c := createCase(t, db, "Operation NIGHTFALL", gibbs)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)

	node, created, err := services.PlaceEntity(ctx, db, c.ID, entity.ID, 250, 100, gibbs)
	if err != nil {
		t.Fatalf("PlaceEntity failed: %v", err)
	}
	if !created {
		t.Error("Expected the first placement to create a node")
	}
	if node.EntityID == nil || *node.EntityID != entity.ID || node.Label != "Robert Deckard" || node.Type != "person" {
		t.Errorf("Expected a projection of the entity, got %+v", node)
	}

	again, created, err := services.PlaceEntity(ctx, db, c.ID, entity.ID, 300, 150, gibbs)
	if err != nil {
		t.Fatalf("Second PlaceEntity failed: %v", err)
	}
	if created || again.ID != node.ID {
		t.Errorf("Expected the existing node to be reused, got created=%v id=%s", created, again.ID)
	}
	if again.X != 300 || again.Y != 150 {
		t.Errorf("Expected the node to move to 300,150, got %v,%v", again.X, again.Y)
	}

	if _, err := services.UpdateNodeContent(ctx, db, node.ID, str("Suspect"), nil, gibbs); err != nil {
		t.Fatalf("UpdateNodeContent failed: %v", err)
	}
	var reloaded models.Entity
	db.First(&reloaded, "id = ?", entity.ID)
	if reloaded.PrimaryName != "Robert Deckard" {
		t.Errorf("Expected canvas edits not to reach the entity, got %s", reloaded.PrimaryName)
	}

	if got := countAudit(t, db, services.ActionPlaceEntity); got != 1 {
		t.Errorf("Expected 1 PLACE_ENTITY entry, got %d", got)
	}
}
