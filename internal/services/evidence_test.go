package services_test

import (
	"errors"
	"testing"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/testsupport"
	"github.com/localnerve/casefile/internal/types"
)

func TestEvidenceLifecycle(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	c := createCase(t, db, "Operation NIGHTFALL", gibbs)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)
	attrs, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{{Category: "contact", Key: "phone", Value: "555-0100"}}, gibbs)
	if err != nil {
		t.Fatalf("AddAttributes failed: %v", err)
	}

	item, err := services.CreateEvidence(ctx, db, services.EvidenceInput{CaseID: c.ID, Label: "Phone records", Type: "document", Hash: "sha256:abc"}, gibbs)
	if err != nil {
		t.Fatalf("CreateEvidence failed: %v", err)
	}

	if _, err := services.LinkEvidence(ctx, db, services.EvidenceLinkInput{EvidenceID: item.ID}, gibbs); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error without a target, got %v", err)
	}
	if _, err := services.LinkEvidence(ctx, db, services.EvidenceLinkInput{EvidenceID: item.ID, NoteID: str("missing")}, gibbs); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found for unknown note, got %v", err)
	}
	link, err := services.LinkEvidence(ctx, db, services.EvidenceLinkInput{EvidenceID: item.ID, AttributeID: &attrs[0].ID, NoteID: str("")}, gibbs)
	if err != nil {
		t.Fatalf("LinkEvidence failed: %v", err)
	}
	if link.NoteID != nil {
		t.Errorf("Expected a blank note id to be dropped, got %v", *link.NoteID)
	}

	items, err := services.ListEvidence(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ListEvidence failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 evidence item, got %d", len(items))
	}
	if _, err := services.ListEvidence(ctx, db, ""); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error without a case, got %v", err)
	}

	if err := services.DeleteEvidence(ctx, db, item.ID, gibbs); err != nil {
		t.Fatalf("DeleteEvidence failed: %v", err)
	}
	var links int64
	db.Model(&models.EvidenceLink{}).Count(&links)
	if links != 0 {
		t.Errorf("Expected links to be removed with the evidence, got %d", links)
	}
	if err := services.DeleteEvidence(ctx, db, item.ID, gibbs); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found deleting twice, got %v", err)
	}
}

func TestHypotheses(t *testing.T) {
	db := testsupport.NewSQLite(t)
	mcgee := createUser(t, db, "McGee", "mcgee@ncis.gov", models.RoleAnalyst)
	c := createCase(t, db, "Operation NIGHTFALL", mcgee)

	h, err := services.CreateHypothesis(ctx, db, services.HypothesisInput{CaseID: c.ID, Title: "Inside job", Description: "Transfers used valid credentials"}, mcgee)
	if err != nil {
		t.Fatalf("CreateHypothesis failed: %v", err)
	}
	if h.Status != models.HypothesisOpen {
		t.Errorf("Expected OPEN, got %s", h.Status)
	}
	if _, err := services.CreateHypothesis(ctx, db, services.HypothesisInput{CaseID: "missing", Title: "X"}, mcgee); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found for unknown case, got %v", err)
	}

	updated, err := services.UpdateHypothesisStatus(ctx, db, h.ID, models.HypothesisSupported, mcgee)
	if err != nil {
		t.Fatalf("UpdateHypothesisStatus failed: %v", err)
	}
	if updated.Status != models.HypothesisSupported {
		t.Errorf("Expected SUPPORTED, got %s", updated.Status)
	}

	logs, err := services.QueryAudit(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("QueryAudit failed: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == services.ActionUpdateHypothesis {
			found = true
			if entry.Details != "Inside job: OPEN -> SUPPORTED" {
				t.Errorf("Unexpected audit details %q", entry.Details)
			}
			if entry.CaseTitle != "Operation NIGHTFALL" {
				t.Errorf("Expected case title on audit entry, got %q", entry.CaseTitle)
			}
		}
	}
	if !found {
		t.Error("Expected an UPDATE_HYPOTHESIS audit entry")
	}

	listed, _ := services.ListHypotheses(ctx, db, c.ID)
	if len(listed) != 1 {
		t.Errorf("Expected 1 hypothesis, got %d", len(listed))
	}
}
