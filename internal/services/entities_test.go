package services_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/testsupport"
	"github.com/localnerve/casefile/internal/types"
)

func TestJaneDoeProfileAfterAttributeUpdate(t *testing.T) {
	db := testsupport.NewSQLite(t)
	vance := createUser(t, db, "Director Vance", "vance@ncis.gov", models.RoleOwner)
	c := createCase(t, db, "Operation NIGHTFALL", vance)
	jane := createEntity(t, db, "person", "Jane Doe", vance)

	if _, err := services.LinkEntityToCase(ctx, db, c.ID, services.LinkInput{EntityID: jane.ID, Role: str("SUSPECT")}, vance); err != nil {
		t.Fatalf("LinkEntityToCase failed: %v", err)
	}
	added, err := services.AddAttributes(ctx, db, jane.ID, []services.AttributeInput{{
		Category:   "physical",
		Key:        "height",
		Value:      "170cm",
		Confidence: types.FlexFloat{Value: 0.8, Set: true},
	}}, vance)
	if err != nil {
		t.Fatalf("AddAttributes failed: %v", err)
	}
	if _, err := services.UpdateAttribute(ctx, db, jane.ID, added[0].ID, services.AttributePatch{Value: str("172cm")}, vance); err != nil {
		t.Fatalf("UpdateAttribute failed: %v", err)
	}

	profile, err := services.GetEntityProfile(ctx, db, jane.ID)
	if err != nil {
		t.Fatalf("GetEntityProfile failed: %v", err)
	}
	physical := profile.Attributes["physical"]
	if len(physical) != 1 {
		t.Fatalf("Expected exactly one current physical attribute, got %d", len(physical))
	}
	if physical[0].Value != "172cm" || physical[0].Confidence != 0.8 {
		t.Errorf("Expected 172cm at 0.8, got %s at %v", physical[0].Value, physical[0].Confidence)
	}

	var superseded []models.EntityAttribute
	db.Where("entity_id = ? AND superseded_by IS NOT NULL", jane.ID).Find(&superseded)
	if len(superseded) != 1 || superseded[0].Value != "170cm" {
		t.Errorf("Expected one superseded row with 170cm, got %+v", superseded)
	}

	if len(profile.CaseLinks) != 1 {
		t.Fatalf("Expected one case link, got %d", len(profile.CaseLinks))
	}
	link := profile.CaseLinks[0]
	if link.Role != "SUSPECT" || link.CaseTitle != "Operation NIGHTFALL" {
		t.Errorf("Expected SUSPECT in Operation NIGHTFALL, got %s in %s", link.Role, link.CaseTitle)
	}
	if link.AddedBy == nil || link.AddedBy.ID != vance.ID {
		t.Errorf("Expected link added by Vance, got %+v", link.AddedBy)
	}
	if profile.CreatedBy == nil || profile.CreatedBy.Name != "Director Vance" {
		t.Errorf("Expected creator summary, got %+v", profile.CreatedBy)
	}
}

func TestLinkEntityToCaseOnce(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	c := createCase(t, db, "Operation NIGHTFALL", gibbs)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)

	link, err := services.LinkEntityToCase(ctx, db, c.ID, services.LinkInput{EntityID: entity.ID}, gibbs)
	if err != nil {
		t.Fatalf("LinkEntityToCase failed: %v", err)
	}
	if link.Role != "UNKNOWN" || link.Visibility != "TEAM" {
		t.Errorf("Expected default role and visibility, got %s %s", link.Role, link.Visibility)
	}

	if _, err := services.LinkEntityToCase(ctx, db, c.ID, services.LinkInput{EntityID: entity.ID, Role: str("WITNESS")}, gibbs); !errors.Is(err, types.ErrConflict) {
		t.Errorf("Expected conflict linking twice, got %v", err)
	}
	if _, err := services.LinkEntityToCase(ctx, db, "missing", services.LinkInput{EntityID: entity.ID}, gibbs); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found for unknown case, got %v", err)
	}
	if _, err := services.LinkEntityToCase(ctx, db, c.ID, services.LinkInput{EntityID: "missing"}, gibbs); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found for unknown entity, got %v", err)
	}

	updated, err := services.UpdateCaseLink(ctx, db, c.ID, entity.ID, services.LinkInput{Role: str("SUSPECT"), Notes: str("seen at the safehouse")}, gibbs)
	if err != nil {
		t.Fatalf("UpdateCaseLink failed: %v", err)
	}
	if updated.Role != "SUSPECT" || updated.Notes != "seen at the safehouse" || updated.Visibility != "TEAM" {
		t.Errorf("Expected patched role and notes, got %+v", updated)
	}

	entities, err := services.ListCaseEntities(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ListCaseEntities failed: %v", err)
	}
	if len(entities) != 1 || entities[0].Entity.ID != entity.ID || entities[0].Role != "SUSPECT" {
		t.Errorf("Expected the linked entity in the roster, got %+v", entities)
	}
}

func TestListCaseEntitiesPreviewsAttributes(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	c := createCase(t, db, "Operation NIGHTFALL", gibbs)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)
	if _, err := services.LinkEntityToCase(ctx, db, c.ID, services.LinkInput{EntityID: entity.ID}, gibbs); err != nil {
		t.Fatalf("LinkEntityToCase failed: %v", err)
	}

	inputs := make([]services.AttributeInput, 7)
	for i := range inputs {
		inputs[i] = services.AttributeInput{Category: "alias", Key: fmt.Sprintf("name%d", i), Value: fmt.Sprintf("alias %d", i)}
	}
	if _, err := services.AddAttributes(ctx, db, entity.ID, inputs, gibbs); err != nil {
		t.Fatalf("AddAttributes failed: %v", err)
	}

	entities, err := services.ListCaseEntities(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ListCaseEntities failed: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("Expected one entity, got %d", len(entities))
	}
	if len(entities[0].Attributes) != 5 {
		t.Errorf("Expected a preview of 5 attributes, got %d", len(entities[0].Attributes))
	}
}

func TestSearchEntities(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	c := createCase(t, db, "Operation NIGHTFALL", gibbs)

	for i := 0; i < services.SearchLimit+5; i++ {
		createEntity(t, db, "person", fmt.Sprintf("Agent %02d", i), gibbs)
	}
	deckard := createEntity(t, db, "person", "Robert DECKARD", gibbs)
	createEntity(t, db, "location", "Deckard Residence", gibbs)
	createEntity(t, db, "device", "100% Burner", gibbs)
	if _, err := services.LinkEntityToCase(ctx, db, c.ID, services.LinkInput{EntityID: deckard.ID}, gibbs); err != nil {
		t.Fatalf("LinkEntityToCase failed: %v", err)
	}

	all, err := services.SearchEntities(ctx, db, services.EntitySearch{})
	if err != nil {
		t.Fatalf("SearchEntities failed: %v", err)
	}
	if len(all) != services.SearchLimit {
		t.Errorf("Expected results capped at %d, got %d", services.SearchLimit, len(all))
	}

	matches, err := services.SearchEntities(ctx, db, services.EntitySearch{Query: "deckard"})
	if err != nil {
		t.Fatalf("SearchEntities failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("Expected a case-insensitive match on 2 entities, got %d", len(matches))
	}

	people, _ := services.SearchEntities(ctx, db, services.EntitySearch{Query: "DeCkArD", Type: "person"})
	if len(people) != 1 || people[0].ID != deckard.ID {
		t.Errorf("Expected the type filter to leave Robert DECKARD, got %+v", people)
	}

	linked, _ := services.SearchEntities(ctx, db, services.EntitySearch{CaseID: c.ID})
	if len(linked) != 1 || linked[0].ID != deckard.ID {
		t.Errorf("Expected the case filter to leave the linked entity, got %d results", len(linked))
	}

	literal, _ := services.SearchEntities(ctx, db, services.EntitySearch{Query: "100%"})
	if len(literal) != 1 {
		t.Errorf("Expected %% to match literally, got %d results", len(literal))
	}
	underscore, _ := services.SearchEntities(ctx, db, services.EntitySearch{Query: "_"})
	if len(underscore) != 0 {
		t.Errorf("Expected _ to match literally, got %d results", len(underscore))
	}
}

func TestUpdateEntity(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)
	if entity.Confidence != 0.5 || entity.Status != models.EntityActive {
		t.Errorf("Expected defaults 0.5 and ACTIVE, got %v and %s", entity.Confidence, entity.Status)
	}

	updated, err := services.UpdateEntity(ctx, db, entity.ID, services.EntityInput{
		Confidence: types.FlexFloat{Value: 0, Set: true},
		Status:     str(models.EntityDisputed),
	}, gibbs)
	if err != nil {
		t.Fatalf("UpdateEntity failed: %v", err)
	}
	if updated.Confidence != 0 || updated.Status != models.EntityDisputed {
		t.Errorf("Expected confidence 0 and DISPUTED, got %v and %s", updated.Confidence, updated.Status)
	}
	if updated.Type != "person" || updated.PrimaryName != "Robert Deckard" {
		t.Errorf("Expected untouched identity, got %s %s", updated.Type, updated.PrimaryName)
	}

	if _, err := services.UpdateEntity(ctx, db, entity.ID, services.EntityInput{Status: str("LOST")}, gibbs); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for unknown status, got %v", err)
	}
	if _, err := services.UpdateEntity(ctx, db, "missing", services.EntityInput{PrimaryName: str("X")}, gibbs); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := services.CreateEntity(ctx, db, services.EntityInput{Type: str("person")}, gibbs); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error without a name, got %v", err)
	}
	nan := types.FlexFloat{Value: math.NaN(), Set: true}
	if _, err := services.CreateEntity(ctx, db, services.EntityInput{Type: str("person"), PrimaryName: str("Jane Doe"), Confidence: nan}, gibbs); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for NaN confidence, got %v", err)
	}
	if _, err := services.UpdateEntity(ctx, db, entity.ID, services.EntityInput{Confidence: nan}, gibbs); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error updating to NaN confidence, got %v", err)
	}
}

func TestNotesNewestFirst(t *testing.T) {
	db := testsupport.NewSQLite(t)
	mcgee := createUser(t, db, "McGee", "mcgee@ncis.gov", models.RoleAnalyst)
	entity := createEntity(t, db, "person", "Robert Deckard", mcgee)

	note, err := services.AddNote(ctx, db, entity.ID, "Seen near the docks", "sighting", mcgee)
	if err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	if note.Author == nil || note.Author.Name != "McGee" {
		t.Errorf("Expected author McGee, got %+v", note.Author)
	}
	if _, err := services.AddNote(ctx, db, entity.ID, "   ", "", mcgee); !errors.Is(err, types.ErrValidation) {
		t.Errorf("Expected validation error for empty content, got %v", err)
	}
	if _, err := services.AddNote(ctx, db, "missing", "text", "", mcgee); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found for unknown entity, got %v", err)
	}

	notes, err := services.ListNotes(ctx, db, entity.ID)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 1 || notes[0].Author == nil || notes[0].Author.ID != mcgee.ID {
		t.Errorf("Expected one note with its author, got %+v", notes)
	}
}
