package services_test

import (
	"errors"
	"math"
	"testing"

	"github.com/localnerve/casefile/internal/models"
	"github.com/localnerve/casefile/internal/services"
	"github.com/localnerve/casefile/internal/testsupport"
	"github.com/localnerve/casefile/internal/types"
)

func TestUpdateAttributeSupersedesVersion(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)

	added, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{{
		Category:   "contact",
		Key:        "phone",
		Value:      "555-0100",
		Confidence: types.FlexFloat{Value: 0.8, Set: true},
		Source:     "informant",
	}}, gibbs)
	if err != nil {
		t.Fatalf("AddAttributes failed: %v", err)
	}
	prior := added[0]

	next, err := services.UpdateAttribute(ctx, db, entity.ID, prior.ID, services.AttributePatch{Value: str("555-0199")}, gibbs)
	if err != nil {
		t.Fatalf("UpdateAttribute failed: %v", err)
	}

	if next.ID == prior.ID {
		t.Fatal("Expected a new version row")
	}
	if next.Value != "555-0199" {
		t.Errorf("Expected new value 555-0199, got %s", next.Value)
	}
	if next.Category != prior.Category || next.Key != prior.Key || next.EntityID != prior.EntityID {
		t.Errorf("Expected category, key and entity to carry forward, got %s.%s on %s", next.Category, next.Key, next.EntityID)
	}
	if next.Confidence != 0.8 || next.Source != "informant" {
		t.Errorf("Expected unpatched fields to carry forward, got confidence %v source %q", next.Confidence, next.Source)
	}
	if !next.Current() {
		t.Error("Expected the new version to be current")
	}

	var reloaded models.EntityAttribute
	if err := db.First(&reloaded, "id = ?", prior.ID).Error; err != nil {
		t.Fatalf("Failed to reload prior version: %v", err)
	}
	if reloaded.SupersededBy == nil || *reloaded.SupersededBy != next.ID {
		t.Errorf("Expected prior version superseded by %s, got %v", next.ID, reloaded.SupersededBy)
	}
	if reloaded.Value != "555-0100" {
		t.Errorf("Expected prior value to be kept, got %s", reloaded.Value)
	}

	current, err := services.CurrentAttributes(ctx, db, entity.ID)
	if err != nil {
		t.Fatalf("CurrentAttributes failed: %v", err)
	}
	if len(current) != 1 || current[0].ID != next.ID {
		t.Errorf("Expected only the new version to be current, got %+v", current)
	}

	if got := countAudit(t, db, services.ActionUpdateAttribute); got != 1 {
		t.Errorf("Expected 1 UPDATE_ATTRIBUTE audit entry, got %d", got)
	}
}

func TestUpdateSupersededAttributeConflicts(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)

	added, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{{Category: "physical", Key: "height", Value: "180cm"}}, gibbs)
	if err != nil {
		t.Fatalf("AddAttributes failed: %v", err)
	}
	if _, err := services.UpdateAttribute(ctx, db, entity.ID, added[0].ID, services.AttributePatch{Value: str("181cm")}, gibbs); err != nil {
		t.Fatalf("First update failed: %v", err)
	}

	_, err = services.UpdateAttribute(ctx, db, entity.ID, added[0].ID, services.AttributePatch{Value: str("182cm")}, gibbs)
	if !errors.Is(err, types.ErrConflict) {
		t.Fatalf("Expected conflict updating a superseded version, got %v", err)
	}

	var count int64
	db.Model(&models.EntityAttribute{}).Where("entity_id = ?", entity.ID).Count(&count)
	if count != 2 {
		t.Errorf("Expected the rejected update to leave 2 rows, got %d", count)
	}
}

func TestAttributeLineageKeepsOneCurrentVersion(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	entity := createEntity(t, db, "vehicle", "Grey Sedan", gibbs)

	added, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{
		{Category: "identity", Key: "plate", Value: "ABC-100"},
		{Category: "identity", Key: "color", Value: "grey"},
	}, gibbs)
	if err != nil {
		t.Fatalf("AddAttributes failed: %v", err)
	}

	first := added[0]
	latest := first
	plates := []string{"ABC-101", "ABC-102", "ABC-103", "ABC-104"}
	for _, plate := range plates {
		next, err := services.UpdateAttribute(ctx, db, entity.ID, latest.ID, services.AttributePatch{Value: str(plate)}, gibbs)
		if err != nil {
			t.Fatalf("UpdateAttribute to %s failed: %v", plate, err)
		}
		latest = *next
	}

	var currentPlates int64
	db.Model(&models.EntityAttribute{}).
		Where("entity_id = ? AND category = ? AND attr_key = ? AND superseded_by IS NULL", entity.ID, "identity", "plate").
		Count(&currentPlates)
	if currentPlates != 1 {
		t.Errorf("Expected exactly one current plate, got %d", currentPlates)
	}

	for _, anchor := range []string{first.ID, latest.ID} {
		history, err := services.AttributeHistory(ctx, db, entity.ID, anchor)
		if err != nil {
			t.Fatalf("AttributeHistory failed: %v", err)
		}
		if len(history) != len(plates)+1 {
			t.Fatalf("Expected %d versions, got %d", len(plates)+1, len(history))
		}
		if history[0].ID != first.ID || history[len(history)-1].ID != latest.ID {
			t.Errorf("Expected history oldest first from %s to %s", first.ID, latest.ID)
		}
		for i := 0; i < len(history)-1; i++ {
			if history[i].SupersededBy == nil || *history[i].SupersededBy != history[i+1].ID {
				t.Errorf("Version %d does not point at its successor", i)
			}
		}
	}

	current, err := services.CurrentAttributes(ctx, db, entity.ID)
	if err != nil {
		t.Fatalf("CurrentAttributes failed: %v", err)
	}
	if len(current) != 2 {
		t.Fatalf("Expected 2 current attributes, got %d", len(current))
	}
	if current[0].Key != "color" || current[1].Key != "plate" {
		t.Errorf("Expected current attributes ordered by key, got %s then %s", current[0].Key, current[1].Key)
	}
}

func TestAddAttributeSupersedesCurrentVersion(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	entity := createEntity(t, db, "person", "Jane Doe", gibbs)

	first, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{{Category: "physical", Key: "height", Value: "170cm"}}, gibbs)
	if err != nil {
		t.Fatalf("AddAttributes failed: %v", err)
	}
	second, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{{Category: "physical", Key: "height", Value: "175cm"}}, gibbs)
	if err != nil {
		t.Fatalf("Second AddAttributes failed: %v", err)
	}

	countCurrent := func(key string) int64 {
		var n int64
		db.Model(&models.EntityAttribute{}).
			Where("entity_id = ? AND category = ? AND attr_key = ? AND superseded_by IS NULL", entity.ID, "physical", key).
			Count(&n)
		return n
	}
	if n := countCurrent("height"); n != 1 {
		t.Fatalf("Expected one current height, got %d", n)
	}

	history, err := services.AttributeHistory(ctx, db, entity.ID, second[0].ID)
	if err != nil {
		t.Fatalf("AttributeHistory failed: %v", err)
	}
	if len(history) != 2 || history[0].ID != first[0].ID || history[1].Value != "175cm" {
		t.Errorf("Expected 170cm superseded by 175cm, got %+v", history)
	}
	if _, err := services.UpdateAttribute(ctx, db, entity.ID, first[0].ID, services.AttributePatch{Value: str("180cm")}, gibbs); !errors.Is(err, types.ErrConflict) {
		t.Errorf("Expected conflict updating the replaced version, got %v", err)
	}

	// Repeats inside one batch chain onto each other
	batch, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{
		{Category: "physical", Key: "weight", Value: "60kg"},
		{Category: "physical", Key: "weight", Value: "62kg"},
	}, gibbs)
	if err != nil {
		t.Fatalf("Batch AddAttributes failed: %v", err)
	}
	if n := countCurrent("weight"); n != 1 {
		t.Errorf("Expected one current weight, got %d", n)
	}
	if batch[0].SupersededBy == nil || *batch[0].SupersededBy != batch[1].ID || !batch[1].Current() {
		t.Errorf("Expected the first weight to point at the second, got %v", batch[0].SupersededBy)
	}

	current, err := services.CurrentAttributes(ctx, db, entity.ID)
	if err != nil {
		t.Fatalf("CurrentAttributes failed: %v", err)
	}
	if len(current) != 2 {
		t.Errorf("Expected height and weight current, got %d rows", len(current))
	}
	if got := countAudit(t, db, services.ActionAddAttribute); got != 4 {
		t.Errorf("Expected 4 ADD_ATTRIBUTE entries, got %d", got)
	}
}

func TestDeprecateAttribute(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)

	added, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{{Category: "contact", Key: "email", Value: "rd@example.com"}}, gibbs)
	if err != nil {
		t.Fatalf("AddAttributes failed: %v", err)
	}

	attr, err := services.DeprecateAttribute(ctx, db, entity.ID, added[0].ID, gibbs)
	if err != nil {
		t.Fatalf("DeprecateAttribute failed: %v", err)
	}
	if !attr.IsDeprecated() {
		t.Errorf("Expected deprecated marker, got %v", attr.SupersededBy)
	}

	current, err := services.CurrentAttributes(ctx, db, entity.ID)
	if err != nil {
		t.Fatalf("CurrentAttributes failed: %v", err)
	}
	if len(current) != 0 {
		t.Errorf("Expected no current attributes, got %d", len(current))
	}

	if _, err := services.DeprecateAttribute(ctx, db, entity.ID, added[0].ID, gibbs); !errors.Is(err, types.ErrConflict) {
		t.Errorf("Expected conflict deprecating twice, got %v", err)
	}
	if _, err := services.UpdateAttribute(ctx, db, entity.ID, added[0].ID, services.AttributePatch{Value: str("new@example.com")}, gibbs); !errors.Is(err, types.ErrConflict) {
		t.Errorf("Expected conflict updating a deprecated version, got %v", err)
	}

	history, err := services.AttributeHistory(ctx, db, entity.ID, added[0].ID)
	if err != nil {
		t.Fatalf("AttributeHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected a one-version history, got %d", len(history))
	}
}

func TestAttributeValidation(t *testing.T) {
	db := testsupport.NewSQLite(t)
	gibbs := createUser(t, db, "Gibbs", "gibbs@ncis.gov", models.RoleInvestigator)
	entity := createEntity(t, db, "person", "Robert Deckard", gibbs)

	tests := []struct {
		name  string
		input services.AttributeInput
	}{
		{"missing key", services.AttributeInput{Category: "physical", Value: "blue"}},
		{"missing value", services.AttributeInput{Category: "physical", Key: "eyes"}},
		{"confidence above one", services.AttributeInput{Category: "physical", Key: "eyes", Value: "blue", Confidence: types.FlexFloat{Value: 1.5, Set: true}}},
		{"negative confidence", services.AttributeInput{Category: "physical", Key: "eyes", Value: "blue", Confidence: types.FlexFloat{Value: -0.1, Set: true}}},
		{"NaN confidence", services.AttributeInput{Category: "physical", Key: "eyes", Value: "blue", Confidence: types.FlexFloat{Value: math.NaN(), Set: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := services.AddAttributes(ctx, db, entity.ID, []services.AttributeInput{tt.input}, gibbs)
			if !errors.Is(err, types.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}

	if _, err := services.AddAttributes(ctx, db, "missing", []services.AttributeInput{{Category: "a", Key: "b", Value: "c"}}, gibbs); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected not found for unknown entity, got %v", err)
	}

	var count int64
	db.Model(&models.EntityAttribute{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected rejected attributes to write nothing, got %d rows", count)
	}
}
