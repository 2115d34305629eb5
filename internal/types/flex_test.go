package types_test

import (
	"encoding/json"
	"testing"

	"github.com/localnerve/casefile/internal/types"
)

func TestFlexFloatUnmarshal(t *testing.T) {
	tests := []struct {
		input    string
		expected types.FlexFloat
		wantErr  bool
	}{
		{`0.75`, types.FlexFloat{Value: 0.75, Set: true}, false},
		{`"0.75"`, types.FlexFloat{Value: 0.75, Set: true}, false},
		{`" 1 "`, types.FlexFloat{Value: 1, Set: true}, false},
		{`0`, types.FlexFloat{Value: 0, Set: true}, false},
		{`""`, types.FlexFloat{}, false},
		{`null`, types.FlexFloat{}, false},
		{`"high"`, types.FlexFloat{}, true},
		{`"NaN"`, types.FlexFloat{}, true},
		{`"-Inf"`, types.FlexFloat{}, true},
		{`true`, types.FlexFloat{}, true},
	}

	for _, tt := range tests {
		var got struct {
			Confidence types.FlexFloat `json:"confidence"`
		}
		err := json.Unmarshal([]byte(`{"confidence":`+tt.input+`}`), &got)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected an error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.input, err)
			continue
		}
		if got.Confidence != tt.expected {
			t.Errorf("%s: expected %+v, got %+v", tt.input, tt.expected, got.Confidence)
		}
	}
}

func TestFlexFloatAbsent(t *testing.T) {
	var got struct {
		Confidence types.FlexFloat `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(`{}`), &got); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Confidence.Set {
		t.Error("Expected an absent value to be unset")
	}
	if got.Confidence.Or(1) != 1 {
		t.Error("Expected an absent value to take the fallback")
	}
}

func TestFlexList(t *testing.T) {
	type item struct {
		Key string `json:"key"`
	}

	var single types.FlexList[item]
	if err := json.Unmarshal([]byte(` {"key":"height"}`), &single); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(single) != 1 || single[0].Key != "height" {
		t.Errorf("Expected one item, got %+v", single)
	}

	var many types.FlexList[item]
	if err := json.Unmarshal([]byte(`[{"key":"height"},{"key":"weight"}]`), &many); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(many.Slice()) != 2 {
		t.Errorf("Expected two items, got %d", len(many))
	}

	if !types.IsJSONArray([]byte("\n [ ]")) || types.IsJSONArray([]byte(`{"key":"x"}`)) {
		t.Error("IsJSONArray misclassified a body")
	}
}
