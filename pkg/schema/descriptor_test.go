package schema

import (
	"strings"
	"testing"
)

func TestAnalysisSchemaRequiredFields(t *testing.T) {
	d := AnalysisSchema()
	if err := d.Validate(); err != nil {
		t.Fatalf("analysis schema invalid: %v", err)
	}

	got := strings.Join(d.RequiredNames(), ",")
	want := "healthInsight,sustainabilityInsight,healthScore,ecoScore"
	if got != want {
		t.Fatalf("required mismatch: got %s want %s", got, want)
	}
}

func TestValidateRejectsMalformedDescriptors(t *testing.T) {
	cases := map[string]*Descriptor{
		"array without items": Array(true, nil),
		"unknown kind":        {Kind: "boolean"},
		"duplicate property":  Object(true, Field("a", String(true)), Field("a", Number(true))),
		"nested nil":          Object(true, Field("a", nil)),
	}

	for name, d := range cases {
		if err := d.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestJSONSchemaNesting(t *testing.T) {
	doc := AnalysisSchema().JSONSchema()
	if doc["type"] != "object" {
		t.Fatalf("expected object, got %v", doc["type"])
	}

	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatalf("missing properties")
	}
	ingredients, ok := props["concerningIngredients"].(map[string]any)
	if !ok || ingredients["type"] != "array" {
		t.Fatalf("expected array for concerningIngredients, got %v", props["concerningIngredients"])
	}
	items, ok := ingredients["items"].(map[string]any)
	if !ok {
		t.Fatalf("missing items")
	}
	req, ok := items["required"].([]string)
	if !ok || len(req) != 2 {
		t.Fatalf("expected item required fields, got %v", items["required"])
	}

	alt := props["alternative"].(map[string]any)
	if alt["description"] == nil {
		t.Fatalf("expected description on alternative")
	}
}
