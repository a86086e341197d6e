package normalize

import (
	"errors"
	"strings"
	"testing"

	"github.com/zen-systems/ecoscan/pkg/schema"
)

func TestAnalysisMinimalDocument(t *testing.T) {
	raw := `{"healthInsight":"x","sustainabilityInsight":"y","healthScore":70,"ecoScore":40}`

	result, err := Analysis(raw)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if result.HealthScore != 70 || result.EcoScore != 40 {
		t.Fatalf("unexpected scores %+v", result)
	}
	if result.Alternative != nil {
		t.Fatalf("alternative should be nil, got %+v", result.Alternative)
	}
	if result.ConcerningIngredients != nil {
		t.Fatalf("concerning ingredients should be nil, got %+v", result.ConcerningIngredients)
	}
	if result.HealthInsight != "x" || result.SustainabilityInsight != "y" {
		t.Fatalf("unexpected insights %+v", result)
	}
}

func TestAnalysisFullDocument(t *testing.T) {
	raw := "```json\n" + `{
		"healthInsight": "High in **sugar**.",
		"sustainabilityInsight": "Palm oil sourcing is unclear.",
		"healthScore": 130,
		"ecoScore": -5,
		"alternative": {"name": "Plain oats", "reason": "Less sugar"},
		"concerningIngredients": [
			{"name": "Palm oil", "reason": "Deforestation"},
			{"name": "", "reason": "placeholder"}
		],
		"confidence": "high"
	}` + "\n```"

	result, err := Analysis(raw)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if result.HealthInsight != "High in sugar." {
		t.Fatalf("emphasis not stripped: %q", result.HealthInsight)
	}
	if result.HealthScore != 100 || result.EcoScore != 0 {
		t.Fatalf("scores not clamped: %v %v", result.HealthScore, result.EcoScore)
	}
	if result.Alternative == nil || result.Alternative.Name != "Plain oats" {
		t.Fatalf("unexpected alternative %+v", result.Alternative)
	}
	if len(result.ConcerningIngredients) != 1 || result.ConcerningIngredients[0].Name != "Palm oil" {
		t.Fatalf("unexpected ingredients %+v", result.ConcerningIngredients)
	}
}

func TestAnalysisRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         "Here is your analysis: healthy",
		"empty":            "   ",
		"missing required": `{"healthInsight":"x","sustainabilityInsight":"y","healthScore":70}`,
		"null required":    `{"healthInsight":null,"sustainabilityInsight":"y","healthScore":70,"ecoScore":40}`,
		"wrong kind":       `{"healthInsight":"x","sustainabilityInsight":"y","healthScore":"70","ecoScore":40}`,
		"bad nested item":  `{"healthInsight":"x","sustainabilityInsight":"y","healthScore":70,"ecoScore":40,"concerningIngredients":[{"name":"a"}]}`,
		"array root":       `[1,2,3]`,
	}

	for name, raw := range cases {
		result, err := Analysis(raw)
		if err == nil {
			t.Fatalf("%s: expected error, got %+v", name, result)
		}
		if !errors.Is(err, ErrParse) {
			t.Fatalf("%s: expected ErrParse, got %v", name, err)
		}
		if result != nil {
			t.Fatalf("%s: no partial result expected", name)
		}
	}
}

func TestStructuredReportsPath(t *testing.T) {
	d := schema.Object(true, schema.Field("items", schema.Array(true, schema.Number(true))))

	_, err := Structured(`{"items":[1,"two"]}`, d)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Path != "$.items[1]" {
		t.Fatalf("unexpected path %q", parseErr.Path)
	}

	body, err := Structured("```\n{\"items\":[1,2]}\n```", d)
	if err != nil {
		t.Fatalf("structured: %v", err)
	}
	if string(body) != `{"items":[1,2]}` {
		t.Fatalf("fence not stripped: %s", body)
	}
}

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		"**Shop** local.":          "Shop local.",
		"  *Buy* in bulk.  ":       "  Buy in bulk.  ",
		"Line one\n**Line** two":   "Line one\nLine two",
		"Carry a reusable bag.":    "Carry a reusable bag.",
		"Choose_loose-produce, 5%": "Choose_loose-produce, 5%",
	}
	for in, want := range cases {
		if got := PlainText(in); got != want {
			t.Fatalf("PlainText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStructuredRejectsMalformedDescriptor(t *testing.T) {
	cases := map[string]*schema.Descriptor{
		"array without items": schema.Object(true, schema.Field("tags", schema.Array(false, nil))),
		"nil property":        schema.Object(true, schema.Field("tags", nil)),
	}
	for name, d := range cases {
		_, err := Structured(`{"tags":["a"]}`, d)
		if !errors.Is(err, ErrParse) {
			t.Fatalf("%s: expected ErrParse, got %v", name, err)
		}
		var perr *ParseError
		if !errors.As(err, &perr) || !strings.Contains(perr.Reason, "invalid schema") {
			t.Fatalf("%s: expected invalid schema reason, got %v", name, err)
		}
	}
}
