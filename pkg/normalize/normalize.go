// Package normalize turns raw provider output into values the rest of the
// program can trust: validated JSON for structured tasks and plain prose for
// free-text ones.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/zen-systems/ecoscan/pkg/schema"
)

// ErrParse is matched by every structured normalization failure.
var ErrParse = errors.New("malformed structured response")

// ParseError describes why a structured response was rejected.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrParse, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrParse, e.Path, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Structured extracts the JSON document from raw and checks it against d.
// Required properties must be present and non-null, every present property
// must have the declared kind, and undeclared properties are ignored.
func Structured(raw string, d *schema.Descriptor) ([]byte, error) {
	body := stripFence(raw)
	if body == "" {
		return nil, &ParseError{Reason: "empty response"}
	}
	if !gjson.Valid(body) {
		return nil, &ParseError{Reason: "response is not valid JSON"}
	}
	if d != nil {
		if err := d.Validate(); err != nil {
			return nil, &ParseError{Reason: "invalid schema: " + err.Error()}
		}
		if err := check(gjson.Parse(body), d, "$"); err != nil {
			return nil, err
		}
	}
	return []byte(body), nil
}

func check(v gjson.Result, d *schema.Descriptor, path string) error {
	switch d.Kind {
	case schema.KindString:
		if v.Type != gjson.String {
			return &ParseError{Path: path, Reason: "expected string"}
		}
	case schema.KindNumber:
		if v.Type != gjson.Number {
			return &ParseError{Path: path, Reason: "expected number"}
		}
	case schema.KindArray:
		if !v.IsArray() {
			return &ParseError{Path: path, Reason: "expected array"}
		}
		for i, item := range v.Array() {
			if err := check(item, d.Items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case schema.KindObject:
		if !v.IsObject() {
			return &ParseError{Path: path, Reason: "expected object"}
		}
		fields := v.Map()
		for _, p := range d.Properties {
			field, ok := fields[p.Name]
			if !ok || field.Type == gjson.Null {
				if p.Descriptor.Required {
					return &ParseError{Path: path + "." + p.Name, Reason: "required field missing"}
				}
				continue
			}
			if err := check(field, p.Descriptor, path+"."+p.Name); err != nil {
				return err
			}
		}
	default:
		return &ParseError{Path: path, Reason: fmt.Sprintf("unsupported kind %q", d.Kind)}
	}
	return nil
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Analysis validates raw against the analysis schema and decodes it.
// Scores are clamped to the valid range and stray emphasis markers are
// removed from prose fields. Optional fields that carry no name are dropped.
func Analysis(raw string) (*schema.AnalysisResult, error) {
	body, err := Structured(raw, schema.AnalysisSchema())
	if err != nil {
		return nil, err
	}

	var result schema.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	result.HealthInsight = cleanField(result.HealthInsight)
	result.SustainabilityInsight = cleanField(result.SustainabilityInsight)
	result.HealthScore = clamp(result.HealthScore)
	result.EcoScore = clamp(result.EcoScore)

	if result.Alternative != nil {
		alt := cleanSuggestion(*result.Alternative)
		if alt.Name == "" {
			result.Alternative = nil
		} else {
			result.Alternative = &alt
		}
	}

	var ingredients []schema.Suggestion
	for _, s := range result.ConcerningIngredients {
		s = cleanSuggestion(s)
		if s.Name != "" {
			ingredients = append(ingredients, s)
		}
	}
	result.ConcerningIngredients = ingredients

	return &result, nil
}

func cleanSuggestion(s schema.Suggestion) schema.Suggestion {
	return schema.Suggestion{Name: cleanField(s.Name), Reason: cleanField(s.Reason)}
}

// cleanField strips emphasis and the whitespace models leave around JSON
// string values.
func cleanField(s string) string {
	return strings.TrimSpace(PlainText(s))
}

func clamp(score float64) float64 {
	switch {
	case score < schema.MinScore:
		return schema.MinScore
	case score > schema.MaxScore:
		return schema.MaxScore
	default:
		return score
	}
}

// PlainText removes markdown emphasis markers. Every other character,
// whitespace included, is kept.
func PlainText(raw string) string {
	return strings.ReplaceAll(raw, "*", "")
}
