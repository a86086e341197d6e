package adapter

import (
	"encoding/json"
	"strings"
)

// jsonInstruction tells providers without native schema enforcement how the
// output must be shaped.
func jsonInstruction(req Request) string {
	var sb strings.Builder
	sb.WriteString("Respond with a single valid JSON object only. Do not wrap it in markdown.")
	if req.Schema != nil {
		if doc, err := json.Marshal(req.Schema.JSONSchema()); err == nil {
			sb.WriteString("\nThe object must conform to this JSON schema:\n")
			sb.Write(doc)
		}
	}
	return sb.String()
}

// joinSystem appends extra instructions to an optional system prompt.
func joinSystem(system string, extra ...string) string {
	parts := make([]string, 0, len(extra)+1)
	if s := strings.TrimSpace(system); s != "" {
		parts = append(parts, s)
	}
	for _, e := range extra {
		if e = strings.TrimSpace(e); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "\n\n")
}
