package adapter

import (
	"context"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a request to the model and returns its raw text output.
	Generate(ctx context.Context, model string, req Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// AdapterInfo describes an adapter and the models it serves.
type AdapterInfo struct {
	Name   string      `json:"name"`
	Models []ModelInfo `json:"models"`
}

// ModelInfo is one model of an adapter. Routed marks models that appear in
// the candidate list or as the terminal fallback.
type ModelInfo struct {
	ID     string `json:"id"`
	Routed bool   `json:"routed,omitempty"`
}

// Describe lists a's models, marking the routed ones. Routed models the
// adapter does not advertise are appended in the order given.
func Describe(a Adapter, routed ...string) AdapterInfo {
	info := AdapterInfo{Name: a.Name()}
	want := make(map[string]bool, len(routed))
	for _, m := range routed {
		want[m] = true
	}
	for _, m := range a.Models() {
		info.Models = append(info.Models, ModelInfo{ID: m, Routed: want[m]})
		delete(want, m)
	}
	for _, m := range routed {
		if want[m] {
			info.Models = append(info.Models, ModelInfo{ID: m, Routed: true})
			delete(want, m)
		}
	}
	return info
}
