package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/zen-systems/ecoscan/pkg/fallback"
)

// RoutingConfig holds the ordered candidate list and fallback limits.
type RoutingConfig struct {
	Candidates      []RouteTarget     `yaml:"candidates"`
	Terminal        *RouteTarget      `yaml:"terminal,omitempty"`
	DisableTerminal bool              `yaml:"disable_terminal,omitempty"`
	AttemptTimeout  *time.Duration    `yaml:"attempt_timeout,omitempty"`
	Aliases         map[string]string `yaml:"aliases,omitempty"`
}

// RouteTarget specifies an adapter and model combination.
type RouteTarget struct {
	Adapter string `yaml:"adapter"`
	Model   string `yaml:"model"`
}

// DefaultRoutingConfig returns the default routing configuration.
func DefaultRoutingConfig() RoutingConfig {
	timeout := fallback.DefaultAttemptTimeout
	return RoutingConfig{
		Candidates: []RouteTarget{
			{Adapter: "google", Model: "gemini-3-flash-preview"},
			{Adapter: "google", Model: "gemini-flash-lite-latest"},
		},
		Terminal:       &RouteTarget{Adapter: "deepseek", Model: "deepseek-chat"},
		AttemptTimeout: &timeout,
		Aliases: map[string]string{
			"primary": "gemini-3-flash-preview",
			"lite":    "gemini-flash-lite-latest",
		},
	}
}

// Validate checks that the routing section is usable.
func (r RoutingConfig) Validate() error {
	if len(r.Candidates) == 0 {
		return fmt.Errorf("routing.candidates must not be empty")
	}
	for i, c := range r.Candidates {
		if c.Adapter == "" || c.Model == "" {
			return fmt.Errorf("routing.candidates[%d]: adapter and model are required", i)
		}
	}
	if r.Terminal != nil && !r.DisableTerminal && (r.Terminal.Adapter == "" || r.Terminal.Model == "") {
		return fmt.Errorf("routing.terminal: adapter and model are required")
	}
	for _, name := range r.Adapters() {
		if !slices.Contains(Providers, name) {
			return fmt.Errorf("routing: unknown adapter %q", name)
		}
	}
	if r.AttemptTimeout != nil && *r.AttemptTimeout < 0 {
		return fmt.Errorf("routing.attempt_timeout must not be negative")
	}
	return nil
}

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (r RoutingConfig) Resolve(modelOrAlias string) string {
	if canonical, ok := r.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// FallbackConfig converts the routing section into orchestrator settings.
func (r RoutingConfig) FallbackConfig() fallback.Config {
	cfg := fallback.Config{AttemptTimeout: fallback.DefaultAttemptTimeout}
	if r.AttemptTimeout != nil {
		cfg.AttemptTimeout = *r.AttemptTimeout
	}
	for _, c := range r.Candidates {
		cfg.Candidates = append(cfg.Candidates, fallback.Candidate{Provider: c.Adapter, Model: r.Resolve(c.Model)})
	}
	if r.Terminal != nil && !r.DisableTerminal {
		cfg.Terminal = &fallback.Candidate{Provider: r.Terminal.Adapter, Model: r.Resolve(r.Terminal.Model)}
	}
	return cfg
}

// Adapters lists the distinct adapters the routing section refers to, in
// first-use order.
func (r RoutingConfig) Adapters() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, c := range r.Candidates {
		add(c.Adapter)
	}
	if r.Terminal != nil && !r.DisableTerminal {
		add(r.Terminal.Adapter)
	}
	return names
}
