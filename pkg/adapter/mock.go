package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockStep is one scripted outcome of a mock call.
type MockStep struct {
	Content string
	Err     error
	Delay   time.Duration
}

// MockCall records a request seen by a MockAdapter.
type MockCall struct {
	Model   string
	Request Request
}

// MockAdapter returns deterministic responses for local runs and tests.
// Steps scripted for a model are consumed in order; the last one repeats.
type MockAdapter struct {
	name            string
	defaultResponse string
	Usage           *Usage

	mu      sync.Mutex
	scripts map[string][]MockStep
	calls   []MockCall
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return NewNamedMockAdapter("mock")
}

// NewNamedMockAdapter creates a mock adapter reporting the given name, so it
// can stand in for a real provider in a candidate list.
func NewNamedMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		name:            name,
		defaultResponse: "mock response:",
		scripts:         make(map[string][]MockStep),
	}
}

// Respond scripts a successful response for model.
func (a *MockAdapter) Respond(model, content string) *MockAdapter {
	return a.Script(model, MockStep{Content: content})
}

// Fail scripts an error for model.
func (a *MockAdapter) Fail(model string, err error) *MockAdapter {
	return a.Script(model, MockStep{Err: err})
}

// Script appends steps for model.
func (a *MockAdapter) Script(model string, steps ...MockStep) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scripts[model] = append(a.scripts[model], steps...)
	return a
}

// Calls returns a copy of the calls made so far.
func (a *MockAdapter) Calls() []MockCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]MockCall, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallCount returns how many times model was called.
func (a *MockAdapter) CallCount(model string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c.Model == model {
			n++
		}
	}
	return n
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Models returns the scripted models, or mock-1 when nothing is scripted.
func (a *MockAdapter) Models() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.scripts) == 0 {
		return []string{"mock-1"}
	}
	models := make([]string, 0, len(a.scripts))
	for m := range a.scripts {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// Generate returns the next scripted outcome for model.
func (a *MockAdapter) Generate(ctx context.Context, model string, req Request) (*Response, error) {
	if model == "" {
		model = "mock-1"
	}

	step, scripted := a.next(model, req)
	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if step.Err != nil {
		return nil, step.Err
	}

	content := step.Content
	if !scripted {
		content = fmt.Sprintf("%s\n%s", a.defaultResponse, req.Prompt)
	}
	return &Response{Content: content, Adapter: a.name, Model: model, Usage: a.Usage}, nil
}

func (a *MockAdapter) next(model string, req Request) (MockStep, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, MockCall{Model: model, Request: req})
	steps, ok := a.scripts[model]
	if !ok || len(steps) == 0 {
		return MockStep{}, false
	}
	step := steps[0]
	if len(steps) > 1 {
		a.scripts[model] = steps[1:]
	}
	return step, true
}
