package fallback

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/zen-systems/ecoscan/pkg/adapter"
)

// DefaultAttemptTimeout bounds a single candidate call unless configured otherwise.
const DefaultAttemptTimeout = 30 * time.Second

// Candidate is one provider/model pair in priority order.
type Candidate struct {
	Provider string `yaml:"adapter" json:"provider"`
	Model    string `yaml:"model" json:"model"`
}

func (c Candidate) String() string {
	return c.Provider + "/" + c.Model
}

// Selector switches the active credential after a NotFound failure.
type Selector interface {
	Reselect(ctx context.Context) error
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context) error

// Reselect calls f.
func (f SelectorFunc) Reselect(ctx context.Context) error {
	return f(ctx)
}

// Config is the candidate list and its limits.
type Config struct {
	Candidates     []Candidate
	Terminal       *Candidate
	AttemptTimeout time.Duration
}

// Orchestrator runs requests across an ordered candidate list.
// It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	adapters       map[string]adapter.Adapter
	candidates     []Candidate
	terminal       *Candidate
	selector       Selector
	selectors      map[string]Selector
	attemptTimeout time.Duration
	logger         *log.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for attempt records.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSelector sets the credential reselection hook used for providers
// without their own selector.
func WithSelector(s Selector) Option {
	return func(o *Orchestrator) {
		o.selector = s
	}
}

// WithProviderSelector sets the reselection hook for one provider. A NotFound
// failure from any other provider does not reach it.
func WithProviderSelector(provider string, s Selector) Option {
	return func(o *Orchestrator) {
		if o.selectors == nil {
			o.selectors = make(map[string]Selector)
		}
		o.selectors[provider] = s
	}
}

// WithAttemptTimeout overrides the per-attempt deadline. Zero disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.attemptTimeout = d
	}
}

// New builds an orchestrator over the given adapters keyed by Name().
func New(adapters map[string]adapter.Adapter, cfg Config, opts ...Option) (*Orchestrator, error) {
	if len(cfg.Candidates) == 0 {
		return nil, fmt.Errorf("at least one candidate is required")
	}
	for i, c := range cfg.Candidates {
		if c.Provider == "" || c.Model == "" {
			return nil, fmt.Errorf("candidate %d: provider and model are required", i)
		}
	}
	if cfg.AttemptTimeout < 0 {
		return nil, fmt.Errorf("attempt timeout must not be negative")
	}

	o := &Orchestrator{
		adapters:       make(map[string]adapter.Adapter, len(adapters)),
		candidates:     append([]Candidate(nil), cfg.Candidates...),
		attemptTimeout: cfg.AttemptTimeout,
		logger:         log.New(io.Discard),
	}
	for name, a := range adapters {
		o.adapters[name] = a
	}
	if cfg.Terminal != nil {
		if cfg.Terminal.Provider == "" || cfg.Terminal.Model == "" {
			return nil, fmt.Errorf("terminal: provider and model are required")
		}
		t := *cfg.Terminal
		o.terminal = &t
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Candidates returns a copy of the candidate list.
func (o *Orchestrator) Candidates() []Candidate {
	return append([]Candidate(nil), o.candidates...)
}

// Terminal returns the terminal candidate, if one is configured.
func (o *Orchestrator) Terminal() (Candidate, bool) {
	if o.terminal == nil {
		return Candidate{}, false
	}
	return *o.terminal, true
}

// Raw is a decode function that returns the response unchanged.
func Raw(resp *adapter.Response) (*adapter.Response, error) {
	return resp, nil
}

// Run sends req to each candidate in order until one returns output that
// decode accepts. Quota, NotFound and Timeout failures move on to the next
// candidate; anything else aborts with the original error. When every
// candidate fails transiently the terminal provider gets exactly one attempt,
// and if that fails too the result is an *UnavailableError.
func Run[T any](ctx context.Context, o *Orchestrator, req adapter.Request, decode func(*adapter.Response) (T, error)) (T, *Report, error) {
	var zero T
	report := &Report{RunID: uuid.NewString(), Task: req.Task}
	logger := o.logger.With("run", report.RunID, "task", req.Task)

	if decode == nil {
		return zero, report, fmt.Errorf("decode function is required")
	}

	cause := Other
	var lastErr error

	for i, c := range o.candidates {
		if err := ctx.Err(); err != nil {
			return zero, report, fmt.Errorf("%s: %w", label(req), err)
		}

		impl, ok := o.adapters[c.Provider]
		if !ok {
			logger.Warn("skipping candidate", "provider", c.Provider, "model", c.Model, "reason", "adapter not registered")
			report.add(Attempt{Provider: c.Provider, Model: c.Model, Class: NotFound.String(), Error: "adapter not registered", Skipped: true})
			cause = NotFound
			lastErr = fmt.Errorf("adapter %s not registered", c.Provider)
			continue
		}

		out, class, err := call(ctx, o, impl, c, req, decode, report, false)
		if err == nil {
			report.win(c, i > 0)
			logger.Info("candidate succeeded", "provider", c.Provider, "model", c.Model, "attempt", i+1)
			return out, report, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, report, fmt.Errorf("%s: %w", label(req), ctxErr)
		}
		if !class.Transient() {
			logger.Error("candidate failed", "provider", c.Provider, "model", c.Model, "class", class, "attempt", i+1, "err", err)
			return zero, report, fmt.Errorf("%s failed on %s: %w", label(req), c, err)
		}

		logger.Warn("candidate unavailable", "provider", c.Provider, "model", c.Model, "class", class, "attempt", i+1, "err", err)
		cause = class
		lastErr = err
		if class == NotFound {
			o.reselect(ctx, logger, report, c.Provider)
		}
	}

	if o.terminal != nil {
		t := *o.terminal
		impl, ok := o.adapters[t.Provider]
		if !ok {
			logger.Warn("terminal fallback not registered", "provider", t.Provider, "model", t.Model)
			report.add(Attempt{Provider: t.Provider, Model: t.Model, Class: NotFound.String(), Error: "adapter not registered", Terminal: true, Skipped: true})
		} else {
			out, class, err := call(ctx, o, impl, t, req, decode, report, true)
			if err == nil {
				report.win(t, true)
				logger.Info("terminal fallback succeeded", "provider", t.Provider, "model", t.Model)
				return out, report, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, report, fmt.Errorf("%s: %w", label(req), ctxErr)
			}
			logger.Error("terminal fallback failed", "provider", t.Provider, "model", t.Model, "class", class, "err", err)
			lastErr = err
		}
	}

	return zero, report, &UnavailableError{Task: req.Task, Cause: cause, Err: lastErr}
}

func call[T any](
	ctx context.Context,
	o *Orchestrator,
	impl adapter.Adapter,
	c Candidate,
	req adapter.Request,
	decode func(*adapter.Response) (T, error),
	report *Report,
	terminal bool,
) (T, Class, error) {
	var zero T

	callCtx := ctx
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := impl.Generate(callCtx, c.Model, req)
	rec := Attempt{Provider: c.Provider, Model: c.Model, Latency: time.Since(start), Terminal: terminal}
	if err == nil && resp == nil {
		err = fmt.Errorf("%s returned no response", c)
	}
	if err != nil {
		class := ClassifyError(err)
		if class != Timeout && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
			class = Timeout
		}
		rec.Class = class.String()
		rec.Error = err.Error()
		report.add(rec)
		return zero, class, err
	}

	out, err := decode(resp)
	if err != nil {
		perr := &ParseError{Provider: c.Provider, Model: c.Model, Err: err}
		rec.Class = Other.String()
		rec.Error = perr.Error()
		report.add(rec)
		return zero, Other, perr
	}
	report.add(rec)
	return out, Other, nil
}

func (o *Orchestrator) reselect(ctx context.Context, logger *log.Logger, report *Report, provider string) {
	sel, ok := o.selectors[provider]
	if !ok {
		sel = o.selector
	}
	if sel == nil {
		return
	}
	report.Reselections++
	if err := sel.Reselect(ctx); err != nil {
		logger.Warn("credential reselection failed", "provider", provider, "err", err)
		return
	}
	logger.Info("credential reselected", "provider", provider)
}

func label(req adapter.Request) string {
	if req.Task == "" {
		return "request"
	}
	return req.Task
}
