// Package task binds the fallback orchestrator to the three user-facing
// operations: product analysis, quick tips and the assistant chat.
package task

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zen-systems/ecoscan/pkg/adapter"
	"github.com/zen-systems/ecoscan/pkg/fallback"
	"github.com/zen-systems/ecoscan/pkg/normalize"
	"github.com/zen-systems/ecoscan/pkg/product"
	"github.com/zen-systems/ecoscan/pkg/schema"
)

// Task names used in requests, logs and reports.
const (
	TaskAnalysis = "Product Analysis"
	TaskTip      = "Quick Tip"
	TaskChat     = "Chat"
)

// Chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ErrNoUserMessage is returned by Chat when the history has no user turn.
var ErrNoUserMessage = errors.New("chat history has no user message")

// Message is one turn of a chat.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Service runs tasks through an orchestrator. It keeps no per-call state.
type Service struct {
	orch     *fallback.Orchestrator
	logger   *log.Logger
	observer func(*fallback.Report)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers a callback that receives the report of every run.
func WithObserver(fn func(*fallback.Report)) Option {
	return func(s *Service) {
		s.observer = fn
	}
}

// NewService creates a task service.
func NewService(orch *fallback.Orchestrator, opts ...Option) *Service {
	s := &Service{
		orch:   orch,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeProduct asks for a structured health and sustainability assessment.
func (s *Service) AnalyzeProduct(ctx context.Context, p product.Product) (*schema.AnalysisResult, error) {
	req := adapter.Request{
		Task:       TaskAnalysis,
		Prompt:     AnalysisPrompt(p),
		Structured: true,
		Schema:     schema.AnalysisSchema(),
	}

	result, report, err := fallback.Run(ctx, s.orch, req, func(resp *adapter.Response) (*schema.AnalysisResult, error) {
		return normalize.Analysis(resp.Content)
	})
	s.observe(report, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// QuickTip returns a one-sentence shopping tip.
func (s *Service) QuickTip(ctx context.Context) (string, error) {
	req := adapter.Request{Task: TaskTip, Prompt: tipPrompt}

	tip, report, err := fallback.Run(ctx, s.orch, req, plainText)
	s.observe(report, err)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(tip) == "" {
		return defaultTip, nil
	}
	return tip, nil
}

// Chat answers the most recent user turn in history. viewing optionally
// describes the product on screen and is folded into the system instruction.
func (s *Service) Chat(ctx context.Context, history []Message, viewing string) (string, error) {
	last, ok := lastUserMessage(history)
	if !ok {
		return "", ErrNoUserMessage
	}

	req := adapter.Request{
		Task:   TaskChat,
		Prompt: last,
		System: ChatSystem(viewing),
	}

	reply, report, err := fallback.Run(ctx, s.orch, req, plainText)
	s.observe(report, err)
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (s *Service) observe(report *fallback.Report, err error) {
	if report == nil {
		return
	}
	if err != nil {
		s.logger.Debug("task failed", "task", report.Task, "run", report.RunID, "attempts", len(report.Attempts), "err", err)
	} else if report.Winner != nil {
		s.logger.Debug("task completed", "task", report.Task, "run", report.RunID, "winner", report.Winner.String(), "fallback", report.FallbackUsed)
	}
	if s.observer != nil {
		s.observer(report)
	}
}

func plainText(resp *adapter.Response) (string, error) {
	return normalize.PlainText(resp.Content), nil
}

func lastUserMessage(history []Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser && strings.TrimSpace(history[i].Text) != "" {
			return history[i].Text, true
		}
	}
	return "", false
}

// UserMessage converts a task error into text that is safe to show an end
// user. Provider details stay in the logs.
func UserMessage(err error) string {
	var parseErr *fallback.ParseError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoUserMessage):
		return "Type a message to start the conversation."
	case errors.Is(err, product.ErrNotFound):
		return "This product is not in the database yet."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, fallback.ErrServiceUnavailable):
		return "AI services are currently unavailable. Please check your API key settings and try again."
	case errors.As(err, &parseErr):
		return "The analysis could not be completed. Please try again."
	default:
		return "Analysis is unavailable right now. Please try again later."
	}
}
