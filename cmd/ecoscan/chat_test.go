package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/zen-systems/ecoscan/pkg/adapter"
	"github.com/zen-systems/ecoscan/pkg/fallback"
	"github.com/zen-systems/ecoscan/pkg/logging"
	"github.com/zen-systems/ecoscan/pkg/task"
)

func TestChatLoopAnswersEachLine(t *testing.T) {
	mock := adapter.NewNamedMockAdapter("google").
		Script("gemini-test",
			adapter.MockStep{Content: "**Buy** loose produce."},
			adapter.MockStep{Content: "Glass jars are reusable."},
		)
	orch, err := fallback.New(map[string]adapter.Adapter{"google": mock}, fallback.Config{
		Candidates: []fallback.Candidate{{Provider: "google", Model: "gemini-test"}},
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	a := &app{logger: logging.Discard()}
	in := strings.NewReader("how do I cut plastic?\n\nwhat about jars?\n")
	var out bytes.Buffer

	if err := chatLoop(context.Background(), a, task.NewService(orch), "", in, &out); err != nil {
		t.Fatalf("chat loop: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Buy loose produce.") || !strings.Contains(got, "Glass jars are reusable.") {
		t.Fatalf("unexpected output: %q", got)
	}
	if n := mock.CallCount("gemini-test"); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
	calls := mock.Calls()
	if calls[1].Request.Prompt != "what about jars?" {
		t.Fatalf("expected last user turn as prompt, got %q", calls[1].Request.Prompt)
	}
}

func TestChatLoopReportsFailuresAndContinues(t *testing.T) {
	mock := adapter.NewNamedMockAdapter("google").
		Script("gemini-test",
			adapter.MockStep{Err: &adapter.Error{Provider: "google", Status: 401, Message: "API key not valid"}},
			adapter.MockStep{Content: "Recovered."},
		)
	orch, err := fallback.New(map[string]adapter.Adapter{"google": mock}, fallback.Config{
		Candidates: []fallback.Candidate{{Provider: "google", Model: "gemini-test"}},
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	a := &app{logger: logging.Discard()}
	var out bytes.Buffer
	if err := chatLoop(context.Background(), a, task.NewService(orch), "", strings.NewReader("one\ntwo\n"), &out); err != nil {
		t.Fatalf("chat loop: %v", err)
	}

	got := out.String()
	if strings.Contains(got, "API key not valid") {
		t.Fatalf("provider error leaked to output: %q", got)
	}
	if !strings.Contains(got, "Recovered.") {
		t.Fatalf("expected second reply, got %q", got)
	}
}
