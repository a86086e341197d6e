package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/zen-systems/ecoscan/pkg/schema"
)

func TestOpenAIStructuredUsesJSONSchema(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{}"}}],"usage":{"prompt_tokens":2,"completion_tokens":1,"total_tokens":3}}`))
	}))
	defer srv.Close()

	a, err := NewOpenAIAdapter("sk-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	resp, err := a.Generate(context.Background(), "gpt-4o-mini", Request{
		Prompt:     "analyze",
		System:     "be brief",
		Structured: true,
		Schema:     schema.AnalysisSchema(),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "{}" || resp.Usage.TotalTokens != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}

	if got := gjson.Get(body, "response_format.type").String(); got != "json_schema" {
		t.Fatalf("expected json_schema response format, got %q", got)
	}
	if got := gjson.Get(body, "response_format.json_schema.schema.required.0").String(); got != "healthInsight" {
		t.Fatalf("schema not forwarded: %s", body)
	}
	if got := gjson.Get(body, "messages.0.role").String(); got != "system" {
		t.Fatalf("expected system message first, got %q", got)
	}
}

func TestOpenAIErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"The model does not exist","type":"invalid_request_error","code":"model_not_found"}}`))
	}))
	defer srv.Close()

	a, _ := NewOpenAIAdapter("sk-test", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	_, err := a.Generate(context.Background(), "gpt-missing", Request{Prompt: "tip"})

	var adapterErr *Error
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if adapterErr.Status != http.StatusNotFound || adapterErr.Code != "model_not_found" {
		t.Fatalf("unexpected error fields %+v", adapterErr)
	}
}
