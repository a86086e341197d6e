package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
	"github.com/zen-systems/ecoscan/pkg/schema"
	"google.golang.org/genai"
)

type rotatingKey struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

func (k *rotatingKey) APIKey(context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.keys[k.idx], nil
}

func (k *rotatingKey) advance() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.idx = (k.idx + 1) % len(k.keys)
}

func TestGoogleStructuredRequest(t *testing.T) {
	var body string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"healthInsight\":\"x\"}"}]}}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":6,"totalTokenCount":10}}`))
	}))
	defer srv.Close()

	a, err := NewGoogleAdapter(StaticKey("g-key"), WithGoogleBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	resp, err := a.Generate(context.Background(), "gemini-3-flash-preview", Request{
		Prompt:     "analyze",
		System:     "be brief",
		Structured: true,
		Schema:     schema.AnalysisSchema(),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != `{"healthInsight":"x"}` {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if !strings.Contains(path, "gemini-3-flash-preview:generateContent") {
		t.Fatalf("unexpected path %s", path)
	}
	if got := gjson.Get(body, "generationConfig.responseMimeType").String(); got != "application/json" {
		t.Fatalf("expected JSON mime type, got %q", got)
	}
	if !gjson.Get(body, "generationConfig.responseSchema").Exists() {
		t.Fatalf("expected response schema in body: %s", body)
	}
	if got := gjson.Get(body, "systemInstruction.parts.0.text").String(); got != "be brief" {
		t.Fatalf("expected system instruction, got %q", got)
	}
}

func TestGoogleErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	a, _ := NewGoogleAdapter(StaticKey("g-key"), WithGoogleBaseURL(srv.URL))
	_, err := a.Generate(context.Background(), "gemini-3-flash-preview", Request{Prompt: "tip"})
	if err == nil {
		t.Fatalf("expected error")
	}

	var adapterErr *Error
	if !errors.As(err, &adapterErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if adapterErr.Status != 429 || adapterErr.Code != "RESOURCE_EXHAUSTED" {
		t.Fatalf("unexpected error fields %+v", adapterErr)
	}
}

func TestGoogleUsesCurrentCredential(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("x-goog-api-key"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	creds := &rotatingKey{keys: []string{"first", "second"}}
	a, _ := NewGoogleAdapter(creds, WithGoogleBaseURL(srv.URL))

	if _, err := a.Generate(context.Background(), "m", Request{Prompt: "p"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	creds.advance()
	if _, err := a.Generate(context.Background(), "m", Request{Prompt: "p"}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(seen) != 2 || seen[0] != "first" || seen[1] != "second" {
		t.Fatalf("expected keys first,second; got %v", seen)
	}
}

func TestToGenaiSchema(t *testing.T) {
	s := toGenaiSchema(schema.AnalysisSchema())
	if s.Type != genai.TypeObject {
		t.Fatalf("expected object, got %s", s.Type)
	}
	if len(s.Required) != 4 {
		t.Fatalf("expected 4 required fields, got %v", s.Required)
	}
	if s.PropertyOrdering[0] != "healthInsight" {
		t.Fatalf("property ordering lost: %v", s.PropertyOrdering)
	}
	ing := s.Properties["concerningIngredients"]
	if ing.Type != genai.TypeArray || ing.Items.Type != genai.TypeObject {
		t.Fatalf("unexpected ingredients schema %+v", ing)
	}
	if s.Properties["healthScore"].Type != genai.TypeNumber {
		t.Fatalf("expected number for healthScore")
	}
}
