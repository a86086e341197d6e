package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zen-systems/ecoscan/pkg/schema"
	"google.golang.org/genai"
)

// CredentialSource yields the API key to use for the next call.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a CredentialSource that always returns the same key.
type StaticKey string

// APIKey returns the key.
func (k StaticKey) APIKey(context.Context) (string, error) {
	if k == "" {
		return "", fmt.Errorf("google API key is required")
	}
	return string(k), nil
}

// GoogleAdapter implements the Adapter interface for Gemini models.
// The API key is resolved on every call so a reselected credential takes
// effect without rebuilding the adapter.
type GoogleAdapter struct {
	creds      CredentialSource
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// GoogleOption configures a GoogleAdapter.
type GoogleOption func(*GoogleAdapter)

// WithGoogleBaseURL overrides the Gemini API endpoint.
func WithGoogleBaseURL(url string) GoogleOption {
	return func(a *GoogleAdapter) {
		a.baseURL = url
	}
}

// WithGoogleHTTPClient sets the HTTP client used by the genai SDK.
func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(a *GoogleAdapter) {
		a.httpClient = c
	}
}

// NewGoogleAdapter creates a new Google Gemini adapter.
func NewGoogleAdapter(creds CredentialSource, opts ...GoogleOption) (*GoogleAdapter, error) {
	if creds == nil {
		return nil, fmt.Errorf("google credential source is required")
	}

	a := &GoogleAdapter{
		creds:   creds,
		clients: make(map[string]*genai.Client),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the adapter identifier.
func (a *GoogleAdapter) Name() string {
	return "google"
}

// Models returns the list of supported Gemini models.
func (a *GoogleAdapter) Models() []string {
	return []string{
		"gemini-3-flash-preview",
		"gemini-flash-lite-latest",
		"gemini-2.5-flash",
		"gemini-2.5-pro",
	}
}

// Generate sends a request to Gemini and returns the response text.
func (a *GoogleAdapter) Generate(ctx context.Context, model string, req Request) (*Response, error) {
	key, err := a.creds.APIKey(ctx)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Status: http.StatusUnauthorized, Message: err.Error(), Err: err}
	}

	client, err := a.client(ctx, key)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.System)}}
	}
	if req.Structured {
		config.ResponseMIMEType = "application/json"
		if req.Schema != nil {
			config.ResponseSchema = toGenaiSchema(req.Schema)
		}
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, wrapGoogleError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &Error{Provider: a.Name(), Message: "google returned no candidates"}
	}

	out := &Response{
		Content: resp.Text(),
		Adapter: a.Name(),
		Model:   model,
		Latency: time.Since(start),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// client returns a cached genai client for the key, creating one on first use.
func (a *GoogleAdapter) client(ctx context.Context, key string) (*genai.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[key]; ok {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: a.httpClient,
	}
	if a.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: a.baseURL}
	}

	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}
	a.clients[key] = c
	return c, nil
}

func wrapGoogleError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Provider: "google",
			Status:   apiErr.Code,
			Code:     apiErr.Status,
			Message:  apiErr.Message,
			Err:      err,
		}
	}
	return &Error{Provider: "google", Err: err}
}

func toGenaiSchema(d *schema.Descriptor) *genai.Schema {
	if d == nil {
		return nil
	}
	s := &genai.Schema{Description: d.Description}
	switch d.Kind {
	case schema.KindString:
		s.Type = genai.TypeString
	case schema.KindNumber:
		s.Type = genai.TypeNumber
	case schema.KindArray:
		s.Type = genai.TypeArray
		s.Items = toGenaiSchema(d.Items)
	case schema.KindObject:
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(d.Properties))
		for _, p := range d.Properties {
			s.Properties[p.Name] = toGenaiSchema(p.Descriptor)
			s.PropertyOrdering = append(s.PropertyOrdering, p.Name)
		}
		s.Required = d.RequiredNames()
	}
	return s
}
