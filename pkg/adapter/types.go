package adapter

import (
	"time"

	"github.com/zen-systems/ecoscan/pkg/schema"
)

// Request is a single task invocation handed to an adapter.
type Request struct {
	Task       string
	Prompt     string
	System     string
	Structured bool
	Schema     *schema.Descriptor
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response wraps raw adapter output with call metadata.
type Response struct {
	Content string
	Adapter string
	Model   string
	Usage   *Usage
	Latency time.Duration
}
