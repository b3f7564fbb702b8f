// Package llm provides the backend adapters the orchestrator dispatches to.
// Supports Ollama (local) and the OpenAI-compatible Groq and Together APIs.
package llm

import (
	"context"
	"io"
	"time"
)

// Security limits to prevent unbounded memory usage
const (
	// MaxErrorBodySize limits how much error response body we read (1MB)
	MaxErrorBodySize = 1 * 1024 * 1024

	// MaxResponseSize limits a decoded generate response (50MB)
	MaxResponseSize = 50 * 1024 * 1024
)

// readLimitedBody reads up to maxBytes from r, returning the bytes read.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// BackendKind identifies the wire protocol an adapter speaks.
type BackendKind string

const (
	KindOllama   BackendKind = "ollama"
	KindGroq     BackendKind = "groq"
	KindTogether BackendKind = "together"
)

// Adapter is a generation backend. Variants are chosen once when the
// registry is loaded; callers never branch on model names.
type Adapter interface {
	// Name returns the backend identifier used in config and logs.
	Name() string

	// Kind returns the wire protocol of the backend.
	Kind() BackendKind

	// SupportsVision reports whether Generate accepts image payloads.
	SupportsVision() bool

	// Generate issues one generation call.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// ListModels returns the model names the backend currently serves.
	ListModels(ctx context.Context) ([]string, error)
}

// GenerateRequest is the normalized generation request.
type GenerateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Images  []string        `json:"images,omitempty"` // base64, no data: prefix
	Options GenerateOptions `json:"options"`
}

// GenerateOptions are the sampling parameters sent with every request.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float64 `json:"top_p"`
}

// GenerateResponse is the normalized generation response.
type GenerateResponse struct {
	Text             string        `json:"text"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Duration         time.Duration `json:"duration"`
}
