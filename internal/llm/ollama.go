package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaEndpoint is the local Ollama server.
const DefaultOllamaEndpoint = "http://127.0.0.1:11434"

// OllamaAdapter talks to an Ollama server through /api/generate and /api/tags.
// It accepts images, so vision models hosted on Ollama are served by it too.
type OllamaAdapter struct {
	name     string
	endpoint string
	client   *http.Client
}

// AdapterOption configures an adapter.
type AdapterOption func(*adapterOptions)

type adapterOptions struct {
	name   string
	client *http.Client
}

// WithName overrides the backend name reported by the adapter.
func WithName(name string) AdapterOption {
	return func(o *adapterOptions) { o.name = name }
}

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(c *http.Client) AdapterOption {
	return func(o *adapterOptions) { o.client = c }
}

func applyOptions(defaultName string, opts []AdapterOption) adapterOptions {
	o := adapterOptions{
		name: defaultName,
		// No client-level timeout: the dispatcher bounds each call with its context.
		client: &http.Client{
			Transport: &http.Transport{
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewOllamaAdapter creates an adapter for the Ollama server at endpoint.
func NewOllamaAdapter(endpoint string, opts ...AdapterOption) *OllamaAdapter {
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	o := applyOptions(string(KindOllama), opts)
	return &OllamaAdapter{
		name:     o.name,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   o.client,
	}
}

func (a *OllamaAdapter) Name() string         { return a.name }
func (a *OllamaAdapter) Kind() BackendKind    { return KindOllama }
func (a *OllamaAdapter) SupportsVision() bool { return true }

// Generate sends a non-streaming /api/generate request.
func (a *OllamaAdapter) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Images: req.Images,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Options.Temperature,
			NumPredict:  req.Options.MaxTokens,
			TopP:        req.Options.TopP,
		},
	})
	if err != nil {
		return nil, newBackendError(ErrMalformed, a.name, req.Model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, newBackendError(ErrUnavailable, a.name, req.Model, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, a.name, req.Model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, &BackendError{
			Kind:       ErrHTTPStatus,
			Backend:    a.name,
			Model:      req.Model,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(bodyBytes))),
		}
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(limitReader(resp.Body)).Decode(&result); err != nil {
		return nil, decodeError(ctx, a.name, req.Model, err)
	}
	if result.Error != "" {
		return nil, newBackendError(ErrMalformed, a.name, req.Model, fmt.Errorf("ollama: %s", result.Error))
	}

	model := result.Model
	if model == "" {
		model = req.Model
	}

	return &GenerateResponse{
		Text:             result.Response,
		Model:            model,
		PromptTokens:     result.PromptEvalCount,
		CompletionTokens: result.EvalCount,
		Duration:         time.Since(start),
	}, nil
}

// ListModels returns the models installed on the server via /api/tags.
func (a *OllamaAdapter) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, newBackendError(ErrUnavailable, a.name, "", fmt.Errorf("create request: %w", err))
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, a.name, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, &BackendError{
			Kind:       ErrHTTPStatus,
			Backend:    a.name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(bodyBytes))),
		}
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(limitReader(resp.Body)).Decode(&tags); err != nil {
		return nil, decodeError(ctx, a.name, "", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ollama API types
type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Images  []string      `json:"images,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
