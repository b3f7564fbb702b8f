package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default endpoints for the hosted OpenAI-compatible backends.
const (
	DefaultGroqEndpoint     = "https://api.groq.com/openai/v1"
	DefaultTogetherEndpoint = "https://api.together.xyz/v1"
)

// OpenAICompatAdapter talks to OpenAI-compatible APIs through
// /chat/completions and /models. Groq and Together both use it.
type OpenAICompatAdapter struct {
	name     string
	kind     BackendKind
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewGroqAdapter creates an adapter for the Groq API.
func NewGroqAdapter(endpoint, apiKey string, opts ...AdapterOption) *OpenAICompatAdapter {
	if endpoint == "" {
		endpoint = DefaultGroqEndpoint
	}
	return newOpenAICompatAdapter(KindGroq, endpoint, apiKey, opts)
}

// NewTogetherAdapter creates an adapter for the Together API.
func NewTogetherAdapter(endpoint, apiKey string, opts ...AdapterOption) *OpenAICompatAdapter {
	if endpoint == "" {
		endpoint = DefaultTogetherEndpoint
	}
	return newOpenAICompatAdapter(KindTogether, endpoint, apiKey, opts)
}

func newOpenAICompatAdapter(kind BackendKind, endpoint, apiKey string, opts []AdapterOption) *OpenAICompatAdapter {
	o := applyOptions(string(kind), opts)
	return &OpenAICompatAdapter{
		name:     o.name,
		kind:     kind,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   o.client,
	}
}

func (a *OpenAICompatAdapter) Name() string         { return a.name }
func (a *OpenAICompatAdapter) Kind() BackendKind    { return a.kind }
func (a *OpenAICompatAdapter) SupportsVision() bool { return false }

// Generate sends a single-turn chat completion.
func (a *OpenAICompatAdapter) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if a.apiKey == "" {
		return nil, newBackendError(ErrUnavailable, a.name, req.Model, fmt.Errorf("%s API key not configured", a.name))
	}
	if len(req.Images) > 0 {
		return nil, newBackendError(ErrUnsupported, a.name, req.Model, fmt.Errorf("image input is not supported"))
	}

	start := time.Now()

	chatReq := chatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.Options.MaxTokens,
		Temperature: req.Options.Temperature,
		TopP:        req.Options.TopP,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, chatMessage{Role: "system", Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, newBackendError(ErrMalformed, a.name, req.Model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, newBackendError(ErrUnavailable, a.name, req.Model, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

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

	var result chatCompletionResponse
	if err := json.NewDecoder(limitReader(resp.Body)).Decode(&result); err != nil {
		return nil, decodeError(ctx, a.name, req.Model, err)
	}
	if len(result.Choices) == 0 {
		return nil, newBackendError(ErrMalformed, a.name, req.Model, fmt.Errorf("no choices in response"))
	}

	model := result.Model
	if model == "" {
		model = req.Model
	}

	return &GenerateResponse{
		Text:             result.Choices[0].Message.Content,
		Model:            model,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		Duration:         time.Since(start),
	}, nil
}

// ListModels returns the model ids served by the API via /models.
func (a *OpenAICompatAdapter) ListModels(ctx context.Context) ([]string, error) {
	if a.apiKey == "" {
		return nil, newBackendError(ErrUnavailable, a.name, "", fmt.Errorf("%s API key not configured", a.name))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/models", nil)
	if err != nil {
		return nil, newBackendError(ErrUnavailable, a.name, "", fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

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

	data, err := readLimitedBody(resp.Body, MaxResponseSize)
	if err != nil {
		return nil, decodeError(ctx, a.name, "", err)
	}

	// Together returns a bare array; Groq wraps it in {"data": [...]}.
	var models []modelEntry
	var wrapped struct {
		Data []modelEntry `json:"data"`
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &models)
	} else {
		err = json.Unmarshal(trimmed, &wrapped)
		models = wrapped.Data
	}
	if err != nil {
		return nil, decodeError(ctx, a.name, "", err)
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.ID)
	}
	return names, nil
}

// OpenAI-compatible API types
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type modelEntry struct {
	ID string `json:"id"`
}

func limitReader(r io.Reader) io.Reader {
	return io.LimitReader(r, MaxResponseSize)
}

// decodeError distinguishes a body cut short by the caller's context from a
// genuinely malformed payload.
func decodeError(ctx context.Context, backend, model string, err error) *BackendError {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return classifyTransportError(ctx, backend, model, err)
	}
	return newBackendError(ErrMalformed, backend, model, fmt.Errorf("decode response: %w", err))
}
