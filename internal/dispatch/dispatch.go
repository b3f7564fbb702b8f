// Package dispatch issues generation calls to the backend serving a model,
// shapes each request from the task profile, reports every call to the
// performance tracker and repairs incomplete document answers.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/llm"
)

// BackendResolver maps a model to the backend serving it.
// *registry.Registry satisfies it.
type BackendResolver interface {
	Backend(model string) (string, bool)
}

// Reporter receives one outcome per backend call.
// *tracker.Tracker satisfies it.
type Reporter interface {
	Report(model string, success bool, elapsed time.Duration, tokens int)
}

// Config shapes requests and bounds each call.
type Config struct {
	Timeout           time.Duration
	MaxTokens         int
	DocumentMaxTokens int
	TopP              float64

	RepairEnabled   bool
	RepairMinChars  int
	RepairMaxTokens int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:           300 * time.Second,
		MaxTokens:         2048,
		DocumentMaxTokens: 4096,
		TopP:              0.9,
		RepairEnabled:     true,
		RepairMinChars:    500,
		RepairMaxTokens:   8192,
	}
}

// Call is one dispatch request.
type Call struct {
	Model  string
	Prompt string
	System string
	Task   classifier.TaskProfile
}

// Result is a successful dispatch.
type Result struct {
	Text             string        `json:"text"`
	Model            string        `json:"model"`
	Backend          string        `json:"backend"`
	Elapsed          time.Duration `json:"elapsed"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Calls            int           `json:"calls"`
	Repair           RepairInfo    `json:"repair"`
}

// Dispatcher sends calls to adapters. It is safe for concurrent use.
type Dispatcher struct {
	backends map[string]llm.Adapter
	resolver BackendResolver
	reporter Reporter
	cfg      Config
}

// New creates a dispatcher. backends is keyed by backend name.
func New(backends map[string]llm.Adapter, resolver BackendResolver, reporter Reporter, cfg Config) *Dispatcher {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.DocumentMaxTokens <= 0 {
		cfg.DocumentMaxTokens = defaults.DocumentMaxTokens
	}
	if cfg.TopP <= 0 {
		cfg.TopP = defaults.TopP
	}
	if cfg.RepairMinChars <= 0 {
		cfg.RepairMinChars = defaults.RepairMinChars
	}
	if cfg.RepairMaxTokens <= 0 {
		cfg.RepairMaxTokens = defaults.RepairMaxTokens
	}
	return &Dispatcher{
		backends: backends,
		resolver: resolver,
		reporter: reporter,
		cfg:      cfg,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// DISPATCH
// ═══════════════════════════════════════════════════════════════════════════════

// Dispatch generates a text answer. Document and summary tasks whose draft
// looks incomplete go through at most RepairBudget extra calls. Failures are
// always *llm.BackendError.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (*Result, error) {
	adapter, err := d.adapter(call.Model)
	if err != nil {
		return nil, err
	}

	req := d.buildRequest(call)
	start := time.Now()

	resp, err := d.generate(ctx, adapter, req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Text:             resp.Text,
		Model:            call.Model,
		Backend:          adapter.Name(),
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		Calls:            1,
	}

	if d.cfg.RepairEnabled && needsRepair(call) && d.incomplete(resp.Text) {
		d.repair(ctx, adapter, req, res)
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// DispatchVision sends images with the prompt. The backend serving the model
// must accept image payloads.
func (d *Dispatcher) DispatchVision(ctx context.Context, call Call, images []string) (*Result, error) {
	adapter, err := d.adapter(call.Model)
	if err != nil {
		return nil, err
	}
	if !adapter.SupportsVision() {
		return nil, &llm.BackendError{
			Kind:    llm.ErrUnsupported,
			Backend: adapter.Name(),
			Model:   call.Model,
			Err:     fmt.Errorf("backend does not accept images"),
		}
	}

	req := d.buildRequest(call)
	req.Images = images

	start := time.Now()
	resp, err := d.generate(ctx, adapter, req)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:             resp.Text,
		Model:            call.Model,
		Backend:          adapter.Name(),
		Elapsed:          time.Since(start),
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		Calls:            1,
	}, nil
}

// adapter resolves the backend for model. An unresolvable model counts as a
// failed attempt so the scorer stops preferring it.
func (d *Dispatcher) adapter(model string) (llm.Adapter, error) {
	backend, ok := d.resolver.Backend(model)
	if !ok {
		d.reporter.Report(model, false, 0, 0)
		return nil, &llm.BackendError{
			Kind:  llm.ErrUnavailable,
			Model: model,
			Err:   fmt.Errorf("no backend registered for model"),
		}
	}
	adapter, ok := d.backends[backend]
	if !ok {
		d.reporter.Report(model, false, 0, 0)
		return nil, &llm.BackendError{
			Kind:    llm.ErrUnavailable,
			Backend: backend,
			Model:   model,
			Err:     fmt.Errorf("backend not configured"),
		}
	}
	return adapter, nil
}

// buildRequest applies the sampling policy for the task.
func (d *Dispatcher) buildRequest(call Call) *llm.GenerateRequest {
	maxTokens := d.cfg.MaxTokens
	if call.Task.TaskType == classifier.TaskDocumentAnalysis {
		maxTokens = d.cfg.DocumentMaxTokens
	}

	return &llm.GenerateRequest{
		Model:  call.Model,
		Prompt: call.Prompt,
		System: call.System,
		Options: llm.GenerateOptions{
			Temperature: Temperature(call.Task),
			MaxTokens:   maxTokens,
			TopP:        d.cfg.TopP,
		},
	}
}

// Temperature returns the sampling temperature for a task: 0.7 by default,
// lowered for accuracy, raised for creativity, kept within [0.1, 1.0].
func Temperature(task classifier.TaskProfile) float64 {
	t := 0.7
	if task.RequiresAccuracy {
		t -= 0.4
	}
	if task.RequiresCreativity {
		t += 0.2
	}
	return math.Max(0.1, math.Min(1.0, t))
}

// generate performs one bounded backend call and reports its outcome.
func (d *Dispatcher) generate(ctx context.Context, adapter llm.Adapter, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := adapter.Generate(callCtx, req)
	elapsed := time.Since(start)

	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = &llm.BackendError{
			Kind:    llm.ErrMalformed,
			Backend: adapter.Name(),
			Model:   req.Model,
			Err:     fmt.Errorf("empty response"),
		}
	}

	if err != nil {
		if _, ok := llm.AsBackendError(err); !ok {
			err = &llm.BackendError{Kind: llm.ErrUnavailable, Backend: adapter.Name(), Model: req.Model, Err: err}
		}
		d.reporter.Report(req.Model, false, elapsed, 0)
		log.Warn().
			Err(err).
			Str("model", req.Model).
			Str("backend", adapter.Name()).
			Dur("elapsed", elapsed).
			Msg("dispatch failed")
		return nil, err
	}

	tokens := resp.CompletionTokens
	if tokens <= 0 {
		tokens = EstimateTokens(resp.Text)
	}
	d.reporter.Report(req.Model, true, elapsed, tokens)

	log.Debug().
		Str("model", req.Model).
		Str("backend", adapter.Name()).
		Dur("elapsed", elapsed).
		Int("tokens", tokens).
		Msg("dispatch complete")

	return resp, nil
}

// EstimateTokens approximates a token count from words.
func EstimateTokens(text string) int {
	return int(math.Round(float64(len(strings.Fields(text))) * 1.3))
}
