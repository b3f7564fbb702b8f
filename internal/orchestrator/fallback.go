package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/dispatch"
	"github.com/LexHelios/Lexworking-sub001/internal/llm"
	"github.com/LexHelios/Lexworking-sub001/internal/registry"
	"github.com/LexHelios/Lexworking-sub001/internal/scorer"
)

// MaxRouteAttempts is the first dispatch plus exactly one re-route.
const MaxRouteAttempts = 2

// Selector ranks candidates and picks one. *scorer.Scorer satisfies it.
type Selector interface {
	Select(task classifier.TaskProfile, candidates []registry.ModelProfile, perf scorer.PerformanceSource) (scorer.Selection, error)
}

// TextDispatcher issues a text generation call. *dispatch.Dispatcher satisfies it.
type TextDispatcher interface {
	Dispatch(ctx context.Context, call dispatch.Call) (*dispatch.Result, error)
}

// RouteInput is one routing request.
type RouteInput struct {
	Task       classifier.TaskProfile
	Candidates []registry.ModelProfile
	Prompt     string
	System     string
}

// RouteResult describes how a request was routed. On failure it still
// carries the attempts made and the models tried.
type RouteResult struct {
	Model     string
	Result    *dispatch.Result
	Selection scorer.Selection
	Attempts  int
	Tried     []string
	Rerouted  bool
}

// FallbackController runs select then dispatch, and after a backend failure
// excludes the failed model and tries exactly once more.
type FallbackController struct {
	selector   Selector
	dispatcher TextDispatcher
	perf       scorer.PerformanceSource
}

// NewFallbackController creates a controller. perf may be nil.
func NewFallbackController(selector Selector, dispatcher TextDispatcher, perf scorer.PerformanceSource) *FallbackController {
	return &FallbackController{selector: selector, dispatcher: dispatcher, perf: perf}
}

// Route dispatches to the best candidate. It returns ErrNoBackendAvailable
// for an empty candidate set and an error wrapping ErrRouteFailed and the
// last backend error when every attempt failed.
func (f *FallbackController) Route(ctx context.Context, in RouteInput) (*RouteResult, error) {
	candidates := append([]registry.ModelProfile(nil), in.Candidates...)
	result := &RouteResult{}

	if len(candidates) == 0 {
		return result, ErrNoBackendAvailable
	}

	var lastErr error
	for attempt := 1; attempt <= MaxRouteAttempts && len(candidates) > 0; attempt++ {
		sel, err := f.selector.Select(in.Task, candidates, f.perf)
		if err != nil {
			lastErr = err
			break
		}

		result.Attempts = attempt
		result.Selection = sel
		result.Tried = append(result.Tried, sel.Model)

		res, err := f.dispatcher.Dispatch(ctx, dispatch.Call{
			Model:  sel.Model,
			Prompt: in.Prompt,
			System: in.System,
			Task:   in.Task,
		})
		if err == nil {
			result.Model = sel.Model
			result.Result = res
			result.Rerouted = attempt > 1
			return result, nil
		}
		lastErr = err

		be, ok := llm.AsBackendError(err)
		if !ok || !be.Retryable() || ctx.Err() != nil {
			break
		}

		candidates = without(candidates, sel.Model)
		if attempt < MaxRouteAttempts && len(candidates) > 0 {
			log.Warn().
				Err(err).
				Str("failed_model", sel.Model).
				Int("remaining", len(candidates)).
				Msg("dispatch failed, rerouting")
		}
	}

	return result, fmt.Errorf("%w: %w", ErrRouteFailed, lastErr)
}

func without(candidates []registry.ModelProfile, model string) []registry.ModelProfile {
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.Name != model {
			out = append(out, c)
		}
	}
	return out
}
