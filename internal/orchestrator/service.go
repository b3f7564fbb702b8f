package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/dispatch"
	"github.com/LexHelios/Lexworking-sub001/internal/logging"
	"github.com/LexHelios/Lexworking-sub001/internal/registry"
	"github.com/LexHelios/Lexworking-sub001/internal/scorer"
	"github.com/LexHelios/Lexworking-sub001/internal/tracker"
)

// DecisionSink receives every routing decision after it is logged in memory.
type DecisionSink interface {
	RecordDecision(ctx context.Context, d tracker.Decision) error
}

// VisionDispatcher issues image-bearing calls. *dispatch.Dispatcher satisfies it.
type VisionDispatcher interface {
	DispatchVision(ctx context.Context, call dispatch.Call, images []string) (*dispatch.Result, error)
}

// DefaultSystemPrompt is prepended to every backend call.
const DefaultSystemPrompt = "You are a helpful assistant. Answer accurately and completely."

// sinkTimeout bounds forwarding a decision once the request is done.
const sinkTimeout = 5 * time.Second

// ServiceConfig wires the required components of a Service.
type ServiceConfig struct {
	Classifier *classifier.Classifier
	Registry   *registry.Registry
	Tracker    *tracker.Tracker
	Decisions  *tracker.DecisionLog
	Scorer     *scorer.Scorer
	Dispatcher *dispatch.Dispatcher
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithMemory injects conversational context into the system prompt.
func WithMemory(m MemoryStore) ServiceOption {
	return func(s *Service) { s.memory = m }
}

// WithDecisionSink forwards each decision, typically to SQLite.
func WithDecisionSink(sink DecisionSink) ServiceOption {
	return func(s *Service) { s.sink = sink }
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) ServiceOption {
	return func(s *Service) { s.systemPrompt = prompt }
}

// WithIDGenerator replaces the UUID request id generator.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithNow replaces the clock used for decision timestamps.
func WithNow(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Service is the orchestration pipeline. It is safe for concurrent use.
type Service struct {
	classifier *classifier.Classifier
	registry   *registry.Registry
	tracker    *tracker.Tracker
	decisions  *tracker.DecisionLog
	fallback   *FallbackController
	vision     *VisionRouter
	dispatcher VisionDispatcher

	memory       MemoryStore
	sink         DecisionSink
	systemPrompt string
	newID        func() string
	now          func() time.Time
}

// NewService assembles a Service. Missing classifier, tracker, decision log
// and scorer are created with defaults; Registry and Dispatcher are required.
func NewService(cfg ServiceConfig, opts ...ServiceOption) (*Service, error) {
	if cfg.Registry == nil {
		return nil, errors.New("orchestrator: registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("orchestrator: dispatcher is required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classifier.New()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = tracker.New()
	}
	if cfg.Decisions == nil {
		cfg.Decisions = tracker.NewDecisionLog(tracker.DefaultDecisionCapacity)
	}
	if cfg.Scorer == nil {
		cfg.Scorer = scorer.New()
	}

	s := &Service{
		classifier:   cfg.Classifier,
		registry:     cfg.Registry,
		tracker:      cfg.Tracker,
		decisions:    cfg.Decisions,
		fallback:     NewFallbackController(cfg.Scorer, cfg.Dispatcher, cfg.Tracker),
		vision:       NewVisionRouter(cfg.Registry.VisionModels()),
		dispatcher:   cfg.Dispatcher,
		systemPrompt: DefaultSystemPrompt,
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Decisions exposes the in-memory decision log.
func (s *Service) Decisions() *tracker.DecisionLog { return s.decisions }

// Tracker exposes the performance tracker.
func (s *Service) Tracker() *tracker.Tracker { return s.tracker }

// Registry exposes the model registry.
func (s *Service) Registry() *registry.Registry { return s.registry }

// Classifier exposes the task classifier.
func (s *Service) Classifier() *classifier.Classifier { return s.classifier }

// ═══════════════════════════════════════════════════════════════════════════════
// PROCESS
// ═══════════════════════════════════════════════════════════════════════════════

// Process runs one request through the pipeline. It never returns nil and
// never fails: backend problems are reported in Response.Error.
func (s *Service) Process(ctx context.Context, req Request) *Response {
	resp := &Response{
		RequestID:        s.newID(),
		ModelUsed:        ModelNone,
		CapabilitiesUsed: []string{},
	}
	logger := log.With().Str("request_id", resp.RequestID).Logger()

	prompt := req.Text
	task := s.classifier.Classify(req.Text)

	if docs := documentText(req.Attachments); docs != "" {
		prompt = withDocuments(req.Text, docs)
		task.TaskType = classifier.TaskDocumentAnalysis
		task.RequiresAccuracy = true
		task.EstimatedTokens += dispatch.EstimateTokens(docs)
		resp.CapabilitiesUsed = append(resp.CapabilitiesUsed, CapabilityDocumentContext)
	}
	resp.TaskAnalysis = task

	system := s.systemPrompt
	if extra := s.memoryContext(ctx, req); extra != "" {
		system = strings.TrimSpace(system + "\n\n" + extra)
		resp.CapabilitiesUsed = append(resp.CapabilitiesUsed, CapabilityMemory)
	}

	available, err := s.registry.Available(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("availability probe failed")
	}
	resp.AvailableModelCount = len(available)

	var lastErr error
	if len(available) == 0 {
		lastErr = ErrNoBackendAvailable
	} else {
		done := false
		if images := visionAttachments(req.Attachments); len(images) > 0 {
			done, prompt = s.processVision(ctx, resp, task, req.Text, system, prompt, images, available)
		}
		if !done {
			lastErr = s.processText(ctx, resp, task, prompt, system, available)
		}
	}

	if lastErr != nil {
		resp.ModelUsed = ModelNone
		resp.Confidence = 0
		resp.Error = lastErr.Error()
		logger.Warn().Err(lastErr).Str("task_type", string(task.TaskType)).Msg("request failed")
	} else if s.memory != nil {
		if rec, ok := s.memory.(MemoryRecorder); ok {
			if err := rec.Remember(ctx, req.UserID, req.SessionID, req.Text, resp.ResponseText); err != nil {
				logger.Warn().Err(err).Msg("memory update failed")
			}
		}
	}

	resp.PerformanceSnapshot = s.tracker.Snapshot()
	s.recordDecision(ctx, resp)

	logger.Debug().
		Str("task_type", string(task.TaskType)).
		Str("model", resp.ModelUsed).
		Float64("confidence", resp.Confidence).
		Int("attempts", resp.Attempts).
		Msg("request processed")

	return resp
}

// processVision tries the vision path. It returns true when a vision model
// answered; otherwise it returns the prompt the text path should use.
func (s *Service) processVision(ctx context.Context, resp *Response, task classifier.TaskProfile, text, system, prompt string, images []FileRecord, available []string) (bool, string) {
	model, ok := s.vision.Select(images[0].ContentType, available)
	if !ok {
		resp.CapabilitiesUsed = append(resp.CapabilitiesUsed, CapabilityVisionUnavailable)
		return false, withImagePlaceholders(prompt, images, "no vision model is available")
	}

	encoded := make([]string, 0, len(images))
	for _, img := range images {
		if img.Data.Base64 != "" {
			encoded = append(encoded, img.Data.Base64)
		}
	}

	res, err := s.dispatcher.DispatchVision(ctx, dispatch.Call{
		Model:  model,
		Prompt: visionPrompt(text),
		System: system,
		Task:   task,
	}, encoded)
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("vision dispatch failed, continuing on text path")
		resp.CapabilitiesUsed = append(resp.CapabilitiesUsed, CapabilityVisionFailed)
		return false, withImagePlaceholders(prompt, images, "image analysis failed")
	}

	resp.ResponseText = res.Text
	resp.ModelUsed = model
	resp.Confidence = VisionConfidence
	resp.Attempts = 1
	resp.CapabilitiesUsed = append(resp.CapabilitiesUsed, CapabilityVisionPrefix+model)
	return true, prompt
}

func (s *Service) processText(ctx context.Context, resp *Response, task classifier.TaskProfile, prompt, system string, available []string) error {
	candidates := s.candidates(available)
	route, err := s.fallback.Route(ctx, RouteInput{
		Task:       task,
		Candidates: candidates,
		Prompt:     prompt,
		System:     system,
	})
	if route != nil {
		resp.Attempts += route.Attempts
	}
	if err != nil {
		return err
	}

	resp.ResponseText = route.Result.Text
	resp.ModelUsed = route.Model
	resp.Confidence = route.Selection.Confidence
	resp.Repaired = route.Result.Repair.Repaired()
	if route.Rerouted {
		resp.CapabilitiesUsed = append(resp.CapabilitiesUsed, CapabilityFallback)
	}
	if resp.Repaired {
		resp.CapabilitiesUsed = append(resp.CapabilitiesUsed, CapabilityRepair)
	}
	return nil
}

// candidates returns the available static profiles in registry order.
func (s *Service) candidates(available []string) []registry.ModelProfile {
	present := make(map[string]bool, len(available))
	for _, name := range available {
		present[name] = true
	}
	var out []registry.ModelProfile
	for _, p := range s.registry.Profiles() {
		if present[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) memoryContext(ctx context.Context, req Request) string {
	if s.memory == nil {
		return ""
	}
	text, err := s.memory.Context(ctx, req.UserID, req.SessionID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("memory context unavailable")
		return ""
	}
	return strings.TrimSpace(text)
}

func (s *Service) recordDecision(ctx context.Context, resp *Response) {
	d := tracker.Decision{
		RequestID:     resp.RequestID,
		Timestamp:     s.now().UTC(),
		TaskType:      resp.TaskAnalysis.TaskType,
		Complexity:    resp.TaskAnalysis.Complexity,
		ModelSelected: resp.ModelUsed,
		Confidence:    resp.Confidence,
		Success:       resp.Succeeded(),
		Attempts:      resp.Attempts,
		Error:         resp.Error,
	}
	s.decisions.Append(d)

	if s.sink == nil {
		return
	}
	sinkCtx, cancel := logging.DetachContextWithTimeout(ctx, sinkTimeout)
	defer cancel()
	if err := s.sink.RecordDecision(sinkCtx, d); err != nil {
		log.Warn().Err(err).Str("request_id", d.RequestID).Msg("failed to persist routing decision")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// PROMPT ASSEMBLY
// ═══════════════════════════════════════════════════════════════════════════════

func documentText(files []FileRecord) string {
	var b strings.Builder
	for _, f := range files {
		if f.RequiresVisionModel || strings.TrimSpace(f.Data.Text) == "" {
			continue
		}
		name := f.Name
		if name == "" {
			name = "attachment"
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", name, strings.TrimSpace(f.Data.Text))
	}
	return strings.TrimSpace(b.String())
}

func visionAttachments(files []FileRecord) []FileRecord {
	var out []FileRecord
	for _, f := range files {
		if f.RequiresVisionModel {
			out = append(out, f)
		}
	}
	return out
}

func withDocuments(question, docs string) string {
	question = strings.TrimSpace(question)
	if question == "" {
		question = "Summarize the attached document."
	}
	return "The user attached the following document content:\n\n" + docs + "\n\nRequest: " + question
}

func withImagePlaceholders(prompt string, images []FileRecord, reason string) string {
	var b strings.Builder
	b.WriteString(prompt)
	for _, img := range images {
		name := img.Name
		if name == "" {
			name = "image"
		}
		fmt.Fprintf(&b, "\n\n[Attached image %q could not be viewed: %s]", name, reason)
	}
	return b.String()
}

func visionPrompt(text string) string {
	if strings.TrimSpace(text) == "" {
		return "Describe this image in detail."
	}
	return text
}

