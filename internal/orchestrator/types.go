// Package orchestrator ties classification, scoring, dispatch and fallback
// into one request pipeline. Service is the only entry point transports use;
// it never returns an error and records exactly one routing decision per call.
package orchestrator

import (
	"errors"

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/tracker"
)

var (
	// ErrNoBackendAvailable means no candidate model is currently served.
	ErrNoBackendAvailable = errors.New("no backend available")

	// ErrRouteFailed wraps the last backend error once fallback is exhausted.
	ErrRouteFailed = errors.New("all routing attempts failed")
)

// ModelNone is reported as the model when no backend produced an answer.
const ModelNone = "none"

// Capability notes reported in Response.CapabilitiesUsed.
const (
	CapabilityDocumentContext   = "document_context"
	CapabilityVisionUnavailable = "vision_unavailable"
	CapabilityVisionFailed      = "vision_failed"
	CapabilityVisionPrefix      = "vision:"
	CapabilityMemory            = "memory"
	CapabilityFallback          = "fallback"
	CapabilityRepair            = "repair"
)

// Attachment content types produced by a FileProcessor.
const (
	ContentImage    = "image"
	ContentText     = "text"
	ContentDocument = "document"
)

// FileRecord is a processed attachment. The orchestrator consumes it as-is
// and never extracts content itself.
type FileRecord struct {
	Name                string   `json:"name"`
	MimeType            string   `json:"mime_type"`
	ContentType         string   `json:"content_type"`
	RequiresVisionModel bool     `json:"requires_vision_model"`
	Data                FileData `json:"data"`
}

// FileData carries either an encoded image or extracted text.
type FileData struct {
	Base64 string `json:"base64,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Request is one inbound orchestration call.
type Request struct {
	Text        string       `json:"text"`
	Attachments []FileRecord `json:"attachments,omitempty"`
	UserID      string       `json:"user_id,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
}

// Response is the structured outcome of Process, successful or not.
type Response struct {
	RequestID           string                   `json:"request_id"`
	ResponseText        string                   `json:"response_text"`
	ModelUsed           string                   `json:"model_used"`
	TaskAnalysis        classifier.TaskProfile   `json:"task_analysis"`
	Confidence          float64                  `json:"confidence"`
	PerformanceSnapshot map[string]tracker.Stats `json:"performance_snapshot"`
	AvailableModelCount int                      `json:"available_model_count"`
	CapabilitiesUsed    []string                 `json:"capabilities_used"`
	Attempts            int                      `json:"attempts"`
	Repaired            bool                     `json:"repaired"`
	Error               string                   `json:"error,omitempty"`
}

// Succeeded reports whether a backend produced the response text.
func (r *Response) Succeeded() bool {
	return r.ModelUsed != ModelNone && r.Error == ""
}
