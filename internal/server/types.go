// Package server exposes the orchestrator over HTTP and WebSocket.
package server

import (
	"time"

	"github.com/LexHelios/Lexworking-sub001/internal/store"
	"github.com/LexHelios/Lexworking-sub001/internal/tracker"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════════

// Config holds HTTP server configuration.
type Config struct {
	// Addr is the listen address (default: 127.0.0.1:8085)
	Addr string

	// APIKeyHash is a bcrypt hash of the bearer key. Empty disables auth.
	APIKeyHash string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps POST bodies; attachments arrive base64 encoded.
	MaxBodyBytes int64
}

// DefaultConfig returns defaults for a local deployment.
func DefaultConfig() *Config {
	return &Config{
		Addr:            "127.0.0.1:8085",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    330 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    32 << 20,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// API RESPONSE TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
}

// ModelInfo describes one registered model.
type ModelInfo struct {
	Name      string   `json:"name"`
	Backend   string   `json:"backend"`
	Available bool     `json:"available"`
	Vision    bool     `json:"vision"`
	SizeGB    float64  `json:"size_gb,omitempty"`
	Strengths []string `json:"strengths,omitempty"`
	Supports  []string `json:"supports,omitempty"`
}

// ModelsResponse is returned by GET /api/v1/models.
type ModelsResponse struct {
	Models         []ModelInfo `json:"models"`
	AvailableCount int         `json:"available_count"`
	ProbeError     string      `json:"probe_error,omitempty"`
}

// PerformanceResponse is returned by GET /api/v1/performance.
type PerformanceResponse struct {
	Timestamp string                   `json:"timestamp"`
	Models    map[string]tracker.Stats `json:"models"`
	Persisted []store.ModelOutcome     `json:"persisted,omitempty"`
}

// DecisionsResponse is returned by GET /api/v1/decisions.
type DecisionsResponse struct {
	Decisions []tracker.Decision `json:"decisions"`
	Total     int64              `json:"total"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// API ERROR TYPES
// ═══════════════════════════════════════════════════════════════════════════════

// APIError represents a structured API error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Common API errors.
var (
	ErrBadRequest   = &APIError{Code: 400, Message: "bad request"}
	ErrUnauthorized = &APIError{Code: 401, Message: "unauthorized"}
	ErrInternal     = &APIError{Code: 500, Message: "internal server error"}
)

// WithDetails returns a copy of the error with details.
func (e *APIError) WithDetails(details string) *APIError {
	return &APIError{Code: e.Code, Message: e.Message, Details: details}
}
