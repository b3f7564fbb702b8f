package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/orchestrator"
	"github.com/LexHelios/Lexworking-sub001/internal/tracker"
)

// handleHealth reports liveness.
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt: s.startedAt.UTC(),
	})
}

// POST /api/v1/process
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, &APIError{Code: http.StatusRequestEntityTooLarge, Message: "request too large"})
			return
		}
		writeError(w, ErrBadRequest.WithDetails(err.Error()))
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, ErrBadRequest.WithDetails(err.Error()))
		return
	}

	resp := s.svc.Process(r.Context(), req)

	status := http.StatusOK
	if !resp.Succeeded() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// GET /api/v1/models
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	reg := s.svc.Registry()

	available, err := reg.Available(r.Context())
	present := make(map[string]bool, len(available))
	for _, name := range available {
		present[name] = true
	}

	resp := ModelsResponse{Models: []ModelInfo{}, AvailableCount: len(available)}
	if err != nil {
		resp.ProbeError = err.Error()
	}
	for _, p := range reg.Profiles() {
		resp.Models = append(resp.Models, ModelInfo{
			Name:      p.Name,
			Backend:   p.Backend,
			Available: present[p.Name],
			SizeGB:    p.SizeGB,
			Strengths: p.Strengths,
		})
	}
	for _, v := range reg.VisionModels() {
		resp.Models = append(resp.Models, ModelInfo{
			Name:      v.Name,
			Backend:   v.Backend,
			Available: present[v.Name],
			Vision:    true,
			Supports:  v.Supports,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/performance
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	resp := PerformanceResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Models:    s.svc.Tracker().Snapshot(),
	}
	if s.audit != nil {
		persisted, err := s.audit.ModelSummary(r.Context())
		if err != nil {
			log.Warn().Err(err).Msg("failed to read persisted outcomes")
		} else {
			resp.Persisted = persisted
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/decisions?limit=n
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, ErrBadRequest.WithDetails("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	dl := s.svc.Decisions()
	decisions := dl.Recent(limit)
	if decisions == nil {
		decisions = []tracker.Decision{}
	}
	writeJSON(w, http.StatusOK, DecisionsResponse{Decisions: decisions, Total: dl.Total()})
}

func validateRequest(req orchestrator.Request) error {
	if strings.TrimSpace(req.Text) == "" && len(req.Attachments) == 0 {
		return errors.New("text or attachments required")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, e *APIError) {
	writeJSON(w, e.Code, e)
}
