package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/orchestrator"
	"github.com/LexHelios/Lexworking-sub001/internal/store"
)

// AuditReader reads persisted routing history. *store.Store satisfies it.
type AuditReader interface {
	ModelSummary(ctx context.Context) ([]store.ModelOutcome, error)
}

// Option configures a Server.
type Option func(*Server)

// WithAudit adds persisted aggregates to /api/v1/performance.
func WithAudit(a AuditReader) Option {
	return func(s *Server) { s.audit = a }
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithRoutes registers extra handlers, such as the A2A endpoint, on the
// server mux. They sit behind the same auth middleware.
func WithRoutes(register func(mux *http.ServeMux)) Option {
	return func(s *Server) { s.extra = append(s.extra, register) }
}

// Server serves the orchestration API.
type Server struct {
	cfg      *Config
	svc      *orchestrator.Service
	audit    AuditReader
	auth     *keyVerifier
	upgrader websocket.Upgrader
	version  string
	extra    []func(*http.ServeMux)

	startedAt time.Time
	http      *http.Server
}

// New creates a Server. A nil cfg uses DefaultConfig.
func New(svc *orchestrator.Service, cfg *Config, opts ...Option) *Server {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		auth:    newKeyVerifier(cfg.APIKeyHash),
		version: "dev",
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, authenticated handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.auth.middleware(mux)
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/v1/process", s.handleProcess)
	mux.HandleFunc("GET /api/v1/models", s.handleModels)
	mux.HandleFunc("GET /api/v1/performance", s.handlePerformance)
	mux.HandleFunc("GET /api/v1/decisions", s.handleDecisions)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	for _, register := range s.extra {
		register(mux)
	}
}

// Run listens on cfg.Addr and serves until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Bool("auth", s.auth.enabled()).Msg("orchestrator api listening")
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	log.Info().Msg("shutting down orchestrator api")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
