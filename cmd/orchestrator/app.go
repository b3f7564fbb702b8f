package main

import (
	"fmt"

	zlog "github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/config"
	"github.com/LexHelios/Lexworking-sub001/internal/dispatch"
	"github.com/LexHelios/Lexworking-sub001/internal/llm"
	"github.com/LexHelios/Lexworking-sub001/internal/orchestrator"
	"github.com/LexHelios/Lexworking-sub001/internal/registry"
	"github.com/LexHelios/Lexworking-sub001/internal/scorer"
	"github.com/LexHelios/Lexworking-sub001/internal/store"
	"github.com/LexHelios/Lexworking-sub001/internal/tracker"
)

// app holds the wired components for one CLI invocation.
type app struct {
	registry *registry.Registry
	tracker  *tracker.Tracker
	store    *store.Store
	service  *orchestrator.Service
}

// newApp builds the pipeline from cfg. A store that fails to open is logged
// and skipped; routing never depends on it.
func newApp(cfg *config.Config) (*app, error) {
	adapters := llm.NewAdaptersFromConfig(cfg.Backends)
	if len(adapters) == 0 {
		zlog.Warn().Msg("no backends enabled, every request will fail")
	}

	regOpts := []registry.Option{
		registry.WithProfiles(registry.ProfilesFromConfig(registry.DefaultProfiles(), cfg.Models)),
		registry.WithVisionModels(registry.VisionModelsFromConfig(cfg.VisionModels)),
		registry.WithTTL(cfg.Routing.AvailabilityTTL),
	}
	for _, a := range adapters {
		regOpts = append(regOpts, registry.WithBackend(a))
	}
	reg := registry.New(regOpts...)

	a := &app{registry: reg, tracker: tracker.New()}

	var reporter dispatch.Reporter = a.tracker
	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			zlog.Warn().Err(err).Str("path", cfg.Store.Path).Msg("audit store unavailable, continuing without persistence")
		} else {
			a.store = st
			reporter = store.NewTeeReporter(a.tracker, st)
		}
	}

	d := dispatch.New(adapters, reg, reporter, dispatch.Config{
		Timeout:           cfg.Dispatch.Timeout,
		MaxTokens:         cfg.Dispatch.MaxTokens,
		DocumentMaxTokens: cfg.Dispatch.DocumentMaxTokens,
		RepairEnabled:     cfg.Dispatch.RepairEnabled,
		RepairMinChars:    cfg.Dispatch.RepairMinChars,
		RepairMaxTokens:   cfg.Dispatch.RepairMaxTokens,
	})

	opts := []orchestrator.ServiceOption{
		orchestrator.WithMemory(orchestrator.NewSessionMemory(orchestrator.DefaultSessionTurns)),
	}
	if a.store != nil {
		opts = append(opts, orchestrator.WithDecisionSink(a.store))
	}

	svc, err := orchestrator.NewService(orchestrator.ServiceConfig{
		Registry:   reg,
		Tracker:    a.tracker,
		Decisions:  tracker.NewDecisionLog(cfg.Routing.DecisionLogSize),
		Scorer:     scorer.New(scorer.WithDocumentPreferred(cfg.Routing.DocumentPreferred)),
		Dispatcher: d,
	}, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	a.service = svc
	return a, nil
}

// Close releases the audit store.
func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// openStore opens the audit store for read-only commands.
func openStore(cfg *config.Config) (*store.Store, error) {
	if !cfg.Store.Enabled {
		return nil, fmt.Errorf("audit store is disabled (store.enabled: false)")
	}
	return store.Open(cfg.Store.Path)
}
