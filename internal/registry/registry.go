package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Default availability settings.
const (
	DefaultAvailabilityTTL = 30 * time.Second
	DefaultProbeTimeout    = 5 * time.Second
)

// ErrAllProbesFailed is returned by Available when no backend could be listed.
var ErrAllProbesFailed = errors.New("all backend probes failed")

// Lister reports which models a backend currently serves.
// llm.Adapter satisfies it.
type Lister interface {
	Name() string
	ListModels(ctx context.Context) ([]string, error)
}

// ═══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ═══════════════════════════════════════════════════════════════════════════════

// Registry is the static model table plus a cached live-availability probe.
// Profiles are read-only after New; only the availability cache changes.
type Registry struct {
	profiles []ModelProfile
	index    map[string]int
	vision   []VisionModel
	backends map[string]Lister

	ttl          time.Duration
	probeTimeout time.Duration
	now          func() time.Time

	mu    sync.RWMutex
	cache availabilityCache
}

type availabilityCache struct {
	names     []string
	err       error
	refreshed time.Time
	valid     bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithProfiles replaces the built-in profile table.
func WithProfiles(profiles []ModelProfile) Option {
	return func(r *Registry) { r.profiles = profiles }
}

// WithVisionModels replaces the built-in vision registry.
func WithVisionModels(models []VisionModel) Option {
	return func(r *Registry) { r.vision = models }
}

// WithBackend registers a backend whose model list feeds availability.
func WithBackend(l Lister) Option {
	return func(r *Registry) { r.backends[l.Name()] = l }
}

// WithTTL sets how long a probe result is reused.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithProbeTimeout bounds each backend's ListModels call.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.probeTimeout = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New builds a registry. Without options it holds the built-in profiles and
// vision models and no backends, so nothing is available.
func New(opts ...Option) *Registry {
	r := &Registry{
		profiles:     DefaultProfiles(),
		vision:       DefaultVisionModels(),
		backends:     make(map[string]Lister),
		ttl:          DefaultAvailabilityTTL,
		probeTimeout: DefaultProbeTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.index = make(map[string]int, len(r.profiles))
	for i, p := range r.profiles {
		r.index[p.Name] = i
	}
	return r
}

// Profile returns the static profile for name.
func (r *Registry) Profile(name string) (ModelProfile, error) {
	i, ok := r.index[name]
	if !ok {
		return ModelProfile{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return r.profiles[i], nil
}

// Profiles returns all static profiles in registration order.
func (r *Registry) Profiles() []ModelProfile {
	out := make([]ModelProfile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Names returns static profile names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.profiles))
	for i, p := range r.profiles {
		names[i] = p.Name
	}
	return names
}

// VisionModels returns the vision registry in priority order.
func (r *Registry) VisionModels() []VisionModel {
	out := make([]VisionModel, len(r.vision))
	copy(out, r.vision)
	return out
}

// Backend returns the backend name serving model, checking static profiles
// first and then the vision registry.
func (r *Registry) Backend(model string) (string, bool) {
	if i, ok := r.index[model]; ok {
		return r.profiles[i].Backend, true
	}
	for _, v := range r.vision {
		if v.Name == model {
			return v.Backend, true
		}
	}
	return "", false
}

// IsVision reports whether model is in the vision registry.
func (r *Registry) IsVision(model string) bool {
	for _, v := range r.vision {
		if v.Name == model {
			return true
		}
	}
	return false
}

// ═══════════════════════════════════════════════════════════════════════════════
// AVAILABILITY
// ═══════════════════════════════════════════════════════════════════════════════

// Available returns the registered models (static then vision, registration
// order) that a live backend currently serves. The result is cached for the
// TTL. An empty result is legal. ErrAllProbesFailed is returned together with
// an empty list only when every backend probe failed.
func (r *Registry) Available(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	if r.cache.valid && r.now().Sub(r.cache.refreshed) < r.ttl {
		names := append([]string(nil), r.cache.names...)
		err := r.cache.err
		r.mu.RUnlock()
		return names, err
	}
	r.mu.RUnlock()

	return r.Refresh(ctx)
}

// Refresh probes every backend now and replaces the cache.
func (r *Registry) Refresh(ctx context.Context) ([]string, error) {
	installed, err := r.probe(ctx)
	names := r.intersect(installed)

	r.mu.Lock()
	r.cache = availabilityCache{
		names:     names,
		err:       err,
		refreshed: r.now(),
		valid:     true,
	}
	r.mu.Unlock()

	log.Debug().
		Int("available", len(names)).
		Int("backends", len(r.backends)).
		Msg("availability refreshed")

	return append([]string(nil), names...), err
}

// Invalidate drops the cached probe result.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.cache = availabilityCache{}
	r.mu.Unlock()
}

// probe lists models on every backend in parallel. A failing backend is
// logged and skipped so it never hides the others.
func (r *Registry) probe(ctx context.Context) (map[string]map[string]bool, error) {
	type result struct {
		backend string
		models  []string
		err     error
	}

	results := make(chan result, len(r.backends))
	var wg sync.WaitGroup
	for name, l := range r.backends {
		wg.Add(1)
		go func(name string, l Lister) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
			defer cancel()
			models, err := l.ListModels(pctx)
			results <- result{backend: name, models: models, err: err}
		}(name, l)
	}
	wg.Wait()
	close(results)

	installed := make(map[string]map[string]bool, len(r.backends))
	var failed []string
	for res := range results {
		if res.err != nil {
			log.Warn().Err(res.err).Str("backend", res.backend).Msg("availability probe failed")
			failed = append(failed, res.backend)
			continue
		}
		set := make(map[string]bool, len(res.models))
		for _, m := range res.models {
			set[m] = true
		}
		installed[res.backend] = set
	}

	if len(r.backends) > 0 && len(failed) == len(r.backends) {
		sort.Strings(failed)
		return installed, fmt.Errorf("%w: %s", ErrAllProbesFailed, strings.Join(failed, ", "))
	}
	return installed, nil
}

func (r *Registry) intersect(installed map[string]map[string]bool) []string {
	names := []string{}
	seen := make(map[string]bool)

	add := func(name, backend string) {
		if seen[name] {
			return
		}
		set, ok := installed[backend]
		if !ok {
			return
		}
		if set[name] || (!strings.Contains(name, ":") && set[name+":latest"]) {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, p := range r.profiles {
		add(p.Name, p.Backend)
	}
	for _, v := range r.vision {
		add(v.Name, v.Backend)
	}
	return names
}
