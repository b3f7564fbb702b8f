package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LexHelios/Lexworking-sub001/internal/config"
)

type fakeLister struct {
	name   string
	models []string
	err    error
	calls  atomic.Int32
}

func (f *fakeLister) Name() string { return f.name }

func (f *fakeLister) ListModels(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	return f.models, f.err
}

func TestProfile(t *testing.T) {
	r := New()

	p, err := r.Profile("llama3.1:8b")
	require.NoError(t, err)
	assert.Equal(t, config.BackendOllama, p.Backend)
	assert.Greater(t, p.ContextLength, 0)

	_, err = r.Profile("gpt-17")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestDefaultProfilesAreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range DefaultProfiles() {
		assert.False(t, seen[p.Name], "duplicate profile %s", p.Name)
		seen[p.Name] = true
		assert.NotEmpty(t, p.Backend)
		assert.Greater(t, p.ContextLength, 0, p.Name)
		assert.True(t, p.SpeedScore >= 0 && p.SpeedScore <= 1, p.Name)
		assert.True(t, p.QualityScore >= 0 && p.QualityScore <= 1, p.Name)
	}
}

func TestProfilesRegistrationOrder(t *testing.T) {
	profiles := []ModelProfile{
		{Name: "b", Backend: "ollama", ContextLength: 1},
		{Name: "a", Backend: "ollama", ContextLength: 1},
	}
	r := New(WithProfiles(profiles))
	assert.Equal(t, []string{"b", "a"}, r.Names())
}

func TestVisionRegistry(t *testing.T) {
	r := New()

	var names []string
	for _, v := range r.VisionModels() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"llama3.2-vision:11b", "llava:13b", "moondream"}, names)
	assert.True(t, r.IsVision("llava:13b"))
	assert.False(t, r.IsVision("llama3.1:8b"))

	backend, ok := r.Backend("moondream")
	assert.True(t, ok)
	assert.Equal(t, config.BackendOllama, backend)

	_, ok = r.Backend("unknown")
	assert.False(t, ok)
}

func TestAvailable_Intersection(t *testing.T) {
	ollama := &fakeLister{name: config.BackendOllama, models: []string{
		"llama3.1:8b", "moondream:latest", "nomic-embed-text:latest", "llava:7b",
	}}
	groq := &fakeLister{name: config.BackendGroq, models: []string{"llama-3.3-70b-versatile", "whisper-large-v3"}}

	r := New(WithBackend(ollama), WithBackend(groq))

	names, err := r.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "llama-3.3-70b-versatile", "moondream"}, names)
}

func TestAvailable_BackendScoped(t *testing.T) {
	// A groq model name reported by the ollama backend is not served by groq.
	ollama := &fakeLister{name: config.BackendOllama, models: []string{"llama-3.3-70b-versatile"}}

	r := New(WithBackend(ollama))
	names, err := r.Available(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestAvailable_Cache(t *testing.T) {
	now := time.Unix(1000, 0)
	ollama := &fakeLister{name: config.BackendOllama, models: []string{"llama3.1:8b"}}
	r := New(WithBackend(ollama), WithTTL(30*time.Second), WithClock(func() time.Time { return now }))

	_, err := r.Available(context.Background())
	require.NoError(t, err)
	_, err = r.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), ollama.calls.Load())

	now = now.Add(31 * time.Second)
	_, err = r.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), ollama.calls.Load())

	r.Invalidate()
	_, err = r.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), ollama.calls.Load())

	_, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), ollama.calls.Load())
}

func TestAvailable_PartialFailure(t *testing.T) {
	ollama := &fakeLister{name: config.BackendOllama, err: errors.New("connection refused")}
	groq := &fakeLister{name: config.BackendGroq, models: []string{"llama-3.1-8b-instant"}}

	r := New(WithBackend(ollama), WithBackend(groq))
	names, err := r.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama-3.1-8b-instant"}, names)
}

func TestAvailable_AllFailed(t *testing.T) {
	ollama := &fakeLister{name: config.BackendOllama, err: errors.New("connection refused")}

	r := New(WithBackend(ollama))
	names, err := r.Available(context.Background())
	assert.ErrorIs(t, err, ErrAllProbesFailed)
	assert.Empty(t, names)
}

func TestAvailable_NoBackends(t *testing.T) {
	names, err := New().Available(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestProfilesFromConfig(t *testing.T) {
	base := []ModelProfile{
		{Name: "a", Backend: "ollama", QualityScore: 0.5, ContextLength: 10},
		{Name: "b", Backend: "ollama", QualityScore: 0.5, ContextLength: 10},
	}
	merged := ProfilesFromConfig(base, []config.ModelConfig{
		{Name: "b", Backend: "groq", QualityScore: 0.9, ContextLength: 20},
		{Name: "c", Backend: "together", QualityScore: 0.7, ContextLength: 30, Uncensored: true},
	})

	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].Name)
	assert.Equal(t, "b", merged[1].Name)
	assert.Equal(t, "groq", merged[1].Backend)
	assert.InDelta(t, 0.9, merged[1].QualityScore, 1e-9)
	assert.Equal(t, "c", merged[2].Name)
	assert.True(t, merged[2].Uncensored)

	assert.Equal(t, "ollama", base[1].Backend, "base slice must not be mutated")
}

func TestVisionModelsFromConfig(t *testing.T) {
	assert.Equal(t, DefaultVisionModels(), VisionModelsFromConfig(nil))

	vm := VisionModelsFromConfig([]config.VisionModelConfig{{Name: "bakllava", Backend: "ollama"}})
	require.Len(t, vm, 1)
	assert.True(t, vm[0].Accepts("image"))
	assert.False(t, vm[0].Accepts("pdf"))
}
