// Package registry holds the static capability profiles of every model the
// orchestrator can route to, the vision-capable subset, and a cached live
// probe of which of them are actually installed right now.
package registry

import (
	"errors"

	"github.com/LexHelios/Lexworking-sub001/internal/config"
)

// ErrModelNotFound is returned by Profile for unknown model names.
var ErrModelNotFound = errors.New("model not found")

// ModelProfile is the static capability metadata of one model.
// Profiles are created when the registry is built and never mutated.
type ModelProfile struct {
	Name          string   `json:"name"`
	Backend       string   `json:"backend"`
	SizeGB        float64  `json:"size_gb"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	SpeedScore    float64  `json:"speed_score"`
	QualityScore  float64  `json:"quality_score"`
	Uncensored    bool     `json:"uncensored"`
	ContextLength int      `json:"context_length"`
	Specialties   []string `json:"specialties"`
}

// HasStrength reports whether s is listed in Strengths.
func (p ModelProfile) HasStrength(s string) bool {
	return contains(p.Strengths, s)
}

// HasSpecialty reports whether s is listed in Specialties.
func (p ModelProfile) HasSpecialty(s string) bool {
	return contains(p.Specialties, s)
}

// VisionModel is an image-capable model. Supports lists the attachment
// content types it accepts.
type VisionModel struct {
	Name     string   `json:"name"`
	Backend  string   `json:"backend"`
	Supports []string `json:"supports"`
}

// Accepts reports whether the model declares support for contentType.
func (v VisionModel) Accepts(contentType string) bool {
	return contains(v.Supports, contentType)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ═══════════════════════════════════════════════════════════════════════════════
// BUILT-IN PROFILES
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultProfiles returns the built-in model table in registration order.
func DefaultProfiles() []ModelProfile {
	return []ModelProfile{
		// Local (Ollama)
		{
			Name: "llama3.1:8b", Backend: config.BackendOllama, SizeGB: 4.7,
			Strengths:  []string{"general", "quick", "conversation"},
			Weaknesses: []string{"complex reasoning"},
			SpeedScore: 0.85, QualityScore: 0.70, ContextLength: 131072,
			Specialties: []string{"chat", "summary"},
		},
		{
			Name: "mistral:7b", Backend: config.BackendOllama, SizeGB: 4.1,
			Strengths:  []string{"quick", "general"},
			Weaknesses: []string{"coding", "math"},
			SpeedScore: 0.90, QualityScore: 0.65, ContextLength: 32768,
			Specialties: []string{"chat"},
		},
		{
			Name: "qwen2.5-coder:7b", Backend: config.BackendOllama, SizeGB: 4.7,
			Strengths:  []string{"coding", "debugging"},
			Weaknesses: []string{"creative"},
			SpeedScore: 0.80, QualityScore: 0.78, ContextLength: 32768,
			Specialties: []string{"code", "debug", "refactor"},
		},
		{
			Name: "deepseek-r1:14b", Backend: config.BackendOllama, SizeGB: 9.0,
			Strengths:  []string{"math", "reasoning"},
			Weaknesses: []string{"speed"},
			SpeedScore: 0.55, QualityScore: 0.85, ContextLength: 65536,
			Specialties: []string{"math", "proof", "solve"},
		},
		{
			Name: "dolphin-mixtral:8x7b", Backend: config.BackendOllama, SizeGB: 26,
			Strengths:  []string{"creative", "roleplay"},
			Weaknesses: []string{"math"},
			SpeedScore: 0.50, QualityScore: 0.78, Uncensored: true, ContextLength: 32768,
			Specialties: []string{"creative", "story", "roleplay"},
		},
		{
			Name: "llama3.1:70b", Backend: config.BackendOllama, SizeGB: 40,
			Strengths:  []string{"analysis", "reasoning", "creative"},
			Weaknesses: []string{"speed"},
			SpeedScore: 0.30, QualityScore: 0.90, ContextLength: 131072,
			Specialties: []string{"analysis", "research"},
		},
		{
			Name: "qwen2.5:72b", Backend: config.BackendOllama, SizeGB: 47,
			Strengths:  []string{"analysis", "reasoning", "coding", "document"},
			Weaknesses: []string{"speed"},
			SpeedScore: 0.30, QualityScore: 0.92, ContextLength: 131072,
			Specialties: []string{"document", "summarize", "analysis"},
		},

		// Groq
		{
			Name: "llama-3.1-8b-instant", Backend: config.BackendGroq,
			Strengths:  []string{"quick", "general"},
			Weaknesses: []string{"complex reasoning"},
			SpeedScore: 0.98, QualityScore: 0.68, ContextLength: 131072,
			Specialties: []string{"chat"},
		},
		{
			Name: "llama-3.3-70b-versatile", Backend: config.BackendGroq,
			Strengths:  []string{"analysis", "coding", "general"},
			SpeedScore: 0.95, QualityScore: 0.88, ContextLength: 131072,
			Specialties: []string{"analysis", "code"},
		},

		// Together
		{
			Name: "meta-llama/Llama-3.3-70B-Instruct-Turbo", Backend: config.BackendTogether,
			Strengths:  []string{"analysis", "document", "creative"},
			SpeedScore: 0.75, QualityScore: 0.88, ContextLength: 131072,
			Specialties: []string{"document", "summary", "analysis"},
		},
		{
			Name: "Qwen/Qwen2.5-Coder-32B-Instruct", Backend: config.BackendTogether,
			Strengths:  []string{"coding"},
			Weaknesses: []string{"creative"},
			SpeedScore: 0.70, QualityScore: 0.86, ContextLength: 32768,
			Specialties: []string{"code", "refactor", "debug"},
		},
	}
}

// DefaultVisionModels returns the built-in vision registry in priority order.
func DefaultVisionModels() []VisionModel {
	return []VisionModel{
		{Name: "llama3.2-vision:11b", Backend: config.BackendOllama, Supports: []string{"image", "screenshot", "chart"}},
		{Name: "llava:13b", Backend: config.BackendOllama, Supports: []string{"image", "screenshot"}},
		{Name: "moondream", Backend: config.BackendOllama, Supports: []string{"image"}},
	}
}

// ProfilesFromConfig merges configured models into base. An entry whose name
// already exists replaces that profile in place; new entries are appended.
func ProfilesFromConfig(base []ModelProfile, models []config.ModelConfig) []ModelProfile {
	out := make([]ModelProfile, len(base))
	copy(out, base)

	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Name] = i
	}

	for _, m := range models {
		p := ModelProfile{
			Name:          m.Name,
			Backend:       m.Backend,
			SizeGB:        m.SizeGB,
			Strengths:     m.Strengths,
			Weaknesses:    m.Weaknesses,
			SpeedScore:    m.SpeedScore,
			QualityScore:  m.QualityScore,
			Uncensored:    m.Uncensored,
			ContextLength: m.ContextLength,
			Specialties:   m.Specialties,
		}
		if i, ok := index[m.Name]; ok {
			out[i] = p
			continue
		}
		index[m.Name] = len(out)
		out = append(out, p)
	}
	return out
}

// VisionModelsFromConfig converts configured vision models. An empty list
// yields the built-in vision registry.
func VisionModelsFromConfig(models []config.VisionModelConfig) []VisionModel {
	if len(models) == 0 {
		return DefaultVisionModels()
	}
	out := make([]VisionModel, 0, len(models))
	for _, m := range models {
		supports := m.Supports
		if len(supports) == 0 {
			supports = []string{"image"}
		}
		out = append(out, VisionModel{Name: m.Name, Backend: m.Backend, Supports: supports})
	}
	return out
}
