package llm

import (
	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/config"
)

// NewAdaptersFromConfig builds one adapter per enabled backend, each wrapped
// in its concurrency limit. Cloud backends without an API key are skipped.
func NewAdaptersFromConfig(cfg config.BackendsConfig, opts ...AdapterOption) map[string]Adapter {
	adapters := make(map[string]Adapter)

	if cfg.Ollama.Enabled {
		adapters[config.BackendOllama] = WithLimit(NewOllamaAdapter(cfg.Ollama.Endpoint, opts...), cfg.Ollama.MaxConcurrent)
	}

	if cfg.Groq.Enabled {
		if cfg.Groq.APIKey == "" {
			log.Warn().Str("backend", config.BackendGroq).Msg("backend enabled without api key, skipping")
		} else {
			adapters[config.BackendGroq] = WithLimit(NewGroqAdapter(cfg.Groq.Endpoint, cfg.Groq.APIKey, opts...), cfg.Groq.MaxConcurrent)
		}
	}

	if cfg.Together.Enabled {
		if cfg.Together.APIKey == "" {
			log.Warn().Str("backend", config.BackendTogether).Msg("backend enabled without api key, skipping")
		} else {
			adapters[config.BackendTogether] = WithLimit(NewTogetherAdapter(cfg.Together.Endpoint, cfg.Together.APIKey, opts...), cfg.Together.MaxConcurrent)
		}
	}

	return adapters
}
