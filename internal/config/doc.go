// Package config provides configuration management for the orchestrator.
//
// # Overview
//
// Configuration is loaded with Viper from a YAML file and can be overridden
// by environment variables. A default file is written on first use so the
// full set of knobs is discoverable on disk.
//
// # Configuration File
//
// The default location is ~/.orchestrator/config.yaml. The file mirrors the
// structs in this package: server, backends, models, vision_models, dispatch,
// routing, store and logging.
//
// # Environment Variables
//
// Every key can be overridden with the ORCHESTRATOR_ prefix. Nested keys are
// joined with underscores:
//   - ORCHESTRATOR_SERVER_ADDR=:9090
//   - ORCHESTRATOR_BACKENDS_OLLAMA_ENDPOINT=http://gpu-box:11434
//   - ORCHESTRATOR_LOGGING_LEVEL=debug
//
// Cloud API keys additionally fall back to GROQ_API_KEY and TOGETHER_API_KEY
// when the config file leaves them empty.
//
// # Model Overrides
//
// Entries under models: add new ModelProfiles or replace built-in ones with
// the same name. Each entry names the backend that serves it.
//
//	models:
//	  - name: qwen2.5-coder:32b
//	    backend: ollama
//	    quality_score: 0.88
//	    speed_score: 0.55
//	    context_length: 32768
//	    strengths: [coding, analysis]
//	    specialties: [code, debugging]
package config
