package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Backend names understood by the registry.
const (
	BackendOllama   = "ollama"
	BackendGroq     = "groq"
	BackendTogether = "together"
)

// Config holds all configuration for the orchestrator.
// It is loaded from ~/.orchestrator/config.yaml and can be overridden by environment variables.
type Config struct {
	Server       ServerConfig        `mapstructure:"server" yaml:"server"`
	Backends     BackendsConfig      `mapstructure:"backends" yaml:"backends"`
	Models       []ModelConfig       `mapstructure:"models" yaml:"models"`
	VisionModels []VisionModelConfig `mapstructure:"vision_models" yaml:"vision_models"`
	Dispatch     DispatchConfig      `mapstructure:"dispatch" yaml:"dispatch"`
	Routing      RoutingConfig       `mapstructure:"routing" yaml:"routing"`
	Store        StoreConfig         `mapstructure:"store" yaml:"store"`
	Logging      LoggingConfig       `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP/WebSocket transport.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`

	// APIKeyHash is a bcrypt hash of the accepted bearer key. Empty disables auth.
	APIKeyHash string `mapstructure:"api_key_hash" yaml:"api_key_hash"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// A2A mounts the agent-to-agent JSON-RPC endpoint and agent card.
	A2A bool `mapstructure:"a2a" yaml:"a2a"`

	// PublicURL is the base URL advertised in the agent card. Defaults to
	// http://<addr>.
	PublicURL string `mapstructure:"public_url" yaml:"public_url"`
}

// BackendsConfig groups the generation backends.
type BackendsConfig struct {
	Ollama   BackendConfig `mapstructure:"ollama" yaml:"ollama"`
	Groq     BackendConfig `mapstructure:"groq" yaml:"groq"`
	Together BackendConfig `mapstructure:"together" yaml:"together"`
}

// BackendConfig configures one backend endpoint.
type BackendConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`

	// MaxConcurrent bounds in-flight generate calls. 0 means unlimited.
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// ModelConfig adds or overrides a model profile.
type ModelConfig struct {
	Name          string   `mapstructure:"name" yaml:"name"`
	Backend       string   `mapstructure:"backend" yaml:"backend"`
	SizeGB        float64  `mapstructure:"size_gb" yaml:"size_gb"`
	Strengths     []string `mapstructure:"strengths" yaml:"strengths"`
	Weaknesses    []string `mapstructure:"weaknesses" yaml:"weaknesses"`
	SpeedScore    float64  `mapstructure:"speed_score" yaml:"speed_score"`
	QualityScore  float64  `mapstructure:"quality_score" yaml:"quality_score"`
	Uncensored    bool     `mapstructure:"uncensored" yaml:"uncensored"`
	ContextLength int      `mapstructure:"context_length" yaml:"context_length"`
	Specialties   []string `mapstructure:"specialties" yaml:"specialties"`
}

// VisionModelConfig declares an image-capable model. When the list is empty
// the built-in vision registry is used.
type VisionModelConfig struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Backend  string   `mapstructure:"backend" yaml:"backend"`
	Supports []string `mapstructure:"supports" yaml:"supports"`
}

// DispatchConfig shapes generate calls and the incomplete-response repair.
type DispatchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	DocumentMaxTokens int           `mapstructure:"document_max_tokens" yaml:"document_max_tokens"`
	RepairEnabled     bool          `mapstructure:"repair_enabled" yaml:"repair_enabled"`
	RepairMinChars    int           `mapstructure:"repair_min_chars" yaml:"repair_min_chars"`
	RepairMaxTokens   int           `mapstructure:"repair_max_tokens" yaml:"repair_max_tokens"`
}

// RoutingConfig tunes candidate selection.
type RoutingConfig struct {
	// DocumentPreferred is checked in order for document_analysis tasks.
	DocumentPreferred []string      `mapstructure:"document_preferred" yaml:"document_preferred"`
	AvailabilityTTL   time.Duration `mapstructure:"availability_ttl" yaml:"availability_ttl"`
	DecisionLogSize   int           `mapstructure:"decision_log_size" yaml:"decision_log_size"`
}

// StoreConfig configures the SQLite audit sink.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	File    string `mapstructure:"file" yaml:"file"`
	Console bool   `mapstructure:"console" yaml:"console"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".orchestrator")

	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8085",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 330 * time.Second, // must outlive a full dispatch + repair
		},
		Backends: BackendsConfig{
			Ollama: BackendConfig{
				Enabled:       true,
				Endpoint:      "http://127.0.0.1:11434",
				MaxConcurrent: 2,
			},
			Groq: BackendConfig{
				Enabled:       true,
				Endpoint:      "https://api.groq.com/openai/v1",
				MaxConcurrent: 4,
			},
			Together: BackendConfig{
				Enabled:       true,
				Endpoint:      "https://api.together.xyz/v1",
				MaxConcurrent: 4,
			},
		},
		Dispatch: DispatchConfig{
			Timeout:           300 * time.Second,
			MaxTokens:         2048,
			DocumentMaxTokens: 4096,
			RepairEnabled:     true,
			RepairMinChars:    500,
			RepairMaxTokens:   8192,
		},
		Routing: RoutingConfig{
			DocumentPreferred: []string{
				"qwen2.5:72b",
				"llama-3.3-70b-versatile",
				"meta-llama/Llama-3.3-70B-Instruct-Turbo",
				"llama3.1:70b",
			},
			AvailabilityTTL: 30 * time.Second,
			DecisionLogSize: 100,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "decisions.db"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    filepath.Join(dataDir, "logs", "orchestrator.log"),
			Console: true,
		},
	}
}

// Load reads configuration from the default location (~/.orchestrator/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadFromPath(filepath.Join(homeDir, ".orchestrator", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	// Example: ORCHESTRATOR_BACKENDS_GROQ_API_KEY
	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Path = expandPath(cfg.Store.Path)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers every default with viper so keys missing from a
// partial file keep their default and can still be set from the environment.
func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.api_key_hash", defaults.Server.APIKeyHash)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.a2a", defaults.Server.A2A)
	v.SetDefault("server.public_url", defaults.Server.PublicURL)

	for name, b := range map[string]BackendConfig{
		BackendOllama:   defaults.Backends.Ollama,
		BackendGroq:     defaults.Backends.Groq,
		BackendTogether: defaults.Backends.Together,
	} {
		prefix := "backends." + name + "."
		v.SetDefault(prefix+"enabled", b.Enabled)
		v.SetDefault(prefix+"endpoint", b.Endpoint)
		v.SetDefault(prefix+"api_key", b.APIKey)
		v.SetDefault(prefix+"max_concurrent", b.MaxConcurrent)
	}

	v.SetDefault("dispatch.timeout", defaults.Dispatch.Timeout)
	v.SetDefault("dispatch.max_tokens", defaults.Dispatch.MaxTokens)
	v.SetDefault("dispatch.document_max_tokens", defaults.Dispatch.DocumentMaxTokens)
	v.SetDefault("dispatch.repair_enabled", defaults.Dispatch.RepairEnabled)
	v.SetDefault("dispatch.repair_min_chars", defaults.Dispatch.RepairMinChars)
	v.SetDefault("dispatch.repair_max_tokens", defaults.Dispatch.RepairMaxTokens)

	v.SetDefault("routing.document_preferred", defaults.Routing.DocumentPreferred)
	v.SetDefault("routing.availability_ttl", defaults.Routing.AvailabilityTTL)
	v.SetDefault("routing.decision_log_size", defaults.Routing.DecisionLogSize)

	v.SetDefault("store.enabled", defaults.Store.Enabled)
	v.SetDefault("store.path", defaults.Store.Path)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.console", defaults.Logging.Console)
}

// applyDefaults fills zero values left by partial config files and resolves
// API keys from the providers' conventional environment variables.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = defaults.Server.WriteTimeout
	}

	if c.Backends.Ollama.Endpoint == "" {
		c.Backends.Ollama.Endpoint = defaults.Backends.Ollama.Endpoint
	}
	if c.Backends.Groq.Endpoint == "" {
		c.Backends.Groq.Endpoint = defaults.Backends.Groq.Endpoint
	}
	if c.Backends.Together.Endpoint == "" {
		c.Backends.Together.Endpoint = defaults.Backends.Together.Endpoint
	}
	if c.Backends.Groq.APIKey == "" {
		c.Backends.Groq.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if c.Backends.Together.APIKey == "" {
		c.Backends.Together.APIKey = os.Getenv("TOGETHER_API_KEY")
	}

	if c.Dispatch.Timeout == 0 {
		c.Dispatch.Timeout = defaults.Dispatch.Timeout
	}
	if c.Dispatch.MaxTokens == 0 {
		c.Dispatch.MaxTokens = defaults.Dispatch.MaxTokens
	}
	if c.Dispatch.DocumentMaxTokens == 0 {
		c.Dispatch.DocumentMaxTokens = defaults.Dispatch.DocumentMaxTokens
	}
	if c.Dispatch.RepairMinChars == 0 {
		c.Dispatch.RepairMinChars = defaults.Dispatch.RepairMinChars
	}
	if c.Dispatch.RepairMaxTokens == 0 {
		c.Dispatch.RepairMaxTokens = defaults.Dispatch.RepairMaxTokens
	}

	if len(c.Routing.DocumentPreferred) == 0 {
		c.Routing.DocumentPreferred = defaults.Routing.DocumentPreferred
	}
	if c.Routing.AvailabilityTTL == 0 {
		c.Routing.AvailabilityTTL = defaults.Routing.AvailabilityTTL
	}
	if c.Routing.DecisionLogSize == 0 {
		c.Routing.DecisionLogSize = defaults.Routing.DecisionLogSize
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	return c.SaveToPath(filepath.Join(homeDir, ".orchestrator", "config.yaml"))
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	for name, b := range map[string]BackendConfig{
		BackendOllama:   c.Backends.Ollama,
		BackendGroq:     c.Backends.Groq,
		BackendTogether: c.Backends.Together,
	} {
		if b.MaxConcurrent < 0 {
			return fmt.Errorf("backends.%s.max_concurrent cannot be negative", name)
		}
		if b.Enabled && b.Endpoint == "" {
			return fmt.Errorf("backends.%s.endpoint cannot be empty when enabled", name)
		}
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d].name cannot be empty", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("model '%s' is declared twice", m.Name)
		}
		seen[m.Name] = true
		if !validBackend(m.Backend) {
			return fmt.Errorf("model '%s' has unknown backend '%s'", m.Name, m.Backend)
		}
		if m.SpeedScore < 0 || m.SpeedScore > 1 || m.QualityScore < 0 || m.QualityScore > 1 {
			return fmt.Errorf("model '%s' scores must be between 0 and 1", m.Name)
		}
		if m.ContextLength <= 0 {
			return fmt.Errorf("model '%s' context_length must be positive", m.Name)
		}
	}

	for i, vm := range c.VisionModels {
		if vm.Name == "" {
			return fmt.Errorf("vision_models[%d].name cannot be empty", i)
		}
		if !validBackend(vm.Backend) {
			return fmt.Errorf("vision model '%s' has unknown backend '%s'", vm.Name, vm.Backend)
		}
	}

	if c.Dispatch.Timeout <= 0 {
		return fmt.Errorf("dispatch.timeout must be positive")
	}
	if c.Dispatch.MaxTokens <= 0 || c.Dispatch.DocumentMaxTokens <= 0 {
		return fmt.Errorf("dispatch token budgets must be positive")
	}

	if c.Routing.DecisionLogSize <= 0 {
		return fmt.Errorf("routing.decision_log_size must be positive")
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path cannot be empty when the store is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

func validBackend(name string) bool {
	switch name {
	case BackendOllama, BackendGroq, BackendTogether:
		return true
	}
	return false
}

// writeConfigFile marshals cfg with yaml.v3 so the yaml struct tags are honored.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
