package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	LLM          LLMConfig          `yaml:"llm"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Logger       LoggerConfig       `yaml:"logger"`
	Tracer       TracerConfig       `yaml:"tracer"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        FailoverConfig       `yaml:"failover"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // "anthropic", "openai", "bedrock"
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// FailoverConfig holds provider failover settings.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// OrchestratorConfig holds settings for the selection engine and planner.
type OrchestratorConfig struct {
	Model      string        `yaml:"model"`       // model override for orchestration calls
	MaxRetries int           `yaml:"max_retries"` // transport-level retries per structured call
	MaxTokens  int           `yaml:"max_tokens"`
	Timeout    time.Duration `yaml:"timeout"`
}

// CatalogConfig selects and configures the agent catalog backing store.
type CatalogConfig struct {
	Source string             `yaml:"source"` // "static", "sqlite", "http"
	Agents []AgentEntryConfig `yaml:"agents,omitempty"`
	SQLite SQLiteConfig       `yaml:"sqlite"`
	HTTP   HTTPCatalogConfig  `yaml:"http"`
	Sync   SyncConfig         `yaml:"sync"`
}

// AgentEntryConfig defines a single agent in a static catalog.
type AgentEntryConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	SystemPrompt string   `yaml:"system_prompt"`
	Tools        []string `yaml:"tools,omitempty"`
	Slug         string   `yaml:"slug"`
	Public       bool     `yaml:"public"`
}

// SQLiteConfig holds the local catalog store settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// HTTPCatalogConfig holds the remote catalog backing store settings.
type HTTPCatalogConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// SyncConfig schedules mirroring of the remote catalog into the local store.
type SyncConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron expression, e.g. "@every 5m"
}

// GatewayConfig holds the HTTP gateway settings.
type GatewayConfig struct {
	Addr          string  `yaml:"addr"`
	RatePerSecond float64 `yaml:"rate_per_second"` // per-client request rate; 0 disables limiting
	RateBurst     int     `yaml:"rate_burst"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	RingSize int    `yaml:"ring_size"` // in-memory debug buffer capacity; 0 disables
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config populated with defaults.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries: 2,
			MaxTokens:  4096,
			Timeout:    30 * time.Second,
		},
		Catalog: CatalogConfig{
			Source: "static",
			SQLite: SQLiteConfig{Path: "./data/catalog.db"},
			HTTP:   HTTPCatalogConfig{Timeout: 10 * time.Second},
			Sync:   SyncConfig{Schedule: "@every 5m"},
		},
		Gateway: GatewayConfig{
			Addr:          ":3333",
			RatePerSecond: 5,
			RateBurst:     10,
		},
		Logger: LoggerConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			RingSize: 1000,
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error; defaults plus env overrides are used instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)
	expandSecrets(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps MAESTRO_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAESTRO_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("MAESTRO_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("MAESTRO_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("MAESTRO_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("MAESTRO_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("MAESTRO_CATALOG_SOURCE"); v != "" {
		cfg.Catalog.Source = v
	}
}

// expandSecrets resolves ${VAR} references in credential fields so API keys
// can live in the environment rather than on disk.
func expandSecrets(cfg *Config) {
	for i := range cfg.LLM.Providers {
		cfg.LLM.Providers[i].APIKey = os.ExpandEnv(cfg.LLM.Providers[i].APIKey)
	}
	cfg.Catalog.HTTP.APIKey = os.ExpandEnv(cfg.Catalog.HTTP.APIKey)
}
