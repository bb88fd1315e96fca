package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for askdeck-engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. Secrets
// (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Engine store (PostgreSQL) for sessions, messages, query history
	Database DatabaseConfig `yaml:"database"`

	// Generation service endpoint
	LLM LLMConfig `yaml:"llm"`

	// Pipeline bounds
	Agent AgentConfig `yaml:"agent"`

	// Datasource connection pooling
	Datasource DatasourceConfig `yaml:"datasource"`
}

// DatabaseConfig holds the engine's own PostgreSQL store configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"askdeck"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"askdeck_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
}

// LLMConfig holds the generation-service endpoint configuration.
// Endpoint must be OpenAI-compatible.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	// TimeoutSeconds bounds each generation call. Retries get a fresh budget.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"30"`
}

// AgentConfig holds the orchestration pipeline bounds. History window size,
// message truncation length, and the retry cap are fixed constants, not
// configuration.
type AgentConfig struct {
	// QueryTimeoutSeconds bounds each query execution against a datasource.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"AGENT_QUERY_TIMEOUT_SECONDS" env-default:"30"`
	// SchemaTTLSeconds is how long a cached schema descriptor stays fresh.
	SchemaTTLSeconds int `yaml:"schema_ttl_seconds" env:"AGENT_SCHEMA_TTL_SECONDS" env-default:"3600"`
	// RowCap bounds the rows any generated query may return.
	RowCap int `yaml:"row_cap" env:"AGENT_ROW_CAP" env-default:"10000"`
	// RateLimitPerMinute is the fixed-window per-user request budget.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" env:"AGENT_RATE_LIMIT_PER_MINUTE" env-default:"10"`
	// MaxCharts bounds how many charts one dashboard may embed.
	MaxCharts int `yaml:"max_charts" env:"AGENT_MAX_CHARTS" env-default:"5"`
}

// DatasourceConfig holds datasource connection management settings.
type DatasourceConfig struct {
	// ConnectionTTLMinutes is how long idle datasource pools are kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. If config.yaml does not exist, configuration comes from the
// environment alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Agent.RowCap <= 0 {
		return fmt.Errorf("row_cap must be positive, got %d", c.Agent.RowCap)
	}
	if c.Agent.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate_limit_per_minute must be positive, got %d", c.Agent.RateLimitPerMinute)
	}
	if c.Agent.MaxCharts < 1 || c.Agent.MaxCharts > 5 {
		return fmt.Errorf("max_charts must be between 1 and 5, got %d", c.Agent.MaxCharts)
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("llm endpoint is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	return nil
}

// GenerationTimeout returns the per-call generation timeout.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// QueryTimeout returns the per-call query execution timeout.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Agent.QueryTimeoutSeconds) * time.Second
}

// SchemaTTL returns the schema cache freshness window.
func (c *Config) SchemaTTL() time.Duration {
	return time.Duration(c.Agent.SchemaTTLSeconds) * time.Second
}

// ConnectionString returns a PostgreSQL connection string for the engine store.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
