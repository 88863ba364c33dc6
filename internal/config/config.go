// Package config provides application configuration with multi-source
// priority: environment variables > config file (~/.brio/config.yaml) >
// defaults.
//
// Validation uses sentinel errors so callers can check categories with
// errors.Is(). Sensitive values (database password, auth tokens) are never
// logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidMaxSteps indicates the tool-step bound is out of range.
	ErrInvalidMaxSteps = errors.New("invalid max steps")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidProviderTimeout indicates the MCP connect timeout is invalid.
	ErrInvalidProviderTimeout = errors.New("invalid provider timeout")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const (
	// DefaultMaxSteps caps tool-invocation rounds per turn.
	DefaultMaxSteps = 5

	// DefaultProviderTimeout bounds MCP connect + tool listing per provider.
	DefaultProviderTimeout = 8 * time.Second

	// DefaultAggregationWorkers bounds concurrent provider connections
	// during one aggregation pass.
	DefaultAggregationWorkers = 4
)

// Config stores the application configuration.
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName string `mapstructure:"model_name" json:"model_name"` // default model (e.g. "gemini-2.5-flash")

	// Describer model used for provider auto-description and chat titles.
	// Falls back to ModelName when empty.
	DescriberModel string `mapstructure:"describer_model" json:"describer_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Turn configuration
	MaxSteps int `mapstructure:"max_steps" json:"max_steps"`

	// Provider aggregation configuration
	ProviderTimeoutSec int `mapstructure:"provider_timeout_sec" json:"provider_timeout_sec"`
	AggregationWorkers int `mapstructure:"aggregation_workers" json:"aggregation_workers"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// AuthTokens maps bearer tokens to user UUIDs. Session issuance lives
	// in the surrounding platform; this is the narrow contract the API
	// consumes.
	AuthTokens map[string]string `mapstructure:"auth_tokens" json:"-"` // SENSITIVE

	// Observability: OTLP HTTP endpoint for trace export. Empty disables
	// tracing.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
}

// ProviderTimeout returns the per-provider connect ceiling as a Duration.
func (c *Config) ProviderTimeout() time.Duration {
	if c.ProviderTimeoutSec <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(c.ProviderTimeoutSec) * time.Second
}

// Load loads configuration with priority: env > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".brio")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("BRIO")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("describer_model", "")
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("max_steps", DefaultMaxSteps)
	v.SetDefault("provider_timeout_sec", 8)
	v.SetDefault("aggregation_workers", DefaultAggregationWorkers)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "brio")
	v.SetDefault("postgres_password", "brio_dev_password")
	v.SetDefault("postgres_db_name", "brio")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("server_addr", "127.0.0.1:3500")
	v.SetDefault("service_name", "brio")
}

// Validate validates configuration values. Returns sentinel errors checkable
// with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (expected gemini, ollama, or openai)", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.MaxSteps < 1 || c.MaxSteps > 25 {
		return fmt.Errorf("%w: must be between 1 and 25, got %d", ErrInvalidMaxSteps, c.MaxSteps)
	}

	if c.ProviderTimeoutSec < 1 || c.ProviderTimeoutSec > 120 {
		return fmt.Errorf("%w: must be between 1 and 120 seconds, got %d", ErrInvalidProviderTimeout, c.ProviderTimeoutSec)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	return nil
}
