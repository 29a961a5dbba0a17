// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.showroom/config.yaml, or --config)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, embedder selection
//   - Relational: SQLite sales database path, row cap
//   - Retrieval: top-k defaults and bounds
//   - Router: per-stage timeouts, general-knowledge fallback
//   - Storage: PostgreSQL connection for passages and the audit trail (see storage.go)
//   - Tracing: OTLP trace export (see observability.go)
//
// Security: sensitive data (passwords) are never logged; config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidTopK indicates a top-k bound is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidRowLimit indicates the relational row cap is out of range.
	ErrInvalidRowLimit = errors.New("invalid row limit")

	// ErrInvalidQuestionLen indicates the question length cap is out of range.
	ErrInvalidQuestionLen = errors.New("invalid question length limit")

	// ErrInvalidTimeout indicates a router stage timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidSQLitePath indicates the SQLite database path is invalid.
	ErrInvalidSQLitePath = errors.New("invalid sqlite path")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality (Matryoshka Representation Learning).
	// Our pgvector schema uses 768 dimensions; see passage.VectorDimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultTopK is the passage count used when a question does not specify one.
	DefaultTopK = 5

	// MaxTopK bounds the passage count per retrieval to limit latency and cost.
	MaxTopK = 10

	// DefaultRowLimit caps the rows returned by one relational query.
	DefaultRowLimit = 100

	// DefaultMaxQuestionLen caps question length in runes.
	DefaultMaxQuestionLen = 4000
)

// RouterConfig holds the per-question policy knobs of the tool router.
// Timeouts are per stage; QuestionTimeout bounds the whole answer cycle.
type RouterConfig struct {
	PlanTimeout     time.Duration `mapstructure:"plan_timeout" json:"plan_timeout"`
	InvokeTimeout   time.Duration `mapstructure:"invoke_timeout" json:"invoke_timeout"`
	ComposeTimeout  time.Duration `mapstructure:"compose_timeout" json:"compose_timeout"`
	QuestionTimeout time.Duration `mapstructure:"question_timeout" json:"question_timeout"`

	// AllowGeneralKnowledge permits answers backed by no tool at all.
	// When false, a "use neither" plan fails the question instead.
	AllowGeneralKnowledge bool `mapstructure:"allow_general_knowledge" json:"allow_general_knowledge"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`           // "gemini" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`       // e.g. "gemini-2.5-flash", "llama3.3", "gpt-4o"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Question handling
	MaxQuestionLen int `mapstructure:"max_question_len" json:"max_question_len"`

	// Relational store (SQLite; opened read-only for query execution)
	SQLitePath string `mapstructure:"sqlite_path" json:"sqlite_path"`
	RowLimit   int    `mapstructure:"row_limit" json:"row_limit"`

	// Retrieval bounds
	TopKDefault int `mapstructure:"top_k_default" json:"top_k_default"`
	TopKMax     int `mapstructure:"top_k_max" json:"top_k_max"`

	// Router policy
	Router RouterConfig `mapstructure:"router" json:"router"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password" sensitive:"true"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// Observability configuration (see observability.go for type definition)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values.
// configFile, when non-empty, names an explicit config file (--config flag);
// otherwise ~/.showroom/config.yaml and the current directory are searched.
//
// Load does not validate: storage-only commands (ingest, answers) run
// without provider credentials, so callers that need the model stack
// must call Validate themselves.
func Load(configFile string) (*Config, error) {
	// Configuration directory: ~/.showroom/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".showroom")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	// Configure Viper
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".") // Also support current directory
	}

	// Set default values
	setDefaults()

	// Bind environment variables
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		switch {
		case configFile != "":
			// An explicitly named config file must exist and parse
			return nil, fmt.Errorf("reading config file %q: %w", configFile, err)
		case errors.As(err, &configNotFound):
			slog.Debug("configuration file not found, using default values",
				"search_paths", []string{configDir, "."},
				"config_name", "config.yaml")
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Parse DATABASE_URL if set (highest priority for PostgreSQL config)
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Question handling
	viper.SetDefault("max_question_len", DefaultMaxQuestionLen)

	// Relational store defaults
	viper.SetDefault("sqlite_path", "showroom.db")
	viper.SetDefault("row_limit", DefaultRowLimit)

	// Retrieval defaults
	viper.SetDefault("top_k_default", DefaultTopK)
	viper.SetDefault("top_k_max", MaxTopK)

	// Router defaults
	viper.SetDefault("router.plan_timeout", "20s")
	viper.SetDefault("router.invoke_timeout", "15s")
	viper.SetDefault("router.compose_timeout", "30s")
	viper.SetDefault("router.question_timeout", "60s")
	viper.SetDefault("router.allow_general_knowledge", true)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "showroom")
	viper.SetDefault("postgres_password", "showroom_dev_password")
	viper.SetDefault("postgres_db_name", "showroom")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP defaults
	viper.SetDefault("http_addr", "127.0.0.1:3500")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.service_name", "showroom")
	viper.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit
// plugins, not via Viper. Validation checks their presence based on the
// selected provider in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// AI provider and model overrides
	mustBind("provider", "SHOWROOM_PROVIDER")
	mustBind("model_name", "SHOWROOM_MODEL_NAME")
	mustBind("embedder_model", "SHOWROOM_EMBEDDER_MODEL")
	mustBind("ollama_host", "SHOWROOM_OLLAMA_HOST")

	// Store locations
	mustBind("sqlite_path", "SHOWROOM_SQLITE_PATH")

	// Serve mode
	mustBind("http_addr", "SHOWROOM_HTTP_ADDR")

	// Router policy
	mustBind("router.allow_general_knowledge", "SHOWROOM_ALLOW_GENERAL_KNOWLEDGE")

	// Tracing
	mustBind("tracing.enabled", "SHOWROOM_TRACING_ENABLED")
	mustBind("tracing.endpoint", "SHOWROOM_TRACING_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against
// real secret content.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	// Fully mask short secrets to prevent substring matching attacks
	if len(s) <= 8 {
		return maskedValue
	}
	// For longer secrets, show first/last 2 chars for debug utility
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//
// When adding new sensitive fields, update this method or the nested struct's
// MarshalJSON. The compiler will remind you when tests fail.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
