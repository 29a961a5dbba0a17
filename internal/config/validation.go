package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation and provider-specific credentials
	// An empty provider falls back to the default (gemini)
	switch c.Provider {
	case "", ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required",
				ErrMissingAPIKey)
		}
	case ProviderOllama:
		if !strings.HasPrefix(c.OllamaHost, "http://") && !strings.HasPrefix(c.OllamaHost, "https://") {
			return fmt.Errorf("%w: ollama_host must start with http:// or https://, got %q",
				ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q is not supported, must be one of: gemini, ollama, openai",
			ErrInvalidProvider, c.Provider)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Question handling validation
	if c.MaxQuestionLen < 1 {
		return fmt.Errorf("%w: max_question_len must be positive, got %d",
			ErrInvalidQuestionLen, c.MaxQuestionLen)
	}

	// 4. Retrieval bounds validation
	// TopKMax is a hard ceiling; the default must fit under it
	if c.TopKMax < 1 {
		return fmt.Errorf("%w: top_k_max must be positive, got %d", ErrInvalidTopK, c.TopKMax)
	}

	if c.TopKDefault < 1 || c.TopKDefault > c.TopKMax {
		return fmt.Errorf("%w: top_k_default must be between 1 and top_k_max (%d), got %d",
			ErrInvalidTopK, c.TopKMax, c.TopKDefault)
	}

	// 5. Relational store validation
	if c.SQLitePath == "" {
		return fmt.Errorf("%w: sqlite_path cannot be empty", ErrInvalidSQLitePath)
	}

	if c.RowLimit < 1 {
		return fmt.Errorf("%w: row_limit must be positive, got %d", ErrInvalidRowLimit, c.RowLimit)
	}

	// 6. Router timeout validation
	// Stage timeouts must be positive; the question timeout bounds the whole
	// cycle so it must cover at least the longest single stage
	for _, t := range []struct {
		name  string
		value int64
	}{
		{"router.plan_timeout", int64(c.Router.PlanTimeout)},
		{"router.invoke_timeout", int64(c.Router.InvokeTimeout)},
		{"router.compose_timeout", int64(c.Router.ComposeTimeout)},
		{"router.question_timeout", int64(c.Router.QuestionTimeout)},
	} {
		if t.value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidTimeout, t.name)
		}
	}

	if c.Router.QuestionTimeout < c.Router.PlanTimeout ||
		c.Router.QuestionTimeout < c.Router.InvokeTimeout ||
		c.Router.QuestionTimeout < c.Router.ComposeTimeout {
		return fmt.Errorf("%w: router.question_timeout must be at least as long as every stage timeout",
			ErrInvalidTimeout)
	}

	// 7. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// CRITICAL: Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "showroom_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Validate password strength (minimum 8 characters)
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// 8. PostgreSQL SSL mode validation
	// DO NOT mutate config in Validate() - just validate
	// Note: Even with setDefaults(), user can override with empty value in YAML
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	// Check if SSL mode is one of the valid PostgreSQL modes
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
