// Package llm is the model boundary. The router makes exactly two kinds
// of model calls per question: a planning call that must come back as a
// typed decision, and a composition call that turns evidence into answer
// text. Both run through one shared client that adds rate limiting,
// retry with backoff and a circuit breaker at the transport edge.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/showroomlabs/showroom/internal/log"
)

// Config contains the required parameters for the model client.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Logger    log.Logger

	// Resilience configuration (zero values use defaults)
	Retry       RetryConfig
	Breaker     BreakerConfig
	RateLimiter *rate.Limiter // nil = default 10 req/s sustained, burst of 30
}

// Client issues text generation calls against a single configured model.
// It is safe for concurrent use; all configuration is captured immutably
// at construction time.
type Client struct {
	g         *genkit.Genkit
	modelName string
	logger    log.Logger

	retry   RetryConfig
	breaker *Breaker
	limiter *rate.Limiter
}

// NewClient creates a model client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	return &Client{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		logger:    logger,
		retry:     retry,
		breaker:   NewBreaker(cfg.Breaker),
		limiter:   limiter,
	}, nil
}

// generate runs one prompt through the breaker and the retrying transport
// and returns the model's trimmed text output.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if err := c.breaker.Allow(); err != nil {
		c.logger.Warn("model call rejected", "state", c.breaker.State())
		return "", err
	}

	resp, err := c.generateWithRetry(ctx, prompt)
	if err != nil {
		c.breaker.Failure()
		return "", err
	}
	c.breaker.Success()

	return strings.TrimSpace(resp.Text()), nil
}

// generateOpts builds the Genkit options for one call. Split out so the
// retry loop stays free of request assembly.
func (c *Client) generateOpts(prompt string) []ai.GenerateOption {
	return []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
	}
}
