package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/showroomlabs/showroom/db"
	"github.com/showroomlabs/showroom/internal/audit"
	"github.com/showroomlabs/showroom/internal/config"
	"github.com/showroomlabs/showroom/internal/llm"
	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/observability"
	"github.com/showroomlabs/showroom/internal/passage"
	"github.com/showroomlabs/showroom/internal/relational"
	"github.com/showroomlabs/showroom/internal/router"
)

// Setup builds the full question stack. A nil logger falls back to the
// default stderr logger.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := newApp(cfg, logger)
	defer closeOnError(a, &retErr)

	a.otelCleanup = provideTracing(ctx, cfg, a.Logger)

	pool, err := providePool(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	if err := provideModelStack(ctx, cfg, a); err != nil {
		return nil, err
	}

	rel, err := relational.Open(cfg.SQLitePath, relational.Default(), cfg.RowLimit,
		a.Logger.With("component", "relational"))
	if err != nil {
		return nil, err
	}
	a.Relational = rel

	passages, err := providePassages(cfg, a)
	if err != nil {
		return nil, err
	}
	a.Passages = passages

	auditStore, err := audit.New(pool, a.Logger.With("component", "audit"))
	if err != nil {
		return nil, err
	}
	a.Audit = auditStore

	rtr, err := provideRouter(cfg, a)
	if err != nil {
		return nil, err
	}
	a.Router = rtr

	return a, nil
}

// SetupIndexing builds the pool, the embedder and the passage store. The
// SQLite store and the router are left nil so `showroom index` runs before
// the first ingest.
func SetupIndexing(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := newApp(cfg, logger)
	defer closeOnError(a, &retErr)

	a.otelCleanup = provideTracing(ctx, cfg, a.Logger)

	pool, err := providePool(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	if err := provideModelStack(ctx, cfg, a); err != nil {
		return nil, err
	}

	passages, err := providePassages(cfg, a)
	if err != nil {
		return nil, err
	}
	a.Passages = passages

	return a, nil
}

// SetupAudit builds the pool and the audit store, nothing model-shaped.
// `showroom answers` must work without an API key.
func SetupAudit(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := newApp(cfg, logger)
	defer closeOnError(a, &retErr)

	pool, err := providePool(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	auditStore, err := audit.New(pool, a.Logger.With("component", "audit"))
	if err != nil {
		return nil, err
	}
	a.Audit = auditStore

	return a, nil
}

// closeOnError tears down whatever Setup built before it failed. Runs as a
// defer; *retErr is read at unwind time, not at the defer statement.
func closeOnError(a *App, retErr *error) {
	if *retErr != nil {
		if err := a.Close(); err != nil {
			a.Logger.Warn("cleanup during setup failure", "error", err)
		}
	}
}

// provideTracing installs the OTLP exporter when enabled and returns the
// flush function; disabled tracing returns a no-op. Must run before
// provideModelStack so the span processor is registered when Genkit starts
// tracing.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	}, logger.With("component", "tracing"))
	if err != nil || shutdown == nil {
		return func() {}
	}

	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// providePool migrates the Postgres schema, then opens and pings the pool.
func providePool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger.With("component", "migrate")); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideModelStack initializes Genkit with the configured provider and
// resolves the embedder, storing both on the App.
func provideModelStack(ctx context.Context, cfg *config.Config, a *App) error {
	g, err := provideGenkit(ctx, cfg, a.Logger)
	if err != nil {
		return err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder
	return nil
}

// provideGenkit initializes Genkit with the provider plugin. Ollama
// registers nothing by itself, so its model and embedder are defined here;
// the other providers register on Init.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		plugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.ModelName, Type: "chat"}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("genkit initialized", "provider", config.ProviderOllama,
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("genkit initialized", "provider", config.ProviderOpenAI, "model", cfg.ModelName)
		return g, nil

	default: // gemini, googleai or empty
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("genkit initialized", "provider", config.ProviderGemini, "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder the provider plugin registered.
// Each provider keys embedders differently: ollama by server address,
// openai by model name, googleai through its own accessor.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideEmbedOptions returns provider-specific embed options. Gemini
// embedders emit 3072-dim vectors by default; OutputDimensionality
// truncates to the passages schema width, which Matryoshka-trained models
// support without hurting cosine ordering. Other providers must be
// configured with a natively matching embedder.
func provideEmbedOptions(cfg *config.Config) any {
	switch cfg.Provider {
	case config.ProviderOllama, config.ProviderOpenAI:
		return nil
	default: // gemini, googleai or empty
		dim := passage.VectorDimension
		return &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
}

func providePassages(cfg *config.Config, a *App) (*passage.Store, error) {
	return passage.NewStore(a.Pool, a.Embedder, passage.Options{
		DefaultK:    cfg.TopKDefault,
		MaxK:        cfg.TopKMax,
		EmbedConfig: provideEmbedOptions(cfg),
	}, a.Logger.With("component", "passage"))
}

// provideRouter wires the model boundary and both adapters into a Router.
// The planner sees the same schema summary the validator enforces.
func provideRouter(cfg *config.Config, a *App) (*router.Router, error) {
	client, err := llm.NewClient(llm.Config{
		Genkit:    a.Genkit,
		ModelName: cfg.FullModelName(),
		Logger:    a.Logger.With("component", "llm"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	planner, err := llm.NewPlanner(client, a.Relational.Registry().SchemaSummary(), cfg.TopKMax)
	if err != nil {
		return nil, fmt.Errorf("creating planner: %w", err)
	}

	composer, err := llm.NewComposer(client)
	if err != nil {
		return nil, fmt.Errorf("creating composer: %w", err)
	}

	return router.New(router.Config{
		Planner:    planner,
		Composer:   composer,
		Relational: a.Relational,
		Passages:   a.Passages,
		Recorder:   a.Audit,
		Logger:     a.Logger.With("component", "router"),

		PlanTimeout:     cfg.Router.PlanTimeout,
		InvokeTimeout:   cfg.Router.InvokeTimeout,
		ComposeTimeout:  cfg.Router.ComposeTimeout,
		QuestionTimeout: cfg.Router.QuestionTimeout,

		DefaultTopK:    cfg.TopKDefault,
		MaxTopK:        cfg.TopKMax,
		MaxQuestionLen: cfg.MaxQuestionLen,

		AllowGeneralKnowledge: cfg.Router.AllowGeneralKnowledge,
	})
}
