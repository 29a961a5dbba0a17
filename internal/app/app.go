// Package app assembles the application from configuration: stores, model
// client and router are constructed here in dependency order, with cleanup
// on partial failure.
//
// Three entry points match what the commands actually need. Setup builds
// the whole question stack (ask, chat, serve, mcp). SetupIndexing builds
// the embedder and the passage store without opening the SQLite file, so
// `showroom index` works before the first ingest. SetupAudit builds only
// the pool and the audit store for `showroom answers`.
package app

import (
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/showroomlabs/showroom/internal/audit"
	"github.com/showroomlabs/showroom/internal/config"
	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/passage"
	"github.com/showroomlabs/showroom/internal/relational"
	"github.com/showroomlabs/showroom/internal/router"
)

// App is the assembled application. Fields outside the requested scope are
// nil; Close is safe regardless.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit     *genkit.Genkit
	Embedder   ai.Embedder
	Pool       *pgxpool.Pool
	Relational *relational.Store
	Passages   *passage.Store
	Audit      *audit.Store
	Router     *router.Router

	otelCleanup func()
}

func newApp(cfg *config.Config, logger log.Logger) *App {
	if logger == nil {
		logger = log.New(log.Config{})
	}
	return &App{Config: cfg, Logger: logger}
}

// Close releases resources in reverse construction order. The trace flush
// runs last so spans emitted during shutdown still get exported.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}

	var errs []error
	if a.Relational != nil {
		if err := a.Relational.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing sqlite store: %w", err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return errors.Join(errs...)
}
