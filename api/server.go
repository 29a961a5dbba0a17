// Package api serves the HTTP question surface: one-shot asks returning the
// full invocation trace, persisted answer readback, and health probes.
//
// Routes:
//
//	POST /api/ask           run one question to a terminal answer
//	GET  /api/answers       recent persisted answers (summaries)
//	GET  /api/answers/{id}  one persisted answer with its full trace
//	GET  /health            liveness probe
//	GET  /ready             readiness probe (pings Postgres)
//
// Success responses carry the payload directly. Error responses use the
// {"error": {"code", "message", "status"}} envelope and never expose a
// dependency's internal error text.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/showroomlabs/showroom/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:3500"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to stop slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout caps the response write. It must exceed the per-question
	// bound so an ask that runs to its deadline can still be answered.
	WriteTimeout = 90 * time.Second

	// IdleTimeout closes idle keep-alive connections.
	IdleTimeout = 120 * time.Second

	// maxBodyBytes caps request bodies; questions are short.
	maxBodyBytes = 1 << 20
)

// ServerConfig assembles the HTTP server.
type ServerConfig struct {
	Asker      Asker         // required
	Answers    AnswerReader  // optional: nil disables the answers routes
	Pool       *pgxpool.Pool // optional: nil makes /ready report 503
	Logger     log.Logger
	TrustProxy bool // trust X-Real-IP/X-Forwarded-For (behind a reverse proxy)
	RateBurst  int  // per-IP burst size (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Asker == nil {
		return nil, errors.New("asker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	NewAskHandler(cfg.Asker, logger).RegisterRoutes(mux)
	if cfg.Answers != nil {
		NewAnswersHandler(cfg.Answers, logger).RegisterRoutes(mux)
	} else {
		logger.Warn("answer store not configured, skipping answers routes")
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Outermost first: recovery catches everything, the request id must
	// exist before logging, and the limiter only sees surviving requests.
	handler := chain(mux,
		recoveryMiddleware(logger),
		requestIDMiddleware(),
		loggingMiddleware(logger),
		rateLimitMiddleware(rl, cfg.TrustProxy, logger),
		securityHeaders,
	)

	// Probes stay off the middleware stack so orchestrators are never
	// rate limited or logged per poll.
	top := http.NewServeMux()
	NewHealthHandler(cfg.Pool, logger).RegisterRoutes(top)
	top.Handle("/", handler)

	return &Server{mux: top, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
