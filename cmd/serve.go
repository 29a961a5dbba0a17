package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/showroomlabs/showroom/api"
	"github.com/showroomlabs/showroom/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP JSON API server",
		Long: `Serve exposes the question-answering API over HTTP: POST /api/ask,
GET /api/answers for persisted traces, and health probes. The server
shuts down gracefully on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().String("addr", api.DefaultAddr, "listen address (host:port)")
	_ = viper.BindPFlag("http_addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	logger := opts.logger()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := validateAddr(cfg.HTTPAddr); err != nil {
		return fmt.Errorf("invalid address %q: %w", cfg.HTTPAddr, err)
	}

	logger.Info("starting showroom api", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv, err := api.NewServer(api.ServerConfig{
		Asker:      a.Router,
		Answers:    a.Audit,
		Pool:       a.Pool,
		Logger:     logger.With("component", "api"),
		TrustProxy: os.Getenv("SHOWROOM_TRUST_PROXY") == "true",
		RateBurst:  parseRateBurst(),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return srv.Run(ctx, cfg.HTTPAddr)
}

// parseRateBurst reads SHOWROOM_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("SHOWROOM_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// validateAddr validates a listen address before the server tries to bind,
// so a typo fails with a clear message instead of a bind error.
func validateAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be in host:port format: %w", err)
	}

	if host != "" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				return fmt.Errorf("invalid host: %s", host)
			}
		}
	}

	if port == "" {
		return fmt.Errorf("port is required")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric: %w", err)
	}
	if portNum < 0 || portNum > 65535 {
		return fmt.Errorf("port must be 0-65535 (0 = auto-assign), got %d", portNum)
	}

	return nil
}
