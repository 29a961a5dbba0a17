// Package cmd wires the showroom CLI.
//
// Commands:
//   - ask: answer one question and exit
//   - chat: interactive question loop
//   - serve: HTTP JSON API server
//   - mcp: Model Context Protocol server on stdio
//   - ingest: rebuild the SQLite sales database from CSV exports
//   - index: load owner's manual passages into the vector store
//   - answers: review persisted answers and their traces
//   - version: build information
//
// Every command runs under a context canceled by SIGINT/SIGTERM, so the
// servers shut down gracefully and a long question can be interrupted.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/showroomlabs/showroom/internal/config"
	"github.com/showroomlabs/showroom/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	debug      bool
	jsonLogs   bool
}

// logger builds the process logger. DEBUG in the environment enables debug
// logging like --debug does, so servers can be switched without a restart
// script change. Logs go to stderr; stdout stays clean for answers and for
// the MCP JSON-RPC stream.
func (o *rootOptions) logger() log.Logger {
	level := slog.LevelInfo
	if o.debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: o.jsonLogs})
}

// loadConfig loads and fully validates configuration, including provider
// credentials. Commands that run the model stack use this.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// loadStorageConfig loads configuration without provider validation, for
// commands that only touch storage (ingest, answers) and must work without
// an API key.
func (o *rootOptions) loadStorageConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// NewRootCmd builds the showroom command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "showroom",
		Short: "Question answering over the vehicle showroom stores",
		Long: `Showroom answers natural-language questions about vehicle sales and
specifications. Each question is routed to a read-only SQL store, a
semantic search over owner's manual pages, both, or neither, and every
answer carries the trace of exactly which calls were made.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default ~/.showroom/config.yaml)")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.BoolVar(&opts.jsonLogs, "log-json", false, "write logs as JSON")

	rootCmd.AddCommand(
		newAskCmd(opts),
		newChatCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newIngestCmd(opts),
		newIndexCmd(opts),
		newAnswersCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute is the entry point called from main. SIGINT and SIGTERM cancel
// the command context.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return NewRootCmd().ExecuteContext(ctx)
}
