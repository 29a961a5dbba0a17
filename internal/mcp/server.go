package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/passage"
	"github.com/showroomlabs/showroom/internal/relational"
	"github.com/showroomlabs/showroom/internal/router"
)

// Asker runs one full question cycle. *router.Router satisfies it.
type Asker interface {
	Ask(ctx context.Context, question string, opts ...router.AskOption) (*router.Answer, error)
}

// RelationalQuerier executes validated read-only SQL. *relational.Store
// satisfies it; Registry feeds the live schema into the tool description.
type RelationalQuerier interface {
	Execute(ctx context.Context, req relational.Request) (relational.Result, error)
	Registry() *relational.Registry
}

// PassageSearcher retrieves passages by similarity. *passage.Store
// satisfies it.
type PassageSearcher interface {
	Search(ctx context.Context, req passage.Request) (passage.Result, error)
}

// Config carries the server identity and the tool dependencies.
type Config struct {
	Name       string
	Version    string
	Asker      Asker
	Relational RelationalQuerier
	Passages   PassageSearcher
	Logger     log.Logger
}

// Server wraps the MCP SDK server around the router and the two stores.
type Server struct {
	mcpServer  *mcp.Server
	asker      Asker
	relational RelationalQuerier
	passages   PassageSearcher
	logger     log.Logger
	name       string
	version    string
}

// NewServer validates the configuration and registers the three tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Asker == nil {
		return nil, fmt.Errorf("asker is required")
	}
	if cfg.Relational == nil {
		return nil, fmt.Errorf("relational store is required")
	}
	if cfg.Passages == nil {
		return nil, fmt.Errorf("passage store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		asker:      cfg.Asker,
		relational: cfg.Relational,
		passages:   cfg.Passages,
		logger:     logger,
		name:       cfg.Name,
		version:    cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run serves the MCP protocol on the given transport until ctx is done.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "name", s.name, "version", s.version)
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := s.registerAskTool(); err != nil {
		return err
	}
	if err := s.registerSelectTool(); err != nil {
		return err
	}
	return s.registerSearchTool()
}
