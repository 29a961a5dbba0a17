package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/showroomlabs/showroom/internal/passage"
	"github.com/showroomlabs/showroom/internal/relational"
)

// SQLSelectInput is the input schema for the sql_select tool.
type SQLSelectInput struct {
	SQL   string `json:"sql" jsonschema:"A single read-only SELECT statement against the registered tables"`
	Limit int    `json:"limit,omitempty" jsonschema:"Optional row cap; omitted means the store default"`
}

// RAGSearchInput is the input schema for the rag_search tool.
type RAGSearchInput struct {
	Query string `json:"query" jsonschema:"Free-text query matched against owner's manual passages"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"How many passages to return (1-10, default 5)"`
}

func (s *Server) registerSelectTool() error {
	schema, err := jsonschema.For[SQLSelectInput](nil)
	if err != nil {
		return fmt.Errorf("sql_select input schema: %w", err)
	}
	// The live schema summary rides in the description so clients know
	// the tables and columns up front.
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "sql_select",
		Description: "Run one read-only SELECT against the vehicle sales database. " +
			"Writes and DDL are rejected.\n\n" +
			s.relational.Registry().SchemaSummary(),
		InputSchema: schema,
	}, s.SQLSelect)
	return nil
}

func (s *Server) registerSearchTool() error {
	schema, err := jsonschema.For[RAGSearchInput](nil)
	if err != nil {
		return fmt.Errorf("rag_search input schema: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "rag_search",
		Description: "Search the owner's manual by semantic similarity. Returns the " +
			"matching passages with source, page and similarity score.",
		InputSchema: schema,
	}, s.RAGSearch)
	return nil
}

// SQLSelect executes one validated query. Rejected and failing SQL comes
// back as a tool error carrying the validator's reason, which is what a
// client needs to repair the statement.
func (s *Server) SQLSelect(ctx context.Context, _ *mcp.CallToolRequest, in SQLSelectInput) (*mcp.CallToolResult, any, error) {
	res, err := s.relational.Execute(ctx, relational.Request{SQL: in.SQL, Limit: in.Limit})
	switch {
	case errors.Is(err, relational.ErrInvalidQuery), errors.Is(err, relational.ErrExecution):
		return errorResult("%v", err), nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("sql_select: %w", err)
	}
	return jsonResult(res), nil, nil
}

// RAGSearch retrieves passages for a query. An unreachable index is an
// infrastructure failure and surfaces as a protocol error, not a tool
// error.
func (s *Server) RAGSearch(ctx context.Context, _ *mcp.CallToolRequest, in RAGSearchInput) (*mcp.CallToolResult, any, error) {
	res, err := s.passages.Search(ctx, passage.Request{Query: in.Query, TopK: in.TopK})
	switch {
	case errors.Is(err, passage.ErrEmptyQuery):
		return errorResult("%v", err), nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("rag_search: %w", err)
	}
	return jsonResult(res), nil, nil
}
