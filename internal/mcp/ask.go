package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/showroomlabs/showroom/internal/router"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"The natural-language question to answer"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"Optional override for how many passages retrieval returns (1-10)"`
}

// askResult is the success payload: the answer text plus enough identity
// to fetch the full trace over HTTP.
type askResult struct {
	AnswerID   string            `json:"answer_id"`
	Text       string            `json:"text"`
	Citations  []router.Citation `json:"citations"`
	ToolBacked bool              `json:"tool_backed"`
}

func (s *Server) registerAskTool() error {
	schema, err := jsonschema.For[AskInput](nil)
	if err != nil {
		return fmt.Errorf("ask input schema: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "ask",
		Description: "Answer a natural-language question about the vehicle line-up using " +
			"the sales database and the owner's manual. Returns the answer text with " +
			"citations and an answer id for trace lookup.",
		InputSchema: schema,
	}, s.AskQuestion)
	return nil
}

// AskQuestion runs the full question cycle. Failed answers and rejected
// questions are tool errors the client can act on; only unexpected router
// errors surface as protocol errors.
func (s *Server) AskQuestion(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, any, error) {
	var opts []router.AskOption
	if in.TopK > 0 {
		opts = append(opts, router.WithTopK(in.TopK))
	}

	ans, err := s.asker.Ask(ctx, in.Question, opts...)
	switch {
	case errors.Is(err, router.ErrEmptyQuestion), errors.Is(err, router.ErrQuestionTooLong):
		return errorResult("%v", err), nil, nil
	case err != nil:
		return nil, nil, fmt.Errorf("ask: %w", err)
	}

	if ans.State != router.StateDone {
		return errorResult("question failed (%s), answer id %s", ans.Reason, ans.ID), nil, nil
	}
	return jsonResult(askResult{
		AnswerID:   ans.ID.String(),
		Text:       ans.Text,
		Citations:  ans.Citations,
		ToolBacked: ans.ToolBacked,
	}), nil, nil
}
