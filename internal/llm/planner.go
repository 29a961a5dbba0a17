package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/showroomlabs/showroom/internal/router"
)

// maxDecisionBytes limits planner output size before JSON parsing (8 KB).
// A decision is a few short fields; anything bigger is the model rambling.
const maxDecisionBytes = 8 * 1024

// planPrompt instructs the model to emit one routing decision as JSON.
// %s placeholders: (1) schema summary, (2) question. %d: top-k ceiling.
const planPrompt = `You are a query router for a vehicle sales and specifications assistant.

Two data sources are available:

1. "relational": a read-only SQLite database.
%s
2. "retrieval": a semantic index over owner's manual pages. Good for
maintenance, operation, warning lights and handbook content.

Decide which sources the question needs and answer with a single JSON object:
{"route": "relational" | "retrieval" | "both" | "none", "sql": "...", "query": "...", "top_k": N, "rationale": "..."}

Rules:
- Use "relational" for counts, sums, rankings, comparisons and specification values.
- Use "retrieval" for questions answered by the owner's manual.
- Use "both" when the question needs a database figure AND manual context.
- Use "none" only when neither source can contribute.
- "sql" is required for "relational" and "both": exactly ONE SELECT statement
  over the tables above. Never write INSERT, UPDATE, DELETE, DDL or PRAGMA.
  Never reference tables outside the schema.
- "query" is the search text for "retrieval" and "both".
- "top_k" is the passage count, 1 to %d. Omit it to use the default.
- "rationale" is one short line explaining the route.
- Output ONLY the JSON object. No prose, no code fences.

Question: %s

JSON:`

// repairPrompt asks for one corrected statement after a database error.
// %s placeholders: (1) schema summary, (2) question, (3) failed SQL,
// (4) database error.
const repairPrompt = `You fix a failed SQLite query.

Schema:
%s

The query should answer: %s

Failed query:
%s

Database error:
%s

Rules:
- Output exactly ONE corrected SELECT statement and nothing else.
- Keep the original intent; change only what the error points at.
- Never write INSERT, UPDATE, DELETE, DDL or PRAGMA. Never reference
  tables outside the schema.

Corrected SQL:`

// Planner produces routing decisions and SQL repairs. It holds the
// rendered schema summary so every prompt describes the same tables the
// validator will later enforce.
type Planner struct {
	client *Client
	schema string
	maxK   int
}

var _ router.Planner = (*Planner)(nil)

// NewPlanner creates a planner over the given client. schema is the
// rendered table summary shown to the model; maxK caps the top_k the
// prompt offers (values below 1 fall back to 10).
func NewPlanner(client *Client, schema string, maxK int) (*Planner, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if strings.TrimSpace(schema) == "" {
		return nil, errors.New("schema summary is required")
	}
	if maxK < 1 {
		maxK = 10
	}
	return &Planner{client: client, schema: schema, maxK: maxK}, nil
}

// Plan asks the model for one routing decision. The raw decision is
// returned as parsed; route and argument consistency is the router's
// concern.
func (p *Planner) Plan(ctx context.Context, question string) (router.Decision, error) {
	prompt := fmt.Sprintf(planPrompt, p.schema, p.maxK, question)

	text, err := p.client.generate(ctx, prompt)
	if err != nil {
		return router.Decision{}, fmt.Errorf("generating decision: %w", err)
	}
	if text == "" {
		return router.Decision{}, errors.New("model returned an empty decision")
	}
	if len(text) > maxDecisionBytes {
		return router.Decision{}, fmt.Errorf("decision response too large: %d bytes", len(text))
	}

	text = stripCodeFences(text)

	var dec router.Decision
	if err := json.Unmarshal([]byte(text), &dec); err != nil {
		return router.Decision{}, fmt.Errorf("parsing decision: %w (raw: %q)", err, truncate(text, 200))
	}

	p.client.logger.Debug("decision parsed",
		"route", dec.Route,
		"top_k", dec.TopK,
	)
	return dec, nil
}

// RepairSQL asks the model to correct a statement that the store
// rejected. It returns the bare statement text; an empty result means
// the model produced nothing usable.
func (p *Planner) RepairSQL(ctx context.Context, question, sql, dbError string) (string, error) {
	prompt := fmt.Sprintf(repairPrompt, p.schema, question, sql, dbError)

	text, err := p.client.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating repair: %w", err)
	}
	return stripCodeFences(text), nil
}

// stripCodeFences removes ```json ... ``` wrapping from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (with optional language tag).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		// Remove closing fence.
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// truncate shortens s to at most n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
