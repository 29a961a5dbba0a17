package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/showroomlabs/showroom/internal/router"
)

// composePrompt turns assembled evidence into answer text.
// %s placeholders: (1) question, (2) evidence block.
const composePrompt = `You answer questions about vehicle sales, specifications and owner's manuals.

Answer the question using ONLY the evidence below.

Rules:
- AUTHORITATIVE DATABASE RESULTS are exact values from the sales database.
  When a manual passage disagrees with a database value, report the
  database value.
- Cite manual passages inline as (source p.N) after the sentence they
  support. Database results need no citation.
- If the evidence does not answer the question, say so plainly. Never
  invent figures.
- Answer concisely in prose. Markdown is fine for lists and emphasis.

Question: %s

Evidence:
%s

Answer:`

// generalPrompt is used when the question consulted no data source.
// %s placeholder: the question.
const generalPrompt = `You answer general questions about vehicles.

No database rows or manual passages were consulted for this answer, and it
will be labeled as general knowledge.

Rules:
- Answer briefly from general knowledge.
- Say clearly when you are unsure. Never invent exact figures, prices or
  dates.

Question: %s

Answer:`

// Composer turns a question plus rendered evidence into answer text.
type Composer struct {
	client *Client
}

var _ router.Composer = (*Composer)(nil)

// NewComposer creates a composer over the given client.
func NewComposer(client *Client) (*Composer, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	return &Composer{client: client}, nil
}

// Compose generates the final answer text. An empty evidence block means
// no adapter was consulted and the model answers from general knowledge.
func (c *Composer) Compose(ctx context.Context, question, evidence string) (string, error) {
	prompt := fmt.Sprintf(generalPrompt, question)
	if evidence != "" {
		prompt = fmt.Sprintf(composePrompt, question, evidence)
	}

	text, err := c.client.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return text, nil
}
