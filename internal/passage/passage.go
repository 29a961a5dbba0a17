// Package passage provides semantic retrieval over owner's-manual passages
// backed by PostgreSQL + pgvector.
//
// Passages are one-per-page records produced by an external extraction step
// and loaded by `showroom index`. Similarity is cosine, computed by pgvector;
// embeddings come from the configured Genkit embedder. Search ordering is
// deterministic: descending similarity, ties broken by the insertion
// sequence assigned at indexing time.
package passage

import (
	"errors"
	"fmt"
	"strings"
)

// VectorDimension is the embedding dimensionality of the passages table.
// Embedders producing wider vectors must be configured to truncate
// (e.g. Gemini's OutputDimensionality).
const VectorDimension int32 = 768

var (
	// ErrUnavailable indicates the backing store (or the embedder it
	// depends on) is unreachable. Fatal for the current question, never
	// retried. An empty index is NOT unavailable; it returns an empty
	// result.
	ErrUnavailable = errors.New("passage index unavailable")

	// ErrEmptyQuery indicates a search with no query text after trimming.
	ErrEmptyQuery = errors.New("empty search query")
)

// Passage is one indexed page of a source document.
type Passage struct {
	ID         string  `json:"id"` // "<source>::page:<page>"
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Seq        int64   `json:"seq"`        // insertion sequence; tie-break for equal similarity
	Similarity float64 `json:"similarity"` // populated on search results
}

// Key builds the deterministic passage id for a source page.
func Key(source string, page int) string {
	return fmt.Sprintf("%s::page:%d", source, page)
}

// Request is one retrieval call.
type Request struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"` // k < 1 falls back to the default; clamped to the maximum
}

// Result holds passages ordered by descending similarity.
type Result struct {
	Passages []Passage `json:"passages"`
}

// Empty reports whether the search matched nothing.
func (r Result) Empty() bool {
	return len(r.Passages) == 0
}

// Text renders the result for evidence blocks and trace display:
// one numbered block per passage with score, source and page.
func (r Result) Text() string {
	if r.Empty() {
		return "No relevant passages found."
	}
	parts := make([]string, len(r.Passages))
	for i, p := range r.Passages {
		parts[i] = fmt.Sprintf("[%d] score=%.4f source=%s page=%d\n%s",
			i+1, p.Similarity, p.Source, p.Page, strings.TrimSpace(p.Text))
	}
	return strings.Join(parts, "\n\n")
}
