package relational

import (
	"encoding/csv"
	"strings"
)

// Request is one read-only query against the store.
type Request struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit,omitempty"` // row cap; <= 0 means the store default
}

// Result is one ordered result set. An empty result is valid and distinct
// from an error.
type Result struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	RowCount  int        `json:"row_count"`
	Truncated bool       `json:"truncated"`
}

// Empty reports whether the query matched no rows.
func (r Result) Empty() bool {
	return r.RowCount == 0
}

// CSV renders the result as CSV text, header row first.
func (r Result) CSV() string {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if len(r.Columns) > 0 {
		_ = w.Write(r.Columns) // strings.Builder writes cannot fail
	}
	_ = w.WriteAll(r.Rows)
	return strings.TrimRight(buf.String(), "\n")
}

// Text renders the result for evidence blocks and trace display:
// CSV when rows exist, an explicit marker otherwise.
func (r Result) Text() string {
	if r.RowCount == 0 {
		return "(no rows)"
	}
	return r.CSV()
}
