package router

import (
	"fmt"
	"strings"

	"github.com/showroomlabs/showroom/internal/passage"
	"github.com/showroomlabs/showroom/internal/relational"
)

// RelationalEvidence pairs an executed query with its result set.
type RelationalEvidence struct {
	SQL    string
	Result relational.Result
}

// Evidence is the material the composer answers from. Assembly and
// rendering are pure functions over adapter results.
type Evidence struct {
	Relational []RelationalEvidence
	Passages   []passage.Passage
}

// Empty reports whether no adapter produced anything to answer from.
// An executed query with zero rows still counts as evidence: "no rows"
// is a finding.
func (e Evidence) Empty() bool {
	return len(e.Relational) == 0 && len(e.Passages) == 0
}

// Render produces the evidence block handed to the composer. Database rows
// come first under an authoritative heading: on any numeric or factual
// conflict with passage text, the composer is instructed to report the
// database value.
func (e Evidence) Render() string {
	var b strings.Builder

	if len(e.Relational) > 0 {
		b.WriteString("AUTHORITATIVE DATABASE RESULTS (prefer these values on any conflict):\n")
		for _, re := range e.Relational {
			fmt.Fprintf(&b, "query: %s\n%s\n", re.SQL, re.Result.Text())
		}
	}

	if len(e.Passages) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("RETRIEVED PASSAGES (supporting context; defer to database results on conflicts):\n")
		b.WriteString(passage.Result{Passages: e.Passages}.Text())
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// Citations derives the ordered citation list from the passages consulted,
// deduplicated by source and page, preserving retrieval order.
func (e Evidence) Citations() []Citation {
	citations := []Citation{}
	seen := make(map[string]bool)
	for _, p := range e.Passages {
		key := passage.Key(p.Source, p.Page)
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, Citation{Source: p.Source, Page: p.Page})
	}
	return citations
}
