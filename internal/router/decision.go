package router

import (
	"fmt"
	"strings"
)

// Route names which adapters a decision consults.
type Route string

const (
	RouteRelational Route = "relational"
	RouteRetrieval  Route = "retrieval"
	RouteBoth       Route = "both"
	RouteNone       Route = "none"
)

// Decision is the typed outcome of the planning stage. The model returns
// one of these; everything after planning is deterministic over its fields.
type Decision struct {
	Route     Route  `json:"route"`
	SQL       string `json:"sql,omitempty"`
	Query     string `json:"query,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// ConsultsRelational reports whether the decision includes a SQL call.
func (d Decision) ConsultsRelational() bool {
	return d.Route == RouteRelational || d.Route == RouteBoth
}

// ConsultsRetrieval reports whether the decision includes a passage search.
func (d Decision) ConsultsRetrieval() bool {
	return d.Route == RouteRetrieval || d.Route == RouteBoth
}

// normalizeDecision validates a raw model decision and fixes up its
// arguments. Pure function: same inputs, same outputs.
//
// Rules:
//   - the route must be one of the four known values
//   - a relational route without SQL is unusable (nothing to repair yet)
//   - a retrieval route with an empty query falls back to the question text
//   - k < 1 falls back to defaultK; k > maxK is clamped to maxK
//   - arguments not consulted by the route are cleared
//
// The returned error marks the decision unusable (planning failure).
func normalizeDecision(d Decision, question string, defaultK, maxK int) (Decision, error) {
	d.SQL = strings.TrimSpace(d.SQL)
	d.Query = strings.TrimSpace(d.Query)
	d.Rationale = strings.TrimSpace(d.Rationale)

	switch d.Route {
	case RouteRelational, RouteRetrieval, RouteBoth, RouteNone:
	default:
		return Decision{}, fmt.Errorf("unknown route %q", d.Route)
	}

	if d.ConsultsRelational() && d.SQL == "" {
		return Decision{}, fmt.Errorf("route %q requires sql", d.Route)
	}

	if d.ConsultsRetrieval() {
		if d.Query == "" {
			d.Query = strings.TrimSpace(question)
		}
		if d.TopK < 1 {
			d.TopK = defaultK
		}
		if d.TopK > maxK {
			d.TopK = maxK
		}
	} else {
		d.Query = ""
		d.TopK = 0
	}
	if !d.ConsultsRelational() {
		d.SQL = ""
	}

	return d, nil
}
