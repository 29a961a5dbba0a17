package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/showroomlabs/showroom/internal/relational"
	"github.com/showroomlabs/showroom/internal/router"
	"github.com/showroomlabs/showroom/internal/testutil"
)

// newTestPlanner wires a planner to a mock model with the real schema
// summary, so prompts carry the same table text production does.
func newTestPlanner(t *testing.T, mock *testutil.MockLLM) *Planner {
	t.Helper()

	g := genkit.Init(context.Background())
	mock.RegisterModel(g)

	client := newTestClient(t, g, "mock/test-model")
	planner, err := NewPlanner(client, relational.Default().SchemaSummary(), 10)
	if err != nil {
		t.Fatalf("NewPlanner() unexpected error: %v", err)
	}
	return planner
}

func TestNewPlanner_Validation(t *testing.T) {
	t.Parallel()

	g := genkit.Init(context.Background())
	client := newTestClient(t, g, "mock/test-model")

	if _, err := NewPlanner(nil, "table sales: x", 10); err == nil {
		t.Error("NewPlanner(nil client) expected error, got nil")
	}
	if _, err := NewPlanner(client, "   ", 10); err == nil {
		t.Error("NewPlanner(blank schema) expected error, got nil")
	}

	p, err := NewPlanner(client, "table sales: x", 0)
	if err != nil {
		t.Fatalf("NewPlanner() unexpected error: %v", err)
	}
	if p.maxK != 10 {
		t.Errorf("maxK = %d, want fallback 10", p.maxK)
	}
}

func TestPlanner_Plan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		response string
		question string
		want     router.Decision
	}{
		{
			name:     "relational decision",
			pattern:  "towing capacity",
			response: `{"route":"relational","sql":"SELECT towing_capacity_kg FROM specs WHERE model = 'Hilux' AND year = 2024","rationale":"specification lookup"}`,
			question: "What is the towing capacity of the 2024 Hilux?",
			want: router.Decision{
				Route:     router.RouteRelational,
				SQL:       "SELECT towing_capacity_kg FROM specs WHERE model = 'Hilux' AND year = 2024",
				Rationale: "specification lookup",
			},
		},
		{
			name:     "retrieval decision with top_k",
			pattern:  "tire rotation",
			response: `{"route":"retrieval","query":"tire rotation interval","top_k":3,"rationale":"manual content"}`,
			question: "How often should I rotate the tires?",
			want: router.Decision{
				Route:     router.RouteRetrieval,
				Query:     "tire rotation interval",
				TopK:      3,
				Rationale: "manual content",
			},
		},
		{
			name:    "fenced JSON is unwrapped",
			pattern: "sold in germany",
			response: "```json\n" +
				`{"route":"relational","sql":"SELECT SUM(units) FROM sales WHERE country = 'Germany'","rationale":"aggregate"}` +
				"\n```",
			question: "How many cars were sold in Germany?",
			want: router.Decision{
				Route:     router.RouteRelational,
				SQL:       "SELECT SUM(units) FROM sales WHERE country = 'Germany'",
				Rationale: "aggregate",
			},
		},
		{
			name:     "none decision",
			pattern:  "best color",
			response: `{"route":"none","rationale":"taste question"}`,
			question: "What is the best color?",
			want: router.Decision{
				Route:     router.RouteNone,
				Rationale: "taste question",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := testutil.NewMockLLM("")
			mock.AddResponse(tt.pattern, tt.response)
			planner := newTestPlanner(t, mock)

			got, err := planner.Plan(context.Background(), tt.question)
			if err != nil {
				t.Fatalf("Plan() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Plan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanner_Plan_PromptCarriesSchemaAndQuestion(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockLLM(`{"route":"none"}`)
	planner := newTestPlanner(t, mock)

	question := "How many Yaris Hybrid sold in France in 2023?"
	if _, err := planner.Plan(context.Background(), question); err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	prompt := calls[0].UserMessage
	for _, fragment := range []string{"table sales:", "table specs:", "towing_capacity_kg", question} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("plan prompt missing %q", fragment)
		}
	}
}

func TestPlanner_Plan_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		wantErr  string
	}{
		{
			name:     "empty response",
			response: "",
			wantErr:  "empty decision",
		},
		{
			name:     "prose instead of JSON",
			response: "I would query the sales table for that.",
			wantErr:  "parsing decision",
		},
		{
			name:     "oversized response",
			response: `{"route":"relational","sql":"` + strings.Repeat("x", maxDecisionBytes) + `"}`,
			wantErr:  "too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := testutil.NewMockLLM(tt.response)
			planner := newTestPlanner(t, mock)

			_, err := planner.Plan(context.Background(), "any question")
			if err == nil {
				t.Fatal("Plan() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Plan() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestPlanner_RepairSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		response string
		want     string
	}{
		{
			name:     "bare statement",
			pattern:  "no such table: sails",
			response: "SELECT SUM(units) FROM sales WHERE country = 'Germany'",
			want:     "SELECT SUM(units) FROM sales WHERE country = 'Germany'",
		},
		{
			name:     "fenced statement is unwrapped",
			pattern:  "no such column",
			response: "```sql\nSELECT units FROM sales LIMIT 5\n```",
			want:     "SELECT units FROM sales LIMIT 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := testutil.NewMockLLM("")
			mock.AddResponse(tt.pattern, tt.response)
			planner := newTestPlanner(t, mock)

			got, err := planner.RepairSQL(context.Background(),
				"How many cars sold in Germany?",
				"SELECT SUM(units) FROM sails",
				tt.pattern)
			if err != nil {
				t.Fatalf("RepairSQL() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RepairSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlanner_RepairSQL_PromptCarriesFailure(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockLLM("SELECT 1")
	planner := newTestPlanner(t, mock)

	failedSQL := "SELECT * FROM sails"
	dbError := "no such table: sails"
	if _, err := planner.RepairSQL(context.Background(), "question", failedSQL, dbError); err != nil {
		t.Fatalf("RepairSQL() unexpected error: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	prompt := calls[0].UserMessage
	for _, fragment := range []string{failedSQL, dbError, "table sales:"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("repair prompt missing %q", fragment)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no fences",
			input: `{"route":"relational"}`,
			want:  `{"route":"relational"}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"route\":\"none\"}\n```",
			want:  `{"route":"none"}`,
		},
		{
			name:  "sql fence",
			input: "```sql\nSELECT 1\n```",
			want:  "SELECT 1",
		},
		{
			name:  "plain fence",
			input: "```\nSELECT 1\n```",
			want:  "SELECT 1",
		},
		{
			name:  "fence with trailing whitespace",
			input: "```json\n{}\n```\n  ",
			want:  "{}",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only fences",
			input: "```json\n```",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.input); got != tt.want {
				t.Errorf("stripCodeFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{name: "short", input: "hello", n: 10, want: "hello"},
		{name: "exact", input: "hello", n: 5, want: "hello"},
		{name: "truncated", input: "hello world", n: 5, want: "hello..."},
		{name: "empty", input: "", n: 5, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
			}
		})
	}
}

func TestPlanPromptDocumentsAllRoutes(t *testing.T) {
	for _, route := range []string{`"relational"`, `"retrieval"`, `"both"`, `"none"`} {
		if !strings.Contains(planPrompt, route) {
			t.Errorf("planPrompt missing route %s", route)
		}
	}
	if got := strings.Count(planPrompt, "%s"); got != 2 {
		t.Errorf("planPrompt has %d %%s placeholders, want 2", got)
	}
	if got := strings.Count(planPrompt, "%d"); got != 1 {
		t.Errorf("planPrompt has %d %%d placeholders, want 1", got)
	}
}

func TestRepairPromptPlaceholders(t *testing.T) {
	if got := strings.Count(repairPrompt, "%s"); got != 4 {
		t.Errorf("repairPrompt has %d %%s placeholders, want 4", got)
	}
	if !strings.Contains(repairPrompt, "ONE corrected SELECT") {
		t.Error("repairPrompt missing single-statement instruction")
	}
}
