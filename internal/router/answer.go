package router

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Adapter names as they appear in invocation traces and MCP tools.
const (
	AdapterRelational = "sql_select"
	AdapterRetrieval  = "rag_search"
)

// Invocation records one adapter call in a question's trace: the exact
// request payload, the rendered result text given to the composer, and the
// error text when the call failed. Seq starts at 1 and follows call order;
// corrective retries get their own entry.
type Invocation struct {
	Seq        int             `json:"seq"`
	Adapter    string          `json:"adapter"`
	Request    json.RawMessage `json:"request"`
	Result     string          `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// Citation points a reader at one source page the answer drew on.
type Citation struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// Answer is the terminal record of one question cycle. Failed answers keep
// whatever trace was collected before the failure.
type Answer struct {
	ID          uuid.UUID    `json:"id"`
	Question    string       `json:"question"`
	Text        string       `json:"text,omitempty"`
	State       State        `json:"state"`
	Reason      Reason       `json:"reason,omitempty"`
	Decision    Decision     `json:"decision"`
	Invocations []Invocation `json:"invocations"`
	Citations   []Citation   `json:"citations"`
	ToolBacked  bool         `json:"tool_backed"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Duration is the wall time from receipt to the terminal state.
func (a *Answer) Duration() time.Duration {
	return a.CompletedAt.Sub(a.CreatedAt)
}

func newAnswer(question string) *Answer {
	return &Answer{
		ID:          uuid.New(),
		Question:    question,
		State:       StateReceived,
		Invocations: []Invocation{},
		Citations:   []Citation{},
		CreatedAt:   time.Now().UTC(),
	}
}

// record appends one invocation to the trace, assigning the next sequence
// number. The request payload is marshaled here so the trace always carries
// the exact request, not a re-rendering.
func (a *Answer) record(adapter string, request any, result, errText string, d time.Duration) {
	payload, err := json.Marshal(request)
	if err != nil {
		payload = json.RawMessage(`{}`)
	}
	a.Invocations = append(a.Invocations, Invocation{
		Seq:        len(a.Invocations) + 1,
		Adapter:    adapter,
		Request:    payload,
		Result:     result,
		Error:      errText,
		DurationMS: d.Milliseconds(),
	})
}
