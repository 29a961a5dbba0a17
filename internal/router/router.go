// Package router runs the answer cycle for one question: an explicit state
// machine (received, planning, invoking, composing, done or failed) over two
// read-only adapters, a relational SQL store and a semantic passage index.
//
// The model boundary is two calls. Planning returns a typed Decision naming
// which adapters to consult and with what arguments; composing turns the
// assembled evidence into answer text. Everything between those calls is
// deterministic: adapter order (relational first), the single corrective SQL
// retry, evidence precedence, and citation derivation are plain code, not
// model choices.
//
// Every terminal answer, failed ones included, carries its full invocation
// trace and is handed to the Recorder.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/passage"
	"github.com/showroomlabs/showroom/internal/relational"
)

// Caller errors, reported before an answer cycle starts.
var (
	ErrEmptyQuestion   = errors.New("empty question")
	ErrQuestionTooLong = errors.New("question too long")
)

// persistTimeout bounds the audit write. It runs detached from the question
// context: a timed-out question must still persist its partial trace.
const persistTimeout = 5 * time.Second

// Planner produces the typed decision for a question, and repairs a
// rejected SQL statement given the store's error text.
type Planner interface {
	Plan(ctx context.Context, question string) (Decision, error)
	RepairSQL(ctx context.Context, question, sql, dbError string) (string, error)
}

// Composer writes the final answer text. An empty evidence block asks for a
// general-knowledge answer.
type Composer interface {
	Compose(ctx context.Context, question, evidence string) (string, error)
}

// RelationalStore is the read-only SQL surface.
type RelationalStore interface {
	Execute(ctx context.Context, req relational.Request) (relational.Result, error)
}

// PassageSearcher is the semantic retrieval surface.
type PassageSearcher interface {
	Search(ctx context.Context, req passage.Request) (passage.Result, error)
}

// Recorder persists terminal answers. Implementations must accept failed
// answers with partial traces.
type Recorder interface {
	Record(ctx context.Context, ans *Answer) error
}

// Config assembles a Router. Planner, Composer and both adapters are
// required; Recorder is optional. Zero timeouts and bounds take defaults.
type Config struct {
	Planner    Planner
	Composer   Composer
	Relational RelationalStore
	Passages   PassageSearcher
	Recorder   Recorder
	Logger     log.Logger

	PlanTimeout     time.Duration
	InvokeTimeout   time.Duration
	ComposeTimeout  time.Duration
	QuestionTimeout time.Duration

	DefaultTopK    int
	MaxTopK        int
	MaxQuestionLen int

	// AllowGeneralKnowledge lets a none-route decision produce an answer
	// without tools (flagged as such). Disabled, a none route fails.
	AllowGeneralKnowledge bool
}

func (c *Config) validate() error {
	if c.Planner == nil {
		return fmt.Errorf("planner is required")
	}
	if c.Composer == nil {
		return fmt.Errorf("composer is required")
	}
	if c.Relational == nil {
		return fmt.Errorf("relational store is required")
	}
	if c.Passages == nil {
		return fmt.Errorf("passage searcher is required")
	}
	return nil
}

// Router answers questions. Stateless across questions: all per-question
// state lives in the Answer, so concurrent Ask calls are independent.
type Router struct {
	planner    Planner
	composer   Composer
	relational RelationalStore
	passages   PassageSearcher
	recorder   Recorder
	logger     log.Logger

	planTimeout     time.Duration
	invokeTimeout   time.Duration
	composeTimeout  time.Duration
	questionTimeout time.Duration

	defaultTopK    int
	maxTopK        int
	maxQuestionLen int

	allowGeneralKnowledge bool
}

// New creates a Router from the config.
func New(cfg Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("router config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.PlanTimeout <= 0 {
		cfg.PlanTimeout = 20 * time.Second
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = 15 * time.Second
	}
	if cfg.ComposeTimeout <= 0 {
		cfg.ComposeTimeout = 30 * time.Second
	}
	if cfg.QuestionTimeout <= 0 {
		cfg.QuestionTimeout = 60 * time.Second
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 10
	}
	if cfg.MaxQuestionLen <= 0 {
		cfg.MaxQuestionLen = 4000
	}

	return &Router{
		planner:               cfg.Planner,
		composer:              cfg.Composer,
		relational:            cfg.Relational,
		passages:              cfg.Passages,
		recorder:              cfg.Recorder,
		logger:                cfg.Logger,
		planTimeout:           cfg.PlanTimeout,
		invokeTimeout:         cfg.InvokeTimeout,
		composeTimeout:        cfg.ComposeTimeout,
		questionTimeout:       cfg.QuestionTimeout,
		defaultTopK:           cfg.DefaultTopK,
		maxTopK:               cfg.MaxTopK,
		maxQuestionLen:        cfg.MaxQuestionLen,
		allowGeneralKnowledge: cfg.AllowGeneralKnowledge,
	}, nil
}

// AskOption adjusts a single question without changing router defaults.
type AskOption func(*askOptions)

type askOptions struct {
	topK int
}

// WithTopK overrides the planner's passage count for one question. Values
// below 1 are ignored, values above the router maximum are clamped, and the
// override only takes effect when the decision consults retrieval.
func WithTopK(k int) AskOption {
	return func(o *askOptions) { o.topK = k }
}

// Ask runs one question to a terminal answer. The returned error covers
// caller mistakes only (empty or over-long question); everything that goes
// wrong inside the cycle terminates in a failed Answer instead.
func (r *Router) Ask(ctx context.Context, question string, opts ...AskOption) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if n := utf8.RuneCountInString(question); n > r.maxQuestionLen {
		return nil, fmt.Errorf("%w: %d runes (max %d)", ErrQuestionTooLong, n, r.maxQuestionLen)
	}

	var o askOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, r.questionTimeout)
	defer cancel()

	ans := newAnswer(question)
	r.logger.Info("question received", "answer_id", ans.ID)

	r.run(ctx, ans, o)
	ans.CompletedAt = time.Now().UTC()

	r.persist(ctx, ans)

	r.logger.Info("question finished",
		"answer_id", ans.ID,
		"state", ans.State,
		"reason", ans.Reason,
		"invocations", len(ans.Invocations),
		"duration", ans.Duration())
	return ans, nil
}

func (r *Router) run(ctx context.Context, ans *Answer, o askOptions) {
	r.transition(ans, StatePlanning)
	dec, err := r.plan(ctx, ans.Question)
	if err != nil {
		reason := ReasonPlanningFailure
		if t := timeoutReason(ctx, err); t != ReasonNone {
			reason = t
		}
		r.fail(ans, reason, err)
		return
	}
	if o.topK > 0 && dec.ConsultsRetrieval() {
		// The recorded decision carries the effective k, not the planner's.
		dec.TopK = min(o.topK, r.maxTopK)
	}
	ans.Decision = dec

	ev := Evidence{}
	if dec.Route == RouteNone {
		if !r.allowGeneralKnowledge {
			r.fail(ans, ReasonFailed, errors.New("decision consults no adapter and general-knowledge answers are disabled"))
			return
		}
	} else {
		r.transition(ans, StateInvoking)
		var reason Reason
		ev, reason = r.invoke(ctx, ans, dec)
		if reason != ReasonNone {
			r.fail(ans, reason, nil)
			return
		}
	}

	r.transition(ans, StateComposing)
	ans.Citations = ev.Citations()
	ans.ToolBacked = !ev.Empty()
	text, err := r.compose(ctx, ans.Question, ev)
	if err != nil {
		reason := ReasonFailed
		if t := timeoutReason(ctx, err); t != ReasonNone {
			reason = t
		}
		r.fail(ans, reason, err)
		return
	}
	ans.Text = text
	r.transition(ans, StateDone)
}

func (r *Router) plan(ctx context.Context, question string) (Decision, error) {
	pctx, cancel := context.WithTimeout(ctx, r.planTimeout)
	defer cancel()

	raw, err := r.planner.Plan(pctx, question)
	if err != nil {
		return Decision{}, fmt.Errorf("planning: %w", err)
	}
	dec, err := normalizeDecision(raw, question, r.defaultTopK, r.maxTopK)
	if err != nil {
		return Decision{}, fmt.Errorf("unusable decision: %w", err)
	}
	r.logger.Debug("planned",
		"route", dec.Route,
		"top_k", dec.TopK,
		"rationale", dec.Rationale)
	return dec, nil
}

// invoke runs the consulted adapters in route order under the stage bound.
// It returns the collected evidence and ReasonNone unless the stage timed
// out or every consulted adapter failed; a single adapter failure with the
// other adapter still answering stays in the trace without failing the
// question.
func (r *Router) invoke(ctx context.Context, ans *Answer, dec Decision) (Evidence, Reason) {
	ictx, cancel := context.WithTimeout(ctx, r.invokeTimeout)
	defer cancel()

	var ev Evidence
	var failures []Reason

	consulted := 0
	if dec.ConsultsRelational() {
		consulted++
		re, reason := r.invokeRelational(ictx, ans, dec)
		switch reason {
		case ReasonTimeout:
			return ev, ReasonTimeout
		case ReasonNone:
			ev.Relational = append(ev.Relational, re)
		default:
			failures = append(failures, reason)
		}
	}

	if dec.ConsultsRetrieval() {
		consulted++
		passages, reason := r.invokeRetrieval(ictx, ans, dec)
		switch reason {
		case ReasonTimeout:
			return ev, ReasonTimeout
		case ReasonNone:
			ev.Passages = append(ev.Passages, passages...)
		default:
			failures = append(failures, reason)
		}
	}

	if consulted > 0 && len(failures) == consulted {
		// Total failure: the dominant reason is the first failure in call
		// order, so a relational failure outranks a retrieval one.
		return ev, failures[0]
	}
	return ev, ReasonNone
}

// invokeRelational executes the planned SQL with at most one corrective
// retry: on a rejected or failed query the planner is asked to repair it
// given the error text, and the repaired query runs once. Both attempts are
// recorded.
func (r *Router) invokeRelational(ctx context.Context, ans *Answer, dec Decision) (RelationalEvidence, Reason) {
	res, err := r.executeSQL(ctx, ans, dec.SQL)
	if err == nil {
		return RelationalEvidence{SQL: dec.SQL, Result: res}, ReasonNone
	}
	if t := timeoutReason(ctx, err); t != ReasonNone {
		return RelationalEvidence{}, t
	}
	if !errors.Is(err, relational.ErrInvalidQuery) && !errors.Is(err, relational.ErrExecution) {
		return RelationalEvidence{}, ReasonExecutionError
	}

	repaired, rerr := r.planner.RepairSQL(ctx, ans.Question, dec.SQL, err.Error())
	repaired = strings.TrimSpace(repaired)
	if rerr != nil || repaired == "" {
		if t := timeoutReason(ctx, rerr); t != ReasonNone {
			return RelationalEvidence{}, t
		}
		r.logger.Warn("sql repair produced no query", "answer_id", ans.ID, "error", rerr)
		return RelationalEvidence{}, relationalReason(err)
	}

	res, err = r.executeSQL(ctx, ans, repaired)
	if err == nil {
		return RelationalEvidence{SQL: repaired, Result: res}, ReasonNone
	}
	if t := timeoutReason(ctx, err); t != ReasonNone {
		return RelationalEvidence{}, t
	}
	return RelationalEvidence{}, relationalReason(err)
}

// executeSQL runs one query and records the invocation either way.
func (r *Router) executeSQL(ctx context.Context, ans *Answer, sql string) (relational.Result, error) {
	req := relational.Request{SQL: sql}
	start := time.Now()
	res, err := r.relational.Execute(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		ans.record(AdapterRelational, req, "", err.Error(), elapsed)
		return relational.Result{}, err
	}
	ans.record(AdapterRelational, req, res.Text(), "", elapsed)
	return res, nil
}

// invokeRetrieval searches the passage index once. Retrieval failures are
// recorded and never retried.
func (r *Router) invokeRetrieval(ctx context.Context, ans *Answer, dec Decision) ([]passage.Passage, Reason) {
	req := passage.Request{Query: dec.Query, TopK: dec.TopK}
	start := time.Now()
	res, err := r.passages.Search(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		ans.record(AdapterRetrieval, req, "", err.Error(), elapsed)
		if t := timeoutReason(ctx, err); t != ReasonNone {
			return nil, t
		}
		return nil, ReasonIndexUnavailable
	}
	ans.record(AdapterRetrieval, req, res.Text(), "", elapsed)
	return res.Passages, ReasonNone
}

func (r *Router) compose(ctx context.Context, question string, ev Evidence) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.composeTimeout)
	defer cancel()

	text, err := r.composer.Compose(cctx, question, ev.Render())
	if err != nil {
		return "", fmt.Errorf("composing: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("composer returned empty text")
	}
	return text, nil
}

func (r *Router) transition(ans *Answer, next State) {
	r.logger.Debug("state transition", "answer_id", ans.ID, "from", ans.State, "to", next)
	ans.State = next
}

func (r *Router) fail(ans *Answer, reason Reason, err error) {
	ans.State = StateFailed
	ans.Reason = reason
	if err != nil {
		r.logger.Warn("question failed", "answer_id", ans.ID, "reason", reason, "error", err)
		return
	}
	r.logger.Warn("question failed", "answer_id", ans.ID, "reason", reason)
}

// persist hands the terminal answer to the recorder on a context detached
// from the question's: persistence must survive a consumed deadline.
// Recorder failures are logged, never fatal to the answer.
func (r *Router) persist(ctx context.Context, ans *Answer) {
	if r.recorder == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := r.recorder.Record(pctx, ans); err != nil {
		r.logger.Error("persisting answer", "answer_id", ans.ID, "error", err)
	}
}

// timeoutReason maps context expiry to ReasonTimeout. Cancellation counts:
// the taxonomy has no separate reason for a caller giving up, and either way
// the question's time was cut short.
func timeoutReason(ctx context.Context, err error) Reason {
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return ReasonTimeout
	}
	if ctx.Err() != nil {
		return ReasonTimeout
	}
	return ReasonNone
}

func relationalReason(err error) Reason {
	if errors.Is(err, relational.ErrInvalidQuery) {
		return ReasonInvalidQuery
	}
	return ReasonExecutionError
}
