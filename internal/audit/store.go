package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/router"
)

const insertAnswerSQL = `INSERT INTO answers
	(id, question, answer_text, state, reason, decision, citations, tool_backed, created_at, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const insertInvocationSQL = `INSERT INTO invocations
	(answer_id, seq, adapter, request, result, error, duration_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Store persists answers through a pgx pool. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

var _ router.Recorder = (*Store)(nil)

// New creates an audit Store.
func New(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Record writes one terminal answer with its trace in a single transaction.
// Non-terminal answers are refused: an in-flight answer has no business in
// the audit trail.
func (s *Store) Record(ctx context.Context, ans *router.Answer) error {
	if ans == nil {
		return fmt.Errorf("answer is required")
	}
	if !ans.State.Terminal() {
		return fmt.Errorf("answer %s is not terminal (state %q)", ans.ID, ans.State)
	}

	decision, err := json.Marshal(ans.Decision)
	if err != nil {
		return fmt.Errorf("marshaling decision: %w", err)
	}
	citations := ans.Citations
	if citations == nil {
		citations = []router.Citation{}
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("marshaling citations: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	_, err = tx.Exec(ctx, insertAnswerSQL,
		ans.ID, ans.Question, ans.Text, string(ans.State), string(ans.Reason),
		decision, citationsJSON, ans.ToolBacked, ans.CreatedAt, ans.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting answer %s: %w", ans.ID, err)
	}

	for _, inv := range ans.Invocations {
		request := inv.Request
		if len(request) == 0 {
			request = json.RawMessage(`{}`)
		}
		_, err := tx.Exec(ctx, insertInvocationSQL,
			ans.ID, inv.Seq, inv.Adapter, request, inv.Result, inv.Error, inv.DurationMS,
		)
		if err != nil {
			return fmt.Errorf("inserting invocation %d of answer %s: %w", inv.Seq, ans.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing answer %s: %w", ans.ID, err)
	}

	s.logger.Debug("recorded answer",
		"answer_id", ans.ID,
		"state", ans.State,
		"invocations", len(ans.Invocations))
	return nil
}

// Recent lists persisted answers newest first. The id tiebreak keeps the
// order stable when answers share a timestamp.
func (s *Store) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit < 1 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, question, state, reason, tool_backed, created_at, completed_at
		 FROM answers
		 ORDER BY created_at DESC, id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing answers: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var (
			sm            Summary
			state, reason string
		)
		if err := rows.Scan(&sm.ID, &sm.Question, &state, &reason, &sm.ToolBacked, &sm.CreatedAt, &sm.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning answer summary: %w", err)
		}
		sm.State = router.State(state)
		sm.Reason = router.Reason(reason)
		summaries = append(summaries, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating answers: %w", err)
	}
	return summaries, nil
}

// Get loads one persisted answer with its full trace.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*router.Answer, error) {
	var (
		ans                 router.Answer
		state, reason       string
		decision, citations []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, question, answer_text, state, reason, decision, citations, tool_backed, created_at, completed_at
		 FROM answers
		 WHERE id = $1`, id).
		Scan(&ans.ID, &ans.Question, &ans.Text, &state, &reason,
			&decision, &citations, &ans.ToolBacked, &ans.CreatedAt, &ans.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("answer %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading answer %s: %w", id, err)
	}
	ans.State = router.State(state)
	ans.Reason = router.Reason(reason)

	if err := json.Unmarshal(decision, &ans.Decision); err != nil {
		return nil, fmt.Errorf("unmarshaling decision of answer %s: %w", id, err)
	}
	if err := json.Unmarshal(citations, &ans.Citations); err != nil {
		return nil, fmt.Errorf("unmarshaling citations of answer %s: %w", id, err)
	}
	if ans.Citations == nil {
		ans.Citations = []router.Citation{}
	}

	invocations, err := s.invocations(ctx, id)
	if err != nil {
		return nil, err
	}
	ans.Invocations = invocations
	return &ans, nil
}

// invocations loads the trace of one answer in call order.
func (s *Store) invocations(ctx context.Context, id uuid.UUID) ([]router.Invocation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, adapter, request, result, error, duration_ms
		 FROM invocations
		 WHERE answer_id = $1
		 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("loading invocations of answer %s: %w", id, err)
	}
	defer rows.Close()

	invocations := []router.Invocation{}
	for rows.Next() {
		var (
			inv     router.Invocation
			request []byte
		)
		if err := rows.Scan(&inv.Seq, &inv.Adapter, &request, &inv.Result, &inv.Error, &inv.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning invocation of answer %s: %w", id, err)
		}
		inv.Request = json.RawMessage(request)
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocations of answer %s: %w", id, err)
	}
	return invocations, nil
}
