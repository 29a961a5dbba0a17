package passage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/showroomlabs/showroom/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EmbedTimeout bounds one embedding call during indexing and search.
const EmbedTimeout = 30 * time.Second

// MaxQueryLen caps search query length in bytes before embedding.
const MaxQueryLen = 8192

// upsertPassageSQL keeps re-indexing idempotent: the same source page
// replaces its content and embedding but keeps its insertion sequence.
const upsertPassageSQL = `INSERT INTO passages (id, source, page, content, embedding)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE
	SET source = EXCLUDED.source, page = EXCLUDED.page,
	    content = EXCLUDED.content, embedding = EXCLUDED.embedding`

// Options tunes retrieval bounds and embedding behavior.
type Options struct {
	// DefaultK is used when a request asks for k < 1 (default 5).
	DefaultK int
	// MaxK is the hard ceiling on k (default 10).
	MaxK int
	// EmbedConfig is passed through to the embedder as provider-specific
	// options (e.g. Gemini output dimensionality). May be nil.
	EmbedConfig any
}

// Store manages the passage index. Safe for concurrent use; per-question
// state lives in Request/Result, never in the Store.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	opts     Options
	logger   log.Logger
}

// NewStore creates a passage Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, opts Options, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if opts.DefaultK <= 0 {
		opts.DefaultK = 5
	}
	if opts.MaxK <= 0 {
		opts.MaxK = 10
	}
	return &Store{pool: pool, embedder: embedder, opts: opts, logger: logger}, nil
}

// embed generates vectors for the given texts in one embedder call.
func (s *Store) embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}
	resp, err := s.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   docs,
		Options: s.opts.EmbedConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vecs := make([]pgvector.Vector, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vecs[i] = pgvector.NewVector(emb.Embedding)
	}
	return vecs, nil
}

// clampK applies the default and the ceiling to a requested k.
func (s *Store) clampK(k int) int {
	if k < 1 {
		return s.opts.DefaultK
	}
	if k > s.opts.MaxK {
		return s.opts.MaxK
	}
	return k
}

// Search finds the passages most similar to the query.
// Returns up to k results ordered by cosine similarity descending, ties
// broken by insertion sequence. An unreachable store or embedder returns
// ErrUnavailable; an empty index returns an empty result.
func (s *Store) Search(ctx context.Context, req Request) (Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	if len(query) > MaxQueryLen {
		query = query[:MaxQueryLen]
	}
	k := s.clampK(req.TopK)

	vecs, err := s.embed(ctx, []string{query})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, page, content, seq, 1 - (embedding <=> $1) AS similarity
		 FROM passages
		 ORDER BY embedding <=> $1, seq ASC
		 LIMIT $2`,
		vecs[0], k,
	)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var res Result
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.ID, &p.Source, &p.Page, &p.Text, &p.Seq, &p.Similarity); err != nil {
			return Result{}, fmt.Errorf("%w: scanning passage: %v", ErrUnavailable, err)
		}
		res.Passages = append(res.Passages, p)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug("searched passages",
		"k", k,
		"results", len(res.Passages),
		"duration", time.Since(start))

	return res, nil
}

// Add embeds and upserts one batch of passages atomically. The indexing
// pipeline calls this with batches of up to 64 pages; all texts of a
// batch are embedded in a single embedder call.
func (s *Store) Add(ctx context.Context, passages []Passage) error {
	if len(passages) == 0 {
		return nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		if p.ID == "" || strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("passage %d: id and text are required", i)
		}
		texts[i] = p.Text
	}

	vecs, err := s.embed(ctx, texts)
	if err != nil {
		return err
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

	for i, p := range passages {
		if err := upsertPassage(ctx, tx, p, vecs[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing passage batch: %w", err)
	}

	s.logger.Debug("indexed passage batch", "count", len(passages))
	return nil
}

// upsertPassage writes one passage row through pool or tx.
func upsertPassage(ctx context.Context, q querier, p Passage, vec pgvector.Vector) error {
	if _, err := q.Exec(ctx, upsertPassageSQL, p.ID, p.Source, p.Page, p.Text, vec); err != nil {
		return fmt.Errorf("upserting passage %q: %w", p.ID, err)
	}
	return nil
}

// Count returns the number of indexed passages.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return count, nil
}

// DeleteBySource removes every passage of a source, so re-indexing a
// source replaces its passages. Returns the number of rows removed.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM passages WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("deleting passages for source %q: %w", source, err)
	}
	return tag.RowsAffected(), nil
}

// Sources lists indexed sources with their passage counts.
func (s *Store) Sources(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT source, COUNT(*) FROM passages GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	sources := make(map[string]int64)
	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return sources, nil
}
