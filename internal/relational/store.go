// Package relational executes validated read-only SQL against the local
// SQLite sales database.
//
// Two layers keep the store read-only:
//  1. Validation: every statement must be a single SELECT (or
//     WITH...SELECT), free of write/DDL/transaction keywords, referencing
//     only tables in the Registry. See ValidateQuery.
//  2. The connection itself: the database file is opened with mode=ro, so
//     a statement that defeats validation still cannot write.
//
// The table set is declared in code (Registry); schemas are fixed at
// data-load time and never inferred from data. The Registry also renders
// the schema summary given to the planner.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/showroomlabs/showroom/internal/log"
)

// Store executes validated read-only queries. Safe for concurrent use;
// per-question state lives in Request/Result, never in the Store.
type Store struct {
	db       *sql.DB
	registry *Registry
	rowLimit int
	logger   log.Logger
}

// Open opens the SQLite database at path in read-only mode. Opening fails
// when the file does not exist (mode=ro never creates one). rowLimit caps
// the rows a single query may return; values <= 0 fall back to 100.
func Open(path string, registry *Registry, rowLimit int, logger log.Logger) (*Store, error) {
	if rowLimit <= 0 {
		rowLimit = 100
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// sql.Open is lazy; ping now so a missing or unreadable file fails
	// at startup instead of on the first question
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening sqlite database %q (run `showroom ingest` first?): %w", path, err)
	}

	s := &Store{db: db, registry: registry, rowLimit: rowLimit, logger: logger}
	s.warnMissingTables(context.Background())
	return s, nil
}

// warnMissingTables logs registered tables absent from the database file.
// Missing tables are not fatal here; queries against them fail with
// ErrExecution.
func (s *Store) warnMissingTables(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		s.logger.Warn("could not inspect sqlite schema", "error", err)
		return
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			s.logger.Warn("could not inspect sqlite schema", "error", err)
			return
		}
		present[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("could not inspect sqlite schema", "error", err)
		return
	}

	var missing []string
	for _, name := range s.registry.Names() {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		s.logger.Warn("registered tables missing from sqlite database",
			"tables", strings.Join(missing, ", "),
			"hint", "run `showroom ingest` to load them")
	}
}

// Registry returns the table registry backing this store.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Execute validates and runs one read-only query. Invalid statements
// return ErrInvalidQuery, store-level failures return ErrExecution, both
// wrapped in a *QueryError carrying the SQL. Results are capped at the
// requested limit (clamped to the store limit) with Truncated set when
// rows were dropped.
func (s *Store) Execute(ctx context.Context, req Request) (Result, error) {
	sqlText := strings.TrimSpace(req.SQL)
	if err := s.registry.ValidateQuery(sqlText); err != nil {
		return Result{}, err
	}

	limit := req.Limit
	if limit <= 0 || limit > s.rowLimit {
		limit = s.rowLimit
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, strings.TrimSuffix(sqlText, ";"))
	if err != nil {
		return Result{}, executionError(sqlText, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, executionError(sqlText, err)
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	res := Result{Columns: cols}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, executionError(sqlText, err)
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = formatValue(v)
		}
		res.Rows = append(res.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return Result{}, executionError(sqlText, err)
	}
	res.RowCount = len(res.Rows)

	s.logger.Debug("executed relational query",
		"rows", res.RowCount,
		"truncated", res.Truncated,
		"duration", time.Since(start))

	return res, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// formatValue renders a scanned SQLite value as text. Rendering is
// deterministic so identical data yields identical result text.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
