// Package ingest loads the two showroom data stores from files: the SQLite
// sales database from CSV exports, and the pgvector passage index from
// JSONL passage records.
//
// Both loaders are rebuild-style. The CSV loader builds a fresh database
// file under a file lock and swaps it into place atomically, so readers
// keep the old file until the new one is complete. The JSONL indexer
// removes each source's existing passages before re-adding them, so
// re-indexing a source replaces it fully, stale pages included.
//
// Schemas are declared in the relational Registry and never inferred from
// data: a CSV whose header does not name exactly the registered columns is
// rejected.
package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/relational"
)

// lockRetryInterval is how often a rebuild re-checks a held ingest lock.
const lockRetryInterval = 250 * time.Millisecond

// TableCount is the per-table outcome of a rebuild.
type TableCount struct {
	Table string
	Rows  int
}

// Report summarizes one rebuild: tables loaded in registry order, plus CSV
// files skipped because no registered table matched their stem.
type Report struct {
	Tables  []TableCount
	Skipped []string
}

// TotalRows sums the loaded row counts.
func (r *Report) TotalRows() int {
	total := 0
	for _, t := range r.Tables {
		total += t.Rows
	}
	return total
}

// Rebuilder rebuilds the SQLite sales database from a directory of CSV
// exports, one file per registered table (file stem = table name).
type Rebuilder struct {
	registry *relational.Registry
	logger   log.Logger
}

// NewRebuilder creates a Rebuilder over the given table registry.
func NewRebuilder(registry *relational.Registry, logger log.Logger) (*Rebuilder, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Rebuilder{registry: registry, logger: logger}, nil
}

// Rebuild loads every registered CSV in dataDir into a fresh database and
// atomically replaces the file at dbPath. The whole rebuild runs under a
// file lock so two loaders cannot interleave; on any failure the existing
// database file is left untouched.
func (r *Rebuilder) Rebuild(ctx context.Context, dataDir, dbPath string) (*Report, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("ingest lock %s is held by another process", lock.Path())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("releasing ingest lock", "error", err)
		}
	}()

	tmpPath := dbPath + ".rebuild"
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale rebuild file: %w", err)
	}

	report, err := r.build(ctx, entries, dataDir, tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	if err := os.Rename(tmpPath, dbPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("replacing database file: %w", err)
	}

	r.logger.Info("rebuilt sales database",
		"path", dbPath,
		"tables", len(report.Tables),
		"rows", report.TotalRows())
	return report, nil
}

// build writes the new database file. Everything happens in one
// transaction; the caller discards the file on error.
func (r *Rebuilder) build(ctx context.Context, entries []os.DirEntry, dataDir, tmpPath string) (*Report, error) {
	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return nil, fmt.Errorf("opening rebuild database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Debug("transaction rollback", "error", err)
		}
	}()

	report := &Report{}
	counts := make(map[string]int)

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		table, ok := r.registry.Lookup(stem)
		if !ok {
			r.logger.Warn("skipping csv without a registered table", "file", entry.Name())
			report.Skipped = append(report.Skipped, entry.Name())
			continue
		}
		if _, dup := counts[table.Name]; dup {
			return nil, fmt.Errorf("duplicate csv for table %s: %s", table.Name, entry.Name())
		}

		rows, err := r.loadTable(ctx, tx, table, filepath.Join(dataDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", entry.Name(), err)
		}
		counts[table.Name] = rows
		r.logger.Info("loaded table", "table", table.Name, "rows", rows, "file", entry.Name())
	}

	if len(counts) == 0 {
		return nil, fmt.Errorf("no csv files matching registered tables in %s", dataDir)
	}
	for _, name := range r.registry.Names() {
		rows, ok := counts[name]
		if !ok {
			r.logger.Warn("no csv file for registered table", "table", name)
			continue
		}
		report.Tables = append(report.Tables, TableCount{Table: name, Rows: rows})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing rebuild: %w", err)
	}
	return report, nil
}

// loadTable creates one table from its registered DDL and streams the CSV
// rows in. Row numbers in errors count CSV records, header included.
func (r *Rebuilder) loadTable(ctx context.Context, tx *sql.Tx, table relational.Table, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := tx.ExecContext(ctx, table.DDL()); err != nil {
		return 0, fmt.Errorf("creating table %s: %w", table.Name, err)
	}

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	if err := matchHeader(header, table); err != nil {
		return 0, err
	}

	cols := table.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", table.Name, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("preparing insert for %s: %w", table.Name, err)
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", rows+2, err)
		}

		args := make([]any, len(record))
		for i, cell := range record {
			v, err := convertCell(cell, table.Columns[i])
			if err != nil {
				return 0, fmt.Errorf("row %d: %w", rows+2, err)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("row %d: inserting: %w", rows+2, err)
		}
		rows++
	}
	return rows, nil
}

// matchHeader enforces the no-inference contract: the header must name the
// registered columns in declaration order. Comparison ignores case and
// surrounding whitespace; the first cell may carry a UTF-8 BOM.
func matchHeader(header []string, table relational.Table) error {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	want := table.ColumnNames()
	if len(header) != len(want) {
		return fmt.Errorf("header has %d columns, table %s declares %d (%s)",
			len(header), table.Name, len(want), strings.Join(want, ", "))
	}
	for i, cell := range header {
		if !strings.EqualFold(strings.TrimSpace(cell), want[i]) {
			return fmt.Errorf("header column %d is %q, table %s declares %q",
				i+1, strings.TrimSpace(cell), table.Name, want[i])
		}
	}
	return nil
}

// convertCell parses one cell per the declared column type. Empty cells
// become NULL.
func convertCell(cell string, col relational.Column) (any, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	switch col.Type {
	case "INTEGER":
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not an integer", col.Name, cell)
		}
		return n, nil
	case "REAL":
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a number", col.Name, cell)
		}
		return f, nil
	default:
		return cell, nil
	}
}
