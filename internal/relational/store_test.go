package relational

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/showroomlabs/showroom/internal/log"
)

// createTestDB builds a populated SQLite file the way the ingest loader
// does: declared DDL, then rows.
func createTestDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "showroom.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	defer db.Close()

	for _, table := range Default().Tables() {
		if _, err := db.Exec(table.DDL()); err != nil {
			t.Fatalf("creating table %s: %v", table.Name, err)
		}
	}

	rows := []struct {
		brand, model, powertrain, country, region string
		year, month, units                        int
	}{
		{"Toyota", "RAV4", "HEV", "Germany", "Western Europe", 2024, 1, 1200},
		{"Toyota", "RAV4", "HEV", "Germany", "Western Europe", 2024, 2, 1350},
		{"Toyota", "Yaris Hybrid", "HEV", "Germany", "Western Europe", 2023, 6, 800},
		{"Toyota", "Hilux", "48V", "France", "Western Europe", 2024, 3, 400},
		{"Lexus", "RC", "petrol", "Italy", "Western Europe", 2023, 9, 55},
	}
	for _, r := range rows {
		_, err := db.Exec(
			"INSERT INTO sales (brand, model, powertrain, country, region, year, month, units) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			r.brand, r.model, r.powertrain, r.country, r.region, r.year, r.month, r.units,
		)
		if err != nil {
			t.Fatalf("inserting sales row: %v", err)
		}
	}

	_, err = db.Exec(
		"INSERT INTO specs (brand, model, year, powertrain, body_type, fuel_type, seats, towing_capacity_kg) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		"Toyota", "Hilux", 2024, "48V", "pickup", "diesel", 5, 3500,
	)
	if err != nil {
		t.Fatalf("inserting specs row: %v", err)
	}

	return path
}

func openTestStore(t *testing.T, rowLimit int) *Store {
	t.Helper()

	store, err := Open(createTestDB(t), Default(), rowLimit, log.NewNop())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	return store
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does-not-exist.db")
	store, err := Open(path, Default(), 100, log.NewNop())
	if err == nil {
		_ = store.Close()
		t.Fatal("Open() should fail for a missing database file (read-only mode must not create one)")
	}
}

func TestExecute_Select(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 100)

	res, err := store.Execute(context.Background(), Request{
		SQL: "SELECT model, units FROM sales WHERE country = 'Germany' AND year = 2024 ORDER BY month",
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if len(res.Columns) != 2 || res.Columns[0] != "model" || res.Columns[1] != "units" {
		t.Errorf("unexpected columns: %v", res.Columns)
	}
	if res.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", res.RowCount)
	}
	if res.Rows[0][1] != "1200" || res.Rows[1][1] != "1350" {
		t.Errorf("unexpected row values: %v", res.Rows)
	}
	if res.Truncated {
		t.Error("result should not be truncated")
	}
}

func TestExecute_EmptyResultIsNotError(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 100)

	res, err := store.Execute(context.Background(), Request{
		SQL: "SELECT * FROM sales WHERE country = 'Atlantis'",
	})
	if err != nil {
		t.Fatalf("empty result must not be an error, got: %v", err)
	}
	if !res.Empty() {
		t.Errorf("expected empty result, got %d rows", res.RowCount)
	}
	if res.Text() != "(no rows)" {
		t.Errorf("empty result text = %q, want %q", res.Text(), "(no rows)")
	}
}

func TestExecute_Truncation(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 100)

	res, err := store.Execute(context.Background(), Request{
		SQL:   "SELECT model FROM sales ORDER BY units DESC",
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if res.RowCount != 2 {
		t.Errorf("expected 2 rows, got %d", res.RowCount)
	}
	if !res.Truncated {
		t.Error("expected Truncated = true when rows were dropped")
	}
}

func TestExecute_LimitClampedToStoreLimit(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 3)

	res, err := store.Execute(context.Background(), Request{
		SQL:   "SELECT model FROM sales",
		Limit: 10000,
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if res.RowCount != 3 {
		t.Errorf("expected row cap 3, got %d rows", res.RowCount)
	}
	if !res.Truncated {
		t.Error("expected Truncated = true at the store limit")
	}
}

func TestExecute_WriteRejectedAndStoreUnchanged(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 100)
	ctx := context.Background()

	writes := []string{
		"DELETE FROM sales",
		"UPDATE sales SET units = 0",
		"INSERT INTO sales (brand) VALUES ('x')",
		"DROP TABLE sales",
	}
	for _, q := range writes {
		_, err := store.Execute(ctx, Request{SQL: q})
		if !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Execute(%q) error = %v, want ErrInvalidQuery", q, err)
		}
	}

	res, err := store.Execute(ctx, Request{SQL: "SELECT COUNT(*) FROM sales"})
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if res.Rows[0][0] != "5" {
		t.Errorf("store changed after rejected writes: count = %s", res.Rows[0][0])
	}
}

func TestExecute_ExecutionError(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 100)

	query := "SELECT no_such_column FROM sales"
	_, err := store.Execute(context.Background(), Request{SQL: query})
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("Execute() error = %v, want ErrExecution", err)
	}

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error should be a *QueryError, got %T", err)
	}
	if qe.SQL != query {
		t.Errorf("QueryError.SQL = %q, want %q", qe.SQL, query)
	}
}

func TestExecute_Concurrent(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, 100)
	ctx := context.Background()

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := store.Execute(ctx, Request{SQL: "SELECT COUNT(*) FROM sales"})
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent Execute() failed: %v", err)
		}
	}
}

func TestResult_CSV(t *testing.T) {
	t.Parallel()

	res := Result{
		Columns:  []string{"model", "units"},
		Rows:     [][]string{{"RAV4", "1200"}, {"Yaris, Hybrid", "800"}},
		RowCount: 2,
	}

	got := res.CSV()
	want := "model,units\nRAV4,1200\n\"Yaris, Hybrid\",800"
	if got != want {
		t.Errorf("CSV() = %q, want %q", got, want)
	}
	if res.Text() != want {
		t.Errorf("Text() should equal CSV() for non-empty results")
	}
}

func TestRegistry_SchemaSummary(t *testing.T) {
	t.Parallel()

	summary := Default().SchemaSummary()

	for _, want := range []string{"table sales:", "table specs:", "towing_capacity_kg", "units INTEGER"} {
		if !strings.Contains(summary, want) {
			t.Errorf("SchemaSummary() should contain %q:\n%s", want, summary)
		}
	}
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	reg := Default()

	if _, ok := reg.Lookup("SALES"); !ok {
		t.Error("Lookup should be case-insensitive")
	}
	if _, ok := reg.Lookup("customers"); ok {
		t.Error("Lookup should miss unregistered tables")
	}
	if got := reg.Names(); len(got) != 2 || got[0] != "sales" || got[1] != "specs" {
		t.Errorf("Names() = %v", got)
	}
}

func TestTable_DDL(t *testing.T) {
	t.Parallel()

	table, ok := Default().Lookup("specs")
	if !ok {
		t.Fatal("specs table missing from default registry")
	}

	ddl := table.DDL()
	if !strings.HasPrefix(ddl, "CREATE TABLE specs (") {
		t.Errorf("DDL should open a CREATE TABLE statement, got:\n%s", ddl)
	}
	if !strings.Contains(ddl, "towing_capacity_kg INTEGER") {
		t.Errorf("DDL should declare towing_capacity_kg, got:\n%s", ddl)
	}
}
