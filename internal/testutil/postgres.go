// Package testutil provides shared test infrastructure: a pgvector
// Postgres container, deterministic model and embedder mocks, and small
// CLI helpers. It follows the layout of stdlib helpers like
// net/http/httptest: reusable across packages, imported only from tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/showroomlabs/showroom/db"
	"github.com/showroomlabs/showroom/internal/log"
)

// TestDB wraps a Postgres test container with a ready connection pool.
// The schema is the real one: the embedded migrations are applied on
// startup.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a pgvector Postgres container for one test.
// The returned cleanup must be called to terminate the container.
//
// For packages where every integration test shares one container, use
// SetupTestDBForMain from TestMain instead.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	testDB, cleanup, err := SetupTestDBForMain()
	if err != nil {
		t.Fatalf("starting test database: %v", err)
	}
	return testDB, cleanup
}

// SetupTestDBForMain is the TestMain variant of SetupTestDB: it reports
// errors instead of failing a testing.T, so callers can decide between
// skipping and aborting the package.
func SetupTestDBForMain() (*TestDB, func(), error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("showroom_test"),
		postgres.WithUsername("showroom_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("starting postgres container: %w", err)
	}

	terminate := func() {
		_ = pgContainer.Terminate(context.Background())
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("getting connection string: %w", err)
	}

	if err := db.Migrate(connStr, log.NewNop()); err != nil {
		terminate()
		return nil, nil, fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		terminate()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	testDB := &TestDB{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
	cleanup := func() {
		pool.Close()
		terminate()
	}
	return testDB, cleanup, nil
}

// CleanTables truncates all data tables for test isolation. Sequence
// counters restart so insertion-order columns are reproducible across
// tests.
func CleanTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`TRUNCATE passages, answers, invocations RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}
