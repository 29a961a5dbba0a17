package relational

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuery_Valid(t *testing.T) {
	t.Parallel()

	reg := Default()

	queries := []struct {
		name  string
		query string
	}{
		{"simple select", "SELECT * FROM sales"},
		{"trailing semicolon", "SELECT model, units FROM sales;"},
		{"lowercase", "select units from sales where year = 2024"},
		{"aggregate", "SELECT country, SUM(units) FROM sales GROUP BY country ORDER BY 2 DESC LIMIT 5"},
		{"bare alias", "SELECT s.units FROM sales s WHERE s.model = 'RAV4'"},
		{"as alias", "SELECT s.units FROM sales AS s"},
		{"join", "SELECT s.units, p.towing_capacity_kg FROM sales s JOIN specs p ON s.model = p.model"},
		{"comma join", "SELECT * FROM sales, specs"},
		{"subquery", "SELECT * FROM (SELECT model, units FROM sales) WHERE units > 100"},
		{"cte", "WITH top AS (SELECT model, SUM(units) AS total FROM sales GROUP BY model) SELECT * FROM top"},
		{"keyword inside literal", "SELECT * FROM sales WHERE model = 'DROP Edition'"},
		{"replace function", "SELECT replace(model, ' ', '-') FROM sales"},
		{"quoted table", `SELECT * FROM "sales"`},
		{"comment stripped", "SELECT * FROM sales -- trailing comment"},
	}

	for _, tt := range queries {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := reg.ValidateQuery(tt.query); err != nil {
				t.Errorf("ValidateQuery(%q) unexpected error: %v", tt.query, err)
			}
		})
	}
}

func TestValidateQuery_Invalid(t *testing.T) {
	t.Parallel()

	reg := Default()

	queries := []struct {
		name   string
		query  string
		reason string // substring expected in the error
	}{
		{"empty", "", "empty statement"},
		{"whitespace only", "   \n\t ", "empty statement"},
		{"lone semicolon", ";", "empty statement"},
		{"insert", "INSERT INTO sales VALUES ('Toyota')", "forbidden keyword"},
		{"update", "UPDATE sales SET units = 0", "forbidden keyword"},
		{"delete", "DELETE FROM sales", "forbidden keyword"},
		{"drop", "DROP TABLE sales", "forbidden keyword"},
		{"create", "CREATE TABLE x (id INTEGER)", "forbidden keyword"},
		{"alter", "ALTER TABLE sales ADD COLUMN x", "forbidden keyword"},
		{"pragma", "PRAGMA journal_mode = WAL", "forbidden keyword"},
		{"attach", "ATTACH DATABASE 'other.db' AS other", "forbidden keyword"},
		{"vacuum", "VACUUM", "forbidden keyword"},
		{"begin", "BEGIN TRANSACTION", "forbidden keyword"},
		{"select into", "SELECT * INTO backup FROM sales", "forbidden keyword"},
		{"keyword after select", "SELECT 1; DROP TABLE sales", "multiple statements"},
		{"multiple selects", "SELECT 1; SELECT 2", "multiple statements"},
		{"not a select", "EXPLAIN SELECT * FROM sales", "read-only SELECT"},
		{"unknown table", "SELECT * FROM customers", "unknown table"},
		{"unknown join table", "SELECT * FROM sales JOIN orders ON 1=1", "unknown table"},
		{"unknown in comma list", "SELECT * FROM sales, orders", "unknown table"},
		{"unknown in subquery", "SELECT * FROM (SELECT * FROM secrets)", "unknown table"},
		{"quoted unknown table", `SELECT * FROM "secrets"`, "unknown table"},
	}

	for _, tt := range queries {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := reg.ValidateQuery(tt.query)
			if err == nil {
				t.Fatalf("ValidateQuery(%q) expected error, got nil", tt.query)
			}
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("error should wrap ErrInvalidQuery, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error should mention %q, got: %v", tt.reason, err)
			}

			var qe *QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("error should be a *QueryError, got %T", err)
			}
			if qe.SQL != tt.query {
				t.Errorf("QueryError.SQL = %q, want %q", qe.SQL, tt.query)
			}
		})
	}
}

func TestValidateQuery_CTENamesAreAllowed(t *testing.T) {
	t.Parallel()

	reg := Default()

	query := `WITH per_year AS (
		SELECT year, SUM(units) AS total FROM sales GROUP BY year
	), ranked AS (
		SELECT * FROM per_year ORDER BY total DESC
	)
	SELECT * FROM ranked LIMIT 3`

	if err := reg.ValidateQuery(query); err != nil {
		t.Errorf("CTE names should be referencable: %v", err)
	}
}
