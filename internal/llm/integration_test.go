//go:build integration

package llm

// Live-model tests against the real Gemini API. They verify that the
// prompt contracts hold with an actual model: planning comes back as
// parseable JSON, repairs stay inside the schema, and composition
// respects the database-first precedence rule.
//
// Requires GEMINI_API_KEY. Run with:
//
//	go test -tags=integration ./internal/llm -v

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showroomlabs/showroom/internal/passage"
	"github.com/showroomlabs/showroom/internal/relational"
	"github.com/showroomlabs/showroom/internal/router"
	"github.com/showroomlabs/showroom/internal/testutil"
)

var sharedAI *testutil.GoogleAISetup

func TestMain(m *testing.M) {
	setup, err := testutil.SetupGoogleAIForMain()
	if err != nil {
		if errors.Is(err, testutil.ErrNoAPIKey) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "setting up Google AI: %v\n", err)
		os.Exit(1)
	}
	sharedAI = setup
	os.Exit(m.Run())
}

func livePlanner(t *testing.T) *Planner {
	t.Helper()

	client, err := NewClient(Config{
		Genkit:    sharedAI.Genkit,
		ModelName: "googleai/gemini-2.5-flash",
		Logger:    sharedAI.Logger,
	})
	require.NoError(t, err)

	planner, err := NewPlanner(client, relational.Default().SchemaSummary(), 10)
	require.NoError(t, err)
	return planner
}

func TestPlanner_Plan_Relational_Integration(t *testing.T) {
	planner := livePlanner(t)

	dec, err := planner.Plan(context.Background(),
		"How many RAV4 were sold in Germany in 2024?")
	require.NoError(t, err)

	assert.Contains(t, []router.Route{router.RouteRelational, router.RouteBoth}, dec.Route)
	require.NotEmpty(t, dec.SQL)
	assert.Contains(t, strings.ToUpper(dec.SQL), "SELECT")
	assert.Contains(t, strings.ToLower(dec.SQL), "sales")
}

func TestPlanner_Plan_Retrieval_Integration(t *testing.T) {
	planner := livePlanner(t)

	dec, err := planner.Plan(context.Background(),
		"How often should the tires be rotated according to the owner's manual?")
	require.NoError(t, err)

	assert.Contains(t, []router.Route{router.RouteRetrieval, router.RouteBoth}, dec.Route)
	assert.NotEmpty(t, dec.Query)
}

func TestPlanner_RepairSQL_Integration(t *testing.T) {
	planner := livePlanner(t)

	repaired, err := planner.RepairSQL(context.Background(),
		"Total units sold in 2024",
		"SELECT SUM(units) FROM sale WHERE year = 2024",
		"no such table: sale")
	require.NoError(t, err)

	assert.Contains(t, strings.ToLower(repaired), "sales")
	assert.NotContains(t, strings.ToUpper(repaired), "INSERT")
}

func TestComposer_Compose_PrefersDatabaseValue_Integration(t *testing.T) {
	client, err := NewClient(Config{
		Genkit:    sharedAI.Genkit,
		ModelName: "googleai/gemini-2.5-flash",
		Logger:    sharedAI.Logger,
	})
	require.NoError(t, err)

	composer, err := NewComposer(client)
	require.NoError(t, err)

	// A database value and a manual passage that disagree on purpose.
	evidence := router.Evidence{
		Relational: []router.RelationalEvidence{{
			SQL: "SELECT towing_capacity_kg FROM specs WHERE model = 'Hilux' AND year = 2024",
			Result: relational.Result{
				Columns:  []string{"towing_capacity_kg"},
				Rows:     [][]string{{"3500"}},
				RowCount: 1,
			},
		}},
		Passages: []passage.Passage{{
			ID:         passage.Key("owners_manual.pdf", 212),
			Source:     "owners_manual.pdf",
			Page:       212,
			Text:       "The maximum towing capacity is 2800 kg.",
			Similarity: 0.92,
		}},
	}.Render()

	text, err := composer.Compose(context.Background(),
		"What is the towing capacity of the Hilux?", evidence)
	require.NoError(t, err)

	assert.Contains(t, text, "3500")
}
