package testutil

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"google.golang.org/genai"

	"github.com/showroomlabs/showroom/internal/passage"
)

// GoogleAISetup bundles the resources integration tests need when they
// talk to the real Gemini API: a Genkit instance, an embedder truncated
// to the passage vector dimension, and a quiet logger.
type GoogleAISetup struct {
	Genkit      *genkit.Genkit
	Embedder    ai.Embedder
	EmbedConfig *genai.EmbedContentConfig
	Logger      *slog.Logger
}

// ErrNoAPIKey is returned by SetupGoogleAIForMain when GEMINI_API_KEY is
// not set. Callers in TestMain should exit zero so the package skips.
var ErrNoAPIKey = errors.New("GEMINI_API_KEY not set - skipping tests requiring Google AI")

// SetupGoogleAI creates a Google AI embedder for one test. Skips the
// test when GEMINI_API_KEY is not set.
func SetupGoogleAI(t *testing.T) *GoogleAISetup {
	t.Helper()

	setup, err := SetupGoogleAIForMain()
	if err != nil {
		if errors.Is(err, ErrNoAPIKey) {
			t.Skip(err.Error())
		}
		t.Fatalf("setting up Google AI: %v", err)
	}
	return setup
}

// SetupGoogleAIForMain is the TestMain variant of SetupGoogleAI. It
// returns ErrNoAPIKey instead of skipping, so TestMain can exit
// gracefully when no key is available.
func SetupGoogleAIForMain() (*GoogleAISetup, error) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return nil, ErrNoAPIKey
	}

	g := genkit.Init(context.Background(),
		genkit.WithPlugins(&googlegenai.GoogleAI{}))

	dim := passage.VectorDimension

	return &GoogleAISetup{
		Genkit:      g,
		Embedder:    googlegenai.GoogleAIEmbedder(g, "gemini-embedding-001"),
		EmbedConfig: &genai.EmbedContentConfig{OutputDimensionality: &dim},
		Logger:      DiscardLogger(),
	}, nil
}
