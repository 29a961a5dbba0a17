//go:build integration

package cmd

// Integration tests drive the real commands against live infrastructure.
//
// Requirements:
//   - PostgreSQL with pgvector reachable via config.yaml or SHOWROOM_* env
//   - GEMINI_API_KEY set for the model provider
//   - an ingested SQLite database (run `showroom ingest` first)
//
// Run with:
//
//	go test -tags=integration ./cmd -v

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showroomlabs/showroom/internal/testutil"
)

func requireIntegrationEnv(t *testing.T) {
	t.Helper()
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
}

func TestAskCmd_Integration(t *testing.T) {
	requireIntegrationEnv(t)

	out, err := executeCommand("ask", "--trace", "How many RAV4 were sold in Germany in 2024?")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace")
	assert.Contains(t, out, "tool-backed")
}

func TestAskCmd_Integration_TopK(t *testing.T) {
	requireIntegrationEnv(t)

	out, err := executeCommand("ask", "--top-k", "3", "What does the owner's manual say about towing?")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestAnswersCmd_Integration(t *testing.T) {
	requireIntegrationEnv(t)

	out, err := executeCommand("answers", "--limit", "5")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestChatCmd_Integration(t *testing.T) {
	requireIntegrationEnv(t)

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	root := NewRootCmd()
	root.SetIn(stdinR)
	root.SetOut(stdoutW)
	root.SetErr(stdoutW)
	root.SetArgs([]string{"chat"})

	term, err := testutil.NewTerminal(stdinW, stdoutR)
	require.NoError(t, err)
	t.Cleanup(func() { _ = term.Close() })

	done := make(chan error, 1)
	go func() { done <- root.Execute() }()

	require.NoError(t, term.ExpectString("ask about vehicle sales", 15*time.Second))
	require.NoError(t, term.SendLine("/trace"))
	require.NoError(t, term.ExpectString("trace off", 5*time.Second))
	require.NoError(t, term.SendLine("How many RAV4 were sold in Germany in 2024?"))
	require.NoError(t, term.ExpectString("tool-backed", 90*time.Second))
	require.NoError(t, term.SendLine("/exit"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("chat loop did not exit after /exit")
	}
}
