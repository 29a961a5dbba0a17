package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/passage"
	"github.com/showroomlabs/showroom/internal/relational"
	"github.com/showroomlabs/showroom/internal/router"
)

type fakeAsker struct {
	ans      *router.Answer
	err      error
	question string
	optCount int
}

func (f *fakeAsker) Ask(_ context.Context, question string, opts ...router.AskOption) (*router.Answer, error) {
	f.question = question
	f.optCount = len(opts)
	if f.err != nil {
		return nil, f.err
	}
	return f.ans, nil
}

type fakeRelational struct {
	res relational.Result
	err error
	req relational.Request
}

func (f *fakeRelational) Execute(_ context.Context, req relational.Request) (relational.Result, error) {
	f.req = req
	if f.err != nil {
		return relational.Result{}, f.err
	}
	return f.res, nil
}

func (f *fakeRelational) Registry() *relational.Registry { return relational.Default() }

type fakeSearcher struct {
	res passage.Result
	err error
	req passage.Request
}

func (f *fakeSearcher) Search(_ context.Context, req passage.Request) (passage.Result, error) {
	f.req = req
	if f.err != nil {
		return passage.Result{}, f.err
	}
	return f.res, nil
}

func doneAnswer() *router.Answer {
	return &router.Answer{
		ID:       uuid.New(),
		Question: "What is the towing capacity of the Hilux?",
		Text:     "The Hilux tows up to 3,500 kg braked. [owners_manual.pdf p.212]",
		State:    router.StateDone,
		Citations: []router.Citation{
			{Source: "owners_manual.pdf", Page: 212},
		},
		ToolBacked: true,
	}
}

func testServer(t *testing.T) (*Server, *fakeAsker, *fakeRelational, *fakeSearcher) {
	t.Helper()
	asker := &fakeAsker{ans: doneAnswer()}
	rel := &fakeRelational{}
	search := &fakeSearcher{}
	s, err := NewServer(Config{
		Name:       "showroom",
		Version:    "test",
		Asker:      asker,
		Relational: rel,
		Passages:   search,
		Logger:     log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, asker, rel, search
}

// resultText extracts the single text block every tool result carries.
func resultText(t *testing.T, res *mcpSdk.CallToolResult) string {
	t.Helper()
	if res == nil {
		t.Fatal("result is nil")
	}
	if len(res.Content) != 1 {
		t.Fatalf("content blocks = %d, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcpSdk.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want *TextContent", res.Content[0])
	}
	return tc.Text
}

func TestNewServer(t *testing.T) {
	t.Parallel()
	s, _, _, _ := testServer(t)

	if s.mcpServer == nil {
		t.Error("mcpServer is nil")
	}
	if s.name != "showroom" || s.version != "test" {
		t.Errorf("identity = %s/%s, want showroom/test", s.name, s.version)
	}
}

func TestNewServer_ValidationErrors(t *testing.T) {
	t.Parallel()

	asker := &fakeAsker{}
	rel := &fakeRelational{}
	search := &fakeSearcher{}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing name",
			cfg:     Config{Version: "1", Asker: asker, Relational: rel, Passages: search},
			wantErr: "server name is required",
		},
		{
			name:    "missing version",
			cfg:     Config{Name: "showroom", Asker: asker, Relational: rel, Passages: search},
			wantErr: "server version is required",
		},
		{
			name:    "missing asker",
			cfg:     Config{Name: "showroom", Version: "1", Relational: rel, Passages: search},
			wantErr: "asker is required",
		},
		{
			name:    "missing relational store",
			cfg:     Config{Name: "showroom", Version: "1", Asker: asker, Passages: search},
			wantErr: "relational store is required",
		},
		{
			name:    "missing passage store",
			cfg:     Config{Name: "showroom", Version: "1", Asker: asker, Relational: rel},
			wantErr: "passage store is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewServer(tt.cfg)
			if err == nil {
				t.Fatal("NewServer succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErr)
			}
		})
	}
}
