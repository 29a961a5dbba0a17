package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/showroomlabs/showroom/internal/router"
)

func TestAskQuestion(t *testing.T) {
	t.Parallel()
	s, asker, _, _ := testServer(t)

	res, _, err := s.AskQuestion(context.Background(), nil, AskInput{
		Question: "What is the towing capacity of the Hilux?",
	})
	if err != nil {
		t.Fatalf("AskQuestion: %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true, text %q", resultText(t, res))
	}
	if asker.question != "What is the towing capacity of the Hilux?" {
		t.Errorf("question passed through = %q", asker.question)
	}
	if asker.optCount != 0 {
		t.Errorf("options without top_k = %d, want 0", asker.optCount)
	}

	var got askResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if got.AnswerID != asker.ans.ID.String() {
		t.Errorf("answer_id = %q, want %q", got.AnswerID, asker.ans.ID)
	}
	if got.Text != asker.ans.Text {
		t.Errorf("text = %q, want %q", got.Text, asker.ans.Text)
	}
	if len(got.Citations) != 1 || got.Citations[0].Source != "owners_manual.pdf" || got.Citations[0].Page != 212 {
		t.Errorf("citations = %+v", got.Citations)
	}
	if !got.ToolBacked {
		t.Error("tool_backed = false, want true")
	}
}

func TestAskQuestion_TopKForwarded(t *testing.T) {
	t.Parallel()
	s, asker, _, _ := testServer(t)

	_, _, err := s.AskQuestion(context.Background(), nil, AskInput{
		Question: "What does the tire pressure warning mean?",
		TopK:     3,
	})
	if err != nil {
		t.Fatalf("AskQuestion: %v", err)
	}
	if asker.optCount != 1 {
		t.Errorf("options with top_k = %d, want 1", asker.optCount)
	}
}

func TestAskQuestion_FailedAnswer(t *testing.T) {
	t.Parallel()
	s, asker, _, _ := testServer(t)
	asker.ans.State = router.StateFailed
	asker.ans.Reason = router.ReasonTimeout
	asker.ans.Text = ""

	res, _, err := s.AskQuestion(context.Background(), nil, AskInput{
		Question: "What is the towing capacity of the Hilux?",
	})
	if err != nil {
		t.Fatalf("failed answer must be a tool error, got protocol error %v", err)
	}
	if !res.IsError {
		t.Fatal("IsError = false, want true")
	}
	text := resultText(t, res)
	if !strings.Contains(text, string(router.ReasonTimeout)) {
		t.Errorf("text %q does not name the reason", text)
	}
	if !strings.Contains(text, asker.ans.ID.String()) {
		t.Errorf("text %q does not carry the answer id", text)
	}
}

func TestAskQuestion_RejectedQuestion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"empty", router.ErrEmptyQuestion, "empty question"},
		{"too long", fmt.Errorf("%w: 5000 runes (max 4000)", router.ErrQuestionTooLong), "max 4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, asker, _, _ := testServer(t)
			asker.err = tt.err

			res, _, err := s.AskQuestion(context.Background(), nil, AskInput{Question: "x"})
			if err != nil {
				t.Fatalf("rejected question must be a tool error, got %v", err)
			}
			if !res.IsError {
				t.Fatal("IsError = false, want true")
			}
			if text := resultText(t, res); !strings.Contains(text, tt.want) {
				t.Errorf("text = %q, want to contain %q", text, tt.want)
			}
		})
	}
}

func TestAskQuestion_SystemError(t *testing.T) {
	t.Parallel()
	s, asker, _, _ := testServer(t)
	asker.err = errors.New("recorder pool closed")

	res, _, err := s.AskQuestion(context.Background(), nil, AskInput{Question: "anything"})
	if err == nil {
		t.Fatal("want protocol error for unexpected failure")
	}
	if res != nil {
		t.Errorf("result = %+v, want nil alongside a protocol error", res)
	}
}
