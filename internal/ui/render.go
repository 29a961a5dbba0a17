// Package ui renders answers, traces and audit listings for the terminal.
//
// Answer markdown goes through glamour; structure (citation chips, trace
// rows, grounding labels) through lipgloss. Both degrade to plain text when
// styling is unavailable, so output stays readable in pipes and dumb
// terminals.
//
// Failed answers are presented as a reason category plus the last attempted
// adapter call. Raw dependency errors never reach the asking user; they
// stay in the recorded trace for `showroom answers <id>`.
package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/showroomlabs/showroom/internal/audit"
	"github.com/showroomlabs/showroom/internal/router"
)

// Renderer writes styled answer output to one writer.
type Renderer struct {
	out    io.Writer
	styles Styles
	md     *markdownRenderer
}

// NewRenderer builds a renderer targeting out. Width bounds word wrap;
// values <= 0 fall back to 80 columns.
func NewRenderer(out io.Writer, width int) *Renderer {
	return &Renderer{
		out:    out,
		styles: DefaultStyles(),
		md:     newMarkdownRenderer(width),
	}
}

// Answer renders one answer: markdown text, citation chips and the
// grounding label for done answers, the failure summary otherwise.
func (r *Renderer) Answer(ans *router.Answer) {
	if ans.State != router.StateDone {
		r.failure(ans)
		return
	}

	fmt.Fprintln(r.out, r.md.Render(ans.Text))

	if len(ans.Citations) > 0 {
		chips := make([]string, 0, len(ans.Citations))
		for _, c := range ans.Citations {
			chips = append(chips, r.styles.Chip.Render(fmt.Sprintf("%s p.%d", c.Source, c.Page)))
		}
		fmt.Fprintf(r.out, "\n%s %s\n", r.styles.Heading.Render("Sources:"), strings.Join(chips, "  "))
	}

	if ans.ToolBacked {
		n := len(ans.Invocations)
		fmt.Fprintln(r.out, r.styles.ToolBacked.Render(fmt.Sprintf("tool-backed · %d %s", n, plural(n, "invocation"))))
	} else {
		fmt.Fprintln(r.out, r.styles.NoTools.Render("no tools used · answered from general knowledge"))
	}
}

// failure shows the reason category and the last attempted adapter call.
// The underlying dependency error is not repeated here.
func (r *Renderer) failure(ans *router.Answer) {
	fmt.Fprintln(r.out, r.styles.Failure.Render("answer failed: "+string(ans.Reason)))
	if n := len(ans.Invocations); n > 0 {
		last := ans.Invocations[n-1]
		fmt.Fprintf(r.out, "%s %s %s\n",
			r.styles.Muted.Render("last attempted:"),
			r.styles.Adapter.Render(last.Adapter),
			compactJSON(last.Request, 96))
	} else {
		fmt.Fprintln(r.out, r.styles.Muted.Render("no adapter call was attempted"))
	}
	fmt.Fprintln(r.out, r.styles.Muted.Render("answer id "+ans.ID.String()))
}

// Trace renders the compact invocation log: the routing decision and one
// row per adapter call with its duration and exact request.
func (r *Renderer) Trace(ans *router.Answer) {
	route := string(ans.Decision.Route)
	if route == "" {
		route = "-"
	}
	fmt.Fprintf(r.out, "%s %s\n", r.styles.Heading.Render("Trace"),
		r.styles.Muted.Render(fmt.Sprintf("route=%s · %s", route, ans.Duration().Round(time.Millisecond))))
	if ans.Decision.Rationale != "" {
		fmt.Fprintf(r.out, "  %s\n", r.styles.Muted.Render("plan: "+truncate(ans.Decision.Rationale, 96)))
	}

	if len(ans.Invocations) == 0 {
		fmt.Fprintf(r.out, "  %s\n", r.styles.Muted.Render("no adapter calls"))
		return
	}
	for _, inv := range ans.Invocations {
		fmt.Fprintf(r.out, "  %d. %s %s  %s\n",
			inv.Seq,
			r.styles.Adapter.Render(fmt.Sprintf("%-10s", inv.Adapter)),
			r.styles.Muted.Render(fmt.Sprintf("%5dms", inv.DurationMS)),
			compactJSON(inv.Request, 72))
		if inv.Error != "" {
			fmt.Fprintf(r.out, "     %s\n", r.styles.Failure.Render("error: "+truncate(inv.Error, 120)))
		}
	}
}

// Record renders one persisted answer in full: question, answer and trace.
func (r *Renderer) Record(ans *router.Answer) {
	fmt.Fprintf(r.out, "%s %s\n", r.styles.Heading.Render("Question:"), ans.Question)
	fmt.Fprintln(r.out, r.styles.Muted.Render(fmt.Sprintf("id %s · asked %s", ans.ID, ans.CreatedAt.Format(time.RFC3339))))
	fmt.Fprintln(r.out)
	r.Answer(ans)
	fmt.Fprintln(r.out)
	r.Trace(ans)
}

// Summaries renders the recent-answers listing, two lines per answer.
func (r *Renderer) Summaries(items []audit.Summary) {
	if len(items) == 0 {
		fmt.Fprintln(r.out, r.styles.Muted.Render("no recorded answers"))
		return
	}
	for _, it := range items {
		state := r.styles.ToolBacked.Render(string(it.State))
		if it.State != router.StateDone {
			state = r.styles.Failure.Render(fmt.Sprintf("%s (%s)", it.State, it.Reason))
		}
		grounding := "tool-backed"
		if !it.ToolBacked {
			grounding = "no tools"
		}
		fmt.Fprintf(r.out, "%s  %s  %s  %s\n",
			it.ID, state, grounding, r.styles.Muted.Render(formatWhen(it.CreatedAt)))
		fmt.Fprintf(r.out, "  %s\n", truncate(it.Question, 96))
	}
}

// compactJSON renders a raw JSON payload on one line, truncated to max runes.
func compactJSON(raw json.RawMessage, max int) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return truncate(string(raw), max)
	}
	return truncate(buf.String(), max)
}

// truncate cuts s at max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// formatWhen formats a timestamp relative to now for listings.
func formatWhen(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
