package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/showroomlabs/showroom/internal/app"
	"github.com/showroomlabs/showroom/internal/ui"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question loop",
		Long: `Chat reads questions line by line and renders each answer with its
citations and a compact trace of the adapter calls behind it. Questions
are independent; there is no conversation history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}
}

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	logger := opts.logger()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	out := cmd.OutOrStdout()
	r := ui.NewRenderer(out, 0)

	fmt.Fprintf(out, "showroom %s · ask about vehicle sales and specifications\n", AppVersion)
	fmt.Fprintln(out, "Type /help for commands, /exit or Ctrl+D to leave.")
	fmt.Fprintln(out)

	showTrace := true
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "? ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Fprintln(out, "\nbye")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleChatCommand(out, input, &showTrace) {
				break
			}
			continue
		}

		ans, err := a.Router.Ask(ctx, input)
		if err != nil {
			// Rejected before the cycle started (over-long input).
			fmt.Fprintf(out, "cannot ask that: %v\n\n", err)
			continue
		}

		r.Answer(ans)
		if showTrace {
			fmt.Fprintln(out)
			r.Trace(ans)
		}
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// handleChatCommand handles slash commands. Returns true when the loop
// should exit.
func handleChatCommand(out io.Writer, input string, showTrace *bool) bool {
	switch strings.Fields(input)[0] {
	case "/help":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  /trace        toggle the invocation trace after each answer")
		fmt.Fprintln(out, "  /exit, /quit  leave the chat")
		fmt.Fprintln(out, "  Ctrl+D        leave the chat")
		fmt.Fprintln(out)

	case "/trace":
		*showTrace = !*showTrace
		if *showTrace {
			fmt.Fprintln(out, "trace on")
		} else {
			fmt.Fprintln(out, "trace off")
		}
		fmt.Fprintln(out)

	case "/exit", "/quit":
		fmt.Fprintln(out, "bye")
		return true

	default:
		fmt.Fprintf(out, "unknown command %s (try /help)\n\n", input)
	}
	return false
}
