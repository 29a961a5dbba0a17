package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/showroomlabs/showroom/internal/app"
	"github.com/showroomlabs/showroom/internal/router"
	"github.com/showroomlabs/showroom/internal/ui"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		topK      int
		showTrace bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and exit",
		Long: `Ask answers a single question and prints the rendered answer with its
citations. Multiple arguments are joined into one question, so quoting
is optional. The exit code is non-zero when the question fails.`,
		Example: `  showroom ask "What is the towing capacity of the Hilux?"
  showroom ask --trace "How many corollas were sold in 2023?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, strings.Join(args, " "), topK, showTrace)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "passages per retrieval (0 = configured default)")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the invocation trace after the answer")

	return cmd
}

func runAsk(cmd *cobra.Command, opts *rootOptions, question string, topK int, showTrace bool) error {
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

	var askOpts []router.AskOption
	if topK > 0 {
		askOpts = append(askOpts, router.WithTopK(topK))
	}

	ans, err := a.Router.Ask(ctx, question, askOpts...)
	if err != nil {
		return fmt.Errorf("asking: %w", err)
	}

	r := ui.NewRenderer(cmd.OutOrStdout(), 0)
	r.Answer(ans)
	if showTrace {
		fmt.Fprintln(cmd.OutOrStdout())
		r.Trace(ans)
	}

	if ans.State != router.StateDone {
		return fmt.Errorf("question failed: %s", ans.Reason)
	}
	return nil
}
