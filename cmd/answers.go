package cmd

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/showroomlabs/showroom/internal/app"
	"github.com/showroomlabs/showroom/internal/audit"
	"github.com/showroomlabs/showroom/internal/ui"
)

func newAnswersCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "answers [id]",
		Short: "Review persisted answers and their traces",
		Long: `Answers lists recently recorded answers, or shows one answer in full
with its invocation trace when an id is given. Failed answers keep the
partial trace collected before the failure. No API key is needed.`,
		Example: `  showroom answers
  showroom answers --limit 50
  showroom answers 6fa1c8e2-5f1b-4f5e-9a93-1c1b9a3f8f10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid answer id %q: %w", args[0], err)
				}
				return runAnswersShow(cmd, opts, id)
			}
			return runAnswersList(cmd, opts, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", audit.DefaultRecentLimit, "answers to list")

	return cmd
}

func runAnswersList(cmd *cobra.Command, opts *rootOptions, limit int) error {
	ctx := cmd.Context()
	logger := opts.logger()

	cfg, err := opts.loadStorageConfig()
	if err != nil {
		return err
	}

	a, err := app.SetupAudit(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	items, err := a.Audit.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing answers: %w", err)
	}

	ui.NewRenderer(cmd.OutOrStdout(), 0).Summaries(items)
	return nil
}

func runAnswersShow(cmd *cobra.Command, opts *rootOptions, id uuid.UUID) error {
	ctx := cmd.Context()
	logger := opts.logger()

	cfg, err := opts.loadStorageConfig()
	if err != nil {
		return err
	}

	a, err := app.SetupAudit(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	ans, err := a.Audit.Get(ctx, id)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			return fmt.Errorf("answer %s not found", id)
		}
		return fmt.Errorf("loading answer: %w", err)
	}

	ui.NewRenderer(cmd.OutOrStdout(), 0).Record(ans)
	return nil
}
