package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/showroomlabs/showroom/internal/app"
	"github.com/showroomlabs/showroom/internal/ingest"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "index <passages.jsonl>",
		Short: "Load owner's manual passages into the vector store",
		Long: `Index reads JSONL passage records ({"text", "source", "page"}), embeds
them and upserts them into the pgvector store in batches. Every source
named in the file has its old passages replaced, so re-indexing a
manual converges on the same index.`,
		Example: `  showroom index manual_passages.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, opts, args[0], batchSize)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch", ingest.DefaultBatchSize, "passages embedded and written per batch")

	return cmd
}

func runIndex(cmd *cobra.Command, opts *rootOptions, path string, batchSize int) error {
	ctx := cmd.Context()
	logger := opts.logger()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	// Indexing needs the embedder and Postgres but not the SQLite store,
	// which may not exist yet on a fresh install.
	a, err := app.SetupIndexing(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	indexer, err := ingest.NewIndexer(a.Passages, batchSize, logger.With("component", "index"))
	if err != nil {
		return err
	}

	report, err := indexer.IndexFile(ctx, path)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	for _, src := range report.Sources {
		fmt.Fprintf(out, "  %-32s %d passages\n", src.Source, src.Passages)
	}
	fmt.Fprintf(out, "indexed %d passages (%d replaced)\n", report.Indexed, report.Replaced)

	return nil
}
