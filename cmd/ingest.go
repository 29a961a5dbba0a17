package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/showroomlabs/showroom/internal/ingest"
	"github.com/showroomlabs/showroom/internal/relational"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the SQLite sales database from CSV exports",
		Long: `Ingest loads every registered CSV in the data directory (file stem =
table name) into a fresh database and atomically replaces the SQLite
file. On failure the existing database is left untouched. No API key
is needed; this command never talks to the model provider.`,
		Example: `  showroom ingest --data ./exports
  showroom ingest --data ./exports --db /var/lib/showroom/showroom.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts, dataDir)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data", "data", "directory of CSV exports, one file per table")
	cmd.Flags().String("db", "", "SQLite database path (default from config)")
	_ = viper.BindPFlag("sqlite_path", cmd.Flags().Lookup("db"))

	return cmd
}

func runIngest(cmd *cobra.Command, opts *rootOptions, dataDir string) error {
	ctx := cmd.Context()
	logger := opts.logger()

	cfg, err := opts.loadStorageConfig()
	if err != nil {
		return err
	}

	rebuilder, err := ingest.NewRebuilder(relational.Default(), logger.With("component", "ingest"))
	if err != nil {
		return err
	}

	report, err := rebuilder.Rebuild(ctx, dataDir, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("rebuilding %s: %w", cfg.SQLitePath, err)
	}

	out := cmd.OutOrStdout()
	for _, t := range report.Tables {
		fmt.Fprintf(out, "  %-20s %d rows\n", t.Table, t.Rows)
	}
	for _, skipped := range report.Skipped {
		fmt.Fprintf(out, "  skipped %s (no registered table)\n", skipped)
	}
	fmt.Fprintf(out, "%s rebuilt: %d tables, %d rows\n",
		cfg.SQLitePath, len(report.Tables), report.TotalRows())

	return nil
}
