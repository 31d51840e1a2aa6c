package main

import (
	"fmt"

	"github.com/nao1215/citenet/internal/config"
	"github.com/nao1215/citenet/internal/report"
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Summarize a crawl run",
		Long: `Report prints the state, stop reason and statistics of a crawl run,
its fetch outcomes and the most cited publications of the stored graph.
Without a run id the most recent run is reported.

Examples:
  # Summary of the last run
  citenet report

  # Top 25 cited publications as Markdown
  citenet report --top 25 --markdown -o report.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReportCmd,
	}

	cmd.Flags().Int("top", report.DefaultTopCited,
		"Number of most cited publications listed")
	addReportFlags(cmd)

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return fmt.Errorf("configuration error: %w", config.ErrConflictingReportFormats)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := findRun(cmd.Context(), db, args)
	if err != nil {
		return err
	}
	return outputReport(cmd.Context(), cmd, cfg, db, run)
}
