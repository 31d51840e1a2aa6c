package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/citenet/internal/crawler"
	"github.com/nao1215/citenet/internal/database"
	"github.com/spf13/cobra"
)

// NewResumeCmd creates the resume command.
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Continue a suspended crawl",
		Long: `Resume reloads the saved frontier and identity index of a crawl and
continues expanding it. Without a run id the most recent run is resumed.

Suspended runs (blocked, unrecognized page, interrupted) can always be
resumed. A run that stopped on its budget is resumed only with a larger
--budget. The run keeps the depth it was started with.

Examples:
  # Continue the last crawl
  citenet resume

  # Continue a crawl that reached its budget with a larger one
  citenet resume 0b5f6f0e-2c1d-4f7e-9a63-5d1a3c0e8b21 --budget 1000`,
		Args: cobra.MaximumNArgs(1),
		RunE: runResumeCmd,
	}

	addFetchFlags(cmd)

	return cmd
}

// runResumeCmd executes the resume command.
func runResumeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// The run's own budget applies unless one is given on the command line.
	if !cmd.Flags().Changed("budget") {
		cfg.Budget = 0
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd, cfg, logger, func(ctx context.Context, c *crawler.Controller, db *database.GraphDB) (*database.CrawlRun, error) {
		run, err := findRun(ctx, db, args)
		if err != nil {
			return nil, err
		}
		logger.Info("resuming crawl", "run", run.ID, "state", run.State.String(), "reason", run.StopReason.String())
		return c.Resume(ctx, run.ID)
	})
}
