package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/citenet/internal/config"
	"github.com/nao1215/citenet/internal/crawler"
	"github.com/nao1215/citenet/internal/database"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [terms...]",
		Short: "Start a new citation crawl from seed queries",
		Long: `Crawl runs every seed query, stores the publications found, then expands
the citation graph breadth-first by fetching the works that cite each
publication.

Each positional argument is one search query. Use --cluster to seed from a
specific publication by its cluster id instead.

The crawl stops when no publication is left within --depth, when --budget
fetches have been made, or when the search service blocks the crawler. A
blocked or interrupted crawl keeps its frontier and can be continued with
"citenet resume".

Exit codes:
  0    completed or budget reached
  3    blocked by the search service or unrecognized page
  130  interrupted

Examples:
  # Crawl one level of citations of the top results
  citenet crawl "attention is all you need"

  # Two levels, at most 500 requests, 10 citing works per publication
  citenet crawl "graph neural networks" --depth 2 --budget 500 --max-citers 10

  # Seed from a cluster id and write a Markdown report
  citenet crawl --cluster 5362332738201102290 -m -o report.md`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringArray("cluster", nil,
		"Seed from a publication cluster id (repeatable)")
	cmd.Flags().Int("depth", config.DefaultMaxDepth,
		"Maximum citation depth from the seeds")
	cmd.Flags().Int("seed-pages", config.DefaultSeedPages,
		"Result pages fetched per seed query")
	addFetchFlags(cmd)

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Seeds = args
	}

	if err := cfg.ValidateSeeds(); err != nil {
		return fmt.Errorf("configuration error: %w (give search terms as arguments or use --cluster)", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)

	// Set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"clusters", cfg.Clusters,
		"max_depth", cfg.MaxDepth,
		"budget", cfg.Budget,
		"db", cfg.DBPath,
	)

	seeds := crawler.Seeds{Terms: cfg.Seeds, Clusters: cfg.Clusters}
	return runCrawl(ctx, cmd, cfg, logger, func(ctx context.Context, c *crawler.Controller, _ *database.GraphDB) (*database.CrawlRun, error) {
		return c.Run(ctx, seeds)
	})
}
