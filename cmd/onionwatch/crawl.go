package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/onionwatch/internal/config"
	"github.com/nao1215/onionwatch/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Visit pending links discovered by earlier scans",
		Long: `Crawl takes up to --limit .onion links from the frontier, the set of links
found on previously visited pages, and visits them like scan does but without
external threat intelligence lookups. Visited links are marked scanned.

Examples:
  onionwatch crawl
  onionwatch crawl --limit 200`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("limit", "l", config.DefaultCrawlLimit, "Maximum number of links to visit")
	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg, false)

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("invalid --limit %d: must be positive", limit)
	}

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // Best effort cleanup

	// Avoid bootstrapping Tor for an empty frontier.
	counts, err := a.frontier.Counts(ctx)
	if err != nil {
		return err
	}
	if counts.Pending == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending links. Run scan first to discover some.")
		return nil
	}

	if err := a.connect(ctx, cmd.ErrOrStderr()); err != nil {
		return err
	}
	events, n, err := a.batch.StartCrawl(ctx, limit)
	if errors.Is(err, pipeline.ErrNoPendingLinks) {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending links. Run scan first to discover some.")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("crawl started", "links", n, "pending", counts.Pending)
	_, err = printEvents(cmd.OutOrStdout(), events)
	return err
}
