package main

import (
	"encoding/json"

	"github.com/nao1215/onionwatch/internal/report"
	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		Long: `Stats prints the risk distribution of the stored targets, the most matched
threat categories and the wallets found per coin. No Tor connection is made.`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Print the statistics as JSON")
	cmd.Flags().Bool("all", false, "Show empty sections")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg, false)

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	showEmpty, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	a, err := openApp(cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // Best effort cleanup

	stats, err := a.store.Stats(runContext(cmd))
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	_, err = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithShowEmpty(showEmpty)).WriteStats(stats)
	return err
}
