package main

import (
	"fmt"
	"os"

	"github.com/nao1215/onionwatch/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for onionwatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionwatch",
		Short: "Threat intelligence collector for Tor hidden services",
		Long: `onionwatch visits Tor hidden services (.onion addresses) and records what
they are: threat categories, cryptocurrency wallets, technology stack,
screenshots and external reputation. Risky services are re-visited on a
schedule and alerts are sent to Slack or e-mail.

By default, onionwatch starts an embedded Tor daemon automatically.
Use --external-tor to use an existing Tor proxy instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.StringP("config", "c", "",
		"Configuration file path (default: .onionwatch.yaml or $XDG_CONFIG_HOME/onionwatch/config.yaml)")
	flags.StringP("external-tor", "e", "",
		"Use external Tor proxy at specified address (e.g., 127.0.0.1:9150)")
	flags.DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	flags.String("data-dir", "",
		"Directory for databases, screenshots and exports (default: $XDG_DATA_HOME/onionwatch)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewJobsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
