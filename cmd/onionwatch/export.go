package main

import (
	"fmt"
	"strings"

	"github.com/nao1215/onionwatch/internal/report"
	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	names := make([]string, 0, len(report.Formats())+1)
	for _, f := range report.Formats() {
		names = append(names, string(f))
	}
	names = append(names, string(report.FormatAll))

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every stored target to a file",
		Long: fmt.Sprintf(`Export writes all stored targets with their keywords, wallets, technology
and threat intelligence to <data-dir>/exports/onionwatch_<timestamp>.<ext>.

Formats: %s

Examples:
  onionwatch export --format html
  onionwatch export --format all`, strings.Join(names, ", ")),
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}
	cmd.Flags().StringP("format", "F", string(report.FormatJSON), "Export format")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg, false)

	name, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		return err
	}

	a, err := openApp(cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // Best effort cleanup

	ctx := runContext(cmd)
	targets, err := a.store.ExportAll(ctx)
	if err != nil {
		return err
	}
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	files, err := a.exporter.Export(format, targets, stats)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exported %d target(s):\n", len(targets))
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}
