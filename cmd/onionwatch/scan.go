package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [onion-url...]",
		Short: "Visit hidden services and record their threat profile",
		Long: `Scan visits each target once through Tor and stores what it finds: threat
categories and risk level, cryptocurrency wallets, technology stack, outgoing
.onion links, a screenshot and, when enabled, URLhaus and VirusTotal verdicts.
Targets at or above the alert level are reported to the configured channels
and every visited target gets a rescan job for "onionwatch serve".

Targets may be given as bare hosts or URLs. Duplicates and blank lines are
ignored, and a missing scheme defaults to http://.

Examples:
  # Scan two services
  onionwatch scan exampleonion.onion http://another.onion/market

  # Read targets from a file, one per line
  onionwatch scan -f targets.txt

  # Skip URLhaus and VirusTotal lookups
  onionwatch scan --intel=false exampleonion.onion`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("file", "f", "", "Read targets from a file, one per line (\"-\" for stdin)")
	cmd.Flags().Bool("intel", true, "Consult URLhaus and VirusTotal when threat intelligence is enabled")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg, false)

	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	withIntel, err := cmd.Flags().GetBool("intel")
	if err != nil {
		return err
	}

	raw := strings.Join(args, "\n")
	if file != "" {
		data, err := readTargets(cmd.InOrStdin(), file)
		if err != nil {
			return err
		}
		raw += "\n" + data
	}
	urls := pipeline.NormalizeURLs(raw)
	if len(urls) == 0 {
		return errors.New("no targets provided (give onion URLs as arguments or with -f)")
	}

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // Best effort cleanup

	if err := a.connect(ctx, cmd.ErrOrStderr()); err != nil {
		return err
	}

	useIntel := withIntel && a.scanner.IntelEnabled()
	events, err := a.batch.Start(ctx, urls, useIntel)
	if err != nil {
		return err
	}
	_, err = printEvents(cmd.OutOrStdout(), events)
	return err
}

// readTargets reads a target list from path, or from stdin for "-".
func readTargets(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read targets from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // User-provided target list is intentional
	if err != nil {
		return "", fmt.Errorf("failed to read target list: %w", err)
	}
	return string(data), nil
}

// printEvents renders a batch stream as console progress and returns the
// final tally. A stream that ends with an error event returns that error.
// Failed visits are part of the tally, not an error.
func printEvents(w io.Writer, events <-chan model.BatchEvent) (model.DoneEvent, error) {
	var done model.DoneEvent
	var streamErr error
	for ev := range events {
		switch data := ev.Data.(type) {
		case model.StartEvent:
			intel := "off"
			if data.ThreatIntel {
				intel = "on"
			}
			fmt.Fprintf(w, "Scanning %d target(s) (run %s, threat intel %s)\n\n", data.Total, data.RunID, intel)
		case model.ProgressEvent:
			fmt.Fprintf(w, "[%d/%d] %s\n", data.I, data.Total, data.URL)
		case model.ResultEvent:
			fmt.Fprintln(w, formatResult(data))
		case model.DoneEvent:
			done = data
			fmt.Fprintf(w, "\nDone in %.1fs: %d ok, %d failed, %d new links, %d wallets\n",
				data.Elapsed, data.OK, data.Fail, data.Links, data.Wallets)
		case model.ErrorEvent:
			streamErr = errors.New(data.Message)
			fmt.Fprintf(w, "\nBatch aborted: %s\n", data.Message)
		}
	}
	return done, streamErr
}

func formatResult(r model.ResultEvent) string {
	if r.Status != model.StatusOK {
		return fmt.Sprintf("    error: %s (%.1fs)", r.Error, r.Elapsed)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "    %s score=%.0f", strings.ToUpper(string(r.RiskLevel)), r.RiskScore)
	if r.ExternalRisk != "" {
		fmt.Fprintf(&b, " external=%s", r.ExternalRisk)
	}
	fmt.Fprintf(&b, " keywords=%d wallets=%d tech=%d links=%d", r.Keywords, r.Wallets, r.Tech, r.Links)
	if r.Title != "" {
		fmt.Fprintf(&b, " %q", r.Title)
	}
	fmt.Fprintf(&b, " (%.1fs)", r.Elapsed)
	return b.String()
}

// runContext returns the command context, or Background for commands
// invoked directly in tests.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
