package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/onionwatch/internal/config"
	"github.com/nao1215/onionwatch/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API and the rescan scheduler",
		Long: `Serve starts the HTTP API used by the dashboard and the rescan scheduler.

The API starts batches (POST /scan/start, POST /scan/crawl) and streams their
progress as server-sent events (GET /scan/stream). Results, wallets, threat
categories, the frontier, alert status and exports are under /api, and
Prometheus metrics under /metrics.

Every visited target is re-visited on a cadence set by its risk level:
critical every 6h, high 12h, medium 24h and low or clean 48h by default.

Examples:
  onionwatch serve
  onionwatch serve --listen 0.0.0.0:8000 --external-tor 127.0.0.1:9050
  onionwatch serve --no-scheduler`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", "",
		fmt.Sprintf("Listen address (default %s)", config.DefaultListenAddress))
	cmd.Flags().Bool("no-scheduler", false, "Do not fire rescan jobs")
	cmd.Flags().Bool("json-log", false, "Write logs as JSON")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	jsonLog, err := flags.GetBool("json-log")
	if err != nil {
		return err
	}
	noScheduler, err := flags.GetBool("no-scheduler")
	if err != nil {
		return err
	}
	listen, err := flags.GetString("listen")
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.ListenAddress = listen
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg, jsonLog)

	ctx, stop := signal.NotifyContext(runContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if err := a.connect(ctx, cmd.ErrOrStderr()); err != nil {
		return err
	}

	opts := []server.Option{
		server.WithAlertStatus(a.dispatcher),
		server.WithExporter(a.exporter),
		server.WithMetrics(a.metrics.Handler()),
		server.WithBaseContext(ctx),
		server.WithLogger(logger),
	}
	if !noScheduler {
		if err := a.sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		opts = append(opts, server.WithScheduler(a.sched))
	}

	srv := server.New(a.store, a.batch, opts...)
	fmt.Fprintf(cmd.ErrOrStderr(), "Dashboard API listening on http://%s\n", cfg.ListenAddress)
	return srv.Run(ctx, cfg.ListenAddress)
}
