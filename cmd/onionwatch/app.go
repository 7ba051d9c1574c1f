package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/onionwatch/internal/alert"
	"github.com/nao1215/onionwatch/internal/capture"
	"github.com/nao1215/onionwatch/internal/config"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/frontier"
	"github.com/nao1215/onionwatch/internal/intel"
	"github.com/nao1215/onionwatch/internal/log"
	"github.com/nao1215/onionwatch/internal/metrics"
	"github.com/nao1215/onionwatch/internal/pipeline"
	"github.com/nao1215/onionwatch/internal/report"
	"github.com/nao1215/onionwatch/internal/scheduler"
	"github.com/nao1215/onionwatch/internal/threat"
	"github.com/nao1215/onionwatch/internal/tor"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// loadConfig builds the configuration from defaults, the config file, the
// environment and finally the persistent flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	path, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}
	external, err := flags.GetString("external-tor")
	if err != nil {
		return nil, err
	}
	if external != "" {
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = external
	}
	if flags.Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return nil, err
		}
	}
	dataDir, err := flags.GetString("data-dir")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// setupLogger installs the secure logger as the slog default.
func setupLogger(w io.Writer, cfg *config.Config, jsonOutput bool) *slog.Logger {
	logger := log.NewSecureLogger(w, cfg.Verbose)
	if jsonOutput {
		logger = log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// app holds the collaborators shared by the commands. Storage is always
// opened; the Tor dependent parts are built by connect.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *database.Store
	jobs     *database.JobStore
	exporter *report.Exporter
	frontier *frontier.Manager

	// metrics is nil unless the command serves /metrics.
	metrics *metrics.Metrics

	embedded   *tor.EmbeddedTor
	dispatcher *alert.Dispatcher
	scanner    *pipeline.Scanner
	batch      *pipeline.Batch
	sched      *scheduler.Scheduler
}

// openApp opens the databases under cfg.DataDir. withMetrics registers
// the Prometheus collectors.
func openApp(cfg *config.Config, logger *slog.Logger, withMetrics bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if withMetrics {
		a.metrics = metrics.New(a.jobCount)
	}

	store, err := database.Open(cfg.DataDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.store = store

	jobs, err := database.OpenJobStore(cfg.DataDir, database.DefaultOptions())
	if err != nil {
		_ = store.Close() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	a.jobs = jobs

	a.exporter = report.NewExporter(cfg.DataDir, report.WithLogger(logger))

	frontierOpts := []frontier.Option{frontier.WithLogger(logger)}
	if a.metrics != nil {
		frontierOpts = append(frontierOpts, frontier.WithObserver(a.metrics.ObserveDiscovered))
	}
	a.frontier = frontier.NewManager(store, frontierOpts...)

	logger.Debug("storage opened", "dir", cfg.DataDir, "db", store.Path())
	return a, nil
}

func (a *app) jobCount() int {
	if a.sched == nil {
		return 0
	}
	return a.sched.Status().JobCount
}

// connect reaches Tor and builds the visit pipeline, the batch runner and
// the scheduler. The scheduler is created stopped.
func (a *app) connect(ctx context.Context, progress io.Writer) error {
	client, err := a.torClient(ctx, progress)
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	fetcher := tor.NewFetcher(client.HTTPClient(),
		tor.WithUserAgent(cfg.UserAgent),
		tor.WithMaxBodySize(cfg.MaxBodySize),
		tor.WithRetries(cfg.Retries, tor.DefaultRetryInterval),
		tor.WithSiteOptions(cfg.SiteOptions),
		tor.WithFetchLogger(logger),
	)

	scanOpts := []pipeline.ScannerOption{
		pipeline.WithClassifier(threat.NewClassifier(threat.WithLogger(logger))),
		pipeline.WithFrontier(a.frontier),
		pipeline.WithScannerLogger(logger),
	}
	if cfg.ScreenshotsEnabled {
		scanOpts = append(scanOpts, pipeline.WithScreenshotter(capture.NewScreenshotter(cfg.DataDir,
			capture.WithProxy(client.ProxyURL()),
			capture.WithCaptureTimeout(cfg.ScreenshotTimeout),
			capture.WithBrowserUserAgent(cfg.UserAgent),
			capture.WithScreenshotLogger(logger),
		)))
		scanOpts = append(scanOpts, pipeline.WithOCR(capture.NewTesseract(
			capture.WithOCREnabled(cfg.OCREnabled),
			capture.WithLanguages(cfg.OCRLanguages),
			capture.WithOCRTimeout(cfg.OCRTimeout),
			capture.WithOCRLogger(logger),
		)))
	}
	if agg := a.aggregator(); agg != nil {
		scanOpts = append(scanOpts, pipeline.WithIntel(agg))
	}
	a.dispatcher = a.newDispatcher()
	scanOpts = append(scanOpts, pipeline.WithAlerter(a.dispatcher))
	if a.metrics != nil {
		scanOpts = append(scanOpts, pipeline.WithScanObserver(a.metrics.ObserveScan))
	}
	a.scanner = pipeline.NewScanner(fetcher, a.store, scanOpts...)

	schedOpts := []scheduler.Option{
		scheduler.WithIntervals(cfg.Intervals()),
		scheduler.WithWorkers(cfg.SchedulerWorkers),
		scheduler.WithLogger(logger),
	}
	if a.metrics != nil {
		schedOpts = append(schedOpts, scheduler.WithObserver(a.metrics.ObserveFiring))
	}
	a.sched = scheduler.New(a.scanner, a.jobs, schedOpts...)
	a.scanner.AttachScheduler(a.sched)

	a.batch = pipeline.NewBatch(a.scanner,
		pipeline.WithLinkSource(a.frontier),
		pipeline.WithBatchLogger(logger),
	)

	logger.Info("pipeline ready",
		"steps", a.scanner.StepNames(),
		"threat_intel", a.scanner.IntelEnabled(),
		"alert_channels", a.dispatcher.Status().Channels,
	)
	return nil
}

// torClient verifies the external proxy or starts the embedded daemon.
func (a *app) torClient(ctx context.Context, progress io.Writer) (*tor.Client, error) {
	cfg := a.cfg
	if cfg.UseExternalTor {
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
				status.Error(), cfg.TorProxyAddress)
		}
		a.logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		return client, nil
	}

	fmt.Fprintln(progress, "Starting embedded Tor daemon...")
	fmt.Fprintf(progress, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithEmbeddedLogger(a.logger),
	)
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	a.embedded = embedded

	client, err := embedded.NewClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}
	fmt.Fprintf(progress, "Embedded Tor ready, SOCKS proxy: %s\n\n", embedded.SocksAddr())
	return client, nil
}

// aggregator returns nil when threat intelligence is disabled. URLhaus
// is always consulted; VirusTotal only with a key.
func (a *app) aggregator() *intel.Aggregator {
	cfg := a.cfg
	if !cfg.ThreatIntelEnabled {
		return nil
	}
	uh := intel.NewURLhausClient(intel.WithURLhausTimeout(cfg.IntelTimeout))
	opts := []intel.Option{
		intel.WithURLLookup(uh),
		intel.WithHostLookup(uh),
		intel.WithLogger(a.logger),
	}
	if cfg.VirusTotalEnabled() {
		vt, err := intel.NewVirusTotalClient(cfg.VTAPIKey,
			intel.WithVirusTotalTimeout(cfg.IntelTimeout),
			intel.WithVirusTotalLimiter(rate.NewLimiter(rate.Every(cfg.VTDelay), 1)),
		)
		if err != nil {
			a.logger.Warn("VirusTotal disabled", "error", err)
		} else {
			opts = append(opts, intel.WithEngineLookup(vt))
		}
	}
	if a.metrics != nil {
		opts = append(opts, intel.WithObserver(a.metrics.ObserveIntel))
	}
	return intel.NewAggregator(opts...)
}

// newDispatcher enables the channels that are configured. A channel whose
// settings are incomplete is skipped with a warning.
func (a *app) newDispatcher() *alert.Dispatcher {
	cfg := a.cfg
	var channels []alert.Channel
	if cfg.SlackEnabled() {
		slack, err := alert.NewSlackChannel(cfg.SlackWebhookURL)
		if err != nil {
			a.logger.Warn("Slack alerts disabled", "error", err)
		} else {
			channels = append(channels, slack)
		}
	}
	if cfg.EmailEnabled() {
		email, err := alert.NewEmailChannel(alert.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			To:       cfg.SMTPTo,
		})
		if err != nil {
			a.logger.Warn("e-mail alerts disabled", "error", err)
		} else {
			channels = append(channels, email)
		}
	}

	opts := []alert.Option{
		alert.WithChannels(channels...),
		alert.WithMinLevel(cfg.AlertMinLevel),
		alert.WithDashboardURL(cfg.DashboardURL),
		alert.WithTimeout(cfg.AlertTimeout),
		alert.WithLogger(a.logger),
	}
	if a.metrics != nil {
		opts = append(opts, alert.WithObserver(a.metrics.ObserveAlert))
	}
	return alert.NewDispatcher(opts...)
}

// Close stops the scheduler and the embedded daemon and closes the
// databases.
func (a *app) Close() error {
	var errs []error
	if a.sched != nil && a.sched.Running() {
		if err := a.sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerStopped) {
			errs = append(errs, err)
		}
	}
	if a.embedded != nil {
		a.logger.Info("stopping embedded Tor daemon...")
		if err := a.embedded.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop embedded Tor: %w", err))
		}
	}
	if a.jobs != nil {
		if err := a.jobs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
