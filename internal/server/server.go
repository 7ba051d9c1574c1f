package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/onionwatch/internal/alert"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/report"
	"github.com/nao1215/onionwatch/internal/scheduler"
)

// DefaultPingInterval is how often an idle event stream sends a comment.
const DefaultPingInterval = 15 * time.Second

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 10 * time.Second

// Store is the read and maintenance side of the results store.
// *database.Store implements it.
type Store interface {
	Stats(ctx context.Context) (*database.Stats, error)
	ListTargets(ctx context.Context, f database.TargetFilter) ([]model.Target, error)
	GetDetail(ctx context.Context, id int64) (*model.TargetDetail, error)
	ListAlerts(ctx context.Context, targetID int64, limit int) ([]model.AlertEvent, error)
	ListWallets(ctx context.Context, coin, query string, limit int) ([]database.WalletRow, error)
	TopKeywords(ctx context.Context, limit int) ([]database.KeywordCount, error)
	ListLinks(ctx context.Context, scanned *bool, limit int) ([]model.DiscoveredLink, error)
	ListRescanLog(ctx context.Context, limit int) ([]model.RescanLog, error)
	DeleteTargets(ctx context.Context, ids []int64) (int, error)
	DeleteErrored(ctx context.Context) ([]int64, error)
	ExportAll(ctx context.Context) ([]model.TargetDetail, error)
}

// Batcher runs single-flight batches. *pipeline.Batch implements it.
type Batcher interface {
	Start(ctx context.Context, urls []string, useIntel bool) (<-chan model.BatchEvent, error)
	StartCrawl(ctx context.Context, limit int) (<-chan model.BatchEvent, int, error)
	Running() bool
}

// Scheduler is the rescan scheduler. *scheduler.Scheduler implements it.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
	Status() scheduler.Status
	ListJobs() []model.RescanJob
	Unschedule(ctx context.Context, targetID int64) (bool, error)
}

// AlertStatus reports the configured alert channels.
// *alert.Dispatcher implements it.
type AlertStatus interface {
	Status() alert.Status
}

// Exporter writes export files. *report.Exporter implements it.
type Exporter interface {
	Export(format report.Format, targets []model.TargetDetail, stats *database.Stats) ([]string, error)
	Dir() string
}

// Server is the HTTP front end.
type Server struct {
	engine   *gin.Engine
	store    Store
	batch    Batcher
	sched    Scheduler
	alerts   AlertStatus
	exporter Exporter
	metrics  http.Handler
	hub      hub

	// baseCtx outlives requests; batches and the scheduler run under it.
	baseCtx      context.Context
	pingInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithScheduler enables the scheduler endpoints.
func WithScheduler(s Scheduler) Option {
	return func(srv *Server) {
		srv.sched = s
	}
}

// WithAlertStatus enables /api/alerts/status.
func WithAlertStatus(a AlertStatus) Option {
	return func(srv *Server) {
		srv.alerts = a
	}
}

// WithExporter enables the export endpoints that write files.
func WithExporter(e Exporter) Option {
	return func(srv *Server) {
		srv.exporter = e
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(srv *Server) {
		srv.metrics = h
	}
}

// WithBaseContext sets the context batches and the scheduler run under.
// Cancelling it stops running batches.
func WithBaseContext(ctx context.Context) Option {
	return func(srv *Server) {
		srv.baseCtx = ctx
	}
}

// WithPingInterval sets the idle keep-alive period of event streams.
func WithPingInterval(d time.Duration) Option {
	return func(srv *Server) {
		if d > 0 {
			srv.pingInterval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(srv *Server) {
		srv.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(srv *Server) {
		srv.logger = logger
	}
}

// New creates a Server and registers its routes.
func New(store Store, batch Batcher, opts ...Option) *Server {
	s := &Server{
		store:        store,
		batch:        batch,
		baseCtx:      context.Background(),
		pingInterval: DefaultPingInterval,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	r.POST("/scan/start", s.handleScanStart)
	r.POST("/scan/crawl", s.handleScanCrawl)
	r.GET("/scan/stream", s.handleScanStream)

	api := r.Group("/api")
	api.GET("/scan/status", s.handleScanStatus)
	api.GET("/stats", s.handleStats)
	api.GET("/targets", s.handleTargets)
	api.GET("/targets/:id", s.handleTarget)
	api.GET("/wallets", s.handleWallets)
	api.GET("/threats/top", s.handleTopThreats)
	api.GET("/discovered", s.handleDiscovered)
	api.POST("/delete", s.handleDelete)
	api.POST("/delete/errors", s.handleDeleteErrors)
	api.GET("/export", s.handleExportInline)
	api.POST("/export/:format", s.handleExport)
	api.GET("/export/download/:filename", s.handleExportDownload)
	api.GET("/alerts/status", s.handleAlertStatus)

	sched := api.Group("/scheduler")
	sched.GET("/status", s.handleSchedulerStatus)
	sched.GET("/jobs", s.handleSchedulerJobs)
	sched.GET("/log", s.handleSchedulerLog)
	sched.POST("/start", s.handleSchedulerStart)
	sched.POST("/stop", s.handleSchedulerStop)
	sched.DELETE("/jobs/:id", s.handleSchedulerDelete)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
