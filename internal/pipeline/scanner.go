package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/onionwatch/internal/alert"
	"github.com/nao1215/onionwatch/internal/capture"
	"github.com/nao1215/onionwatch/internal/crawler"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/threat"
	"github.com/nao1215/onionwatch/internal/tor"
)

// Fetcher downloads one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*tor.Page, error)
}

// Screenshotter renders a page to an image file.
type Screenshotter interface {
	Capture(ctx context.Context, url string) (*capture.Shot, error)
}

// OCR reads the text of an image.
type OCR interface {
	Available() bool
	ExtractText(ctx context.Context, path string) (*capture.OCRText, error)
}

// IntelSource returns the external reputation of a target.
type IntelSource interface {
	Aggregate(ctx context.Context, domain, url string) model.ExternalIntel
}

// Alerter notifies the configured channels about a finished visit.
type Alerter interface {
	Dispatch(ctx context.Context, c alert.AlertContext) []model.ChannelResult
}

// Rescheduler replaces the rescan job of a target.
type Rescheduler interface {
	Schedule(ctx context.Context, targetID int64, url string, level model.RiskLevel) (model.RescanJob, error)
}

// LinkRecorder adds discovered links to the frontier.
type LinkRecorder interface {
	Record(ctx context.Context, sourceID int64, urls []string) (int, error)
}

// Store persists visits and their audit rows.
type Store interface {
	UpsertTarget(ctx context.Context, t *model.Target) (int64, error)
	RecordError(ctx context.Context, url, domain string, visitErr error) (int64, error)
	ReplaceChildren(ctx context.Context, targetID int64, c database.Children) error
	UpsertThreatIntel(ctx context.Context, targetID int64, in model.ExternalIntel) error
	AddScreenshot(ctx context.Context, targetID int64, shot model.Screenshot) error
	AppendAlert(ctx context.Context, e model.AlertEvent) error
	AppendRescanLog(ctx context.Context, l model.RescanLog) error
}

// Scanner visits single targets. It implements scheduler.Runner.
type Scanner struct {
	fetcher    Fetcher
	store      Store
	classifier *threat.Classifier
	shots      Screenshotter
	ocr        OCR
	intel      IntelSource
	frontier   LinkRecorder
	alerter    Alerter
	observer   func(*model.ScanResult)
	now        func() time.Time
	logger     *slog.Logger

	mu        sync.RWMutex
	scheduler Rescheduler

	pipeline *Pipeline
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c *threat.Classifier) ScannerOption {
	return func(s *Scanner) {
		s.classifier = c
	}
}

// WithScreenshotter enables screenshots.
func WithScreenshotter(shots Screenshotter) ScannerOption {
	return func(s *Scanner) {
		s.shots = shots
	}
}

// WithOCR enables OCR of screenshots.
func WithOCR(ocr OCR) ScannerOption {
	return func(s *Scanner) {
		s.ocr = ocr
	}
}

// WithIntel enables external reputation lookups.
func WithIntel(intel IntelSource) ScannerOption {
	return func(s *Scanner) {
		s.intel = intel
	}
}

// WithFrontier records discovered links.
func WithFrontier(f LinkRecorder) ScannerOption {
	return func(s *Scanner) {
		s.frontier = f
	}
}

// WithAlerter enables alerting.
func WithAlerter(a Alerter) ScannerOption {
	return func(s *Scanner) {
		s.alerter = a
	}
}

// WithScanObserver registers a callback run after every visit.
func WithScanObserver(fn func(*model.ScanResult)) ScannerOption {
	return func(s *Scanner) {
		s.observer = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) {
		s.now = now
	}
}

// WithScannerLogger sets the logger.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a scanner that fetches with fetcher and stores into
// store. Every other collaborator is optional.
func NewScanner(fetcher Fetcher, store Store, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		fetcher: fetcher,
		store:   store,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	p := New(WithLogger(s.logger))
	p.AddSteps(
		NewFetchStep(s.fetcher),
		NewAnalyzeStep(s.classifier, s.logger),
		NewCaptureStep(s.shots, s.ocr, s.logger),
		NewIntelStep(s.intel),
		NewPersistStep(s.store),
		NewFrontierStep(s.frontier, s.logger),
		NewAlertStep(s.alerter, s.store, s.now, s.logger),
		NewRescheduleStep(s.currentScheduler, s.logger),
	)
	s.pipeline = p
	return s
}

// AttachScheduler makes every later visit reschedule its target. The
// scheduler is attached after construction because it needs the scanner
// as its runner.
func (s *Scanner) AttachScheduler(r Rescheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler = r
}

func (s *Scanner) currentScheduler() Rescheduler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scheduler
}

// IntelEnabled reports whether external lookups are configured.
func (s *Scanner) IntelEnabled() bool {
	return s.intel != nil
}

// StepNames returns the visit steps in order.
func (s *Scanner) StepNames() []string {
	return s.pipeline.StepNames()
}

// RunSingle visits url. A failed fetch is not an error: the target is
// stored with status error and the returned result has Status error. The
// error return is for storage failures and cancellation.
func (s *Scanner) RunSingle(ctx context.Context, url string, useIntel bool) (*model.ScanResult, error) {
	start := s.now()
	v := NewVisit(url, useIntel)
	v.Result.StartedAt = start

	err := s.pipeline.Execute(ctx, v)
	r := v.Result
	r.Elapsed = s.now().Sub(start)

	if err != nil {
		r.Status = model.StatusError
		r.Error = err.Error()
		if fetch, ok := r.Stage(model.StageFetch); ok && fetch.State == model.StageFatal {
			id, recErr := s.store.RecordError(ctx, url, crawler.Domain(url), err)
			r.TargetID = id
			s.observe(r)
			s.logger.Info("scan failed", "url", url, "error", err)
			if recErr != nil {
				return r, fmt.Errorf("failed to record failed visit of %s: %w", url, recErr)
			}
			return r, nil
		}
		s.observe(r)
		return r, err
	}

	s.observe(r)
	s.logger.Info("scan finished",
		"url", r.URL,
		"level", r.RiskLevel(),
		"score", r.RiskScore(),
		"external", r.ExternalRisk(),
		"links", len(r.Links),
		"elapsed", r.Elapsed,
	)
	return r, nil
}

func (s *Scanner) observe(r *model.ScanResult) {
	if s.observer != nil {
		s.observer(r)
	}
}

// RunJob re-visits the target of a rescan job and appends one rescan log
// row with the outcome.
func (s *Scanner) RunJob(ctx context.Context, job model.RescanJob) error {
	s.logger.Info("rescan started", "target_id", job.TargetID, "url", job.URL)

	entry := model.RescanLog{TargetID: job.TargetID, URL: job.URL, RanAt: s.now()}
	r, err := s.RunSingle(ctx, job.URL, true)
	switch {
	case err != nil:
		entry.Status = model.RescanError
		entry.Detail = err.Error()
	case r.Status == model.StatusError:
		entry.Status = model.RescanError
		entry.Detail = r.Error
		err = errors.New(r.Error)
	default:
		entry.Status = model.RescanOK
		entry.Detail = string(r.RiskLevel())
	}
	if len([]rune(entry.Detail)) > database.MaxRescanDetail {
		entry.Detail = string([]rune(entry.Detail)[:database.MaxRescanDetail])
	}

	if logErr := s.store.AppendRescanLog(context.WithoutCancel(ctx), entry); logErr != nil {
		s.logger.Warn("rescan log failed", "target_id", job.TargetID, "error", logErr)
	}
	if err != nil {
		return fmt.Errorf("rescan of %s failed: %w", job.URL, err)
	}
	return nil
}
