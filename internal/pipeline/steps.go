package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/onionwatch/internal/alert"
	"github.com/nao1215/onionwatch/internal/crawler"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/techdetect"
	"github.com/nao1215/onionwatch/internal/threat"
	"github.com/nao1215/onionwatch/internal/wallet"
	"golang.org/x/sync/errgroup"
)

// coinOrder is the order wallets are stored in.
var coinOrder = []string{"BTC", "XMR", "ETH", "LTC"}

// FetchStep downloads the target. Its failure aborts the visit.
//
// The fetcher owns retries and the body size limit; by the time Do sees an
// error the target is unreachable for this visit and the caller records it
// as an errored target instead.
type FetchStep struct {
	// fetcher performs the request through Tor.
	fetcher Fetcher
}

// NewFetchStep creates a fetch step.
func NewFetchStep(fetcher Fetcher) *FetchStep {
	return &FetchStep{fetcher: fetcher}
}

// Name returns the step name.
func (s *FetchStep) Name() string { return model.StageFetch }

// Do fetches v.Input and records the final URL and domain.
func (s *FetchStep) Do(ctx context.Context, v *Visit) error {
	page, err := s.fetcher.Fetch(ctx, v.Input)
	if err != nil {
		v.Result.SetStage(model.StageFetch, model.StageFatal, err)
		return err
	}
	v.FinalURL = page.FinalURL
	if v.FinalURL == "" {
		v.FinalURL = v.Input
	}
	v.Header = page.Header
	v.HTML = string(page.Body)

	v.Result.URL = v.FinalURL
	v.Result.Domain = crawler.Domain(v.FinalURL)
	v.Result.SetStage(model.StageFetch, model.StageOK, nil)
	return nil
}

// AnalyzeStep runs the local extractors on the fetched page. Tech, threat,
// wallet and link extraction run in parallel; a failure or panic in one of
// them degrades that stage only.
//
// Design decision: the extractors are pure functions of the page, so they
// share nothing but the read-only HTML and each writes its own field of the
// result. Running them in one step keeps the step list short and the
// results of a visit independent of extractor order.
type AnalyzeStep struct {
	// classifier scores the page text against the keyword table.
	classifier *threat.Classifier

	// logger for structured logging.
	logger *slog.Logger
}

// NewAnalyzeStep creates an analyze step.
func NewAnalyzeStep(classifier *threat.Classifier, logger *slog.Logger) *AnalyzeStep {
	if classifier == nil {
		classifier = threat.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeStep{classifier: classifier, logger: logger}
}

// Name returns the step name.
func (s *AnalyzeStep) Name() string { return "analyze" }

type extractor struct {
	stage string
	run   func()
}

// Do fills the title, hash, language and findings of the result.
func (s *AnalyzeStep) Do(_ context.Context, v *Visit) error {
	r := v.Result
	r.Title = crawler.ExtractTitle(v.HTML)
	r.ContentHash = crawler.ContentHash([]byte(v.HTML))
	r.Language = threat.DetectLanguage(v.HTML)

	var (
		tech    []model.TechSignature
		verdict model.ThreatVerdict
		wallets model.Wallets
		links   []string
	)
	extractors := []extractor{
		{model.StageTech, func() { tech = techdetect.Detect(v.Header, v.HTML) }},
		{model.StageThreat, func() { verdict = s.classifier.Analyze(v.HTML, r.Title, v.FinalURL) }},
		{model.StageWallets, func() { wallets = wallet.Extract(v.HTML) }},
		{model.StageLinks, func() { links = crawler.ExtractOnionLinks(v.HTML, v.FinalURL) }},
	}

	errs := make([]error, len(extractors))
	var g errgroup.Group
	for i, ex := range extractors {
		g.Go(func() error {
			errs[i] = safely(ex.run)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // extractors report through errs

	for i, ex := range extractors {
		if errs[i] != nil {
			s.logger.Warn("extractor failed", "stage", ex.stage, "url", v.FinalURL, "error", errs[i])
			r.SetStage(ex.stage, model.StageDegraded, errs[i])
			continue
		}
		r.SetStage(ex.stage, model.StageOK, nil)
		switch ex.stage {
		case model.StageTech:
			r.Tech = tech
		case model.StageThreat:
			r.Verdict = &verdict
		case model.StageWallets:
			r.Wallets = wallets
			r.WalletsSummary = wallet.Summary(wallets)
		case model.StageLinks:
			r.Links = links
		}
	}
	if r.WalletsSummary == "" {
		r.WalletsSummary = wallet.Summary(nil)
	}
	return nil
}

// safely runs fn and turns a panic into an error.
func safely(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	fn()
	return nil
}

// CaptureStep takes a screenshot and reads its text. Both are best effort.
//
// The screenshot opens a second connection to the service through a
// headless browser, so it can fail on its own when the service has gone
// away since the fetch. OCR only runs on a screenshot that was written.
type CaptureStep struct {
	shots  Screenshotter
	ocr    OCR
	logger *slog.Logger
}

// NewCaptureStep creates a capture step. Either collaborator may be nil.
func NewCaptureStep(shots Screenshotter, ocr OCR, logger *slog.Logger) *CaptureStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureStep{shots: shots, ocr: ocr, logger: logger}
}

// Name returns the step name.
func (s *CaptureStep) Name() string { return model.StageScreenshot }

// Do captures the page and runs OCR on the screenshot.
func (s *CaptureStep) Do(ctx context.Context, v *Visit) error {
	r := v.Result
	if s.shots == nil {
		r.SetStage(model.StageScreenshot, model.StageSkipped, nil)
		r.SetStage(model.StageOCR, model.StageSkipped, nil)
		return nil
	}

	shot, err := s.shots.Capture(ctx, v.FinalURL)
	if err != nil {
		s.logger.Warn("screenshot failed", "url", v.FinalURL, "error", err)
		r.SetStage(model.StageScreenshot, model.StageDegraded, err)
		r.SetStage(model.StageOCR, model.StageSkipped, nil)
		return nil
	}
	v.Shot = shot
	r.Screenshot = &model.Screenshot{Path: shot.Path, Width: shot.Width, Height: shot.Height}
	r.SetStage(model.StageScreenshot, model.StageOK, nil)

	if s.ocr == nil || !s.ocr.Available() {
		r.SetStage(model.StageOCR, model.StageSkipped, nil)
		return nil
	}
	text, err := s.ocr.ExtractText(ctx, shot.AbsPath)
	if err != nil {
		s.logger.Warn("ocr failed", "path", shot.Path, "error", err)
		r.SetStage(model.StageOCR, model.StageDegraded, err)
		return nil
	}
	v.OCR = text
	r.Screenshot.OCRText = text.Text
	r.OCRConfidence = text.Confidence
	r.SetStage(model.StageOCR, model.StageOK, nil)
	return nil
}

// IntelStep looks the target up in the external reputation sources.
type IntelStep struct {
	intel IntelSource
}

// NewIntelStep creates an intel step. A nil source skips the step.
func NewIntelStep(intel IntelSource) *IntelStep {
	return &IntelStep{intel: intel}
}

// Name returns the step name.
func (s *IntelStep) Name() string { return model.StageIntel }

// Do aggregates the external verdict when the visit asked for it.
func (s *IntelStep) Do(ctx context.Context, v *Visit) error {
	if s.intel == nil || !v.UseIntel {
		v.Result.SetStage(model.StageIntel, model.StageSkipped, nil)
		return nil
	}
	in := s.intel.Aggregate(ctx, v.Result.Domain, v.FinalURL)
	v.Result.Intel = &in
	v.Result.SetStage(model.StageIntel, model.StageOK, nil)
	return nil
}

// PersistStep stores the target and its findings. A storage failure
// aborts the visit.
//
// Design decision: persistence runs before frontier, alert and reschedule
// because all three refer to the stored target id. Children are replaced
// rather than merged, so a target always shows the findings of its latest
// visit while scan_count keeps the history.
type PersistStep struct {
	// store is the results database.
	store Store
}

// NewPersistStep creates a persist step.
func NewPersistStep(store Store) *PersistStep {
	return &PersistStep{store: store}
}

// Name returns the step name.
func (s *PersistStep) Name() string { return model.StagePersist }

// Do upserts the target, replaces its children and adds the intel row and
// the screenshot.
func (s *PersistStep) Do(ctx context.Context, v *Visit) error {
	r := v.Result
	id, err := s.store.UpsertTarget(ctx, &model.Target{
		URL:          r.URL,
		Domain:       r.Domain,
		Title:        r.Title,
		Status:       model.StatusOK,
		RiskScore:    r.RiskScore(),
		RiskLevel:    r.RiskLevel(),
		ExternalRisk: r.ExternalRisk(),
		ContentHash:  r.ContentHash,
		Language:     r.Language,
	})
	if err != nil {
		return s.fail(r, err)
	}
	r.TargetID = id

	children := database.Children{
		Tech:    r.Tech,
		Wallets: r.Wallets.Flatten(coinOrder),
	}
	if r.Verdict != nil {
		children.Keywords = r.Verdict.Keywords
		children.Tags = r.Verdict.Tags
	}
	if err := s.store.ReplaceChildren(ctx, id, children); err != nil {
		return s.fail(r, err)
	}
	if r.Intel != nil {
		if err := s.store.UpsertThreatIntel(ctx, id, *r.Intel); err != nil {
			return s.fail(r, err)
		}
	}
	if r.Screenshot != nil {
		if err := s.store.AddScreenshot(ctx, id, *r.Screenshot); err != nil {
			return s.fail(r, err)
		}
	}
	r.SetStage(model.StagePersist, model.StageOK, nil)
	return nil
}

func (s *PersistStep) fail(r *model.ScanResult, err error) error {
	r.SetStage(model.StagePersist, model.StageFatal, err)
	return fmt.Errorf("failed to persist %s: %w", r.URL, err)
}

// FrontierStep records the discovered links.
type FrontierStep struct {
	frontier LinkRecorder
	logger   *slog.Logger
}

// NewFrontierStep creates a frontier step. A nil recorder skips the step.
func NewFrontierStep(frontier LinkRecorder, logger *slog.Logger) *FrontierStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrontierStep{frontier: frontier, logger: logger}
}

// Name returns the step name.
func (s *FrontierStep) Name() string { return model.StageFrontier }

// Do adds the links found on the page to the frontier.
func (s *FrontierStep) Do(ctx context.Context, v *Visit) error {
	r := v.Result
	if s.frontier == nil {
		r.SetStage(model.StageFrontier, model.StageSkipped, nil)
		return nil
	}
	n, err := s.frontier.Record(ctx, r.TargetID, r.Links)
	if err != nil {
		s.logger.Warn("frontier update failed", "url", r.URL, "error", err)
		r.SetStage(model.StageFrontier, model.StageDegraded, err)
		return nil
	}
	r.NewLinks = n
	r.SetStage(model.StageFrontier, model.StageOK, nil)
	return nil
}

// AlertStep notifies the configured channels and logs every outcome.
//
// The dispatcher applies the minimum level; this step only turns its
// channel results into alert log rows, one per channel, sent or not.
type AlertStep struct {
	alerter Alerter
	store   Store
	now     func() time.Time
	logger  *slog.Logger
}

// NewAlertStep creates an alert step. A nil alerter skips the step.
func NewAlertStep(alerter Alerter, store Store, now func() time.Time, logger *slog.Logger) *AlertStep {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertStep{alerter: alerter, store: store, now: now, logger: logger}
}

// Name returns the step name.
func (s *AlertStep) Name() string { return model.StageAlert }

// Do dispatches the alert and appends one log row per channel result.
func (s *AlertStep) Do(ctx context.Context, v *Visit) error {
	r := v.Result
	if s.alerter == nil {
		r.SetStage(model.StageAlert, model.StageSkipped, nil)
		return nil
	}

	results := s.alerter.Dispatch(ctx, alert.NewAlertContext(r))
	r.Alerts = results

	var logErr error
	for _, res := range results {
		err := s.store.AppendAlert(ctx, model.AlertEvent{
			TargetID:  r.TargetID,
			Channel:   res.Channel,
			RiskLevel: r.RiskLevel(),
			Sent:      res.Sent,
			Reason:    res.Reason,
			SentAt:    s.now(),
		})
		if err != nil && logErr == nil {
			logErr = err
		}
	}
	if logErr != nil {
		s.logger.Warn("alert log failed", "url", r.URL, "error", logErr)
		r.SetStage(model.StageAlert, model.StageDegraded, logErr)
		return nil
	}
	r.SetStage(model.StageAlert, model.StageOK, nil)
	return nil
}

// RescheduleStep plans the next re-visit at the cadence of the new level.
//
// Design decision: the scheduler is looked up per visit through a function
// because the scheduler itself runs visits through the scanner that owns
// this step. Resolving it late lets both be built in either order.
type RescheduleStep struct {
	scheduler func() Rescheduler
	logger    *slog.Logger
}

// NewRescheduleStep creates a reschedule step. scheduler is consulted on
// every visit; a nil result skips the step.
func NewRescheduleStep(scheduler func() Rescheduler, logger *slog.Logger) *RescheduleStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RescheduleStep{scheduler: scheduler, logger: logger}
}

// Name returns the step name.
func (s *RescheduleStep) Name() string { return model.StageReschedule }

// Do replaces the rescan job of the target.
func (s *RescheduleStep) Do(ctx context.Context, v *Visit) error {
	r := v.Result
	var sched Rescheduler
	if s.scheduler != nil {
		sched = s.scheduler()
	}
	if sched == nil {
		r.SetStage(model.StageReschedule, model.StageSkipped, nil)
		return nil
	}
	if _, err := sched.Schedule(ctx, r.TargetID, r.URL, r.RiskLevel()); err != nil {
		s.logger.Warn("reschedule failed", "url", r.URL, "error", err)
		r.SetStage(model.StageReschedule, model.StageDegraded, err)
		return nil
	}
	r.SetStage(model.StageReschedule, model.StageOK, nil)
	return nil
}
