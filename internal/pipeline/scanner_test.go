package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/onionwatch/internal/alert"
	"github.com/nao1215/onionwatch/internal/capture"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/frontier"
	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/tor"
)

const (
	shopURL  = "http://shopaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
	blogURL  = "http://blogaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
	deadURL  = "http://deadaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"
	otherURL = "http://otheraaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion"

	shopHTML = `<html><head><title>Night Shop</title></head><body>
<p>Buy cocaine and fentanyl now, contact via PGP.</p>
<p>Pay to 1BoatSLRHtKNngkdXEeobR76b53LETtpyT</p>
<a href="` + otherURL + `/market">partner</a>
<a href="` + shopURL + `/about">about</a>
</body></html>`

	blogHTML = `<html><head><title>Garden blog</title></head><body>Tomatoes and roses.</body></html>`
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*tor.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, &tor.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: errors.New("unexpected status 404 Not Found")}
	}
	h := http.Header{}
	h.Set("Server", "nginx/1.25.3")
	return &tor.Page{FinalURL: url, StatusCode: http.StatusOK, Header: h, Body: []byte(body)}, nil
}

type fakeAlerter struct {
	mu       sync.Mutex
	contexts []alert.AlertContext
}

func (f *fakeAlerter) Dispatch(_ context.Context, c alert.AlertContext) []model.ChannelResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts = append(f.contexts, c)
	if !c.RiskLevel.AtLeast(model.RiskHigh) {
		return []model.ChannelResult{}
	}
	return []model.ChannelResult{
		{Channel: "slack", Sent: true},
		{Channel: "email", Sent: false, Reason: "dial tcp: refused"},
	}
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[int64]model.RiskLevel
	err  error
}

func (f *fakeScheduler) Schedule(_ context.Context, id int64, url string, level model.RiskLevel) (model.RescanJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.RescanJob{}, f.err
	}
	if f.jobs == nil {
		f.jobs = make(map[int64]model.RiskLevel)
	}
	f.jobs[id] = level
	return model.RescanJob{TargetID: id, URL: url, Level: level}, nil
}

type fakeShots struct {
	err error
}

func (f fakeShots) Capture(_ context.Context, url string) (*capture.Shot, error) {
	if f.err != nil {
		return nil, &capture.CaptureError{URL: url, Err: f.err}
	}
	return &capture.Shot{Path: "screenshots/x.png", AbsPath: "/data/screenshots/x.png", Width: 1365, Height: 768}, nil
}

type fakeOCR struct{}

func (fakeOCR) Available() bool { return true }

func (fakeOCR) ExtractText(context.Context, string) (*capture.OCRText, error) {
	return &capture.OCRText{Text: "escrow only", Confidence: 88.5, WordCount: 2}, nil
}

type fakeIntel struct{}

func (fakeIntel) Aggregate(_ context.Context, _, _ string) model.ExternalIntel {
	return model.ExternalIntel{URLFound: true, MaliciousFlag: true, ExternalRisk: model.ExternalMalicious}
}

func openStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{shopURL: shopHTML, blogURL: blogHTML}}
}

func TestRunSingle(t *testing.T) {
	t.Parallel()

	t.Run("full visit persists, alerts and reschedules", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := openStore(t)
		fetcher := newFetcher()
		alerter := &fakeAlerter{}
		sched := &fakeScheduler{}
		var observed []*model.ScanResult

		s := NewScanner(fetcher, store,
			WithScreenshotter(fakeShots{}),
			WithOCR(fakeOCR{}),
			WithIntel(fakeIntel{}),
			WithFrontier(frontier.NewManager(store, frontier.WithLogger(quietLogger()))),
			WithAlerter(alerter),
			WithScanObserver(func(r *model.ScanResult) { observed = append(observed, r) }),
			WithScannerLogger(quietLogger()),
		)
		s.AttachScheduler(sched)

		r, err := s.RunSingle(ctx, shopURL, true)
		if err != nil {
			t.Fatalf("RunSingle() error = %v", err)
		}
		if r.Status != model.StatusOK || r.Error != "" {
			t.Fatalf("status = %s, error = %q", r.Status, r.Error)
		}
		if r.Title != "Night Shop" {
			t.Errorf("Title = %q", r.Title)
		}
		if r.RiskLevel() != model.RiskHigh {
			t.Errorf("RiskLevel() = %s, want high", r.RiskLevel())
		}
		if r.ExternalRisk() != model.ExternalMalicious {
			t.Errorf("ExternalRisk() = %s", r.ExternalRisk())
		}
		if len(r.Links) != 1 || !strings.HasPrefix(r.Links[0], otherURL) {
			t.Errorf("Links = %v, want only the partner link", r.Links)
		}
		if r.NewLinks != 1 {
			t.Errorf("NewLinks = %d, want 1", r.NewLinks)
		}
		if r.WalletsSummary != "BTC:1" {
			t.Errorf("WalletsSummary = %q", r.WalletsSummary)
		}
		if r.Screenshot == nil || r.Screenshot.OCRText != "escrow only" {
			t.Errorf("Screenshot = %+v", r.Screenshot)
		}
		if len(r.Degraded()) != 0 {
			t.Errorf("Degraded() = %+v", r.Degraded())
		}
		if len(observed) != 1 {
			t.Errorf("observer called %d times", len(observed))
		}

		detail, err := store.GetDetail(ctx, r.TargetID)
		if err != nil {
			t.Fatalf("GetDetail() error = %v", err)
		}
		if detail.RiskLevel != model.RiskHigh || detail.ScanCount != 1 {
			t.Errorf("stored target = %+v", detail.Target)
		}
		if len(detail.Keywords) == 0 || len(detail.Wallets) != 1 || len(detail.Tech) == 0 {
			t.Errorf("stored children: %d keywords, %d wallets, %d tech",
				len(detail.Keywords), len(detail.Wallets), len(detail.Tech))
		}
		if detail.Intel == nil || detail.Intel.ExternalRisk != model.ExternalMalicious {
			t.Errorf("stored intel = %+v", detail.Intel)
		}
		if len(detail.Screenshots) != 1 {
			t.Errorf("stored screenshots = %d", len(detail.Screenshots))
		}

		alerts, err := store.ListAlerts(ctx, r.TargetID, 10)
		if err != nil {
			t.Fatalf("ListAlerts() error = %v", err)
		}
		if len(alerts) != 2 {
			t.Errorf("alert rows = %d, want 2", len(alerts))
		}
		if sched.jobs[r.TargetID] != model.RiskHigh {
			t.Errorf("scheduled level = %s", sched.jobs[r.TargetID])
		}

		pending, err := store.PendingLinks(ctx, 10)
		if err != nil {
			t.Fatalf("PendingLinks() error = %v", err)
		}
		if len(pending) != 1 || pending[0].SourceID != r.TargetID {
			t.Errorf("pending = %+v", pending)
		}
	})

	t.Run("fetch failure stores an errored target", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := openStore(t)
		alerter := &fakeAlerter{}
		s := NewScanner(newFetcher(), store,
			WithAlerter(alerter),
			WithScannerLogger(quietLogger()),
		)

		r, err := s.RunSingle(ctx, deadURL, false)
		if err != nil {
			t.Fatalf("RunSingle() error = %v", err)
		}
		if r.Status != model.StatusError || !strings.Contains(r.Error, "404") {
			t.Errorf("status = %s, error = %q", r.Status, r.Error)
		}
		if r.Verdict != nil || r.RiskLevel() != model.RiskUnknown {
			t.Error("failed visit carries risk fields")
		}
		if st, _ := r.Stage(model.StageFetch); st.State != model.StageFatal {
			t.Errorf("fetch stage = %+v", st)
		}
		if len(alerter.contexts) != 0 {
			t.Error("alert dispatched for a failed visit")
		}

		stored, err := store.GetTargetByURL(ctx, deadURL)
		if err != nil {
			t.Fatalf("GetTargetByURL() error = %v", err)
		}
		if stored.Status != model.StatusError || stored.RiskLevel != model.RiskUnknown ||
			stored.ExternalRisk != model.ExternalUnknown || stored.RiskScore != 0 {
			t.Errorf("stored = %+v", stored)
		}
		if !strings.Contains(stored.Notes, "404") {
			t.Errorf("Notes = %q", stored.Notes)
		}
	})

	t.Run("best effort stages degrade", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := openStore(t)
		s := NewScanner(newFetcher(), store,
			WithScreenshotter(fakeShots{err: errors.New("chrome crashed")}),
			WithOCR(fakeOCR{}),
			WithScannerLogger(quietLogger()),
		)
		s.AttachScheduler(&fakeScheduler{err: errors.New("job store locked")})

		r, err := s.RunSingle(ctx, blogURL, true)
		if err != nil {
			t.Fatalf("RunSingle() error = %v", err)
		}
		if r.Status != model.StatusOK {
			t.Fatalf("status = %s", r.Status)
		}
		if r.RiskLevel() != model.RiskClean {
			t.Errorf("RiskLevel() = %s", r.RiskLevel())
		}

		want := map[string]model.StageState{
			model.StageScreenshot: model.StageDegraded,
			model.StageOCR:        model.StageSkipped,
			model.StageIntel:      model.StageSkipped,
			model.StageFrontier:   model.StageSkipped,
			model.StageAlert:      model.StageSkipped,
			model.StageReschedule: model.StageDegraded,
			model.StagePersist:    model.StageOK,
		}
		for stage, state := range want {
			got, ok := r.Stage(stage)
			if !ok || got.State != state {
				t.Errorf("stage %s = %+v, want %s", stage, got, state)
			}
		}
	})
}

func TestAnalyzeRecoversPanics(t *testing.T) {
	t.Parallel()

	err := safely(func() { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("safely() = %v", err)
	}
	if err := safely(func() {}); err != nil {
		t.Errorf("safely() = %v, want nil", err)
	}
}

func TestRunJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewScanner(newFetcher(), store,
		WithClock(func() time.Time { return now }),
		WithScannerLogger(quietLogger()),
	)

	if err := s.RunJob(ctx, model.RescanJob{TargetID: 1, URL: shopURL, Level: model.RiskLow}); err != nil {
		t.Fatalf("RunJob() error = %v", err)
	}
	longURL := deadURL + "/" + strings.Repeat("x", 600)
	if err := s.RunJob(ctx, model.RescanJob{TargetID: 2, URL: longURL}); err == nil {
		t.Fatal("RunJob() of a dead target returned nil")
	}

	logs, err := store.ListRescanLog(ctx, 10)
	if err != nil {
		t.Fatalf("ListRescanLog() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("rescan log rows = %d, want 2", len(logs))
	}
	byTarget := map[int64]model.RescanLog{}
	for _, l := range logs {
		byTarget[l.TargetID] = l
	}
	if ok := byTarget[1]; ok.Status != model.RescanOK || ok.Detail != string(model.RiskHigh) {
		t.Errorf("ok row = %+v", ok)
	}
	bad := byTarget[2]
	if bad.Status != model.RescanError {
		t.Errorf("error row = %+v", bad)
	}
	if n := len([]rune(bad.Detail)); n != database.MaxRescanDetail {
		t.Errorf("detail length = %d, want %d", n, database.MaxRescanDetail)
	}
}
