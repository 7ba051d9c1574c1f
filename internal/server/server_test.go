package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/onionwatch/internal/alert"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/pipeline"
	"github.com/nao1215/onionwatch/internal/report"
	"github.com/nao1215/onionwatch/internal/scheduler"
)

const (
	shopURL = "http://shopaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion/"
	deadURL = "http://deadaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion/"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBatch hands out channels the test feeds by hand.
type fakeBatch struct {
	mu      sync.Mutex
	running bool
	events  chan model.BatchEvent
	urls    []string
	intel   bool
	pending int
}

func (f *fakeBatch) Start(_ context.Context, urls []string, useIntel bool) (<-chan model.BatchEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil, pipeline.ErrBatchRunning
	}
	if len(urls) == 0 {
		return nil, pipeline.ErrNoURLs
	}
	f.running = true
	f.urls, f.intel = urls, useIntel
	f.events = make(chan model.BatchEvent, pipeline.EventBuffer)
	return f.events, nil
}

func (f *fakeBatch) StartCrawl(_ context.Context, limit int) (<-chan model.BatchEvent, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil, 0, pipeline.ErrBatchRunning
	}
	if f.pending == 0 {
		return nil, 0, pipeline.ErrNoPendingLinks
	}
	f.running = true
	f.events = make(chan model.BatchEvent, pipeline.EventBuffer)
	return f.events, min(limit, f.pending), nil
}

func (f *fakeBatch) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// finish emits a complete batch and closes the stream.
func (f *fakeBatch) finish() {
	f.mu.Lock()
	ch := f.events
	f.running = false
	f.mu.Unlock()

	ch <- model.BatchEvent{Kind: model.EventStart, Data: model.StartEvent{RunID: "run-1", Total: 1}}
	ch <- model.BatchEvent{Kind: model.EventProgress, Data: model.ProgressEvent{I: 1, Total: 1, URL: shopURL}}
	ch <- model.BatchEvent{Kind: model.EventResult, Data: model.ResultEvent{I: 1, Total: 1, URL: shopURL, Status: model.StatusOK}}
	ch <- model.BatchEvent{Kind: model.EventDone, Data: model.DoneEvent{OK: 1}}
	close(ch)
}

type fakeScheduler struct {
	mu      sync.Mutex
	running bool
	jobs    map[int64]model.RescanJob
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: map[int64]model.RescanJob{
		1: {TargetID: 1, URL: shopURL, Level: model.RiskCritical, Interval: 6 * time.Hour},
	}}
}

func (f *fakeScheduler) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return scheduler.ErrSchedulerRunning
	}
	f.running = true
	return nil
}

func (f *fakeScheduler) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return scheduler.ErrSchedulerStopped
	}
	f.running = false
	return nil
}

func (f *fakeScheduler) Status() scheduler.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return scheduler.Status{Available: true, Running: f.running, JobCount: len(f.jobs)}
}

func (f *fakeScheduler) ListJobs() []model.RescanJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RescanJob, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

func (f *fakeScheduler) Unschedule(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[id]
	delete(f.jobs, id)
	return ok, nil
}

type fixture struct {
	srv      *Server
	store    *database.Store
	batch    *fakeBatch
	sched    *fakeScheduler
	dataDir  string
	shopID   int64
	deadID   int64
	exporter *report.Exporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dataDir := t.TempDir()
	store, err := database.Open(dataDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	shopID, err := store.UpsertTarget(ctx, &model.Target{
		URL:       shopURL,
		Domain:    "shopaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion",
		Title:     "Shop",
		Status:    model.StatusOK,
		RiskLevel: model.RiskCritical,
		RiskScore: 0.4,
	})
	if err != nil {
		t.Fatalf("UpsertTarget() error = %v", err)
	}
	err = store.ReplaceChildren(ctx, shopID, database.Children{
		Keywords: []model.KeywordMatch{{Keyword: "fentanyl", Category: "drugs", Severity: model.SeverityCritical, Count: 2}},
		Tags:     []string{"drugs"},
		Wallets:  []model.WalletAddress{{Coin: "BTC", Address: "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", Type: "legacy"}},
	})
	if err != nil {
		t.Fatalf("ReplaceChildren() error = %v", err)
	}
	deadID, err := store.RecordError(ctx, deadURL, "deadaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion", io.ErrUnexpectedEOF)
	if err != nil {
		t.Fatalf("RecordError() error = %v", err)
	}

	f := &fixture{
		store:   store,
		batch:   &fakeBatch{},
		sched:   newFakeScheduler(),
		dataDir: dataDir,
		shopID:  shopID,
		deadID:  deadID,
	}
	f.exporter = report.NewExporter(dataDir, report.WithLogger(quietLogger()))
	f.srv = New(store, f.batch,
		WithScheduler(f.sched),
		WithAlertStatus(alert.NewDispatcher(alert.WithMinLevel(model.RiskHigh), alert.WithLogger(quietLogger()))),
		WithExporter(f.exporter),
		WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "onionwatch_scans_total 0\n")
		})),
		WithPingInterval(10*time.Millisecond),
		WithLogger(quietLogger()),
	)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestScanStart(t *testing.T) {
	t.Parallel()

	t.Run("starts a batch", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := f.do(t, http.MethodPost, "/scan/start",
			`{"urls":"# seed list\nshopaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.onion/\n\n`+shopURL+`","threat_intel":true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		got := decode[map[string]any](t, rec)
		if got["count"] != float64(1) {
			t.Errorf("count = %v, want 1 after normalization", got["count"])
		}
		if !f.batch.intel || len(f.batch.urls) != 1 || f.batch.urls[0] != shopURL {
			t.Errorf("batch got urls %v intel %v", f.batch.urls, f.batch.intel)
		}

		status := decode[map[string]bool](t, f.do(t, http.MethodGet, "/api/scan/status", ""))
		if !status["running"] {
			t.Error("running = false during a batch")
		}
	})

	t.Run("conflict while running", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if rec := f.do(t, http.MethodPost, "/scan/start", `{"urls":"`+shopURL+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("first start status = %d", rec.Code)
		}
		if rec := f.do(t, http.MethodPost, "/scan/start", `{"urls":"`+deadURL+`"}`); rec.Code != http.StatusConflict {
			t.Errorf("second start status = %d, want 409", rec.Code)
		}
		if rec := f.do(t, http.MethodPost, "/scan/crawl", `{"limit":5}`); rec.Code != http.StatusConflict {
			t.Errorf("crawl during batch status = %d, want 409", rec.Code)
		}
	})

	t.Run("no urls", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if rec := f.do(t, http.MethodPost, "/scan/start", `{"urls":"# only a comment\n\n"}`); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestScanCrawl(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/scan/crawl", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty frontier status = %d, want 400", rec.Code)
	}

	f.batch.pending = 3
	rec := f.do(t, http.MethodPost, "/scan/crawl", `{"limit":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec); got["count"] != float64(2) {
		t.Errorf("count = %v, want 2", got["count"])
	}
}

func TestScanStream(t *testing.T) {
	t.Parallel()

	t.Run("no batch yet", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if rec := f.do(t, http.MethodGet, "/scan/stream", ""); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("replays and ends at the terminal event", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if rec := f.do(t, http.MethodPost, "/scan/start", `{"urls":"`+shopURL+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("start status = %d", rec.Code)
		}

		done := make(chan *httptest.ResponseRecorder, 1)
		go func() { done <- f.do(t, http.MethodGet, "/scan/stream", "") }()

		time.Sleep(30 * time.Millisecond)
		f.batch.finish()

		var rec *httptest.ResponseRecorder
		select {
		case rec = <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("stream did not end after the terminal event")
		}

		body := rec.Body.String()
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
			t.Errorf("Content-Type = %q", ct)
		}
		if !strings.Contains(body, ": ping") {
			t.Error("idle stream sent no ping")
		}
		order := []string{"event:start", "event:progress", "event:result", "event:done"}
		last := -1
		for _, want := range order {
			i := strings.Index(body, want)
			if i < 0 || i < last {
				t.Fatalf("event %q missing or out of order in\n%s", want, body)
			}
			last = i
		}

		// A late client replays the finished batch.
		late := f.do(t, http.MethodGet, "/scan/stream", "")
		if !strings.Contains(late.Body.String(), "event:done") {
			t.Error("late client did not get the terminal event")
		}
	})
}

func TestReadEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	t.Run("stats", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/api/stats", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		stats := decode[database.Stats](t, rec)
		if stats.Total != 2 || stats.Critical != 1 || stats.Errors != 1 {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("targets filtered by risk", func(t *testing.T) {
		t.Parallel()
		targets := decode[[]model.Target](t, f.do(t, http.MethodGet, "/api/targets?risk=critical", ""))
		if len(targets) != 1 || targets[0].URL != shopURL {
			t.Errorf("targets = %+v", targets)
		}
	})

	t.Run("unknown risk level", func(t *testing.T) {
		t.Parallel()
		if rec := f.do(t, http.MethodGet, "/api/targets?risk=severe", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("target detail", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/api/targets/"+itoa(f.shopID), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		got := decode[struct {
			Target model.TargetDetail  `json:"target"`
			Alerts []model.AlertEvent `json:"alerts"`
		}](t, rec)
		if len(got.Target.Wallets) != 1 || got.Target.Tags[0] != "drugs" {
			t.Errorf("detail = %+v", got.Target)
		}
	})

	t.Run("missing target", func(t *testing.T) {
		t.Parallel()
		if rec := f.do(t, http.MethodGet, "/api/targets/9999", ""); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
		if rec := f.do(t, http.MethodGet, "/api/targets/abc", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("wallets by coin", func(t *testing.T) {
		t.Parallel()
		rows := decode[[]database.WalletRow](t, f.do(t, http.MethodGet, "/api/wallets?coin=btc", ""))
		if len(rows) != 1 || rows[0].Domain == "" {
			t.Errorf("wallets = %+v", rows)
		}
		none := decode[[]database.WalletRow](t, f.do(t, http.MethodGet, "/api/wallets?coin=XMR", ""))
		if len(none) != 0 {
			t.Errorf("XMR wallets = %+v", none)
		}
	})

	t.Run("top threats", func(t *testing.T) {
		t.Parallel()
		rows := decode[[]database.KeywordCount](t, f.do(t, http.MethodGet, "/api/threats/top", ""))
		if len(rows) != 1 || rows[0].Keyword != "fentanyl" {
			t.Errorf("top threats = %+v", rows)
		}
	})

	t.Run("discovered", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/api/discovered?scanned=0&limit=5", "")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
		if rec := f.do(t, http.MethodGet, "/api/discovered?limit=-1", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("negative limit status = %d, want 400", rec.Code)
		}
	})

	t.Run("inline export", func(t *testing.T) {
		t.Parallel()
		doc := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/export", ""))
		if doc["count"] != float64(2) || doc["tool"] != report.ToolName {
			t.Errorf("export envelope = %v", doc)
		}
	})

	t.Run("alert status", func(t *testing.T) {
		t.Parallel()
		st := decode[alert.Status](t, f.do(t, http.MethodGet, "/api/alerts/status", ""))
		if st.AnyEnabled || st.MinLevel != model.RiskHigh {
			t.Errorf("alert status = %+v", st)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		t.Parallel()
		rec := f.do(t, http.MethodGet, "/metrics", "")
		if !strings.Contains(rec.Body.String(), "onionwatch_scans_total") {
			t.Errorf("metrics body = %q", rec.Body.String())
		}
	})
}

func TestDelete(t *testing.T) {
	t.Parallel()

	t.Run("by id unschedules", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/delete", `{"ids":[`+itoa(f.shopID)+`]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := decode[map[string]any](t, rec); got["deleted"] != float64(1) {
			t.Errorf("deleted = %v", got["deleted"])
		}
		if len(f.sched.ListJobs()) != 0 {
			t.Error("job of the deleted target still scheduled")
		}
	})

	t.Run("no ids", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if rec := f.do(t, http.MethodPost, "/api/delete", `{"ids":[]}`); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("errored", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.sched.jobs[f.deadID] = model.RescanJob{TargetID: f.deadID, URL: deadURL, Level: model.RiskLow, Interval: 48 * time.Hour}
		got := decode[map[string]any](t, f.do(t, http.MethodPost, "/api/delete/errors", ""))
		if got["deleted"] != float64(1) {
			t.Errorf("deleted = %v, want 1", got["deleted"])
		}
		if _, err := f.store.GetTarget(context.Background(), f.deadID); err == nil {
			t.Error("errored target survived")
		}
		jobs := f.sched.ListJobs()
		for _, j := range jobs {
			if j.TargetID == f.deadID {
				t.Errorf("job %d of the deleted errored target still scheduled", f.deadID)
			}
		}
		if len(jobs) != 1 {
			t.Errorf("jobs of healthy targets must survive, got %+v", jobs)
		}
	})
}

func TestExportEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/export/csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		Files []string `json:"files"`
	}](t, rec)
	if len(got.Files) != 1 {
		t.Fatalf("files = %v", got.Files)
	}
	if _, err := os.Stat(got.Files[0]); err != nil {
		t.Fatalf("export not written: %v", err)
	}

	name := filepath.Base(got.Files[0])
	dl := f.do(t, http.MethodGet, "/api/export/download/"+name, "")
	if dl.Code != http.StatusOK || !bytes.Contains(dl.Body.Bytes(), []byte("risk_level")) {
		t.Errorf("download status = %d", dl.Code)
	}

	if rec := f.do(t, http.MethodGet, "/api/export/download/missing.csv", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing download status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/export/pdf", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", rec.Code)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/scheduler/stop", ""); rec.Code != http.StatusConflict {
		t.Errorf("stop while stopped status = %d, want 409", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/scheduler/start", ""); rec.Code != http.StatusOK {
		t.Errorf("start status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/scheduler/start", ""); rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}

	st := decode[scheduler.Status](t, f.do(t, http.MethodGet, "/api/scheduler/status", ""))
	if !st.Running || st.JobCount != 1 {
		t.Errorf("status = %+v", st)
	}
	jobs := decode[[]model.RescanJob](t, f.do(t, http.MethodGet, "/api/scheduler/jobs", ""))
	if len(jobs) != 1 {
		t.Errorf("jobs = %+v", jobs)
	}

	if rec := f.do(t, http.MethodDelete, "/api/scheduler/jobs/1", ""); rec.Code != http.StatusOK {
		t.Errorf("delete job status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/scheduler/jobs/1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing job status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/scheduler/log", ""); rec.Code != http.StatusOK {
		t.Errorf("log status = %d", rec.Code)
	}
}

func TestWithoutScheduler(t *testing.T) {
	t.Parallel()

	srv := New(nil, &fakeBatch{}, WithLogger(quietLogger()))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scheduler/start", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scheduler/status", nil))
	if !strings.Contains(rec.Body.String(), `"available":false`) {
		t.Errorf("status body = %s", rec.Body.String())
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
