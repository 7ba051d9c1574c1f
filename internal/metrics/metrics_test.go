package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/onionwatch/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveScan(t *testing.T) {
	t.Parallel()

	m := New(nil)
	m.ObserveScan(&model.ScanResult{
		Status:  model.StatusOK,
		Verdict: &model.ThreatVerdict{RiskLevel: model.RiskHigh},
		Elapsed: 3 * time.Second,
	})
	m.ObserveScan(&model.ScanResult{Status: model.StatusError, Elapsed: time.Second})

	if got := testutil.ToFloat64(m.scans.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok scans = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.scans.WithLabelValues("error")); got != 1 {
		t.Errorf("error scans = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.riskLevels.WithLabelValues("high")); got != 1 {
		t.Errorf("high level = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.riskLevels); got != 1 {
		t.Errorf("failed visits should not count a level, got %d series", got)
	}
}

func TestObservers(t *testing.T) {
	t.Parallel()

	m := New(nil)
	m.ObserveAlert("slack", true)
	m.ObserveAlert("slack", false)
	m.ObserveAlert("email", false)
	m.ObserveDiscovered(3)
	m.ObserveDiscovered(0)
	m.ObserveFiring("ok")
	m.ObserveFiring("skipped")
	m.ObserveIntel("urlhaus", "found")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"slack sent", testutil.ToFloat64(m.alerts.WithLabelValues("slack", "true")), 1},
		{"email failed", testutil.ToFloat64(m.alerts.WithLabelValues("email", "false")), 1},
		{"discovered", testutil.ToFloat64(m.discovered), 3},
		{"skipped firings", testutil.ToFloat64(m.firings.WithLabelValues("skipped")), 1},
		{"intel found", testutil.ToFloat64(m.intel.WithLabelValues("urlhaus", "found")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New(func() int { return 4 })
	m.ObserveFiring("ok")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		"onionwatch_scheduler_jobs 4",
		`onionwatch_scheduler_firings_total{status="ok"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestPrivateRegistries(t *testing.T) {
	t.Parallel()

	// Two instances in one process must not collide.
	a := New(nil)
	b := New(nil)
	a.ObserveDiscovered(1)
	if got := testutil.ToFloat64(b.discovered); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}
