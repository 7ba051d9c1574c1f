package model

import (
	"errors"
	"testing"
	"time"
)

func TestRiskLevelOrder(t *testing.T) {
	t.Parallel()

	levels := RiskLevels()
	for i := 1; i < len(levels); i++ {
		if levels[i-1].Rank() >= levels[i].Rank() {
			t.Errorf("%s should rank below %s", levels[i-1], levels[i])
		}
	}
}

func TestRiskLevelAtLeast(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		level RiskLevel
		min   RiskLevel
		want  bool
	}{
		{RiskCritical, RiskHigh, true},
		{RiskHigh, RiskHigh, true},
		{RiskMedium, RiskHigh, false},
		{RiskUnknown, RiskLow, false},
		{RiskUnknown, RiskClean, true},
		{RiskLevel("bogus"), RiskClean, false},
	}

	for _, tc := range testCases {
		if got := tc.level.AtLeast(tc.min); got != tc.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tc.level, tc.min, got, tc.want)
		}
	}
}

func TestParseRiskLevel(t *testing.T) {
	t.Parallel()

	if got, ok := ParseRiskLevel("Critical"); !ok || got != RiskCritical {
		t.Errorf("got %s/%v, want critical/true", got, ok)
	}
	if got, ok := ParseRiskLevel("severe"); ok || got != RiskUnknown {
		t.Errorf("got %s/%v, want unknown/false", got, ok)
	}
}

func TestScanResultStages(t *testing.T) {
	t.Parallel()

	r := &ScanResult{}
	r.SetStage(StageTech, StageOK, nil)
	r.SetStage(StageScreenshot, StageDegraded, errors.New("chrome not found"))
	r.SetStage(StageTech, StageDegraded, errors.New("boom"))

	if len(r.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(r.Stages))
	}
	tech, ok := r.Stage(StageTech)
	if !ok || tech.State != StageDegraded || tech.Err != "boom" {
		t.Errorf("unexpected tech stage: %+v", tech)
	}
	if got := len(r.Degraded()); got != 2 {
		t.Errorf("expected 2 degraded stages, got %d", got)
	}
	if r.RiskLevel() != RiskUnknown {
		t.Errorf("expected unknown level without verdict, got %s", r.RiskLevel())
	}
	if r.ExternalRisk() != ExternalUnknown {
		t.Errorf("expected unknown external risk without intel, got %s", r.ExternalRisk())
	}
}

func TestRescanJobID(t *testing.T) {
	t.Parallel()

	job := RescanJob{TargetID: 42, Interval: 12 * time.Hour}
	if job.ID() != "rescan_42" {
		t.Errorf("got %q", job.ID())
	}
	if job.IntervalHours() != 12 {
		t.Errorf("got %d hours", job.IntervalHours())
	}
}

func TestWalletsFlatten(t *testing.T) {
	t.Parallel()

	w := Wallets{
		"ETH": {{Coin: "ETH", Address: "0xabc"}},
		"BTC": {{Coin: "BTC", Address: "1abc"}, {Coin: "BTC", Address: "3abc"}},
	}
	flat := w.Flatten([]string{"BTC", "XMR", "ETH"})
	if len(flat) != 3 || w.Count() != 3 {
		t.Fatalf("expected 3 addresses, got %d", len(flat))
	}
	if flat[0].Coin != "BTC" || flat[2].Coin != "ETH" {
		t.Errorf("unexpected order: %+v", flat)
	}
}
