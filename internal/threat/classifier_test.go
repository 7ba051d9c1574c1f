package threat

import (
	"reflect"
	"strings"
	"testing"

	"github.com/nao1215/onionwatch/internal/model"
)

func TestClassifierAnalyze(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	t.Run("drug vendor page is high", func(t *testing.T) {
		t.Parallel()

		v := c.Analyze("Buy cocaine and fentanyl now, contact via PGP", "", "")

		want := []model.KeywordMatch{
			{Keyword: "cocaine", Category: CategoryDrugs, Severity: model.SeverityHigh, Count: 1},
			{Keyword: "fentanyl", Category: CategoryDrugs, Severity: model.SeverityHigh, Count: 1},
			{Keyword: "pgp", Category: CategoryOpsec, Severity: model.SeverityLow, Count: 1},
		}
		if !reflect.DeepEqual(v.Keywords, want) {
			t.Errorf("keywords = %+v, want %+v", v.Keywords, want)
		}
		if v.ThreatScore != 31 {
			t.Errorf("expected threat score 31, got %d", v.ThreatScore)
		}
		if v.RiskLevel != model.RiskHigh {
			t.Errorf("expected high, got %s", v.RiskLevel)
		}
		if v.RiskScore != 0.155 {
			t.Errorf("expected risk score 0.155, got %v", v.RiskScore)
		}
		if !reflect.DeepEqual(v.Tags, []string{"drugs", "opsec"}) {
			t.Errorf("unexpected tags %v", v.Tags)
		}
	})

	t.Run("word boundaries exclude substrings", func(t *testing.T) {
		t.Parallel()

		v := c.Analyze("A methodology for research on assemblies", "", "")
		if v.HasMatches() {
			t.Errorf("expected no matches, got %+v", v.Keywords)
		}
		if v.RiskLevel != model.RiskClean {
			t.Errorf("expected clean, got %s", v.RiskLevel)
		}
		if v.Keywords == nil || v.Tags == nil {
			t.Error("expected empty, non-nil slices")
		}
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		t.Parallel()

		v := c.Analyze("PURE COCAINE", "", "")
		if len(v.Keywords) != 1 || v.Keywords[0].Keyword != "cocaine" {
			t.Fatalf("unexpected keywords %+v", v.Keywords)
		}
	})

	t.Run("title and url are analysed", func(t *testing.T) {
		t.Parallel()

		v := c.Analyze("<p>welcome</p>", "Fentanyl Direct", "http://example.onion/escrow")
		if v.RiskLevel != model.RiskHigh {
			t.Errorf("expected high, got %s", v.RiskLevel)
		}
		if !reflect.DeepEqual(v.Tags, []string{"drugs", "market"}) {
			t.Errorf("unexpected tags %v", v.Tags)
		}
	})

	t.Run("critical keyword forces critical", func(t *testing.T) {
		t.Parallel()

		v := c.Analyze("hitman", "", "")
		if v.RiskLevel != model.RiskCritical {
			t.Errorf("expected critical, got %s", v.RiskLevel)
		}
		if v.ThreatScore != 40 {
			t.Errorf("expected score 40, got %d", v.ThreatScore)
		}
	})

	t.Run("per-keyword count is capped", func(t *testing.T) {
		t.Parallel()

		v := c.Analyze(strings.Repeat("scam ", 15), "", "")
		if v.Keywords[0].Count != 15 {
			t.Errorf("expected raw count 15, got %d", v.Keywords[0].Count)
		}
		if v.ThreatScore != 50 {
			t.Errorf("expected capped score 50, got %d", v.ThreatScore)
		}
		// score >= 40 escalates a medium-only page to high.
		if v.RiskLevel != model.RiskHigh {
			t.Errorf("expected high, got %s", v.RiskLevel)
		}
	})

	t.Run("score is clamped to one", func(t *testing.T) {
		t.Parallel()

		v := c.Analyze(strings.Repeat("hitman ricin sarin anthrax explosives ", 10), "", "")
		if v.RiskScore != 1 {
			t.Errorf("expected risk score 1, got %v", v.RiskScore)
		}
	})
}

func TestClassifierLowVolumeEscalation(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	testCases := []struct {
		name  string
		text  string
		score int
		level model.RiskLevel
	}{
		{"single low keyword", "pgp", 1, model.RiskLow},
		{"nine occurrences stay low", strings.Repeat("pgp ", 9), 9, model.RiskLow},
		{"ten occurrences reach medium", strings.Repeat("pgp ", 10), 10, model.RiskMedium},
		{"cap keeps twelve at medium", strings.Repeat("pgp ", 12), 10, model.RiskMedium},
		{"four saturated low keywords reach high", strings.Repeat("pgp escrow vendor darknet ", 10), 40, model.RiskHigh},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			v := c.Analyze(tc.text, "", "")
			for _, k := range v.Keywords {
				if k.Severity != model.SeverityLow {
					t.Fatalf("unexpected non-low match %+v", k)
				}
			}
			if v.ThreatScore != tc.score {
				t.Errorf("expected score %d, got %d", tc.score, v.ThreatScore)
			}
			if v.RiskLevel != tc.level {
				t.Errorf("expected %s, got %s", tc.level, v.RiskLevel)
			}
		})
	}
}

func TestClassifierMonotonic(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	prevScore, prevRank := -1, -1
	for n := 0; n <= 12; n++ {
		v := c.Analyze(strings.Repeat("pgp escrow vendor darknet anonymous ", n), "", "")
		if v.ThreatScore < prevScore {
			t.Fatalf("score decreased at n=%d", n)
		}
		if v.ThreatScore > prevScore && v.RiskLevel.Rank() < prevRank {
			t.Fatalf("level rank decreased at n=%d: %s", n, v.RiskLevel)
		}
		prevScore, prevRank = v.ThreatScore, v.RiskLevel.Rank()
	}
}

func TestClassifierDeterministic(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	text := "Vendor shop: heroin, weed, fake id, pgp, escrow. Glock and ammo in stock."
	first := c.Analyze(text, "Market", "http://x.onion")
	for i := 0; i < 5; i++ {
		if got := c.Analyze(text, "Market", "http://x.onion"); !reflect.DeepEqual(first, got) {
			t.Fatalf("verdict changed between runs:\n%+v\n%+v", first, got)
		}
	}
	if !reflect.DeepEqual(first, Default().Analyze(text, "Market", "http://x.onion")) {
		t.Error("default classifier disagrees with a fresh one")
	}
}

func TestClassifierWithKeywords(t *testing.T) {
	t.Parallel()

	c := NewClassifier(WithKeywords([]Keyword{
		{Term: "widget", Category: "test", Severity: model.SeverityMedium},
	}))

	v := c.Analyze("one widget, two widgets, three widget", "", "")
	if len(v.Keywords) != 1 || v.Keywords[0].Count != 2 {
		t.Fatalf("unexpected keywords %+v", v.Keywords)
	}
	if v.RiskLevel != model.RiskMedium || v.ThreatScore != 10 {
		t.Errorf("unexpected verdict %+v", v)
	}
}

func TestDefaultKeywordsIsCopy(t *testing.T) {
	t.Parallel()

	kws := DefaultKeywords()
	kws[0].Term = "mutated"
	if DefaultKeywords()[0].Term == "mutated" {
		t.Error("DefaultKeywords must not expose the shared table")
	}
}
