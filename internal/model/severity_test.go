package model

import (
	"encoding/json"
	"testing"
)

// TestSeverityString tests the String method of Severity.
func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityLow, "low"},
		{SeverityMedium, "medium"},
		{SeverityHigh, "high"},
		{SeverityCritical, "critical"},
		{Severity(999), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.severity.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.severity.String(), tc.expected)
			}
		})
	}
}

// TestSeverityWeight tests the threat score weight of each severity.
func TestSeverityWeight(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected int
	}{
		{SeverityCritical, 40},
		{SeverityHigh, 15},
		{SeverityMedium, 5},
		{SeverityLow, 1},
		{Severity(0), 0},
	}

	for _, tc := range testCases {
		if got := tc.severity.Weight(); got != tc.expected {
			t.Errorf("%s: got weight %d, expected %d", tc.severity, got, tc.expected)
		}
	}
}

// TestParseSeverity tests parsing of severity names.
func TestParseSeverity(t *testing.T) {
	t.Parallel()

	t.Run("parses names case-insensitively", func(t *testing.T) {
		t.Parallel()

		got, err := ParseSeverity(" HIGH ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != SeverityHigh {
			t.Errorf("expected high, got %s", got)
		}
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseSeverity("severe"); err == nil {
			t.Error("expected error for unknown severity")
		}
	})
}

// TestSeverityJSON tests that severities serialize as names.
func TestSeverityJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(KeywordMatch{Keyword: "pgp", Category: "opsec", Severity: SeverityLow, Count: 1})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"keyword":"pgp","category":"opsec","severity":"low","count":1}`
	if string(data) != want {
		t.Errorf("got %s, expected %s", data, want)
	}

	var decoded KeywordMatch
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Severity != SeverityLow {
		t.Errorf("expected low after round trip, got %s", decoded.Severity)
	}
}
