package model

import (
	"fmt"
	"strings"
)

// Severity is the severity attached to a curated threat keyword.
type Severity int

const (
	// SeverityLow marks keywords that are common on hidden services but are
	// weak evidence on their own (opsec and market vocabulary).
	SeverityLow Severity = iota + 1

	// SeverityMedium marks fraud, counterfeit and soft-drug vocabulary.
	SeverityMedium

	// SeverityHigh marks hard drugs, weapons, carding and malware trade.
	SeverityHigh

	// SeverityCritical marks exploitation, violence-for-hire and mass-harm weapons.
	SeverityCritical
)

// severityWeights is the per-occurrence contribution of each severity to the
// threat score.
var severityWeights = map[Severity]int{
	SeverityCritical: 40,
	SeverityHigh:     15,
	SeverityMedium:   5,
	SeverityLow:      1,
}

// String returns the lower-case name stored in the database and JSON output.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Weight returns the threat score contribution of a single occurrence.
func (s Severity) Weight() int {
	return severityWeights[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", name)
	}
}
