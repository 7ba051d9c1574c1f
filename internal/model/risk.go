package model

import "strings"

// RiskLevel is the ordered risk tier of a target.
// The classifier only ever derives clean, low, medium, high or critical;
// unknown is stored for targets whose last visit failed.
type RiskLevel string

const (
	RiskClean    RiskLevel = "clean"
	RiskUnknown  RiskLevel = "unknown"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRanks is the total order used for alert gating:
// clean < unknown < low < medium < high < critical.
var riskRanks = map[RiskLevel]int{
	RiskClean:    0,
	RiskUnknown:  1,
	RiskLow:      2,
	RiskMedium:   3,
	RiskHigh:     4,
	RiskCritical: 5,
}

// RiskLevels lists every level in ascending order.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskClean, RiskUnknown, RiskLow, RiskMedium, RiskHigh, RiskCritical}
}

// Rank returns the position of the level in the total order.
// Unrecognized levels rank below clean.
func (r RiskLevel) Rank() int {
	rank, ok := riskRanks[r]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether r is one of the known levels.
func (r RiskLevel) Valid() bool {
	_, ok := riskRanks[r]
	return ok
}

// AtLeast reports whether r is at or above min in the total order.
func (r RiskLevel) AtLeast(min RiskLevel) bool {
	return r.Valid() && r.Rank() >= min.Rank()
}

// String implements fmt.Stringer.
func (r RiskLevel) String() string {
	return string(r)
}

// ParseRiskLevel parses a level name case-insensitively.
// Unknown names yield RiskUnknown and false.
func ParseRiskLevel(name string) (RiskLevel, bool) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(name)))
	if !level.Valid() {
		return RiskUnknown, false
	}
	return level, true
}

// ExternalRisk is the tier assigned by third-party reputation sources.
type ExternalRisk string

const (
	ExternalClean      ExternalRisk = "clean"
	ExternalSuspicious ExternalRisk = "suspicious"
	ExternalMalicious  ExternalRisk = "malicious"
	ExternalUnknown    ExternalRisk = "unknown"
)

// String implements fmt.Stringer.
func (e ExternalRisk) String() string {
	return string(e)
}
