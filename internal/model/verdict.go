package model

// KeywordMatch is one curated keyword found during a visit.
// Count is the number of occurrences in this visit only.
type KeywordMatch struct {
	Keyword  string   `json:"keyword"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
}

// ThreatVerdict is the keyword classifier output for one visit.
// It is computed fresh from the current content and fully replaces the
// previous verdict of the target.
type ThreatVerdict struct {
	Keywords    []KeywordMatch `json:"keywords"`
	Tags        []string       `json:"tags"`
	ThreatScore int            `json:"threat_score"`
	RiskScore   float64        `json:"risk_score"`
	RiskLevel   RiskLevel      `json:"risk_level"`
}

// HasMatches reports whether any keyword matched.
func (v ThreatVerdict) HasMatches() bool {
	return len(v.Keywords) > 0
}
