package model

import "time"

// TargetStatus is the outcome of the most recent visit.
type TargetStatus string

const (
	// StatusOK means the last visit fetched and analysed the target.
	StatusOK TargetStatus = "ok"
	// StatusError means the last visit failed to fetch the target.
	StatusError TargetStatus = "error"
)

// Target is a visited hidden service. The URL is its identity; every visit
// overwrites the risk and scan fields and increments ScanCount.
type Target struct {
	ID           int64        `json:"id"`
	URL          string       `json:"url"`
	Domain       string       `json:"domain"`
	Title        string       `json:"title"`
	DetectedAt   time.Time    `json:"detected_at"`
	LastScanned  time.Time    `json:"last_scanned"`
	ScanCount    int          `json:"scan_count"`
	Status       TargetStatus `json:"status"`
	RiskScore    float64      `json:"risk_score"`
	RiskLevel    RiskLevel    `json:"risk_level"`
	ExternalRisk ExternalRisk `json:"external_risk"`
	ContentHash  string       `json:"content_hash,omitempty"`
	Language     string       `json:"language,omitempty"`
	Notes        string       `json:"notes,omitempty"`
}

// TargetDetail is a target with all of its child collections, used for
// exports and the detail API.
type TargetDetail struct {
	Target

	Tech        []TechSignature `json:"tech"`
	Keywords    []KeywordMatch  `json:"keywords"`
	Tags        []string        `json:"tags"`
	Wallets     []WalletAddress `json:"wallets"`
	Screenshots []Screenshot    `json:"screenshots"`
	Intel       *ExternalIntel  `json:"threat_intel,omitempty"`
}

// KeywordNames returns the keyword strings in stored order.
func (d *TargetDetail) KeywordNames() []string {
	names := make([]string, 0, len(d.Keywords))
	for _, k := range d.Keywords {
		names = append(names, k.Keyword)
	}
	return names
}

// TechNames returns the technology names in stored order.
func (d *TargetDetail) TechNames() []string {
	names := make([]string, 0, len(d.Tech))
	for _, t := range d.Tech {
		names = append(names, t.Name)
	}
	return names
}

// Screenshot is a captured rendering of a target.
type Screenshot struct {
	Path      string    `json:"path"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	OCRText   string    `json:"ocr_text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
