package model

// EventKind names a batch progress event.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventProgress EventKind = "progress"
	EventResult   EventKind = "result"
	EventDone     EventKind = "done"
	EventError    EventKind = "error"
)

// Terminal reports whether the event ends a batch stream.
func (k EventKind) Terminal() bool {
	return k == EventDone || k == EventError
}

// BatchEvent is one message on a batch progress stream. Data holds one of
// the *Event payload types below.
type BatchEvent struct {
	Kind EventKind `json:"event"`
	Data any       `json:"data"`
}

// StartEvent opens a batch stream.
type StartEvent struct {
	RunID       string `json:"run_id"`
	Total       int    `json:"total"`
	ThreatIntel bool   `json:"threat_intel"`
}

// ProgressEvent precedes the visit of the I-th URL (1-based).
type ProgressEvent struct {
	I     int    `json:"i"`
	Total int    `json:"total"`
	URL   string `json:"url"`
}

// ResultEvent reports the outcome of the I-th URL.
type ResultEvent struct {
	I            int          `json:"i"`
	Total        int          `json:"total"`
	URL          string       `json:"url"`
	Domain       string       `json:"domain,omitempty"`
	Title        string       `json:"title,omitempty"`
	Status       TargetStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	RiskLevel    RiskLevel    `json:"risk_level,omitempty"`
	RiskScore    float64      `json:"risk_score"`
	ExternalRisk ExternalRisk `json:"external_risk,omitempty"`
	Keywords     int          `json:"keywords"`
	Tech         int          `json:"tech"`
	Links        int          `json:"links"`
	Wallets      int          `json:"wallets"`
	TargetID     int64        `json:"target_id,omitempty"`
	Elapsed      float64      `json:"elapsed"`
}

// DoneEvent closes a batch stream with the final tally.
type DoneEvent struct {
	OK      int     `json:"ok"`
	Fail    int     `json:"fail"`
	Links   int     `json:"links"`
	Wallets int     `json:"wallets"`
	Elapsed float64 `json:"elapsed"`
}

// ErrorEvent closes a batch stream that could not run to completion.
type ErrorEvent struct {
	Message string `json:"message"`
}
