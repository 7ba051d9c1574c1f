package model

import "time"

// StageState is the outcome of one stage of a visit.
type StageState string

const (
	StageOK       StageState = "ok"
	StageDegraded StageState = "degraded"
	StageFatal    StageState = "fatal"
	StageSkipped  StageState = "skipped"
)

// Stage names recorded on a ScanResult.
const (
	StageFetch      = "fetch"
	StageTech       = "tech"
	StageThreat     = "threat"
	StageWallets    = "wallets"
	StageLinks      = "links"
	StageScreenshot = "screenshot"
	StageOCR        = "ocr"
	StageIntel      = "intel"
	StagePersist    = "persist"
	StageFrontier   = "frontier"
	StageAlert      = "alert"
	StageReschedule = "reschedule"
)

// StageStatus records how one stage of a visit ended. Err is the message of
// the error that degraded or aborted the stage.
type StageStatus struct {
	Stage string     `json:"stage"`
	State StageState `json:"state"`
	Err   string     `json:"error,omitempty"`
}

// ScanResult is the record produced by one target visit.
// A visit whose fetch failed has Status set to StatusError and carries no
// risk fields.
type ScanResult struct {
	TargetID       int64           `json:"target_id"`
	URL            string          `json:"url"`
	Domain         string          `json:"domain"`
	Title          string          `json:"title"`
	Status         TargetStatus    `json:"status"`
	Error          string          `json:"error,omitempty"`
	ContentHash    string          `json:"content_hash,omitempty"`
	Language       string          `json:"language,omitempty"`
	Verdict        *ThreatVerdict  `json:"threat,omitempty"`
	Tech           []TechSignature `json:"tech,omitempty"`
	Wallets        Wallets         `json:"wallets,omitempty"`
	WalletsSummary string          `json:"wallets_summary,omitempty"`
	Links          []string        `json:"onion_links,omitempty"`
	NewLinks       int             `json:"new_links"`
	Intel          *ExternalIntel  `json:"threat_intel,omitempty"`
	Screenshot     *Screenshot     `json:"screenshot,omitempty"`
	OCRConfidence  float64         `json:"ocr_confidence,omitempty"`
	Alerts         []ChannelResult `json:"alerts,omitempty"`
	Stages         []StageStatus   `json:"stages"`
	StartedAt      time.Time       `json:"started_at"`
	Elapsed        time.Duration   `json:"elapsed"`
}

// RiskLevel returns the verdict level, or RiskUnknown for failed visits.
func (r *ScanResult) RiskLevel() RiskLevel {
	if r.Verdict == nil {
		return RiskUnknown
	}
	return r.Verdict.RiskLevel
}

// RiskScore returns the verdict score, or zero for failed visits.
func (r *ScanResult) RiskScore() float64 {
	if r.Verdict == nil {
		return 0
	}
	return r.Verdict.RiskScore
}

// ExternalRisk returns the aggregated external tier, or unknown when no
// lookup ran.
func (r *ScanResult) ExternalRisk() ExternalRisk {
	if r.Intel == nil {
		return ExternalUnknown
	}
	return r.Intel.ExternalRisk
}

// SetStage records the outcome of a stage, replacing an earlier record for
// the same stage.
func (r *ScanResult) SetStage(stage string, state StageState, err error) {
	status := StageStatus{Stage: stage, State: state}
	if err != nil {
		status.Err = err.Error()
	}
	for i := range r.Stages {
		if r.Stages[i].Stage == stage {
			r.Stages[i] = status
			return
		}
	}
	r.Stages = append(r.Stages, status)
}

// Stage returns the recorded status of a stage.
func (r *ScanResult) Stage(stage string) (StageStatus, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageStatus{}, false
}

// Degraded returns the stages that did not complete normally.
func (r *ScanResult) Degraded() []StageStatus {
	var out []StageStatus
	for _, s := range r.Stages {
		if s.State == StageDegraded || s.State == StageFatal {
			out = append(out, s)
		}
	}
	return out
}
