package model

import "time"

// ChannelResult is the outcome of one notification attempt.
type ChannelResult struct {
	Channel string `json:"channel"`
	Sent    bool   `json:"sent"`
	Reason  string `json:"reason,omitempty"`
}

// AlertEvent is an append-only alert log row, one per channel per dispatch.
type AlertEvent struct {
	TargetID  int64     `json:"target_id"`
	Channel   string    `json:"channel"`
	RiskLevel RiskLevel `json:"risk_level"`
	Sent      bool      `json:"sent"`
	Reason    string    `json:"reason,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}
