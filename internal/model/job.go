package model

import (
	"strconv"
	"time"
)

// RescanJob is the recurring re-visit of one target. TargetID is its
// identity; rescheduling replaces the job, never duplicates it.
type RescanJob struct {
	TargetID int64         `json:"target_id"`
	URL      string        `json:"url"`
	Level    RiskLevel     `json:"risk_level"`
	Interval time.Duration `json:"interval"`
	NextRun  time.Time     `json:"next_run"`
}

// ID returns the job identifier, e.g. "rescan_42".
func (j RescanJob) ID() string {
	return JobID(j.TargetID)
}

// IntervalHours returns the interval in whole hours.
func (j RescanJob) IntervalHours() int {
	return int(j.Interval / time.Hour)
}

// JobID returns the job identifier for a target.
func JobID(targetID int64) string {
	return "rescan_" + strconv.FormatInt(targetID, 10)
}

// RescanStatus is the outcome recorded in the rescan audit log.
type RescanStatus string

const (
	RescanOK    RescanStatus = "ok"
	RescanError RescanStatus = "error"
)

// RescanLog is one audit row appended per scheduler firing.
type RescanLog struct {
	TargetID int64        `json:"target_id"`
	URL      string       `json:"url"`
	Status   RescanStatus `json:"status"`
	Detail   string       `json:"detail"`
	RanAt    time.Time    `json:"ran_at"`
}
