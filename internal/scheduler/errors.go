package scheduler

import "errors"

var (
	// ErrSchedulerRunning is returned by Start when the scheduler is already running.
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrSchedulerStopped is returned by Stop when the scheduler is not running.
	ErrSchedulerStopped = errors.New("scheduler is not running")

	// ErrInvalidInterval indicates a non-positive or non-decreasing interval set.
	ErrInvalidInterval = errors.New("invalid rescan interval")
)
