package server

import "errors"

var (
	// ErrNoBatch is returned to stream clients before any batch has started.
	ErrNoBatch = errors.New("no batch has been started")

	// ErrSchedulerUnavailable is returned when the server runs without a scheduler.
	ErrSchedulerUnavailable = errors.New("scheduler is not available")
)
