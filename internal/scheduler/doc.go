// Package scheduler re-visits known targets on a cadence driven by their
// current risk level.
//
// Every target has at most one recurring job, keyed by its id. Jobs are
// persisted in their own store so that a restart resumes them: a job whose
// next run passed while the process was down fires once on start, however
// many runs it missed, and then continues on its interval.
//
// Firings run on a small bounded worker pool. A target whose previous
// firing is still running is skipped rather than queued twice.
package scheduler
