// Package pipeline visits targets and streams batch progress.
//
// A visit is a Pipeline of Steps sharing one Visit value: fetch, analyze,
// capture, external intel, persist, frontier, alert and reschedule. Only a
// failed fetch aborts a visit. The other steps record a degraded
// model.StageStatus on the result and let the visit carry on.
//
// Scanner wires the steps to their collaborators and also implements
// scheduler.Runner. Batch runs one batch at a time on a single goroutine
// and reports progress as model.BatchEvent values on a bounded channel that
// is closed after the terminal done or error event.
package pipeline
