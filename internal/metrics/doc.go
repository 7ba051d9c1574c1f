// Package metrics exposes Prometheus collectors for scans, alerts, intel
// lookups, the discovery frontier and the rescan scheduler.
//
// Collectors live on a private registry so tests and multiple servers in one
// process never collide on the global default registry. The observer methods
// match the callback options of the pipeline, alert, intel, frontier and
// scheduler packages.
package metrics
