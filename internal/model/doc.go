// Package model defines the core data structures shared by onionwatch packages.
//
// The main types are:
//   - Target: a visited hidden service and its current risk fields
//   - ThreatVerdict: the keyword classifier output for one visit
//   - TechSignature, WalletAddress, DiscoveredLink: per-visit extractor output
//   - ExternalIntel: aggregated third-party reputation for a target
//   - RescanJob: the recurring re-visit assigned to a target
//   - ScanResult: the record produced by one target visit
//   - BatchEvent: progress events emitted while a batch runs
//
// Models live in their own package so that the extractors, the store, the
// scheduler and the HTTP layer can share them without import cycles. All of
// them are serializable to JSON.
package model
