// Package techdetect fingerprints the software stack behind a hidden service.
//
// Two independent sub-detectors propose signatures: one reads HTTP response
// headers, the other reads HTML markers such as asset paths, the generator
// meta tag and embedded version strings. Every rule carries a fixed
// confidence that reflects how specific its evidence is. Merge folds the
// proposals into one list keyed by (name, category).
package techdetect
