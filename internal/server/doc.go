// Package server exposes the collector over HTTP with gin.
//
// It serves the JSON read API over the store, starts batches and crawls,
// streams batch progress as server-sent events, drives the rescan scheduler,
// writes exports and publishes Prometheus metrics. Dashboard pages are not
// rendered here.
package server
