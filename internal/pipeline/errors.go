package pipeline

import "errors"

var (
	// ErrBatchRunning is returned when a batch is started while another one
	// is still in flight.
	ErrBatchRunning = errors.New("a batch is already running")

	// ErrNoURLs is returned when a batch is started without targets.
	ErrNoURLs = errors.New("no urls to scan")

	// ErrNoPendingLinks is returned when a crawl finds an empty frontier.
	ErrNoPendingLinks = errors.New("no pending links in the frontier")
)
