package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/onionwatch/internal/model"
)

// EventBuffer is the capacity of a batch event channel.
const EventBuffer = 64

// Visitor visits one target.
type Visitor interface {
	RunSingle(ctx context.Context, url string, useIntel bool) (*model.ScanResult, error)
}

// LinkSource hands out frontier links to crawl.
type LinkSource interface {
	Pull(ctx context.Context, limit int) ([]model.DiscoveredLink, error)
	MarkScanned(ctx context.Context, id int64) error
}

// Batch runs at most one batch of visits at a time. URLs of a batch are
// visited one after the other on a single goroutine.
type Batch struct {
	visitor  Visitor
	links    LinkSource
	running  atomic.Bool
	now      func() time.Time
	newRunID func() string
	logger   *slog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithLinkSource enables StartCrawl.
func WithLinkSource(links LinkSource) BatchOption {
	return func(b *Batch) {
		b.links = links
	}
}

// WithBatchClock replaces time.Now.
func WithBatchClock(now func() time.Time) BatchOption {
	return func(b *Batch) {
		b.now = now
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = logger
	}
}

// NewBatch creates a batch runner around visitor.
func NewBatch(visitor Visitor, opts ...BatchOption) *Batch {
	b := &Batch{
		visitor:  visitor,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Running reports whether a batch is in flight.
func (b *Batch) Running() bool {
	return b.running.Load()
}

// Start visits urls in order and streams the progress. The stream is start,
// then progress and result for every URL, then done; an unexpected failure
// ends it with error instead. The channel is closed after the terminal
// event and must be drained by the caller.
func (b *Batch) Start(ctx context.Context, urls []string, useIntel bool) (<-chan model.BatchEvent, error) {
	return b.start(ctx, urls, useIntel, nil)
}

// StartCrawl visits up to limit pending frontier links without external
// lookups and marks them scanned once the batch has finished. It returns
// the event stream and the number of links pulled.
func (b *Batch) StartCrawl(ctx context.Context, limit int) (<-chan model.BatchEvent, int, error) {
	if b.links == nil {
		return nil, 0, ErrNoPendingLinks
	}
	if b.Running() {
		return nil, 0, ErrBatchRunning
	}
	pending, err := b.links.Pull(ctx, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to pull frontier links: %w", err)
	}
	if len(pending) == 0 {
		return nil, 0, ErrNoPendingLinks
	}

	urls := make([]string, 0, len(pending))
	for _, l := range pending {
		urls = append(urls, l.URL)
	}
	markAll := func(ctx context.Context) {
		for _, l := range pending {
			if err := b.links.MarkScanned(ctx, l.ID); err != nil {
				b.logger.Warn("cannot mark link scanned", "url", l.URL, "error", err)
			}
		}
	}
	events, err := b.start(ctx, urls, false, markAll)
	if err != nil {
		return nil, 0, err
	}
	return events, len(urls), nil
}

func (b *Batch) start(ctx context.Context, urls []string, useIntel bool, after func(context.Context)) (<-chan model.BatchEvent, error) {
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	if !b.running.CompareAndSwap(false, true) {
		return nil, ErrBatchRunning
	}

	events := make(chan model.BatchEvent, EventBuffer)
	go b.run(ctx, urls, useIntel, after, events)
	return events, nil
}

// run owns the single-flight flag until the terminal event is in the
// channel, so a new batch cannot start while the old stream is unfinished.
func (b *Batch) run(ctx context.Context, urls []string, useIntel bool, after func(context.Context), events chan<- model.BatchEvent) {
	defer close(events)

	terminal, err := b.visitAll(ctx, urls, useIntel, events)
	if after != nil {
		after(context.WithoutCancel(ctx))
	}
	if err != nil {
		b.logger.Error("batch aborted", "error", err)
		terminal = model.BatchEvent{Kind: model.EventError, Data: model.ErrorEvent{Message: err.Error()}}
	}
	events <- terminal
	b.running.Store(false)
}

// visitAll emits everything but the terminal event, which it returns.
func (b *Batch) visitAll(ctx context.Context, urls []string, useIntel bool, events chan<- model.BatchEvent) (terminal model.BatchEvent, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	start := b.now()
	total := len(urls)
	runID := b.newRunID()
	b.logger.Info("batch started", "run_id", runID, "total", total, "threat_intel", useIntel)
	events <- model.BatchEvent{Kind: model.EventStart, Data: model.StartEvent{RunID: runID, Total: total, ThreatIntel: useIntel}}

	var done model.DoneEvent
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return model.BatchEvent{}, err
		}
		events <- model.BatchEvent{Kind: model.EventProgress, Data: model.ProgressEvent{I: i + 1, Total: total, URL: u}}

		t0 := b.now()
		r, err := b.visitor.RunSingle(ctx, u, useIntel)
		if err != nil && errors.Is(err, ctx.Err()) {
			return model.BatchEvent{}, err
		}
		ev := resultEvent(i+1, total, u, r, err)
		ev.Elapsed = b.now().Sub(t0).Seconds()
		if ev.Status == model.StatusOK {
			done.OK++
		} else {
			done.Fail++
		}
		done.Links += ev.Links
		done.Wallets += ev.Wallets
		events <- model.BatchEvent{Kind: model.EventResult, Data: ev}
	}

	done.Elapsed = b.now().Sub(start).Seconds()
	b.logger.Info("batch finished", "run_id", runID, "ok", done.OK, "fail", done.Fail, "elapsed", done.Elapsed)
	return model.BatchEvent{Kind: model.EventDone, Data: done}, nil
}

func resultEvent(i, total int, url string, r *model.ScanResult, err error) model.ResultEvent {
	ev := model.ResultEvent{I: i, Total: total, URL: url, Status: model.StatusError}
	if r == nil {
		if err != nil {
			ev.Error = err.Error()
		}
		return ev
	}
	ev.URL = r.URL
	ev.TargetID = r.TargetID
	ev.Status = r.Status
	ev.Error = r.Error
	if err != nil {
		ev.Status = model.StatusError
		ev.Error = err.Error()
	}
	if r.Status != model.StatusOK {
		return ev
	}
	ev.Domain = r.Domain
	ev.Title = r.Title
	ev.RiskLevel = r.RiskLevel()
	ev.RiskScore = r.RiskScore()
	ev.ExternalRisk = r.ExternalRisk()
	if r.Verdict != nil {
		ev.Keywords = len(r.Verdict.Keywords)
	}
	ev.Tech = len(r.Tech)
	ev.Links = len(r.Links)
	ev.Wallets = r.Wallets.Count()
	return ev
}
