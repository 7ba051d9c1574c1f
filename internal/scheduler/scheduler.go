package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/onionwatch/internal/model"
)

// DefaultWorkers is the number of firings that may run at the same time.
const DefaultWorkers = 2

// idleWait is how long the dispatcher sleeps when no job is scheduled.
// Schedule wakes it earlier.
const idleWait = time.Hour

// Firing outcomes reported to the observer.
const (
	FiringOK      = "ok"
	FiringError   = "error"
	FiringPanic   = "panic"
	FiringSkipped = "skipped"
)

// Runner re-visits the target of a job.
type Runner interface {
	RunJob(ctx context.Context, job model.RescanJob) error
}

// JobStore persists jobs across restarts.
// *database.JobStore implements it.
type JobStore interface {
	SaveJob(ctx context.Context, job model.RescanJob) error
	DeleteJob(ctx context.Context, targetID int64) (bool, error)
	LoadJobs(ctx context.Context) ([]model.RescanJob, error)
}

// Status is a snapshot of the scheduler.
type Status struct {
	Available bool           `json:"available"`
	Running   bool           `json:"running"`
	JobCount  int            `json:"job_count"`
	Intervals map[string]int `json:"intervals"`
}

// Scheduler fires recurring rescan jobs.
type Scheduler struct {
	runner    Runner
	store     JobStore
	intervals Intervals
	workers   int64
	logger    *slog.Logger
	now       func() time.Time
	observer  func(outcome string)

	mu       sync.Mutex
	jobs     map[int64]*model.RescanJob
	inflight map[int64]struct{}
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	firings  sync.WaitGroup
	sem      *semaphore.Weighted
	wake     chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithIntervals sets the per-level cadence.
func WithIntervals(iv Intervals) Option {
	return func(s *Scheduler) {
		s.intervals = iv
	}
}

// WithWorkers sets the number of concurrent firings. Values below one are
// ignored.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = int64(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for computing next runs.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithObserver registers a callback that receives the outcome of every
// firing: FiringOK, FiringError, FiringPanic or FiringSkipped.
func WithObserver(fn func(outcome string)) Option {
	return func(s *Scheduler) {
		s.observer = fn
	}
}

// New creates a stopped scheduler.
func New(runner Runner, store JobStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:    runner,
		store:     store,
		intervals: DefaultIntervals(),
		workers:   DefaultWorkers,
		logger:    slog.Default(),
		now:       time.Now,
		jobs:      make(map[int64]*model.RescanJob),
		inflight:  make(map[int64]struct{}),
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Intervals returns the configured cadence.
func (s *Scheduler) Intervals() Intervals {
	return s.intervals
}

// Schedule creates or replaces the job of a target. The first run is one
// interval from now. The job is persisted whether or not the scheduler is
// running.
func (s *Scheduler) Schedule(ctx context.Context, targetID int64, url string, level model.RiskLevel) (model.RescanJob, error) {
	interval := s.intervals.For(level)
	job := model.RescanJob{
		TargetID: targetID,
		URL:      url,
		Level:    level,
		Interval: interval,
		NextRun:  s.now().Add(interval),
	}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return job, fmt.Errorf("failed to schedule %s: %w", job.ID(), err)
	}

	// The dispatcher advances stored jobs in place, so the map gets its own
	// copy and job stays safe to read after unlocking.
	stored := job
	s.mu.Lock()
	s.jobs[targetID] = &stored
	s.mu.Unlock()
	s.signal()

	s.logger.Debug("rescan scheduled", "job", job.ID(), "level", level, "interval", interval, "next_run", job.NextRun)
	return job, nil
}

// Unschedule removes the job of a target and reports whether one existed.
// The in-memory job goes first so that a firing already in flight sees it is
// gone and does not write it back to the store.
func (s *Scheduler) Unschedule(ctx context.Context, targetID int64) (bool, error) {
	s.mu.Lock()
	_, existed := s.jobs[targetID]
	delete(s.jobs, targetID)
	s.mu.Unlock()
	s.signal()

	deleted, err := s.store.DeleteJob(ctx, targetID)
	if err != nil {
		return existed, fmt.Errorf("failed to unschedule %s: %w", model.JobID(targetID), err)
	}
	return existed || deleted, nil
}

// Start loads the persisted jobs and begins firing them. Jobs whose next run
// has passed fire once immediately. ctx bounds loading only; the scheduler
// runs until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerRunning
	}

	loaded, err := s.store.LoadJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}
	now := s.now()
	overdue := 0
	for i := range loaded {
		job := loaded[i]
		if !job.NextRun.After(now) {
			overdue++
		}
		s.jobs[job.TargetID] = &job
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.sem = semaphore.NewWeighted(s.workers)
	s.loopDone = make(chan struct{})
	s.running = true
	go s.loop(runCtx, s.loopDone)

	s.logger.Info("scheduler started", "jobs", len(s.jobs), "overdue", overdue, "workers", s.workers)
	return nil
}

// Stop halts the dispatcher, cancels running firings and waits for them.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	s.running = false
	cancel, done := s.cancel, s.loopDone
	s.mu.Unlock()

	cancel()
	<-done
	s.firings.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// Running reports whether the dispatcher is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Available: true,
		Running:   s.running,
		JobCount:  len(s.jobs),
		Intervals: s.intervals.Hours(),
	}
}

// ListJobs returns every known job ordered by next run.
func (s *Scheduler) ListJobs() []model.RescanJob {
	s.mu.Lock()
	jobs := make([]model.RescanJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, *j)
	}
	s.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].NextRun.Equal(jobs[j].NextRun) {
			return jobs[i].TargetID < jobs[j].TargetID
		}
		return jobs[i].NextRun.Before(jobs[j].NextRun)
	})
	return jobs
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		timer.Reset(s.untilNext())
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
			s.runDue(ctx)
		}
	}
}

// untilNext returns the delay until the earliest job is due.
func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	for _, j := range s.jobs {
		if next.IsZero() || j.NextRun.Before(next) {
			next = j.NextRun
		}
	}
	if next.IsZero() {
		return idleWait
	}
	if d := next.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// runDue fires every job whose next run has passed. A job fires once per
// call however many runs it missed; its next run moves one interval past now.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now()

	type dueJob struct {
		entry *model.RescanJob
		job   model.RescanJob
	}

	s.mu.Lock()
	var due []dueJob
	for _, j := range s.jobs {
		if j.NextRun.After(now) {
			continue
		}
		if j.Interval <= 0 {
			j.Interval = s.intervals.For(j.Level)
		}
		if missed := int(now.Sub(j.NextRun)/j.Interval) + 1; missed > 1 {
			s.logger.Info("coalescing missed rescans", "job", j.ID(), "missed", missed)
		}
		j.NextRun = now.Add(j.Interval)
		due = append(due, dueJob{entry: j, job: *j})
	}
	s.mu.Unlock()

	for _, d := range due {
		if err := s.store.SaveJob(ctx, d.job); err != nil {
			s.logger.Warn("failed to persist next run", "job", d.job.ID(), "error", err)
		}
		if !s.settle(ctx, d.entry, d.job) {
			continue
		}
		s.fire(ctx, d.job)
	}
}

// settle reports whether a job saved by runDue is still the live job of its
// target. Unschedule or Schedule may have run while the store was written:
// an unscheduled job is deleted from the store again, and a replaced job has
// its replacement saved over the stale row. Neither fires.
func (s *Scheduler) settle(ctx context.Context, entry *model.RescanJob, job model.RescanJob) bool {
	s.mu.Lock()
	current, ok := s.jobs[job.TargetID]
	if ok && current == entry {
		s.mu.Unlock()
		return true
	}
	var replacement model.RescanJob
	if ok {
		replacement = *current
	}
	s.mu.Unlock()

	if !ok {
		if _, err := s.store.DeleteJob(ctx, job.TargetID); err != nil {
			s.logger.Warn("failed to drop unscheduled job", "job", job.ID(), "error", err)
		}
		s.logger.Debug("job unscheduled before firing", "job", job.ID())
		return false
	}
	if err := s.store.SaveJob(ctx, replacement); err != nil {
		s.logger.Warn("failed to persist replaced job", "job", job.ID(), "error", err)
	}
	s.logger.Debug("job replaced before firing", "job", job.ID())
	return false
}

// fire runs one job on the worker pool unless the same target is still busy.
func (s *Scheduler) fire(ctx context.Context, job model.RescanJob) {
	s.mu.Lock()
	if _, busy := s.inflight[job.TargetID]; busy {
		s.mu.Unlock()
		s.logger.Info("rescan still running, skipping firing", "job", job.ID(), "url", job.URL)
		s.observe(FiringSkipped)
		return
	}
	s.inflight[job.TargetID] = struct{}{}
	s.mu.Unlock()

	s.firings.Add(1)
	go func() {
		defer s.firings.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inflight, job.TargetID)
			s.mu.Unlock()
		}()

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer s.sem.Release(1)

		s.observe(s.run(ctx, job))
	}()
}

func (s *Scheduler) run(ctx context.Context, job model.RescanJob) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rescan panicked", "job", job.ID(), "url", job.URL, "panic", r)
			outcome = FiringPanic
		}
	}()

	start := time.Now()
	if err := s.runner.RunJob(ctx, job); err != nil {
		s.logger.Warn("rescan failed", "job", job.ID(), "url", job.URL, "error", err)
		return FiringError
	}
	s.logger.Info("rescan finished", "job", job.ID(), "url", job.URL, "elapsed", time.Since(start))
	return FiringOK
}

func (s *Scheduler) observe(outcome string) {
	if s.observer != nil {
		s.observer(outcome)
	}
}
