package pipeline

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nao1215/onionwatch/internal/capture"
	"github.com/nao1215/onionwatch/internal/model"
)

// Visit is the state of one target visit as it moves through the steps.
type Visit struct {
	// Input is the URL the visit was asked for.
	Input    string
	UseIntel bool

	// Filled by FetchStep.
	FinalURL string
	Header   http.Header
	HTML     string

	// Filled by CaptureStep.
	Shot *capture.Shot
	OCR  *capture.OCRText

	// Result accumulates the findings of every step.
	Result *model.ScanResult
}

// NewVisit creates a visit for url.
func NewVisit(url string, useIntel bool) *Visit {
	return &Visit{
		Input:    url,
		UseIntel: useIntel,
		Result: &model.ScanResult{
			URL:    url,
			Status: model.StatusOK,
		},
	}
}

// Step is one stage of a visit. Steps run in sequence and share the Visit,
// so a later step reads what an earlier one filled in.
//
// Design decision: only fetch and persist return errors. A visit without a
// page has nothing to analyze, and a visit that cannot be stored leaves no
// record; every other stage is optional for the result to be useful, so its
// failure is written to v.Result as a degraded stage and Do returns nil.
type Step interface {
	// Do executes the step on v. A returned error aborts the visit.
	Do(ctx context.Context, v *Visit) error

	// Name returns the stage name used in logs and stage statuses.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step on v. It stops at the first step error or when
// ctx is done, and returns that error.
func (p *Pipeline) Execute(ctx context.Context, v *Visit) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("visit cancelled", "step", step.Name(), "url", v.Input, "reason", err)
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "url", v.Input)
		if err := step.Do(ctx, v); err != nil {
			p.logger.Debug("step failed", "step", step.Name(), "url", v.Input, "error", err)
			return err
		}
	}
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
