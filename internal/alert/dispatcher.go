package alert

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/onionwatch/internal/model"
)

const (
	// DefaultMinLevel is the lowest level that triggers an alert.
	DefaultMinLevel = model.RiskHigh

	// DefaultTimeout bounds one channel delivery.
	DefaultTimeout = 15 * time.Second
)

// Channel delivers a rendered alert.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Status describes the alerting configuration.
type Status struct {
	Channels   []string        `json:"channels"`
	Slack      bool            `json:"slack"`
	Email      bool            `json:"email"`
	MinLevel   model.RiskLevel `json:"min_level"`
	AnyEnabled bool            `json:"any_enabled"`
}

// Dispatcher gates visits by risk level and fans alerts out to channels.
type Dispatcher struct {
	channels     []Channel
	minLevel     model.RiskLevel
	dashboardURL string
	timeout      time.Duration
	logger       *slog.Logger
	observe      func(channel string, sent bool)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChannels appends channels in delivery order.
func WithChannels(ch ...Channel) Option {
	return func(d *Dispatcher) {
		for _, c := range ch {
			if c != nil {
				d.channels = append(d.channels, c)
			}
		}
	}
}

// WithMinLevel sets the alert threshold. Unknown levels are ignored.
func WithMinLevel(level model.RiskLevel) Option {
	return func(d *Dispatcher) {
		if level.Valid() {
			d.minLevel = level
		}
	}
}

// WithDashboardURL sets the root of the deep link in every alert.
func WithDashboardURL(u string) Option {
	return func(d *Dispatcher) {
		if u != "" {
			d.dashboardURL = u
		}
	}
}

// WithTimeout sets the per-channel delivery timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver registers a callback invoked once per delivery attempt.
func WithObserver(fn func(channel string, sent bool)) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.observe = fn
		}
	}
}

// NewDispatcher creates a Dispatcher. Without channels every dispatch is a
// no-op.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		minLevel:     DefaultMinLevel,
		dashboardURL: DefaultDashboardURL,
		timeout:      DefaultTimeout,
		logger:       slog.Default(),
		observe:      func(string, bool) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ShouldAlert reports whether level reaches the threshold.
func (d *Dispatcher) ShouldAlert(level model.RiskLevel) bool {
	return level.AtLeast(d.minLevel)
}

// Dispatch sends c to every channel when its level reaches the threshold.
// Results follow channel order; a below-threshold visit yields an empty
// slice and contacts nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, c AlertContext) []model.ChannelResult {
	results := make([]model.ChannelResult, 0, len(d.channels))
	if !d.ShouldAlert(c.RiskLevel) || len(d.channels) == 0 {
		return results
	}

	msg := BuildMessage(c, d.dashboardURL)
	results = results[:len(d.channels)]

	var g errgroup.Group
	for i, ch := range d.channels {
		g.Go(func() error {
			results[i] = d.deliver(ctx, ch, msg)
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("alert dispatched",
		"target_id", c.TargetID,
		"domain", c.Domain,
		"level", c.RiskLevel,
		"channels", len(results),
	)
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, msg Message) (result model.ChannelResult) {
	result.Channel = ch.Name()
	defer func() {
		if r := recover(); r != nil {
			result.Sent = false
			result.Reason = "channel panicked"
			d.logger.Error("alert channel panicked", "channel", result.Channel, "panic", r)
		}
		d.observe(result.Channel, result.Sent)
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := ch.Send(ctx, msg); err != nil {
		d.logger.Warn("alert delivery failed", "channel", result.Channel, "error", err)
		result.Reason = err.Error()
		return result
	}
	result.Sent = true
	return result
}

// Status reports which channels are enabled and the threshold.
func (d *Dispatcher) Status() Status {
	s := Status{
		Channels:   make([]string, 0, len(d.channels)),
		MinLevel:   d.minLevel,
		AnyEnabled: len(d.channels) > 0,
	}
	for _, ch := range d.channels {
		name := ch.Name()
		s.Channels = append(s.Channels, name)
		switch name {
		case ChannelSlack:
			s.Slack = true
		case ChannelEmail:
			s.Email = true
		}
	}
	return s
}
