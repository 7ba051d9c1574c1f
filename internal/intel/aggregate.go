package intel

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/onionwatch/internal/model"
)

// Thresholds of the aggregation rules.
const (
	// HostMaliciousURLs is the number of known-bad URLs on a host above
	// which the host counts as malicious.
	HostMaliciousURLs = 5

	// EngineMalicious is the malicious-verdict count that makes a domain
	// malicious.
	EngineMalicious = 3

	// EngineSuspiciousMalicious and EngineSuspicious are the counts that
	// make a domain suspicious.
	EngineSuspiciousMalicious = 1
	EngineSuspicious          = 2
)

// URLStatusOnline marks a URLhaus record as currently serving.
const URLStatusOnline = "online"

// Lookup outcomes reported to the observer.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// URLLookup reports on a single URL.
type URLLookup interface {
	LookupURL(ctx context.Context, url string) (*URLReport, error)
}

// HostLookup reports on a host.
type HostLookup interface {
	LookupHost(ctx context.Context, host string) (*HostReport, error)
}

// EngineLookup reports multi-engine verdicts for a domain.
type EngineLookup interface {
	LookupDomain(ctx context.Context, domain string) (*EngineReport, error)
}

// Aggregator runs the configured lookups and combines their answers.
type Aggregator struct {
	url     URLLookup
	host    HostLookup
	engine  EngineLookup
	logger  *slog.Logger
	observe func(source, outcome string)
	now     func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithURLLookup sets the URL reputation source.
func WithURLLookup(l URLLookup) Option {
	return func(a *Aggregator) { a.url = l }
}

// WithHostLookup sets the host reputation source.
func WithHostLookup(l HostLookup) Option {
	return func(a *Aggregator) { a.host = l }
}

// WithEngineLookup sets the multi-engine source. Leave it unset when no
// credentials are configured.
func WithEngineLookup(l EngineLookup) Option {
	return func(a *Aggregator) { a.engine = l }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver registers a callback invoked once per lookup with its
// source and outcome.
func WithObserver(fn func(source, outcome string)) Option {
	return func(a *Aggregator) { a.observe = fn }
}

// WithClock overrides the time source used for CheckedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAggregator creates an Aggregator. With no lookup options it consults
// URLhaus for both the URL and the host.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		logger:  slog.Default(),
		observe: func(string, string) {},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.url == nil && a.host == nil {
		uh := NewURLhausClient()
		a.url, a.host = uh, uh
	}
	return a
}

// Aggregate consults every configured source concurrently and returns the
// combined verdict. It never fails: a source that errors counts as absent.
func (a *Aggregator) Aggregate(ctx context.Context, domain, url string) model.ExternalIntel {
	var (
		urlReport    *URLReport
		hostReport   *HostReport
		engineReport *EngineReport
		g            errgroup.Group
	)

	if a.url != nil {
		g.Go(func() error {
			r, err := a.url.LookupURL(ctx, url)
			urlReport = settle(a, SourceURLhausURL, url, r, err)
			return nil
		})
	}
	if a.host != nil {
		g.Go(func() error {
			r, err := a.host.LookupHost(ctx, domain)
			hostReport = settle(a, SourceURLhausHost, domain, r, err)
			return nil
		})
	}
	if a.engine != nil {
		g.Go(func() error {
			r, err := a.engine.LookupDomain(ctx, domain)
			engineReport = settle(a, SourceVirusTotal, domain, r, err)
			return nil
		})
	}
	_ = g.Wait()

	intel := Combine(urlReport, hostReport, engineReport)
	intel.CheckedAt = a.now().UTC()

	a.logger.Debug("external intel aggregated",
		"domain", domain,
		"external_risk", intel.ExternalRisk,
		"sources", intel.Sources,
	)
	return intel
}

// settle records the outcome of one lookup and returns the report, or nil
// when it failed.
func settle[R interface{ found() bool }](a *Aggregator, source, subject string, r R, err error) R {
	var zero R
	switch {
	case err != nil:
		a.logger.Warn("reputation lookup failed", "source", source, "subject", subject, "error", err)
		a.observe(source, OutcomeError)
		return zero
	case r.found():
		a.observe(source, OutcomeFound)
	default:
		a.observe(source, OutcomeNotFound)
	}
	return r
}

func (r *URLReport) found() bool    { return r != nil && r.Found }
func (r *HostReport) found() bool   { return r != nil && r.Found }
func (r *EngineReport) found() bool { return r != nil && r.Found }

// Combine folds lookup answers into an ExternalIntel. A nil report means the
// source was absent. The rules are:
//
//	malicious   URL record online, host with more than 5 bad URLs,
//	            or at least 3 malicious engine verdicts
//	suspicious  URL record not online, any host record,
//	            at least 1 malicious or at least 2 suspicious verdicts
//
// The tier is malicious over suspicious over clean, and unknown when every
// report is nil.
func Combine(u *URLReport, h *HostReport, e *EngineReport) model.ExternalIntel {
	intel := model.ExternalIntel{Sources: make([]string, 0, 3)}

	if u != nil {
		intel.Sources = append(intel.Sources, SourceURLhausURL)
		intel.URLFound = u.Found
		if u.Found {
			intel.URLStatus = u.Status
			intel.URLThreat = u.Threat
			intel.URLTags = u.Tags
			if u.Status == URLStatusOnline {
				intel.MaliciousFlag = true
			} else {
				intel.SuspiciousFlag = true
			}
		}
	}

	if h != nil {
		intel.Sources = append(intel.Sources, SourceURLhausHost)
		intel.HostFound = h.Found
		if h.Found {
			intel.HostURLCount = h.URLCount
			intel.SuspiciousFlag = true
			if h.URLCount > HostMaliciousURLs {
				intel.MaliciousFlag = true
			}
		}
	}

	if e != nil {
		intel.Sources = append(intel.Sources, SourceVirusTotal)
		intel.EngineFound = e.Found
		if e.Found {
			intel.Malicious = e.Malicious
			intel.Suspicious = e.Suspicious
			intel.Harmless = e.Harmless
			if e.Malicious >= EngineMalicious {
				intel.MaliciousFlag = true
			}
			if e.Malicious >= EngineSuspiciousMalicious || e.Suspicious >= EngineSuspicious {
				intel.SuspiciousFlag = true
			}
		}
	}

	switch {
	case len(intel.Sources) == 0:
		intel.ExternalRisk = model.ExternalUnknown
	case intel.MaliciousFlag:
		intel.ExternalRisk = model.ExternalMalicious
	case intel.SuspiciousFlag:
		intel.ExternalRisk = model.ExternalSuspicious
	default:
		intel.ExternalRisk = model.ExternalClean
	}
	return intel
}

// Unknown returns the verdict recorded when no lookup ran.
func Unknown() model.ExternalIntel {
	return model.ExternalIntel{ExternalRisk: model.ExternalUnknown, Sources: []string{}}
}
