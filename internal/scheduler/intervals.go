package scheduler

import (
	"fmt"
	"time"

	"github.com/nao1215/onionwatch/internal/model"
)

// Intervals is the re-visit cadence per risk level.
type Intervals struct {
	Critical time.Duration `json:"critical"`
	High     time.Duration `json:"high"`
	Medium   time.Duration `json:"medium"`
	Low      time.Duration `json:"low"`
}

// DefaultIntervals returns 6h, 12h, 24h and 48h from critical down to low.
func DefaultIntervals() Intervals {
	return Intervals{
		Critical: 6 * time.Hour,
		High:     12 * time.Hour,
		Medium:   24 * time.Hour,
		Low:      48 * time.Hour,
	}
}

// For returns the interval of level. Levels without their own cadence
// (clean, unknown, anything unrecognized) use the low interval.
func (iv Intervals) For(level model.RiskLevel) time.Duration {
	switch level {
	case model.RiskCritical:
		return iv.Critical
	case model.RiskHigh:
		return iv.High
	case model.RiskMedium:
		return iv.Medium
	default:
		return iv.Low
	}
}

// Validate checks that every interval is positive and that riskier levels
// are re-visited strictly more often.
func (iv Intervals) Validate() error {
	ordered := []struct {
		name string
		d    time.Duration
	}{
		{"critical", iv.Critical},
		{"high", iv.High},
		{"medium", iv.Medium},
		{"low", iv.Low},
	}
	for i, o := range ordered {
		if o.d <= 0 {
			return fmt.Errorf("%w: %s interval must be positive, got %s", ErrInvalidInterval, o.name, o.d)
		}
		if i > 0 && o.d <= ordered[i-1].d {
			return fmt.Errorf("%w: %s interval (%s) must be longer than %s interval (%s)",
				ErrInvalidInterval, o.name, o.d, ordered[i-1].name, ordered[i-1].d)
		}
	}
	return nil
}

// Hours returns the intervals in whole hours keyed by level name.
func (iv Intervals) Hours() map[string]int {
	return map[string]int{
		string(model.RiskCritical): int(iv.Critical / time.Hour),
		string(model.RiskHigh):     int(iv.High / time.Hour),
		string(model.RiskMedium):   int(iv.Medium / time.Hour),
		string(model.RiskLow):      int(iv.Low / time.Hour),
	}
}
