package anomaly

import (
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/util"
)

const (
	defaultBaselineInterval = time.Hour
	baselineAlpha           = 0.2
)

// BaselineTracker keeps an exponentially smoothed quote-volume baseline per symbol.
// It is not safe for concurrent use; the owning loop serializes calls.
type BaselineTracker struct {
	interval  time.Duration
	now       util.Clock
	baselines map[string]*models.Baseline
}

type BaselineOption func(*BaselineTracker)

// WithBaselineInterval sets the minimum time between two smoothing steps.
func WithBaselineInterval(d time.Duration) BaselineOption {
	return func(t *BaselineTracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithBaselineClock(now util.Clock) BaselineOption {
	return func(t *BaselineTracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewBaselineTracker(opts ...BaselineOption) *BaselineTracker {
	t := &BaselineTracker{
		interval:  defaultBaselineInterval,
		now:       time.Now,
		baselines: make(map[string]*models.Baseline),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize seeds the baseline on first observation only.
func (t *BaselineTracker) Initialize(symbol string, volume float64) {
	if _, ok := t.baselines[symbol]; ok {
		return
	}
	t.baselines[symbol] = &models.Baseline{
		Symbol:        symbol,
		Value:         volume,
		LastUpdatedAt: t.now(),
	}
}

// Update applies one EWMA step if the interval has elapsed. It reports whether it did.
func (t *BaselineTracker) Update(symbol string, currentVolume float64) bool {
	b, ok := t.baselines[symbol]
	if !ok {
		return false
	}
	now := t.now()
	if now.Sub(b.LastUpdatedAt) < t.interval {
		return false
	}
	b.Value = b.Value*(1-baselineAlpha) + currentVolume*baselineAlpha
	b.LastUpdatedAt = now
	return true
}

// Check compares currentVolume against the baseline. Without a usable
// baseline it reports no spike and a zero ratio.
func (t *BaselineTracker) Check(symbol string, currentVolume, threshold float64) (isSpike bool, ratio float64) {
	b, ok := t.baselines[symbol]
	if !ok || b.Value <= 0 {
		return false, 0
	}
	ratio = currentVolume / b.Value
	return ratio > threshold, ratio
}

// Baseline returns a copy of the symbol's baseline.
func (t *BaselineTracker) Baseline(symbol string) (models.Baseline, bool) {
	b, ok := t.baselines[symbol]
	if !ok {
		return models.Baseline{}, false
	}
	return *b, true
}
