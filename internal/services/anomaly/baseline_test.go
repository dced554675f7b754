package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseScan/pkg/util"
)

var t0 = time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)

func TestBaselineEWMAConvergence(t *testing.T) {
	clock := util.NewManualClock(t0)
	bt := NewBaselineTracker(WithBaselineClock(clock.Now))

	bt.Initialize("BTCUSDT", 1000)

	clock.Advance(time.Hour)
	require.True(t, bt.Update("BTCUSDT", 2000))
	b, ok := bt.Baseline("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 1200, b.Value, 1e-9)

	clock.Advance(time.Hour)
	require.True(t, bt.Update("BTCUSDT", 2000))
	b, _ = bt.Baseline("BTCUSDT")
	assert.InDelta(t, 1360, b.Value, 1e-9)
	assert.Equal(t, clock.Now(), b.LastUpdatedAt)
}

func TestBaselineUpdateBeforeInterval(t *testing.T) {
	clock := util.NewManualClock(t0)
	bt := NewBaselineTracker(WithBaselineClock(clock.Now))
	bt.Initialize("ETHUSDT", 500)

	clock.Advance(59 * time.Minute)
	assert.False(t, bt.Update("ETHUSDT", 5000))

	b, _ := bt.Baseline("ETHUSDT")
	assert.Equal(t, 500.0, b.Value)
	assert.Equal(t, t0, b.LastUpdatedAt)
}

func TestBaselineInitializeIsIdempotent(t *testing.T) {
	bt := NewBaselineTracker()
	bt.Initialize("SOLUSDT", 100)
	bt.Initialize("SOLUSDT", 999)

	b, _ := bt.Baseline("SOLUSDT")
	assert.Equal(t, 100.0, b.Value)
}

func TestBaselineCheck(t *testing.T) {
	bt := NewBaselineTracker()

	spike, ratio := bt.Check("BTCUSDT", 5000, 3)
	assert.False(t, spike)
	assert.Zero(t, ratio)

	bt.Initialize("BTCUSDT", 1000)

	spike, ratio = bt.Check("BTCUSDT", 3000, 3)
	assert.False(t, spike, "ratio equal to threshold is not a spike")
	assert.InDelta(t, 3.0, ratio, 1e-9)

	spike, ratio = bt.Check("BTCUSDT", 3500, 3)
	assert.True(t, spike)
	assert.InDelta(t, 3.5, ratio, 1e-9)
}

func TestBaselineCheckZeroBaseline(t *testing.T) {
	bt := NewBaselineTracker()
	bt.Initialize("XRPUSDT", 0)

	spike, ratio := bt.Check("XRPUSDT", 100, 3)
	assert.False(t, spike)
	assert.Zero(t, ratio)
}
