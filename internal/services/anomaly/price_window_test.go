package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"PulseScan/pkg/util"
)

func TestPriceWindowChangeFromOldest(t *testing.T) {
	clock := util.NewManualClock(t0)
	w := NewPriceWindow(WithWindowClock(clock.Now))

	w.Add("BTCUSDT", 100)
	clock.Advance(time.Minute)
	w.Add("BTCUSDT", 102)
	clock.Advance(time.Minute)
	w.Add("BTCUSDT", 105)

	assert.InDelta(t, 5.0, w.Change("BTCUSDT", 105), 1e-9)
}

func TestPriceWindowEmpty(t *testing.T) {
	w := NewPriceWindow()
	assert.Zero(t, w.Change("BTCUSDT", 100))

	hit, change := w.Check("BTCUSDT", 100, 3)
	assert.False(t, hit)
	assert.Zero(t, change)
}

func TestPriceWindowPrunesOldPoints(t *testing.T) {
	clock := util.NewManualClock(t0)
	w := NewPriceWindow(WithWindowClock(clock.Now))

	w.Add("BTCUSDT", 100)
	clock.Advance(3 * time.Minute)
	w.Add("BTCUSDT", 110)
	clock.Advance(3 * time.Minute)
	w.Add("BTCUSDT", 111)

	// the 100 point is 6 minutes old and gone
	assert.Equal(t, []float64{110, 111}, w.Prices("BTCUSDT"))
	ref, ok := w.Oldest("BTCUSDT")
	assert.True(t, ok)
	assert.Equal(t, 110.0, ref.Price)
}

func TestPriceWindowKeepsPointAtExactWindowAge(t *testing.T) {
	clock := util.NewManualClock(t0)
	w := NewPriceWindow(WithWindowClock(clock.Now), WithWindow(5*time.Minute))

	w.Add("BTCUSDT", 100)
	clock.Advance(5 * time.Minute)
	w.Add("BTCUSDT", 103)

	assert.Len(t, w.Prices("BTCUSDT"), 2)
}

func TestPriceWindowCheckThreshold(t *testing.T) {
	clock := util.NewManualClock(t0)
	w := NewPriceWindow(WithWindowClock(clock.Now))

	w.Add("ETHUSDT", 200)
	clock.Advance(time.Second)
	w.Add("ETHUSDT", 193)

	hit, change := w.Check("ETHUSDT", 193, 3)
	assert.True(t, hit)
	assert.InDelta(t, -3.5, change, 1e-9)

	hit, _ = w.Check("ETHUSDT", 195, 3)
	assert.False(t, hit)
}

func TestPriceWindowSymbolsAreIndependent(t *testing.T) {
	w := NewPriceWindow()
	w.Add("BTCUSDT", 100)
	w.Add("ETHUSDT", 10)

	assert.InDelta(t, 10.0, w.Change("BTCUSDT", 110), 1e-9)
	assert.InDelta(t, 50.0, w.Change("ETHUSDT", 15), 1e-9)
}
