package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"PulseScan/pkg/util"
)

func TestLimiterBurstThenRefill(t *testing.T) {
	clock := util.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewWithClock(clock.Now)

	assert.True(t, l.Allow("BTCUSDT", 2, 1))
	assert.True(t, l.Allow("BTCUSDT", 2, 1))
	assert.False(t, l.Allow("BTCUSDT", 2, 1))

	clock.Advance(time.Second)
	assert.True(t, l.Allow("BTCUSDT", 2, 1))
	assert.False(t, l.Allow("BTCUSDT", 2, 1))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New()
	assert.True(t, l.Allow("a", 1, 0))
	assert.False(t, l.Allow("a", 1, 0))
	assert.True(t, l.Allow("b", 1, 0))
}
