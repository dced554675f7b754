package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTick(t *testing.T) {
	tk, err := ParseTick(RawTick{Symbol: " ethusdt ", Price: "2500.25", QuoteVolume: "1000000.5", Timestamp: 1728554400123})
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", tk.Symbol)
	assert.Equal(t, 2500.25, tk.Price)
	assert.Equal(t, 1000000.5, tk.QuoteVolume)
	assert.Equal(t, time.UnixMilli(1728554400123), tk.Timestamp)

	tk, err = ParseTick(RawTick{Symbol: "BTCUSDT", Price: "1", Timestamp: 1728554400})
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1728554400, 0), tk.Timestamp)
	assert.Zero(t, tk.QuoteVolume)
}

func TestParseTickRejects(t *testing.T) {
	cases := map[string]RawTick{
		"empty symbol":    {Price: "1"},
		"bad price":       {Symbol: "X", Price: "1,5"},
		"zero price":      {Symbol: "X", Price: "0"},
		"negative price":  {Symbol: "X", Price: "-2"},
		"bad volume":      {Symbol: "X", Price: "1", QuoteVolume: "lots"},
		"negative volume": {Symbol: "X", Price: "1", QuoteVolume: "-1"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTick(raw)
			assert.ErrorIs(t, err, ErrInvalidTick)
		})
	}
}

func TestStrategyHelpers(t *testing.T) {
	s := Strategy{Target1: 10, Target2: 20}
	assert.Equal(t, 2, s.HighestTarget())
	assert.Equal(t, EventTarget2, TargetEvent(2))
	assert.True(t, StatusInPosition.Tracked())
	assert.False(t, StatusPaused.Tracked())

	st := CircuitBreakerState{ExpiresAt: time.Unix(100, 0)}
	assert.False(t, st.Expired(time.Unix(99, 0)))
	assert.True(t, st.Expired(time.Unix(100, 0)))
}
