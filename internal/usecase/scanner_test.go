package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseScan/internal/domain/models"
	store "PulseScan/internal/repository"
	"PulseScan/internal/services/anomaly"
	"PulseScan/pkg/logger"
)

func newTestScanner(t *testing.T, src *stubSettings, triggers *store.MemoryTriggerStore, strategies *store.MemoryStrategyStore) *Scanner {
	t.Helper()
	d := NewTriggerDetector(
		anomaly.NewBaselineTracker(),
		anomaly.NewPriceWindow(),
		anomaly.NewCircuitBreaker(logger.Nop()),
		triggers, nopMetrics, logger.Nop(),
	)
	p := NewPositionTracker(strategies, nopMetrics, logger.Nop())
	w := NewSettingsWatcher(src, defaultTh, nopMetrics, logger.Nop())
	return NewScanner(d, p, w, nopMetrics, logger.Nop(),
		WithSettingsInterval(time.Hour),
		WithReloadInterval(time.Hour),
		WithLoopBuffer(16),
	)
}

func TestScannerRunsBothPipelines(t *testing.T) {
	src := &stubSettings{status: models.ScannerRunning, pairs: []string{"BTCUSDT"}, th: defaultTh}
	triggers := store.NewMemoryTriggerStore()
	strategies := store.NewMemoryStrategyStore(inPositionLong("s1"))
	s := newTestScanner(t, src, triggers, strategies)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.Error(t, s.Start(ctx))

	require.NoError(t, s.Submit(ctx, models.Tick{Symbol: "BTCUSDT", Price: 100, QuoteVolume: 100}))
	require.NoError(t, s.Submit(ctx, models.Tick{Symbol: "BTCUSDT", Price: 131, QuoteVolume: 1000}))

	require.Eventually(t, func() bool {
		got, _ := strategies.Get("s1")
		return got.Status == models.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx), "second stop is a no-op")

	// the 31% jump trips the breaker, so no trigger is persisted
	list, _ := triggers.ListTriggers(ctx, "", 10)
	assert.Empty(t, list)

	assert.ErrorIs(t, s.Submit(ctx, models.Tick{Symbol: "BTCUSDT", Price: 1}), ErrScannerStopped)
}

func TestScannerDetectorGatedBySettings(t *testing.T) {
	src := &stubSettings{status: models.ScannerStopped, pairs: []string{"BTCUSDT"}, th: defaultTh}
	triggers := store.NewMemoryTriggerStore()
	s := newTestScanner(t, src, triggers, store.NewMemoryStrategyStore())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Submit(ctx, models.Tick{Symbol: "BTCUSDT", Price: 100, QuoteVolume: 100}))
	require.NoError(t, s.Submit(ctx, models.Tick{Symbol: "BTCUSDT", Price: 100, QuoteVolume: 1000}))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	list, _ := triggers.ListTriggers(ctx, "", 10)
	assert.Empty(t, list)
}

func TestScannerDetectsMonitoredPair(t *testing.T) {
	src := &stubSettings{status: models.ScannerRunning, pairs: []string{"BTCUSDT"}, th: defaultTh}
	triggers := store.NewMemoryTriggerStore()
	s := newTestScanner(t, src, triggers, store.NewMemoryStrategyStore())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	for _, tk := range []models.Tick{
		{Symbol: "BTCUSDT", Price: 100, QuoteVolume: 100},
		{Symbol: "BTCUSDT", Price: 100, QuoteVolume: 1000},
		{Symbol: "ETHUSDT", Price: 100, QuoteVolume: 100},
		{Symbol: "ETHUSDT", Price: 100, QuoteVolume: 1000},
	} {
		require.NoError(t, s.Submit(ctx, tk))
	}

	require.Eventually(t, func() bool {
		list, _ := triggers.ListTriggers(ctx, "", 10)
		return len(list) == 1
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	list, _ := triggers.ListTriggers(ctx, "", 10)
	require.Len(t, list, 1)
	assert.Equal(t, "BTCUSDT", list[0].Symbol)
}

func TestScannerWithoutPositionTracker(t *testing.T) {
	src := &stubSettings{status: models.ScannerRunning, pairs: []string{"ETHUSDT"}, th: defaultTh}
	triggers := store.NewMemoryTriggerStore()
	d := NewTriggerDetector(
		anomaly.NewBaselineTracker(),
		anomaly.NewPriceWindow(),
		anomaly.NewCircuitBreaker(logger.Nop()),
		triggers, nopMetrics, logger.Nop(),
	)
	w := NewSettingsWatcher(src, defaultTh, nopMetrics, logger.Nop())
	s := NewScanner(d, nil, w, nopMetrics, logger.Nop(), WithLoopBuffer(1))

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	// with one slot per loop, a second submit would block if the position queue were fed
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Submit(ctx, models.Tick{Symbol: "ETHUSDT", Price: 10, QuoteVolume: 10}))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
}
