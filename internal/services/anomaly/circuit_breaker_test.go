package anomaly

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/util"
)

type recordingAudit struct {
	mu       sync.Mutex
	breakers []models.CircuitBreakerState
	logs     []models.SystemLog
	err      error
}

func (a *recordingAudit) InsertCircuitBreakerLog(_ context.Context, st models.CircuitBreakerState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.breakers = append(a.breakers, st)
	return nil
}

func (a *recordingAudit) InsertSystemLog(_ context.Context, e models.SystemLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, e)
	return nil
}

func (a *recordingAudit) ListCircuitBreakers(context.Context, string, int) ([]models.CircuitBreakerState, error) {
	return nil, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Send(_ context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func newTestBreaker(clock *util.ManualClock, opts ...BreakerOption) *CircuitBreaker {
	return NewCircuitBreaker(logger.Nop(), append([]BreakerOption{WithBreakerClock(clock.Now)}, opts...)...)
}

func TestCircuitBreakerActivatesOnCrash(t *testing.T) {
	clock := util.NewManualClock(t0)
	audit := &recordingAudit{}
	notifier := &recordingNotifier{}
	cb := newTestBreaker(clock, WithBreakerAudit(audit), WithBreakerNotifier(notifier))

	block, _ := cb.AddPrice("BTCUSDT", 100)
	assert.False(t, block)

	clock.Advance(2 * time.Minute)
	block, reason := cb.AddPrice("BTCUSDT", 94)
	assert.True(t, block)
	assert.Contains(t, reason, "DOWN")
	assert.True(t, cb.IsBlocked("BTCUSDT"))

	require.NoError(t, cb.Wait(context.Background()))
	require.Len(t, audit.breakers, 1)
	assert.InDelta(t, -6.0, audit.breakers[0].ChangePercent, 1e-9)
	assert.Equal(t, clock.Now().Add(30*time.Minute), audit.breakers[0].ExpiresAt)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.LogCritical, audit.logs[0].Level)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.NotifyCircuitBreaker, notifier.sent[0].Kind)
}

func TestCircuitBreakerStaysLockedUntilExpiry(t *testing.T) {
	clock := util.NewManualClock(t0)
	cb := newTestBreaker(clock)

	cb.AddPrice("BTCUSDT", 100)
	clock.Advance(time.Minute)
	block, reason := cb.AddPrice("BTCUSDT", 94)
	require.True(t, block)

	// calm prices during the lock are still blocked
	for i := 0; i < 29; i++ {
		clock.Advance(time.Minute)
		b, r := cb.AddPrice("BTCUSDT", 94)
		assert.True(t, b)
		assert.Equal(t, reason, r)
	}

	clock.Advance(time.Minute)
	block, _ = cb.AddPrice("BTCUSDT", 94)
	assert.False(t, block, "first call after expiry with a calm window passes")
	assert.False(t, cb.IsBlocked("BTCUSDT"))
	require.NoError(t, cb.Wait(context.Background()))
}

func TestCircuitBreakerUpMove(t *testing.T) {
	clock := util.NewManualClock(t0)
	cb := newTestBreaker(clock)

	cb.AddPrice("ETHUSDT", 100)
	clock.Advance(10 * time.Minute)
	block, reason := cb.AddPrice("ETHUSDT", 105)
	assert.True(t, block, "exactly 5% meets the threshold")
	assert.Contains(t, reason, "UP")
}

func TestCircuitBreakerIgnoresMovesOutsideWindow(t *testing.T) {
	clock := util.NewManualClock(t0)
	cb := newTestBreaker(clock)

	cb.AddPrice("ETHUSDT", 100)
	clock.Advance(16 * time.Minute)
	block, _ := cb.AddPrice("ETHUSDT", 80)
	assert.False(t, block, "single point left in the window")
}

func TestCircuitBreakerSideEffectFailureDoesNotBlockDetection(t *testing.T) {
	clock := util.NewManualClock(t0)
	audit := &recordingAudit{err: errors.New("clickhouse down")}
	cb := newTestBreaker(clock, WithBreakerAudit(audit))

	cb.AddPrice("SOLUSDT", 100)
	block, _ := cb.AddPrice("SOLUSDT", 90)
	assert.True(t, block)
	require.NoError(t, cb.Wait(context.Background()))
	assert.Empty(t, audit.breakers)
}

func TestCircuitBreakerIsBlockedLazyExpiry(t *testing.T) {
	clock := util.NewManualClock(t0)
	cb := newTestBreaker(clock, WithBreakerCooldown(time.Minute))

	cb.AddPrice("BTCUSDT", 100)
	cb.AddPrice("BTCUSDT", 90)
	assert.True(t, cb.IsBlocked("BTCUSDT"))

	clock.Advance(time.Minute)
	assert.False(t, cb.IsBlocked("BTCUSDT"))
	_, ok := cb.active["BTCUSDT"]
	assert.False(t, ok, "expired lock is cleared on read")
	require.NoError(t, cb.Wait(context.Background()))
}
