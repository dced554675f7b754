package anomaly

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/util"
)

const (
	defaultBreakerWindow    = 15 * time.Minute
	defaultBreakerThreshold = 0.05
	defaultBreakerCooldown  = 30 * time.Minute
	defaultSideEffectTTL    = 10 * time.Second

	breakerSource = "circuit_breaker"
)

// CircuitBreaker locks a symbol after a flash crash until a cooldown elapses.
// It keeps its own window, independent from PriceWindow. Calls are serialized
// by the owning loop; persistence and alerts run detached and are never awaited
// by AddPrice.
type CircuitBreaker struct {
	window    time.Duration
	threshold float64 // fraction, 0.05 = 5%
	cooldown  time.Duration
	timeout   time.Duration
	now       util.Clock

	points map[string][]models.PricePoint
	active map[string]models.CircuitBreakerState

	audit    repository.AuditLog
	notifier service.Notifier
	metrics  repository.Metrics
	log      *logger.Logger

	inflight sync.WaitGroup
}

type BreakerOption func(*CircuitBreaker)

func WithBreakerWindow(d time.Duration) BreakerOption {
	return func(b *CircuitBreaker) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithBreakerThreshold sets the crash threshold as a fraction of the reference price.
func WithBreakerThreshold(frac float64) BreakerOption {
	return func(b *CircuitBreaker) {
		if frac > 0 {
			b.threshold = frac
		}
	}
}

func WithBreakerCooldown(d time.Duration) BreakerOption {
	return func(b *CircuitBreaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithBreakerSideEffectTimeout bounds each detached persistence or alert call.
func WithBreakerSideEffectTimeout(d time.Duration) BreakerOption {
	return func(b *CircuitBreaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithBreakerClock(now util.Clock) BreakerOption {
	return func(b *CircuitBreaker) {
		if now != nil {
			b.now = now
		}
	}
}

func WithBreakerAudit(a repository.AuditLog) BreakerOption {
	return func(b *CircuitBreaker) { b.audit = a }
}

func WithBreakerNotifier(n service.Notifier) BreakerOption {
	return func(b *CircuitBreaker) { b.notifier = n }
}

func WithBreakerMetrics(m repository.Metrics) BreakerOption {
	return func(b *CircuitBreaker) { b.metrics = m }
}

func NewCircuitBreaker(log *logger.Logger, opts ...BreakerOption) *CircuitBreaker {
	if log == nil {
		log = logger.Nop()
	}
	b := &CircuitBreaker{
		window:    defaultBreakerWindow,
		threshold: defaultBreakerThreshold,
		cooldown:  defaultBreakerCooldown,
		timeout:   defaultSideEffectTTL,
		now:       time.Now,
		points:    make(map[string][]models.PricePoint),
		active:    make(map[string]models.CircuitBreakerState),
		log:       log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddPrice records price and reports whether detection on symbol must be suppressed.
func (b *CircuitBreaker) AddPrice(symbol string, price float64) (shouldBlock bool, reason string) {
	now := b.now()
	pts := append(b.points[symbol], models.PricePoint{Price: price, ObservedAt: now})
	pts = prune(pts, now, b.window)
	b.points[symbol] = pts

	if st, ok := b.current(symbol, now); ok {
		return true, st.Reason
	}

	if len(pts) < 2 {
		return false, ""
	}
	ref := pts[0].Price
	if ref <= 0 {
		return false, ""
	}
	frac := (price - ref) / ref
	if math.Abs(frac) < b.threshold {
		return false, ""
	}

	st := b.activate(symbol, frac, now)
	return true, st.Reason
}

// IsBlocked reports whether an unexpired lock exists for symbol.
func (b *CircuitBreaker) IsBlocked(symbol string) bool {
	_, ok := b.current(symbol, b.now())
	return ok
}

// Wait blocks until detached side effects finish or ctx is done.
func (b *CircuitBreaker) Wait(ctx context.Context) error {
	return waitGroup(ctx, &b.inflight)
}

// current returns the active lock, clearing it first if it has expired.
func (b *CircuitBreaker) current(symbol string, now time.Time) (models.CircuitBreakerState, bool) {
	st, ok := b.active[symbol]
	if !ok {
		return models.CircuitBreakerState{}, false
	}
	if !st.Expired(now) {
		return st, true
	}
	delete(b.active, symbol)
	b.log.Info("circuit breaker expired, detection resumed",
		logger.String("symbol", symbol),
		logger.Time("activated_at", st.ActivatedAt),
	)
	b.detach(func(ctx context.Context) error {
		if b.audit == nil {
			return nil
		}
		return b.audit.InsertSystemLog(ctx, models.SystemLog{
			Level:     models.LogInfo,
			Source:    breakerSource,
			Message:   fmt.Sprintf("%s detection resumed", symbol),
			Metadata:  map[string]any{"symbol": symbol, "activated_at": st.ActivatedAt},
			CreatedAt: now,
		})
	}, "breaker_resume_log")
	return models.CircuitBreakerState{}, false
}

func (b *CircuitBreaker) activate(symbol string, frac float64, now time.Time) models.CircuitBreakerState {
	direction := "DOWN"
	if frac > 0 {
		direction = "UP"
	}
	pct := frac * 100
	st := models.CircuitBreakerState{
		Symbol:        symbol,
		ActivatedAt:   now,
		ExpiresAt:     now.Add(b.cooldown),
		Reason:        fmt.Sprintf("flash crash %s %.2f%% within %s", direction, pct, b.window),
		ChangePercent: pct,
	}
	b.active[symbol] = st

	b.log.Warn("circuit breaker activated",
		logger.String("symbol", symbol),
		logger.String("reason", st.Reason),
		logger.Time("expires_at", st.ExpiresAt),
	)
	if b.metrics != nil {
		b.metrics.RecordBreaker(symbol)
	}

	b.detach(func(ctx context.Context) error {
		if b.audit == nil {
			return nil
		}
		return b.audit.InsertCircuitBreakerLog(ctx, st)
	}, "breaker_persist")
	b.detach(func(ctx context.Context) error {
		if b.audit == nil {
			return nil
		}
		return b.audit.InsertSystemLog(ctx, models.SystemLog{
			Level:   models.LogCritical,
			Source:  breakerSource,
			Message: fmt.Sprintf("%s circuit breaker: %s", symbol, st.Reason),
			Metadata: map[string]any{
				"symbol":         symbol,
				"change_percent": pct,
				"expires_at":     st.ExpiresAt,
			},
			CreatedAt: now,
		})
	}, "breaker_system_log")
	b.detach(func(ctx context.Context) error {
		if b.notifier == nil {
			return nil
		}
		return b.notifier.Send(ctx, models.Notification{
			Kind:     models.NotifyCircuitBreaker,
			Symbol:   symbol,
			Title:    fmt.Sprintf("Circuit breaker %s", symbol),
			Message:  st.Reason,
			Severity: models.SeverityCritical,
			Fields: map[string]any{
				"change_percent": pct,
				"expires_at":     st.ExpiresAt.Format(time.RFC3339),
			},
			CreatedAt: now,
		})
	}, "breaker_alert")
	return st
}

// detach runs fn in the background with its own timeout. Failures are logged only.
func (b *CircuitBreaker) detach(fn func(ctx context.Context) error, op string) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.log.Error("circuit breaker side effect failed", logger.String("op", op), logger.Error(err))
			if b.metrics != nil {
				b.metrics.RecordError(op)
			}
		}
	}()
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
