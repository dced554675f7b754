package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/internal/services/position"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/util"
)

const defaultWriteTimeout = 5 * time.Second

// PositionTracker evaluates active strategies on every tick of their symbol.
// Process and Reload must be called from a single goroutine. State-changing
// writes are conditional; a zero row count means another writer got there
// first, so the event is dropped along with the local copy of the strategy.
type PositionTracker struct {
	store    repository.StrategyStore
	notifier service.Notifier
	metrics  repository.Metrics
	log      *logger.Logger

	epsilon      float64
	minorMove    float64
	writeTimeout time.Duration
	now          util.Clock

	bySymbol map[string][]*models.Strategy

	inflight sync.WaitGroup
}

type TrackerOption func(*PositionTracker)

// WithEpsilon sets the relative tolerance for target and stop-loss levels.
func WithEpsilon(eps float64) TrackerOption {
	return func(p *PositionTracker) {
		if eps >= 0 {
			p.epsilon = eps
		}
	}
}

// WithMinorMove sets the relative move below which no silent price update is written.
func WithMinorMove(frac float64) TrackerOption {
	return func(p *PositionTracker) {
		if frac >= 0 {
			p.minorMove = frac
		}
	}
}

func WithWriteTimeout(d time.Duration) TrackerOption {
	return func(p *PositionTracker) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

func WithTrackerClock(now util.Clock) TrackerOption {
	return func(p *PositionTracker) {
		if now != nil {
			p.now = now
		}
	}
}

func WithStrategyNotifier(n service.Notifier) TrackerOption {
	return func(p *PositionTracker) { p.notifier = n }
}

func NewPositionTracker(store repository.StrategyStore, metrics repository.Metrics, log *logger.Logger, opts ...TrackerOption) *PositionTracker {
	p := &PositionTracker{
		store:        store,
		metrics:      metrics,
		log:          log,
		epsilon:      position.DefaultEpsilon,
		minorMove:    position.DefaultMinorMove,
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
		bySymbol:     make(map[string][]*models.Strategy),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reload replaces the tracked set with the store's active strategies.
// On failure the current set is kept.
func (p *PositionTracker) Reload(ctx context.Context) error {
	start := time.Now()
	list, err := p.store.ListActiveStrategies(ctx, models.ActiveStatuses)
	p.metrics.RecordLatency("strategy_reload", time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordError("strategy_reload")
		return fmt.Errorf("list active strategies: %w", err)
	}

	next := make(map[string][]*models.Strategy)
	for i := range list {
		s := list[i]
		if !s.Status.Tracked() {
			continue
		}
		next[s.Symbol] = append(next[s.Symbol], &s)
	}
	p.bySymbol = next
	p.log.Debug("strategies reloaded", logger.Int("count", len(list)))
	return nil
}

// Tracked returns the number of strategies under evaluation.
func (p *PositionTracker) Tracked() int {
	n := 0
	for _, list := range p.bySymbol {
		n += len(list)
	}
	return n
}

// Process evaluates every tracked strategy on tick.Symbol and returns the
// events that were persisted.
func (p *PositionTracker) Process(ctx context.Context, tick models.Tick) []models.StrategyEvent {
	list := p.bySymbol[tick.Symbol]
	if len(list) == 0 {
		return nil
	}

	var events []models.StrategyEvent
	kept := list[:0]
	for _, s := range list {
		ev, keep := p.evaluate(ctx, s, tick.Price)
		if ev != nil {
			events = append(events, *ev)
		}
		if keep {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(list); i++ {
		list[i] = nil
	}
	if len(kept) == 0 {
		delete(p.bySymbol, tick.Symbol)
	} else {
		p.bySymbol[tick.Symbol] = kept
	}
	return events
}

// Wait blocks until detached writes and notifications finish or ctx is done.
func (p *PositionTracker) Wait(ctx context.Context) error {
	return waitGroup(ctx, &p.inflight)
}

// evaluate handles one strategy and reports whether it stays tracked.
func (p *PositionTracker) evaluate(ctx context.Context, s *models.Strategy, price float64) (*models.StrategyEvent, bool) {
	now := p.now()
	res := position.Evaluate(*s, price, p.epsilon)

	if !res.Changed {
		if position.MovedEnough(s.CurrentPrice, price, p.minorMove) {
			p.silentUpdate(s, price, now)
		}
		return nil, true
	}

	expect := models.StrategyExpect{Status: s.Status, TargetsHit: s.TargetsHit}
	patch := models.StrategyPatch{
		Status:       res.Status,
		TargetsHit:   res.TargetsHit,
		CurrentPrice: price,
		LastCheckAt:  now,
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
	rows, err := p.store.UpdateStrategy(wctx, s.ID, patch, expect)
	cancel()
	if err != nil {
		p.metrics.RecordError("strategy_update")
		p.log.Error("strategy update failed",
			logger.String("strategy_id", s.ID),
			logger.String("event", string(res.Kind)),
			logger.Error(err),
		)
		return nil, true
	}
	if rows == 0 {
		p.metrics.RecordError("strategy_stale")
		p.log.Info("strategy changed elsewhere, event discarded",
			logger.String("strategy_id", s.ID),
			logger.String("event", string(res.Kind)),
		)
		return nil, false
	}

	s.Status = res.Status
	s.TargetsHit = res.TargetsHit
	s.CurrentPrice = price
	s.LastCheckAt = now

	ev := models.StrategyEvent{
		StrategyID: s.ID,
		Symbol:     s.Symbol,
		Direction:  s.Direction,
		Kind:       res.Kind,
		Price:      price,
		Level:      res.Level,
		TargetsHit: res.TargetsHit,
		Status:     res.Status,
		Entered:    res.Entered,
		OccurredAt: now,
	}
	p.metrics.RecordStrategyEvent(string(ev.Kind))
	p.log.Info("strategy event",
		logger.String("strategy_id", s.ID),
		logger.String("symbol", s.Symbol),
		logger.String("event", string(ev.Kind)),
		logger.Float64("price", price),
		logger.String("status", string(ev.Status)),
	)
	p.notify(ev)

	return &ev, s.Status.Tracked()
}

// silentUpdate persists the latest price without an event. The local copy
// records the price as persisted as soon as the write is issued.
func (p *PositionTracker) silentUpdate(s *models.Strategy, price float64, now time.Time) {
	id := s.ID
	expect := models.StrategyExpect{Status: s.Status, TargetsHit: s.TargetsHit}
	patch := models.StrategyPatch{
		Status:       s.Status,
		TargetsHit:   s.TargetsHit,
		CurrentPrice: price,
		LastCheckAt:  now,
	}
	s.CurrentPrice = price
	s.LastCheckAt = now

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		defer cancel()
		rows, err := p.store.UpdateStrategy(ctx, id, patch, expect)
		if err != nil {
			p.metrics.RecordError("strategy_price_update")
			p.log.Warn("strategy price update failed", logger.String("strategy_id", id), logger.Error(err))
			return
		}
		if rows == 0 {
			p.log.Debug("strategy price update skipped, record changed", logger.String("strategy_id", id))
		}
	}()
}

func (p *PositionTracker) notify(ev models.StrategyEvent) {
	if p.notifier == nil {
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		defer cancel()
		if err := p.notifier.Send(ctx, strategyNotification(ev)); err != nil {
			p.metrics.RecordError("strategy_notify")
			p.log.Warn("strategy notification failed",
				logger.String("strategy_id", ev.StrategyID),
				logger.Error(err),
			)
		}
	}()
}

func strategyNotification(ev models.StrategyEvent) models.Notification {
	sev := models.SeverityInfo
	if ev.Kind == models.EventStopLoss {
		sev = models.SeverityWarning
	}
	return models.Notification{
		Kind:     models.NotifyStrategyEvent,
		Symbol:   ev.Symbol,
		Title:    fmt.Sprintf("%s %s %s", ev.Symbol, ev.Direction, ev.Kind),
		Message:  fmt.Sprintf("price %.8g reached level %.8g, status %s", ev.Price, ev.Level, ev.Status),
		Severity: sev,
		Fields: map[string]any{
			"strategy_id": ev.StrategyID,
			"targets_hit": ev.TargetsHit,
			"entered":     ev.Entered,
		},
		CreatedAt: ev.OccurredAt,
	}
}
