package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/internal/services/anomaly"
	"PulseScan/internal/services/features"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/util"
)

const (
	defaultTriggerCooldown = 5 * time.Minute
	defaultDetachedTimeout = 10 * time.Second
)

type cooldownKey struct {
	symbol string
	kind   models.TriggerKind
}

// TriggerDetector runs baseline, price window and circuit breaker checks per
// tick and dispatches Trigger records. Process must be called from a single
// goroutine; persistence and analysis hand-off run detached.
type TriggerDetector struct {
	baselines *anomaly.BaselineTracker
	window    *anomaly.PriceWindow
	breaker   *anomaly.CircuitBreaker

	store    repository.TriggerStore
	invoker  service.AnalysisInvoker
	notifier service.Notifier
	metrics  repository.Metrics
	log      *logger.Logger

	cooldown time.Duration
	timeout  time.Duration
	now      util.Clock
	last     map[cooldownKey]time.Time

	inflight sync.WaitGroup
}

type DetectorOption func(*TriggerDetector)

// WithTriggerCooldown sets the minimum gap between two triggers of one kind for one symbol.
func WithTriggerCooldown(d time.Duration) DetectorOption {
	return func(t *TriggerDetector) {
		if d > 0 {
			t.cooldown = d
		}
	}
}

func WithDetectorClock(now util.Clock) DetectorOption {
	return func(t *TriggerDetector) {
		if now != nil {
			t.now = now
		}
	}
}

// WithDetectorTimeout bounds each detached persistence or hand-off call.
func WithDetectorTimeout(d time.Duration) DetectorOption {
	return func(t *TriggerDetector) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func WithAnalysisInvoker(inv service.AnalysisInvoker) DetectorOption {
	return func(t *TriggerDetector) { t.invoker = inv }
}

func WithTriggerNotifier(n service.Notifier) DetectorOption {
	return func(t *TriggerDetector) { t.notifier = n }
}

func NewTriggerDetector(
	baselines *anomaly.BaselineTracker,
	window *anomaly.PriceWindow,
	breaker *anomaly.CircuitBreaker,
	store repository.TriggerStore,
	metrics repository.Metrics,
	log *logger.Logger,
	opts ...DetectorOption,
) *TriggerDetector {
	d := &TriggerDetector{
		baselines: baselines,
		window:    window,
		breaker:   breaker,
		store:     store,
		metrics:   metrics,
		log:       log,
		cooldown:  defaultTriggerCooldown,
		timeout:   defaultDetachedTimeout,
		now:       time.Now,
		last:      make(map[cooldownKey]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Process evaluates one tick and returns the triggers it dispatched.
func (d *TriggerDetector) Process(tick models.Tick, th models.Thresholds) []models.Trigger {
	sym := tick.Symbol

	d.baselines.Initialize(sym, tick.QuoteVolume)
	d.baselines.Update(sym, tick.QuoteVolume)
	volSpike, ratio := d.baselines.Check(sym, tick.QuoteVolume, th.VolumeRatio)

	d.window.Add(sym, tick.Price)
	priceMove, change := d.window.Check(sym, tick.Price, th.PricePercent)

	if blocked, reason := d.breaker.AddPrice(sym, tick.Price); blocked {
		if volSpike || priceMove {
			d.log.Debug("detection suppressed by circuit breaker",
				logger.String("symbol", sym),
				logger.String("reason", reason),
			)
		}
		return nil
	}

	var out []models.Trigger
	if volSpike {
		base, _ := d.baselines.Baseline(sym)
		t := models.Trigger{
			Symbol:    sym,
			Kind:      models.TriggerVolumeSpike,
			Value:     ratio,
			Threshold: th.VolumeRatio,
			Metadata: map[string]any{
				"ratio":        ratio,
				"baseline":     base.Value,
				"quote_volume": tick.QuoteVolume,
				"price":        tick.Price,
			},
		}
		if d.fire(t) {
			out = append(out, t)
		}
	}
	if priceMove {
		ref, _ := d.window.Oldest(sym)
		t := models.Trigger{
			Symbol:    sym,
			Kind:      models.TriggerPriceMove,
			Value:     change,
			Threshold: th.PricePercent,
			Metadata: map[string]any{
				"change_percent":  change,
				"window_seconds":  d.window.Window().Seconds(),
				"price":           tick.Price,
				"reference_price": ref.Price,
				"volatility":      features.WindowVolatility(d.window.Prices(sym)),
			},
		}
		if d.fire(t) {
			out = append(out, t)
		}
	}
	return out
}

// Wait blocks until detached trigger and breaker work finishes or ctx is done.
func (d *TriggerDetector) Wait(ctx context.Context) error {
	if err := waitGroup(ctx, &d.inflight); err != nil {
		return err
	}
	return d.breaker.Wait(ctx)
}

// fire applies the cooldown and final breaker gate, then dispatches t.
// The cooldown is consumed before the write outcome is known.
func (d *TriggerDetector) fire(t models.Trigger) bool {
	now := d.now()
	key := cooldownKey{symbol: t.Symbol, kind: t.Kind}
	if last, ok := d.last[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	if d.breaker.IsBlocked(t.Symbol) {
		return false
	}
	d.last[key] = now
	t.CreatedAt = now

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.persist(t)
	}()
	return true
}

func (d *TriggerDetector) persist(t models.Trigger) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	id, err := d.store.CreateTrigger(ctx, &t)
	d.metrics.RecordLatency("trigger_create", time.Since(start).Seconds())
	if err != nil {
		d.metrics.RecordError("trigger_create")
		d.log.Error("create trigger failed",
			logger.String("symbol", t.Symbol),
			logger.String("kind", string(t.Kind)),
			logger.Error(err),
		)
		return
	}
	t.ID = id
	d.metrics.RecordTrigger(t.Symbol, string(t.Kind))
	d.log.Info("trigger created",
		logger.String("id", id),
		logger.String("symbol", t.Symbol),
		logger.String("kind", string(t.Kind)),
		logger.Float64("value", t.Value),
		logger.Float64("threshold", t.Threshold),
	)

	// each follow-up gets its own deadline
	d.handOff(t)
	d.notify(t)
}

func (d *TriggerDetector) handOff(t models.Trigger) {
	if d.invoker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	res, err := d.invoker.Invoke(ctx, t.Symbol, t.ID)
	if err != nil {
		d.metrics.RecordError("analysis_invoke")
		d.log.Warn("analysis hand-off failed", logger.String("id", t.ID), logger.Error(err))
		return
	}
	started := true
	if err := d.store.UpdateTrigger(ctx, t.ID, models.TriggerPatch{AnalysisStarted: &started}); err != nil {
		d.metrics.RecordError("trigger_update")
		d.log.Error("mark analysis started failed", logger.String("id", t.ID), logger.Error(err))
		return
	}
	fields := []logger.Field{logger.String("id", t.ID)}
	if res != nil {
		fields = append(fields, logger.String("run_id", res.RunID))
	}
	d.log.Debug("analysis started", fields...)
}

func (d *TriggerDetector) notify(t models.Trigger) {
	if d.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Send(ctx, triggerNotification(t)); err != nil {
		d.metrics.RecordError("trigger_notify")
		d.log.Warn("trigger notification failed", logger.String("id", t.ID), logger.Error(err))
	}
}

func triggerNotification(t models.Trigger) models.Notification {
	var msg string
	switch t.Kind {
	case models.TriggerVolumeSpike:
		msg = fmt.Sprintf("quote volume %.2fx baseline (threshold %.2fx)", t.Value, t.Threshold)
	default:
		msg = fmt.Sprintf("price moved %+.2f%% (threshold %.2f%%)", t.Value, t.Threshold)
	}
	return models.Notification{
		Kind:     models.NotifyTrigger,
		Symbol:   t.Symbol,
		Title:    fmt.Sprintf("%s %s", t.Symbol, t.Kind),
		Message:  msg,
		Severity: models.SeverityWarning,
		Fields: map[string]any{
			"trigger_id": t.ID,
			"kind":       string(t.Kind),
			"value":      t.Value,
		},
		CreatedAt: t.CreatedAt,
	}
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
