package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/services/anomaly"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/metrics"
	"PulseScan/pkg/util"
)

var t0 = time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)

var errBoom = errors.New("boom")

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

func (n *recordingNotifier) Sent() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.sent...)
}

// stallingNotifier blocks every send until its context expires.
type stallingNotifier struct{}

func (stallingNotifier) Send(ctx context.Context, _ models.Notification) error {
	<-ctx.Done()
	return ctx.Err()
}

type failingTriggerStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingTriggerStore) CreateTrigger(context.Context, *models.Trigger) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return "", errBoom
}

func (s *failingTriggerStore) UpdateTrigger(context.Context, string, models.TriggerPatch) error {
	return errBoom
}

func (s *failingTriggerStore) ListTriggers(context.Context, string, int) ([]models.Trigger, error) {
	return nil, errBoom
}

type stubInvoker struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (i *stubInvoker) Invoke(ctx context.Context, symbol, triggerID string) (*models.AnalysisResult, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, symbol+"/"+triggerID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i.err != nil {
		return nil, i.err
	}
	return &models.AnalysisResult{RunID: "run-1", Status: "accepted"}, nil
}

type stubSettings struct {
	mu        sync.Mutex
	status    models.ScannerStatus
	pairs     []string
	th        models.Thresholds
	statusErr error
	pairsErr  error
	thErr     error
}

func (s *stubSettings) ScannerStatus(context.Context) (models.ScannerStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusErr
}

func (s *stubSettings) MonitoredPairs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs, s.pairsErr
}

func (s *stubSettings) Thresholds(context.Context) (models.Thresholds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.th, s.thErr
}

type countingStrategyStore struct {
	mu      sync.Mutex
	list    []models.Strategy
	listErr error
	rows    int64
	err     error
	updates []models.StrategyPatch
}

func (s *countingStrategyStore) ListActiveStrategies(context.Context, []models.StrategyStatus) ([]models.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Strategy(nil), s.list...), s.listErr
}

func (s *countingStrategyStore) UpdateStrategy(_ context.Context, _ string, patch models.StrategyPatch, _ models.StrategyExpect) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, patch)
	return s.rows, s.err
}

func (s *countingStrategyStore) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// newDetectorParts builds detector components sharing one manual clock.
func newDetectorParts(clock *util.ManualClock) (*anomaly.BaselineTracker, *anomaly.PriceWindow, *anomaly.CircuitBreaker) {
	return anomaly.NewBaselineTracker(anomaly.WithBaselineClock(clock.Now)),
		anomaly.NewPriceWindow(anomaly.WithWindowClock(clock.Now)),
		anomaly.NewCircuitBreaker(logger.Nop(), anomaly.WithBreakerClock(clock.Now))
}

var nopMetrics = metrics.Nop{}
