package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/pkg/logger"
)

// ErrScannerStopped is returned by Submit once Stop has been called.
var ErrScannerStopped = errors.New("scanner stopped")

const (
	defaultSettingsEvery = 30 * time.Second
	defaultReloadEvery   = 15 * time.Second
	defaultLoopBuffer    = 1024
	defaultRefreshTTL    = 5 * time.Second
)

// Scanner fans ticks out to two event loops. The detector loop owns the
// TriggerDetector and SettingsWatcher; the position loop owns the
// PositionTracker. Each loop also drives its own refresh timer, so no state
// is shared between goroutines. A nil PositionTracker runs the detector loop only.
type Scanner struct {
	detector  *TriggerDetector
	positions *PositionTracker
	settings  *SettingsWatcher
	metrics   repository.Metrics
	log       *logger.Logger

	settingsEvery time.Duration
	reloadEvery   time.Duration
	refreshTTL    time.Duration

	detectorCh chan models.Tick
	positionCh chan models.Tick

	mu      sync.Mutex
	started bool
	stopped chan struct{}
	cancel  context.CancelFunc
	loops   sync.WaitGroup
}

type ScannerOption func(*Scanner)

func WithSettingsInterval(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.settingsEvery = d
		}
	}
}

func WithReloadInterval(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.reloadEvery = d
		}
	}
}

// WithLoopBuffer sets the per-loop tick queue length.
func WithLoopBuffer(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.detectorCh = make(chan models.Tick, n)
			s.positionCh = make(chan models.Tick, n)
		}
	}
}

func NewScanner(
	detector *TriggerDetector,
	positions *PositionTracker,
	settings *SettingsWatcher,
	metrics repository.Metrics,
	log *logger.Logger,
	opts ...ScannerOption,
) *Scanner {
	s := &Scanner{
		detector:      detector,
		positions:     positions,
		settings:      settings,
		metrics:       metrics,
		log:           log,
		settingsEvery: defaultSettingsEvery,
		reloadEvery:   defaultReloadEvery,
		refreshTTL:    defaultRefreshTTL,
		detectorCh:    make(chan models.Tick, defaultLoopBuffer),
		positionCh:    make(chan models.Tick, defaultLoopBuffer),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches both loops. They run until Stop or ctx is cancelled.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scanner already started")
	}
	s.started = true

	lctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loops.Add(1)
	go s.detectorLoop(lctx)
	if s.positions != nil {
		s.loops.Add(1)
		go s.positionLoop(lctx)
	}
	s.log.Info("scanner started",
		logger.Duration("settings_interval_ms", s.settingsEvery),
		logger.Duration("reload_interval_ms", s.reloadEvery),
		logger.Bool("positions", s.positions != nil),
	)
	return nil
}

// Submit hands a tick to every running loop, blocking while a loop queue is full.
func (s *Scanner) Submit(ctx context.Context, tick models.Tick) error {
	targets := []chan models.Tick{s.detectorCh, s.positionCh}
	if s.positions == nil {
		targets = targets[:1]
	}
	for _, ch := range targets {
		select {
		case ch <- tick:
		case <-s.stopped:
			return ErrScannerStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.metrics.RecordTick(tick.Symbol)
	s.metrics.RecordLastPrice(tick.Symbol, tick.Price)
	return nil
}

// Stop halts both loops and their timers, then waits for detached writes
// and notifications until ctx is done.
func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	select {
	case <-s.stopped:
		s.mu.Unlock()
		return nil
	default:
		close(s.stopped)
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := waitGroup(ctx, &s.loops); err != nil {
		return fmt.Errorf("wait scanner loops: %w", err)
	}
	if err := s.detector.Wait(ctx); err != nil {
		return fmt.Errorf("wait trigger work: %w", err)
	}
	if s.positions != nil {
		if err := s.positions.Wait(ctx); err != nil {
			return fmt.Errorf("wait position work: %w", err)
		}
	}
	s.log.Info("scanner stopped")
	return nil
}

func (s *Scanner) detectorLoop(ctx context.Context) {
	defer s.loops.Done()

	settings := s.refreshSettings(ctx)
	ticker := time.NewTicker(s.settingsEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settings = s.refreshSettings(ctx)
		case tick := <-s.detectorCh:
			if settings.Status != models.ScannerRunning || !settings.Monitors(tick.Symbol) {
				continue
			}
			s.detector.Process(tick, settings.Thresholds)
		}
	}
}

func (s *Scanner) positionLoop(ctx context.Context) {
	defer s.loops.Done()

	s.reload(ctx)
	ticker := time.NewTicker(s.reloadEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reload(ctx)
		case tick := <-s.positionCh:
			s.positions.Process(ctx, tick)
		}
	}
}

func (s *Scanner) refreshSettings(ctx context.Context) models.ScannerSettings {
	rctx, cancel := context.WithTimeout(ctx, s.refreshTTL)
	defer cancel()
	return s.settings.Refresh(rctx)
}

func (s *Scanner) reload(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, s.refreshTTL)
	defer cancel()
	if err := s.positions.Reload(rctx); err != nil {
		s.log.Warn("strategy reload failed, keeping current set",
			logger.Int("tracked", s.positions.Tracked()),
			logger.Error(err),
		)
	}
}
