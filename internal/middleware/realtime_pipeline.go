package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	"PulseScan/internal/service/ratelimit"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/util"
)

// ErrBufferFull is returned when a tick is dropped because the buffer is full.
var ErrBufferFull = errors.New("pipeline buffer full")

// Sink is the downstream the pipeline forwards validated ticks to.
type Sink interface {
	Submit(ctx context.Context, t models.Tick) error
}

// RealtimePipeline sits between the feed and the scanner. It parses raw
// payloads into validated ticks, throttles per symbol, and buffers so a feed
// reader never waits on the scanner.
type RealtimePipeline struct {
	sink    Sink
	metrics domrepo.Metrics
	log     *logger.Logger
	limiter *ratelimit.Limiter
	now     util.Clock

	maxRPS  int
	bufSize int
	bufCh   chan models.Tick
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max ticks per second per symbol. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the queue length between feed and scanner.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithPipelineClock(now util.Clock) PipelineOption {
	return func(p *RealtimePipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(sink Sink, metrics domrepo.Metrics, log *logger.Logger, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		sink:    sink,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		maxRPS:  20,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.limiter = ratelimit.NewWithClock(p.now)
	p.bufCh = make(chan models.Tick, p.bufSize)
	return p
}

// Start launches the goroutine that drains the buffer into the sink.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case t := <-p.bufCh:
				start := time.Now()
				if err := p.sink.Submit(ctx, t); err != nil {
					p.metrics.RecordError("pipeline_forward")
					p.log.Debug("tick not forwarded", logger.String("symbol", t.Symbol), logger.Error(err))
					continue
				}
				p.metrics.RecordLatency("pipeline_forward", time.Since(start).Seconds())
			}
		}
	}()
}

// Stop stops draining and waits for the drain goroutine to exit.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Process validates and throttles a raw tick, then queues it. Throttled
// ticks are dropped without error.
func (p *RealtimePipeline) Process(ctx context.Context, raw *models.RawTick) error {
	if raw == nil {
		return nil
	}
	t, err := models.ParseTick(*raw)
	if err != nil {
		p.metrics.RecordError("pipeline_validate")
		p.log.Debug("tick rejected", logger.String("symbol", raw.Symbol), logger.Error(err))
		return err
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = p.now()
	}
	if p.maxRPS > 0 && !p.limiter.Allow(t.Symbol, float64(p.maxRPS), float64(p.maxRPS)) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	select {
	case p.bufCh <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		p.log.Debug("tick dropped, buffer full",
			logger.String("symbol", t.Symbol),
			logger.Int("depth", p.depth()),
		)
		return ErrBufferFull
	}
}

// depth is the number of queued ticks.
func (p *RealtimePipeline) depth() int { return len(p.bufCh) }
