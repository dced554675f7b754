package usecase

import (
	"context"
	"errors"
	"time"

	"PulseScan/internal/domain/models"
	drepo "PulseScan/internal/domain/repository"
	"PulseScan/pkg/logger"
)

var errStreamClosed = errors.New("market stream closed")

// TickProcessor accepts raw feed payloads.
type TickProcessor interface {
	Process(ctx context.Context, t *models.RawTick) error
}

// TickCollector reads ticks from a market stream into the pipeline and
// keeps the stream alive across disconnects.
type TickCollector struct {
	stream     drepo.MarketStream
	pipe       TickProcessor
	metrics    drepo.Metrics
	log        *logger.Logger
	retryDelay time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickCollector creates a new TickCollector instance.
func NewTickCollector(stream drepo.MarketStream, pipe TickProcessor, metrics drepo.Metrics, log *logger.Logger) *TickCollector {
	return &TickCollector{stream: stream, pipe: pipe, metrics: metrics, log: log, retryDelay: 5 * time.Second}
}

// IsConnected returns true if the market stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects and subscribes, then reads in the background until ctx
// ends or Shutdown is called.
func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	rctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.run(rctx)
	}()
	return nil
}

func (c *TickCollector) run(ctx context.Context) {
	for {
		tickCh, errCh := c.stream.Read(ctx)
		err := c.drain(ctx, tickCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.log.Warn("market stream interrupted, reconnecting", logger.Error(err))

		for {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				c.log.Info("market stream reconnected")
				break
			}
			c.log.Error("market stream reconnect failed", logger.Error(rerr))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
		}
	}
}

// drain forwards ticks until the stream reports an error or closes.
func (c *TickCollector) drain(ctx context.Context, tickCh <-chan *models.RawTick, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return err
			}
		case t, ok := <-tickCh:
			if !ok {
				return errStreamClosed
			}
			if t == nil {
				continue
			}
			// rejected ticks are counted by the pipeline
			_ = c.pipe.Process(ctx, t)
		}
	}
}

// Shutdown stops the read loop, closes the stream and waits for the loop to exit.
func (c *TickCollector) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	if c.done != nil {
		<-c.done
	}
	return err
}
