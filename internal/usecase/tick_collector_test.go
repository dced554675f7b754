package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/logger"
)

type fakeStream struct {
	mu         sync.Mutex
	ticks      chan *models.RawTick
	errs       chan error
	reconnects int
	closed     bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{ticks: make(chan *models.RawTick, 4), errs: make(chan error, 1)}
}

func (s *fakeStream) Connect(context.Context) error   { return nil }
func (s *fakeStream) Subscribe(context.Context) error { return nil }
func (s *fakeStream) Read(context.Context) (<-chan *models.RawTick, <-chan error) {
	return s.ticks, s.errs
}
func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}
func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
func (s *fakeStream) IsConnected() bool { return true }

func TestTickCollectorForwardsAndReconnects(t *testing.T) {
	stream := newFakeStream()
	proc := &recordingProcessor{}
	c := NewTickCollector(stream, proc, nopMetrics, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	stream.ticks <- &models.RawTick{Symbol: "BTCUSDT", Price: "1"}
	stream.errs <- errBoom

	require.Eventually(t, func() bool {
		proc.mu.Lock()
		n := len(proc.got)
		proc.mu.Unlock()
		stream.mu.Lock()
		r := stream.reconnects
		stream.mu.Unlock()
		return n == 1 && r == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Shutdown())
	assert.True(t, stream.closed)
}

type closingStream struct {
	fakeStream
	reads int
}

func (s *closingStream) Read(context.Context) (<-chan *models.RawTick, <-chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	ticks := make(chan *models.RawTick, 1)
	if s.reads == 1 {
		ticks <- &models.RawTick{Symbol: "ETHUSDT", Price: "2"}
		close(ticks)
	}
	return ticks, make(chan error)
}

func TestTickCollectorReopensClosedStream(t *testing.T) {
	stream := &closingStream{}
	proc := &recordingProcessor{}
	c := NewTickCollector(stream, proc, nopMetrics, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.reconnects == 1 && stream.reads == 2
	}, time.Second, 5*time.Millisecond)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.got, 1)
	assert.Equal(t, "ETHUSDT", proc.got[0].Symbol)
}

func TestTickCollectorShutdownStopsReadLoop(t *testing.T) {
	stream := newFakeStream()
	proc := &recordingProcessor{}
	c := NewTickCollector(stream, proc, nopMetrics, logger.Nop())

	// the parent context stays alive: Shutdown alone must end the loop
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Shutdown())
	assert.True(t, stream.closed)

	stream.ticks <- &models.RawTick{Symbol: "BTCUSDT", Price: "1"}
	time.Sleep(20 * time.Millisecond)
	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Empty(t, proc.got)
}
