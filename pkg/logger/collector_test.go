package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) all() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedLogEntry
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestCollectorAggregatesIdenticalLines(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	fields := map[string]interface{}{"symbol": "BTCUSDT"}
	c.AddLog("error", "insert failed", fields, "a.go:1")
	c.AddLog("error", "insert failed", map[string]interface{}{"symbol": "BTCUSDT"}, "a.go:1")
	c.AddLog("error", "insert failed", map[string]interface{}{"symbol": "ETHUSDT"}, "a.go:1")
	c.Close()

	entries := pub.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "logs", pub.topic)
	assert.Equal(t, 2, entries[0].Count)
	assert.Equal(t, 1, entries[1].Count)
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	assert.Eventually(t, func() bool { return len(pub.all()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	l.Error("write failed", String("table", "triggers"), Error(errors.New("timeout")))
	l.Warn("ignored")
	l.RemoveCollector()

	entries := pub.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "write failed", entries[0].Message)
	assert.Equal(t, "triggers", entries[0].Fields["table"])
	assert.Equal(t, "timeout", entries[0].Fields["error"])
}

func TestEntryKeyIgnoresFieldOrder(t *testing.T) {
	a := entryKey("error", "m", map[string]interface{}{"a": 1, "b": 2}, "c")
	b := entryKey("error", "m", map[string]interface{}{"b": 2, "a": 1}, "c")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, entryKey("warn", "m", nil, "c"))
}
