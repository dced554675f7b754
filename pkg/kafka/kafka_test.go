package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")
	err := fmt.Errorf("decode: %w", Permanent(base))

	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.NoError(t, Permanent(nil))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "rejected", resultLabel(Permanent(errors.New("x"))))
	assert.Equal(t, "error", resultLabel(errors.New("x")))
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))
}

func TestConstructorsRequireBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer()
	assert.Error(t, err)
}

func TestHookFuncs(t *testing.T) {
	var seen error
	h := HookFuncs{
		After: func(_ context.Context, _ string, _ kafka.Message, err error) { seen = err },
	}

	ctx, data, err := h.BeforeHandle(context.Background(), "ticks", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.NotNil(t, ctx)
	assert.Equal(t, []byte("x"), data)

	boom := errors.New("boom")
	h.AfterHandle(ctx, "ticks", kafka.Message{}, boom)
	assert.Equal(t, boom, seen)

	NoopHook{}.AfterHandle(ctx, "ticks", kafka.Message{}, boom)
}
