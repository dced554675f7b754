package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordTrigger("BTCUSDT", "volume_spike")
	r.RecordTrigger("BTCUSDT", "volume_spike")
	r.RecordError("strategy_update")
	r.RecordLastPrice("ETHUSDT", 2500.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.triggersTotal.WithLabelValues("BTCUSDT", "volume_spike")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("strategy_update")))
	assert.Equal(t, 2500.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("ETHUSDT")))

	n, err := testutil.GatherAndCount(reg, "pulsescan_triggers_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
