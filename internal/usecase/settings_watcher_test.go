package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/logger"
)

func TestSettingsWatcherInertUntilLoaded(t *testing.T) {
	src := &stubSettings{statusErr: errBoom, pairsErr: errBoom, thErr: errBoom}
	w := NewSettingsWatcher(src, defaultTh, nopMetrics, logger.Nop())

	got := w.Refresh(context.Background())
	assert.Equal(t, models.ScannerStopped, got.Status)
	assert.Empty(t, got.Pairs)
	assert.Equal(t, defaultTh, got.Thresholds)
}

func TestSettingsWatcherKeepsLastKnownPerField(t *testing.T) {
	src := &stubSettings{
		status: models.ScannerRunning,
		pairs:  []string{"btcusdt", " ETHUSDT ", "BTCUSDT", ""},
		th:     models.Thresholds{VolumeRatio: 5, PricePercent: 2},
	}
	w := NewSettingsWatcher(src, defaultTh, nopMetrics, logger.Nop())

	got := w.Refresh(context.Background())
	assert.Equal(t, models.ScannerRunning, got.Status)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got.Pairs)
	assert.Equal(t, models.Thresholds{VolumeRatio: 5, PricePercent: 2}, got.Thresholds)

	src.mu.Lock()
	src.statusErr = errBoom
	src.pairs = []string{"SOLUSDT"}
	src.thErr = errBoom
	src.mu.Unlock()

	got = w.Refresh(context.Background())
	assert.Equal(t, models.ScannerRunning, got.Status, "status kept")
	assert.Equal(t, []string{"SOLUSDT"}, got.Pairs, "pairs refreshed")
	assert.Equal(t, 5.0, got.Thresholds.VolumeRatio, "thresholds kept")
	assert.Equal(t, got, w.current)
}

func TestSettingsWatcherIgnoresInvalidValues(t *testing.T) {
	src := &stubSettings{
		status: models.ScannerStatus("paused"),
		th:     models.Thresholds{VolumeRatio: 0, PricePercent: 4},
	}
	w := NewSettingsWatcher(src, defaultTh, nopMetrics, logger.Nop())

	got := w.Refresh(context.Background())
	assert.Equal(t, models.ScannerStopped, got.Status)
	assert.Equal(t, 3.0, got.Thresholds.VolumeRatio)
	assert.Equal(t, 4.0, got.Thresholds.PricePercent)
}
