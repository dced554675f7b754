package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PulseScan/internal/domain/models"
	"PulseScan/pkg/cache"
)

func TestCacheSettingsSourceMissingKeys(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	src := NewCacheSettingsSource(mc)
	ctx := context.Background()

	_, err := src.ScannerStatus(ctx)
	assert.ErrorIs(t, err, ErrSettingMissing)
	_, err = src.MonitoredPairs(ctx)
	assert.ErrorIs(t, err, ErrSettingMissing)
	_, err = src.Thresholds(ctx)
	assert.ErrorIs(t, err, ErrSettingMissing)
}

func TestCacheSettingsSourceSaveAndRead(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	src := NewCacheSettingsSource(mc)
	ctx := context.Background()

	require.NoError(t, src.Save(ctx, models.ScannerSettings{
		Status:     models.ScannerRunning,
		Pairs:      []string{"BTCUSDT", "SOLUSDT"},
		Thresholds: models.Thresholds{VolumeRatio: 4, PricePercent: 2.5},
	}))

	status, err := src.ScannerStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ScannerRunning, status)

	pairs, err := src.MonitoredPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, pairs)

	th, err := src.Thresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Thresholds{VolumeRatio: 4, PricePercent: 2.5}, th)
}

func TestCacheSettingsSourcePartialSave(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	src := NewCacheSettingsSource(mc)
	ctx := context.Background()

	require.NoError(t, src.Save(ctx, models.ScannerSettings{Status: models.ScannerStopped}))

	status, err := src.ScannerStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ScannerStopped, status)
	_, err = src.Thresholds(ctx)
	assert.ErrorIs(t, err, ErrSettingMissing)
}

func TestCacheSettingsSourceSeedMissingKeepsOperatorValues(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	src := NewCacheSettingsSource(mc)
	ctx := context.Background()

	require.NoError(t, src.Save(ctx, models.ScannerSettings{Status: models.ScannerStopped}))
	require.NoError(t, src.SeedMissing(ctx, models.ScannerSettings{
		Status:     models.ScannerRunning,
		Pairs:      []string{"BTCUSDT"},
		Thresholds: models.Thresholds{VolumeRatio: 3, PricePercent: 3},
	}))

	status, err := src.ScannerStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ScannerStopped, status)

	pairs, err := src.MonitoredPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT"}, pairs)

	th, err := src.Thresholds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, th.VolumeRatio)
}
