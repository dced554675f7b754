package repository

import (
	"context"
	"errors"
	"fmt"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/service"
	"PulseScan/pkg/cache"
)

const settingsPrefix = "scanner"

var (
	keyScannerStatus = cache.GenerateKey(settingsPrefix, "status")
	keyScannerPairs  = cache.GenerateKey(settingsPrefix, "pairs")
	keyThresholds    = cache.GenerateKey(settingsPrefix, "thresholds")
)

// ErrSettingMissing is returned when a setting key has never been written.
var ErrSettingMissing = errors.New("setting not set")

// CacheSettingsSource reads runtime scanner settings from a cache.Service.
// Backed by Redis in production and by cache.MemoryCache seeded from the
// YAML config when no Redis is configured.
type CacheSettingsSource struct {
	cache cache.Service
}

func NewCacheSettingsSource(c cache.Service) *CacheSettingsSource {
	return &CacheSettingsSource{cache: c}
}

func (s *CacheSettingsSource) ScannerStatus(ctx context.Context) (models.ScannerStatus, error) {
	var status string
	if err := s.get(ctx, keyScannerStatus, &status); err != nil {
		return "", err
	}
	return models.ScannerStatus(status), nil
}

func (s *CacheSettingsSource) MonitoredPairs(ctx context.Context) ([]string, error) {
	var pairs []string
	if err := s.get(ctx, keyScannerPairs, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

func (s *CacheSettingsSource) Thresholds(ctx context.Context) (models.Thresholds, error) {
	var th models.Thresholds
	if err := s.get(ctx, keyThresholds, &th); err != nil {
		return models.Thresholds{}, err
	}
	return th, nil
}

// Save writes every non-empty field of settings. A zero threshold pair is skipped.
func (s *CacheSettingsSource) Save(ctx context.Context, settings models.ScannerSettings) error {
	if settings.Status != "" {
		if err := s.cache.Set(ctx, keyScannerStatus, string(settings.Status), 0); err != nil {
			return fmt.Errorf("save scanner status: %w", err)
		}
	}
	if settings.Pairs != nil {
		if err := s.cache.Set(ctx, keyScannerPairs, settings.Pairs, 0); err != nil {
			return fmt.Errorf("save monitored pairs: %w", err)
		}
	}
	if settings.Thresholds != (models.Thresholds{}) {
		if err := s.cache.Set(ctx, keyThresholds, settings.Thresholds, 0); err != nil {
			return fmt.Errorf("save thresholds: %w", err)
		}
	}
	return nil
}

// SeedMissing writes each field of settings whose key does not exist yet.
// Fields an operator has already set are left alone.
func (s *CacheSettingsSource) SeedMissing(ctx context.Context, settings models.ScannerSettings) error {
	var seed models.ScannerSettings
	for _, f := range []struct {
		key   string
		apply func()
	}{
		{keyScannerStatus, func() { seed.Status = settings.Status }},
		{keyScannerPairs, func() { seed.Pairs = settings.Pairs }},
		{keyThresholds, func() { seed.Thresholds = settings.Thresholds }},
	} {
		ok, err := s.cache.Exists(ctx, f.key)
		if err != nil {
			return fmt.Errorf("check %s: %w", f.key, err)
		}
		if !ok {
			f.apply()
		}
	}
	return s.Save(ctx, seed)
}

func (s *CacheSettingsSource) get(ctx context.Context, key string, dest interface{}) error {
	if err := s.cache.Get(ctx, key, dest); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return fmt.Errorf("%s: %w", key, ErrSettingMissing)
		}
		return fmt.Errorf("read %s: %w", key, err)
	}
	return nil
}

var _ service.SettingsSource = (*CacheSettingsSource)(nil)
