package usecase

import (
	"context"
	"strings"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/pkg/logger"
)

// SettingsWatcher holds the last known scanner settings. Every field is
// refreshed on its own; a failed read keeps the previous value. Before the
// first successful read the scanner is stopped with no pairs.
type SettingsWatcher struct {
	src     service.SettingsSource
	metrics repository.Metrics
	log     *logger.Logger

	current models.ScannerSettings
}

func NewSettingsWatcher(src service.SettingsSource, defaults models.Thresholds, metrics repository.Metrics, log *logger.Logger) *SettingsWatcher {
	return &SettingsWatcher{
		src:     src,
		metrics: metrics,
		log:     log,
		current: models.ScannerSettings{
			Status:     models.ScannerStopped,
			Thresholds: defaults,
		},
	}
}

// Refresh reads every setting from the source and returns the merged result.
func (w *SettingsWatcher) Refresh(ctx context.Context) models.ScannerSettings {
	if status, err := w.src.ScannerStatus(ctx); err != nil {
		w.fail("status", err)
	} else if status == models.ScannerRunning || status == models.ScannerStopped {
		if status != w.current.Status {
			w.log.Info("scanner status changed", logger.String("status", string(status)))
		}
		w.current.Status = status
	} else {
		w.log.Warn("unknown scanner status ignored", logger.String("status", string(status)))
	}

	if pairs, err := w.src.MonitoredPairs(ctx); err != nil {
		w.fail("pairs", err)
	} else {
		w.current.Pairs = normalizePairs(pairs)
	}

	if th, err := w.src.Thresholds(ctx); err != nil {
		w.fail("thresholds", err)
	} else {
		if th.VolumeRatio > 0 {
			w.current.Thresholds.VolumeRatio = th.VolumeRatio
		}
		if th.PricePercent > 0 {
			w.current.Thresholds.PricePercent = th.PricePercent
		}
	}
	return w.current
}

func (w *SettingsWatcher) fail(field string, err error) {
	w.metrics.RecordError("settings_" + field)
	w.log.Warn("settings read failed, keeping last known value",
		logger.String("field", field),
		logger.Error(err),
	)
}

func normalizePairs(pairs []string) []string {
	out := make([]string, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
