package service

import (
	"context"
	"errors"

	"PulseScan/internal/domain/models"
)

// ErrAnalysisRejected is returned when the analysis service refuses a hand-off.
var ErrAnalysisRejected = errors.New("analysis rejected")

// Notifier delivers best-effort notifications. No retries.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}

// AnalysisInvoker hands a trigger to the downstream analysis service.
type AnalysisInvoker interface {
	Invoke(ctx context.Context, symbol, triggerID string) (*models.AnalysisResult, error)
}

// SettingsSource exposes runtime scanner settings. Each getter may fail independently.
type SettingsSource interface {
	ScannerStatus(ctx context.Context) (models.ScannerStatus, error)
	MonitoredPairs(ctx context.Context) ([]string, error)
	Thresholds(ctx context.Context) (models.Thresholds, error)
}
