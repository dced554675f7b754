package repository

import (
	"context"
	"errors"

	"PulseScan/internal/domain/models"
)

// ErrNotFound is returned when a record addressed by id does not exist.
var ErrNotFound = errors.New("not found")

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.RawTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type TriggerStore interface {
	CreateTrigger(ctx context.Context, t *models.Trigger) (string, error)
	UpdateTrigger(ctx context.Context, id string, patch models.TriggerPatch) error
	ListTriggers(ctx context.Context, symbol string, limit int) ([]models.Trigger, error)
}

// StrategyStore persists strategy state. UpdateStrategy only applies when the
// stored status and targets hit still equal expect, and returns the affected row count.
type StrategyStore interface {
	ListActiveStrategies(ctx context.Context, statuses []models.StrategyStatus) ([]models.Strategy, error)
	UpdateStrategy(ctx context.Context, id string, patch models.StrategyPatch, expect models.StrategyExpect) (int64, error)
}

// AuditLog is append-only.
type AuditLog interface {
	InsertCircuitBreakerLog(ctx context.Context, state models.CircuitBreakerState) error
	InsertSystemLog(ctx context.Context, entry models.SystemLog) error
	ListCircuitBreakers(ctx context.Context, symbol string, limit int) ([]models.CircuitBreakerState, error)
}

type Metrics interface {
	RecordTick(symbol string)
	RecordTrigger(symbol string, kind string)
	RecordBreaker(symbol string)
	RecordStrategyEvent(kind string)
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
