package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/pkg/postgres"
)

type triggerRecord struct {
	ID              string         `gorm:"type:uuid;primaryKey"`
	Symbol          string         `gorm:"size:32;index:idx_triggers_symbol_created,priority:1;not null"`
	Kind            string         `gorm:"size:32;not null"`
	Value           float64        `gorm:"not null"`
	Threshold       float64        `gorm:"not null"`
	Metadata        map[string]any `gorm:"type:jsonb;serializer:json"`
	CreatedAt       time.Time      `gorm:"index:idx_triggers_symbol_created,priority:2;not null"`
	AnalysisStarted bool           `gorm:"not null;default:false"`
}

func (triggerRecord) TableName() string { return "triggers" }

func triggerToRecord(t *models.Trigger) triggerRecord {
	return triggerRecord{
		ID:              t.ID,
		Symbol:          t.Symbol,
		Kind:            string(t.Kind),
		Value:           t.Value,
		Threshold:       t.Threshold,
		Metadata:        t.Metadata,
		CreatedAt:       t.CreatedAt,
		AnalysisStarted: t.AnalysisStarted,
	}
}

func (r triggerRecord) toModel() models.Trigger {
	return models.Trigger{
		ID:              r.ID,
		Symbol:          r.Symbol,
		Kind:            models.TriggerKind(r.Kind),
		Value:           r.Value,
		Threshold:       r.Threshold,
		Metadata:        r.Metadata,
		CreatedAt:       r.CreatedAt,
		AnalysisStarted: r.AnalysisStarted,
	}
}

// strategyRecord mirrors the strategies table. Strategies are written by an
// external planner; the scanner only moves status, targets hit and price.
type strategyRecord struct {
	ID           string   `gorm:"primaryKey"`
	Symbol       string   `gorm:"size:32;index;not null"`
	Direction    string   `gorm:"size:8;not null"`
	EntryMin     float64  `gorm:"not null"`
	EntryMax     *float64 `gorm:""`
	Target1      float64
	Target2      float64
	Target3      float64
	StopLoss     float64
	TargetsHit   int    `gorm:"not null;default:0"`
	Status       string `gorm:"size:16;index;not null"`
	CurrentPrice float64
	LastCheckAt  *time.Time
}

func (strategyRecord) TableName() string { return "strategies" }

func (r strategyRecord) toModel() models.Strategy {
	s := models.Strategy{
		ID:           r.ID,
		Symbol:       r.Symbol,
		Direction:    models.Direction(r.Direction),
		EntryMin:     r.EntryMin,
		EntryMax:     r.EntryMax,
		Target1:      r.Target1,
		Target2:      r.Target2,
		Target3:      r.Target3,
		StopLoss:     r.StopLoss,
		TargetsHit:   r.TargetsHit,
		Status:       models.StrategyStatus(r.Status),
		CurrentPrice: r.CurrentPrice,
	}
	if r.LastCheckAt != nil {
		s.LastCheckAt = *r.LastCheckAt
	}
	return s
}

func strategyPatchColumns(p models.StrategyPatch) map[string]any {
	return map[string]any{
		"status":        string(p.Status),
		"targets_hit":   p.TargetsHit,
		"current_price": p.CurrentPrice,
		"last_check_at": p.LastCheckAt,
	}
}

// Migrate creates or updates the trigger and strategy tables.
func Migrate(ctx context.Context, c *postgres.Client) error {
	if err := c.DB().WithContext(ctx).AutoMigrate(&triggerRecord{}, &strategyRecord{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// PostgresTriggerStore implements repository.TriggerStore with gorm.
type PostgresTriggerStore struct {
	db *gorm.DB
}

func NewPostgresTriggerStore(c *postgres.Client) *PostgresTriggerStore {
	return &PostgresTriggerStore{db: c.DB()}
}

func (s *PostgresTriggerStore) CreateTrigger(ctx context.Context, t *models.Trigger) (string, error) {
	rec := triggerToRecord(t)
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("insert trigger: %w", err)
	}
	return rec.ID, nil
}

func (s *PostgresTriggerStore) UpdateTrigger(ctx context.Context, id string, patch models.TriggerPatch) error {
	cols := map[string]any{}
	if patch.AnalysisStarted != nil {
		cols["analysis_started"] = *patch.AnalysisStarted
	}
	if len(cols) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&triggerRecord{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("update trigger %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *PostgresTriggerStore) ListTriggers(ctx context.Context, symbol string, limit int) ([]models.Trigger, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []triggerRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	out := make([]models.Trigger, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// PostgresStrategyStore implements repository.StrategyStore with gorm.
type PostgresStrategyStore struct {
	db *gorm.DB
}

func NewPostgresStrategyStore(c *postgres.Client) *PostgresStrategyStore {
	return &PostgresStrategyStore{db: c.DB()}
}

func (s *PostgresStrategyStore) ListActiveStrategies(ctx context.Context, statuses []models.StrategyStatus) ([]models.Strategy, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	var recs []strategyRecord
	err := s.db.WithContext(ctx).
		Where("status IN ?", names).
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list strategies: %w", err)
	}
	out := make([]models.Strategy, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// UpdateStrategy is a compare-and-set on (status, targets_hit).
func (s *PostgresStrategyStore) UpdateStrategy(ctx context.Context, id string, patch models.StrategyPatch, expect models.StrategyExpect) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&strategyRecord{}).
		Where("id = ? AND status = ? AND targets_hit = ?", id, string(expect.Status), expect.TargetsHit).
		Updates(strategyPatchColumns(patch))
	if res.Error != nil {
		return 0, fmt.Errorf("update strategy %s: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

var (
	_ repository.TriggerStore  = (*PostgresTriggerStore)(nil)
	_ repository.StrategyStore = (*PostgresStrategyStore)(nil)
)
