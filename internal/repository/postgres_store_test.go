package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"PulseScan/internal/domain/models"
)

func TestTriggerRecordMapping(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := models.Trigger{
		ID:        "a",
		Symbol:    "BTCUSDT",
		Kind:      models.TriggerPriceMove,
		Value:     -3.4,
		Threshold: 3,
		Metadata:  map[string]any{"window_seconds": 300.0},
		CreatedAt: at,
	}
	rec := triggerToRecord(&in)
	assert.Equal(t, "price_move", rec.Kind)
	assert.Equal(t, in, rec.toModel())
}

func TestStrategyRecordMapping(t *testing.T) {
	hi := 101.0
	rec := strategyRecord{
		ID:         "s1",
		Symbol:     "ETHUSDT",
		Direction:  "LONG",
		EntryMin:   99,
		EntryMax:   &hi,
		Target1:    105,
		StopLoss:   95,
		TargetsHit: 1,
		Status:     "in_position",
	}
	s := rec.toModel()
	assert.Equal(t, models.Long, s.Direction)
	assert.Equal(t, models.StatusInPosition, s.Status)
	assert.Equal(t, &hi, s.EntryMax)
	assert.True(t, s.LastCheckAt.IsZero())

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec.LastCheckAt = &at
	assert.Equal(t, at, rec.toModel().LastCheckAt)
}

func TestStrategyPatchColumns(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cols := strategyPatchColumns(models.StrategyPatch{
		Status:       models.StatusCompleted,
		TargetsHit:   3,
		CurrentPrice: 110,
		LastCheckAt:  at,
	})
	assert.Equal(t, map[string]any{
		"status":        "completed",
		"targets_hit":   3,
		"current_price": 110.0,
		"last_check_at": at,
	}, cols)
}
