package models

import "time"

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

type StrategyStatus string

const (
	StatusWaitingEntry StrategyStatus = "waiting_entry"
	StatusInPosition   StrategyStatus = "in_position"
	StatusCompleted    StrategyStatus = "completed"
	StatusStopped      StrategyStatus = "stopped"
	StatusPaused       StrategyStatus = "paused"
)

// ActiveStatuses are the statuses a position tracker evaluates.
var ActiveStatuses = []StrategyStatus{StatusWaitingEntry, StatusInPosition}

// Tracked reports whether a strategy in this status is still evaluated on ticks.
func (s StrategyStatus) Tracked() bool {
	return s == StatusWaitingEntry || s == StatusInPosition
}

// Strategy is an externally defined trade plan. Target levels <= 0 are unset.
type Strategy struct {
	ID           string         `json:"id"`
	Symbol       string         `json:"symbol"`
	Direction    Direction      `json:"direction"`
	EntryMin     float64        `json:"entry_min"`
	EntryMax     *float64       `json:"entry_max,omitempty"`
	Target1      float64        `json:"target_1"`
	Target2      float64        `json:"target_2"`
	Target3      float64        `json:"target_3"`
	StopLoss     float64        `json:"stop_loss"`
	TargetsHit   int            `json:"targets_hit"`
	Status       StrategyStatus `json:"status"`
	CurrentPrice float64        `json:"current_price"`
	LastCheckAt  time.Time      `json:"last_check_at"`
}

// Targets returns the target ladder indexed from T1.
func (s Strategy) Targets() [3]float64 {
	return [3]float64{s.Target1, s.Target2, s.Target3}
}

// HighestTarget is the index (1..3) of the furthest configured target, 0 if none.
func (s Strategy) HighestTarget() int {
	t := s.Targets()
	for i := len(t) - 1; i >= 0; i-- {
		if t[i] > 0 {
			return i + 1
		}
	}
	return 0
}

type StrategyEventKind string

const (
	EventEntryReached StrategyEventKind = "entry_reached"
	EventTarget1      StrategyEventKind = "target_1"
	EventTarget2      StrategyEventKind = "target_2"
	EventTarget3      StrategyEventKind = "target_3"
	EventStopLoss     StrategyEventKind = "stop_loss"
)

// TargetEvent maps a target index (1..3) to its event kind.
func TargetEvent(idx int) StrategyEventKind {
	switch idx {
	case 1:
		return EventTarget1
	case 2:
		return EventTarget2
	default:
		return EventTarget3
	}
}

// StrategyEvent is emitted on a state-changing tick.
type StrategyEvent struct {
	StrategyID string            `json:"strategy_id"`
	Symbol     string            `json:"symbol"`
	Direction  Direction         `json:"direction"`
	Kind       StrategyEventKind `json:"kind"`
	Price      float64           `json:"price"`
	Level      float64           `json:"level"`
	TargetsHit int               `json:"targets_hit"`
	Status     StrategyStatus    `json:"status"`
	Entered    bool              `json:"entered"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// StrategyPatch is the new persisted state of a strategy.
type StrategyPatch struct {
	Status       StrategyStatus
	TargetsHit   int
	CurrentPrice float64
	LastCheckAt  time.Time
}

// StrategyExpect is the last-known state an update is conditioned on.
type StrategyExpect struct {
	Status     StrategyStatus
	TargetsHit int
}
