package models

import "time"

type TriggerKind string

const (
	TriggerVolumeSpike TriggerKind = "volume_spike"
	TriggerPriceMove   TriggerKind = "price_move"
)

// Trigger is an anomaly detection record. Only AnalysisStarted changes after creation.
type Trigger struct {
	ID              string         `json:"id"`
	Symbol          string         `json:"symbol"`
	Kind            TriggerKind    `json:"kind"`
	Value           float64        `json:"value"`
	Threshold       float64        `json:"threshold"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	AnalysisStarted bool           `json:"analysis_started"`
}

type TriggerPatch struct {
	AnalysisStarted *bool
}

// Baseline is the smoothed quote volume of one symbol.
type Baseline struct {
	Symbol        string
	Value         float64
	LastUpdatedAt time.Time
}

type PricePoint struct {
	Price      float64
	ObservedAt time.Time
}

// AnalysisResult is what the downstream analysis service answers on hand-off.
type AnalysisResult struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}
