package models

import "time"

// CircuitBreakerState is an active flash-crash lock for one symbol.
type CircuitBreakerState struct {
	Symbol        string    `json:"symbol"`
	ActivatedAt   time.Time `json:"activated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Reason        string    `json:"reason"`
	ChangePercent float64   `json:"change_percent"`
}

// Expired reports whether the lock no longer applies at now.
func (s CircuitBreakerState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type LogLevel string

const (
	LogInfo     LogLevel = "info"
	LogWarning  LogLevel = "warning"
	LogCritical LogLevel = "critical"
)

// SystemLog is an operator-facing audit entry.
type SystemLog struct {
	Level     LogLevel       `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
