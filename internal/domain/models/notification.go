package models

import "time"

type NotificationKind string

const (
	NotifyTrigger        NotificationKind = "trigger"
	NotifyStrategyEvent  NotificationKind = "strategy_event"
	NotifyCircuitBreaker NotificationKind = "circuit_breaker"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notification is a transport-agnostic outbound message.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Symbol    string           `json:"symbol"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Severity  Severity         `json:"severity"`
	Fields    map[string]any   `json:"fields,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
