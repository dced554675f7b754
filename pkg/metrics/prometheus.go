package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal     *prometheus.CounterVec
	triggersTotal  *prometheus.CounterVec
	breakersTotal  *prometheus.CounterVec
	strategyEvents *prometheus.CounterVec
	messagesSent   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder registered on reg.
// A nil reg registers on the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		ticksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsescan_ticks_total",
				Help: "Total number of ticks accepted by the scanner",
			},
			[]string{"symbol"},
		),
		triggersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsescan_triggers_total",
				Help: "Total number of anomaly triggers dispatched",
			},
			[]string{"symbol", "kind"},
		),
		breakersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsescan_circuit_breakers_total",
				Help: "Total number of circuit breaker activations",
			},
			[]string{"symbol"},
		),
		strategyEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsescan_strategy_events_total",
				Help: "Total number of persisted strategy events",
			},
			[]string{"kind"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsescan_messages_sent_total",
				Help: "Total number of messages sent to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsescan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulsescan_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulsescan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTick(symbol string) {
	r.ticksTotal.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordTrigger(symbol, kind string) {
	r.triggersTotal.WithLabelValues(symbol, kind).Inc()
}

func (r *Recorder) RecordBreaker(symbol string) {
	r.breakersTotal.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordStrategyEvent(kind string) {
	r.strategyEvents.WithLabelValues(kind).Inc()
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
