package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"

	"PulseScan/internal/domain/models"
	domrepo "PulseScan/internal/domain/repository"
	pkgkafka "PulseScan/pkg/kafka"
)

// KafkaTicksHandler feeds ticks published on a Kafka topic into the pipeline.
type KafkaTicksHandler struct {
	topic   string
	pipe    TickProcessor
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, pipe TickProcessor, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, price, quote_volume, timestamp}
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var raw models.RawTick
	if err := sonic.ConfigFastest.Unmarshal(b, &raw); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(err)
	}
	if raw.Timestamp > 0 {
		ts := time.Unix(raw.Timestamp, 0)
		if raw.Timestamp > 1e11 {
			ts = time.UnixMilli(raw.Timestamp)
		}
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())
	}
	if err := h.pipe.Process(ctx, &raw); err != nil {
		if errors.Is(err, models.ErrInvalidTick) {
			return pkgkafka.Permanent(err)
		}
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
