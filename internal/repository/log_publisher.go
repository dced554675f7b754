package repository

import (
	"context"

	"PulseScan/pkg/logger"
)

// LogPublisher ships aggregated error logs through a Kafka producer.
type LogPublisher struct {
	pub Publisher
}

func NewLogPublisher(pub Publisher) *LogPublisher {
	return &LogPublisher{pub: pub}
}

func (p *LogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.pub.Publish(ctx, topic, []byte("pulsescan"), payload)
}

var _ logger.Publisher = (*LogPublisher)(nil)
