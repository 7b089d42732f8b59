package kafka

import (
	"context"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
)

// Publisher wraps payloads in envelopes and writes them through a Producer.
type Publisher struct {
	producer *Producer
	source   string
	logger   logging.Logger
}

// NewPublisher tags every envelope with source.
func NewPublisher(p *Producer, source string, logger logging.Logger) *Publisher {
	return &Publisher{producer: p, source: source, logger: logging.OrNop(logger)}
}

// PublishEvent sends payload to topic under key.
func (p *Publisher) PublishEvent(ctx context.Context, topic, key string, payload interface{}) error {
	env, err := NewEventEnvelope(topic, p.source, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic, key)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		p.logger.Warn("event publish failed",
			logging.String("topic", topic),
			logging.String("key", key),
			logging.Err(err))
		return err
	}
	return nil
}

// Close closes the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
