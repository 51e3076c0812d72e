package events

import (
	"context"

	"coursebook/pkg/kafka"
	"coursebook/pkg/logger"
)

// Topic is the booking event stream shared by all services.
const Topic = "booking-events"

// DLQTopic receives events that could not be produced or consumed.
const DLQTopic = "booking-events-dlq"

// KafkaPublisher writes domain events to the booking event stream. The
// session id is the partition key so deltas for one session stay ordered.
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) {
	msg := kafka.NewMessage().
		WithKey(evt.SessionID).
		WithValue(evt).
		WithEventID(evt.ID).
		WithEventType(string(evt.Type)).
		WithSource("coursebook").
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish domain event",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"session_id", evt.SessionID,
			"error", err,
		)
	}
}
