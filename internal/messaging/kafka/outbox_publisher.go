package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
// Сообщения с битым payload уходят в DLQ, чтобы не блокировать backlog.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	dlqTopic string
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic, dlqTopic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	if dlqTopic == "" {
		dlqTopic = TopicDeadLetterQueue
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		dlqTopic: dlqTopic,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	if !json.Valid(event.Payload) {
		return p.deadLetter(ctx, key, event, "payload is not valid JSON")
	}

	envelope := OrderEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   p.now(),
	}

	return p.producer.SendJSON(ctx, p.topic, key, envelope, map[string]string{
		HeaderEventType:     event.EventType,
		HeaderAggregateType: event.AggregateType,
	})
}

func (p *OutboxTopicPublisher) deadLetter(ctx context.Context, key string, event domain.OutboxMessage, reason string) error {
	err := p.producer.Send(ctx, Message{
		Topic: p.dlqTopic,
		Key:   key,
		Value: event.Payload,
		Headers: map[string]string{
			HeaderEventType:     event.EventType,
			HeaderOriginalTopic: p.topic,
			HeaderErrorMessage:  reason,
			HeaderFailedAt:      p.now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("dead-letter outbox message %s: %w", event.ID, err)
	}
	return nil
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
