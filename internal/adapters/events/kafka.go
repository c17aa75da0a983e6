// Package events publishes order payment events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// EventVersion is the schema version stamped on every envelope.
const EventVersion = "1"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements ports.EventPublisher on Kafka.
type Producer struct {
	w     messageWriter
	topic string
	now   func() time.Time
}

// NewProducer creates a producer writing to topic on brokers.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // partition by order id
			RequiredAcks: kafka.RequireAll,
		},
		topic: topic,
		now:   time.Now,
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Envelope is the event schema on the wire.
type Envelope struct {
	EventID      string            `json:"eventId"`
	EventType    string            `json:"eventType"`
	EventVersion string            `json:"eventVersion"`
	OccurredAt   time.Time         `json:"occurredAt"`
	AggregateID  string            `json:"aggregateId"`
	Data         domain.OrderEvent `json:"data"`
}

// Publish writes one event keyed by order id, keeping per-order ordering.
func (p *Producer) Publish(ctx context.Context, evt domain.OrderEvent) error {
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    evt.Type,
		EventVersion: EventVersion,
		OccurredAt:   p.now().UTC(),
		AggregateID:  evt.OrderID,
		Data:         evt,
	}
	val, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: val,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(evt.Type)},
		},
	}); err != nil {
		return fmt.Errorf("failed to write to %s: %w", p.topic, err)
	}
	log.Printf("[Kafka] published %s for order %s", evt.Type, evt.OrderID)
	return nil
}

// NoopPublisher drops events. It is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, evt domain.OrderEvent) error {
	log.Printf("[Kafka] disabled, dropping %s for order %s", evt.Type, evt.OrderID)
	return nil
}
