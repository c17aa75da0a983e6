package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/coinpay/internal/core/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &Producer{w: w, topic: "orders.payments.v1", now: func() time.Time { return fixed }}

	err := p.Publish(context.Background(), domain.OrderEvent{
		Type:             domain.EventOrderPaid,
		OrderID:          "42",
		GatewayID:        "bihang",
		PaymentReference: "BH-1",
		Status:           domain.OrderCompleted,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, domain.EventOrderPaid, string(msg.Headers[0].Value))

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, domain.EventOrderPaid, env.EventType)
	assert.Equal(t, EventVersion, env.EventVersion)
	assert.Equal(t, "42", env.AggregateID)
	assert.True(t, fixed.Equal(env.OccurredAt))
	assert.Equal(t, "BH-1", env.Data.PaymentReference)
	assert.Equal(t, domain.OrderCompleted, env.Data.Status)
}

func TestProducerPublish_WriteError(t *testing.T) {
	p := &Producer{w: &fakeWriter{err: errors.New("broker down")}, topic: "t", now: time.Now}

	err := p.Publish(context.Background(), domain.OrderEvent{Type: domain.EventOrderPaymentFailed, OrderID: "1"})

	assert.ErrorContains(t, err, "broker down")
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), domain.OrderEvent{OrderID: "1"}))
}
