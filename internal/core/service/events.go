package service

import (
	"context"
	"log"

	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
)

// publishTransition emits the order event for a transition that won its
// compare-and-set. Publish failures are logged; the transition stands.
func publishTransition(ctx context.Context, events ports.EventPublisher, logPrefix, gatewayID string, t domain.StatusTransition) {
	if events == nil {
		return
	}
	evt := domain.OrderEvent{
		Type:             domain.EventOrderPaid,
		OrderID:          t.OrderID,
		GatewayID:        gatewayID,
		PaymentReference: t.PaymentReference,
		Status:           t.To,
	}
	if t.To != domain.OrderCompleted {
		evt.Type = domain.EventOrderPaymentFailed
	}
	if err := events.Publish(ctx, evt); err != nil {
		log.Printf("%s failed to publish %s for order %s: %v", logPrefix, evt.Type, t.OrderID, err)
	}
}
