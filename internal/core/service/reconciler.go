package service

import (
	"context"
	"errors"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
)

var tracer = otel.Tracer("github.com/fitstack/coinpay/internal/core/service")

// maxTransitionAttempts bounds the re-read/retry loop when a concurrent writer
// moves the order between our read and our compare-and-set.
const maxTransitionAttempts = 3

// Reconciler applies verified notifications to orders.
type Reconciler struct {
	orders ports.OrderStore
	events ports.EventPublisher
}

// NewReconciler creates a new reconciler. events may be nil.
func NewReconciler(orders ports.OrderStore, events ports.EventPublisher) *Reconciler {
	return &Reconciler{orders: orders, events: events}
}

// Reconcile maps a verified notification to its order and applies at most one
// guarded status transition. Replays and notifications for terminal orders are
// acknowledged without side effects.
func (r *Reconciler) Reconcile(ctx context.Context, brand domain.Brand, n *domain.Notification) (*domain.ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "Reconciler.Reconcile", trace.WithAttributes(
		attribute.String("gateway.id", brand.ID),
		attribute.String("order.id", n.CustomID),
		attribute.String("notification.status", n.Status),
	))
	defer span.End()

	result, err := r.reconcile(ctx, brand, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("reconcile.action", string(result.Action)))
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, brand domain.Brand, n *domain.Notification) (*domain.ReconcileResult, error) {
	order, err := r.orders.GetOrder(ctx, n.CustomID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		log.Printf("[Callback] %s notification for unknown order %q dropped", brand.ID, n.CustomID)
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrOrderNotFound,
			"order '"+n.CustomID+"' not found", "UNKNOWN_ORDER")
	}
	if err != nil {
		return nil, storeError("failed to load order", err)
	}

	reported := domain.NormalizeNotificationStatus(n.Status)
	target, note, handled := targetFor(reported, brand)
	if !handled {
		log.Printf("[Callback] unhandled %s status %q for order %s, ignoring", brand.ID, n.Status, order.ID)
		return &domain.ReconcileResult{
			OrderID:  order.ID,
			Action:   domain.ActionUnhandledStatus,
			Previous: order.Status,
			Current:  order.Status,
		}, nil
	}

	transition := domain.StatusTransition{OrderID: order.ID, To: target, Note: note}
	if target == domain.OrderCompleted {
		transition.PaymentReference = n.ProcessorOrderID
	}

	current := order.Status
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if current.IsTerminal() {
			if target == domain.OrderCompleted && current != domain.OrderCompleted {
				log.Printf("[Callback] WARNING: %s reports order %s completed but it is already %s; needs manual review",
					brand.DisplayName, order.ID, current)
			}
			action := domain.ActionAlreadyTerminal
			if attempt > 0 {
				action = domain.ActionDuplicate
			}
			return &domain.ReconcileResult{OrderID: order.ID, Action: action, Previous: current, Current: current}, nil
		}

		transition.From = current
		applied, err := r.orders.TransitionStatus(ctx, transition)
		if err != nil {
			return nil, storeError("failed to transition order", err)
		}
		if applied {
			log.Printf("[Callback] order %s: %s -> %s (%s)", order.ID, current, target, brand.ID)
			publishTransition(ctx, r.events, "[Callback]", brand.ID, transition)
			return &domain.ReconcileResult{OrderID: order.ID, Action: domain.ActionTransitioned, Previous: current, Current: target}, nil
		}

		// Someone else moved the order first; look again.
		current, err = r.orders.GetStatus(ctx, order.ID)
		if err != nil {
			return nil, storeError("failed to re-read order status", err)
		}
	}

	log.Printf("[Callback] order %s kept changing under %s notification, giving up as duplicate", order.ID, brand.ID)
	return &domain.ReconcileResult{OrderID: order.ID, Action: domain.ActionDuplicate, Previous: current, Current: current}, nil
}

// targetFor maps a normalized notification status to the order status it
// requests and the audit note that goes with it.
func targetFor(reported string, brand domain.Brand) (domain.OrderStatus, string, bool) {
	switch reported {
	case domain.NotificationCompleted:
		return domain.OrderCompleted, brand.DisplayName + " payment completed", true
	case domain.NotificationCanceled:
		return domain.OrderFailed, brand.DisplayName + " reports payment cancelled.", true
	}
	return "", "", false
}

func storeError(message string, err error) error {
	return domain.NewServiceError(domain.KindInternal, domain.ErrStoreFailure, message+": "+err.Error(), "STORE_ERROR")
}
