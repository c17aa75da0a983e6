package service

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"

	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
)

// ReturnService handles buyers coming back from a processor's hosted page.
type ReturnService struct {
	orders           ports.OrderStore
	gateways         *Gateways
	settings         *SettingsService
	events           ports.EventPublisher
	orderReceivedURL string // may contain {order_id}
}

// NewReturnService creates a new return service. orderReceivedURL is used
// when the order carries no return URL of its own. events may be nil.
func NewReturnService(orders ports.OrderStore, gateways *Gateways, settings *SettingsService, events ports.EventPublisher, orderReceivedURL string) *ReturnService {
	return &ReturnService{
		orders:           orders,
		gateways:         gateways,
		settings:         settings,
		events:           events,
		orderReceivedURL: orderReceivedURL,
	}
}

// HandleReturn marks the order failed when the buyer cancelled at the
// processor, then returns the storefront URL to redirect to. Only a return
// URL signed for this gateway and order can cancel; anything else, and
// requests without the return marker, only redirect.
func (s *ReturnService) HandleReturn(ctx context.Context, gatewayID string, query url.Values) (string, error) {
	processor, err := s.gateways.Lookup(gatewayID)
	if err != nil {
		return "", err
	}

	orderID := query.Get("order_id")
	if orderID == "" {
		orderID = query.Get("order[custom]")
	}
	if orderID == "" {
		return "", domain.NewServiceError(domain.KindValidation, domain.ErrOrderNotFound,
			"order_id is required", "VALIDATION_ERROR")
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return "", domain.NewServiceError(domain.KindValidation, domain.ErrOrderNotFound,
			"order '"+orderID+"' not found", "ORDER_NOT_FOUND")
	}
	if err != nil {
		return "", storeError("failed to load order", err)
	}

	if query.Has(ReturnMarker(gatewayID)) && query.Has("cancelled") && !order.Status.IsTerminal() {
		if err := s.cancel(ctx, processor.Brand(), order, query.Get(ReturnSignatureParam)); err != nil {
			return "", err
		}
	}

	return s.redirectFor(order), nil
}

func (s *ReturnService) cancel(ctx context.Context, brand domain.Brand, order *domain.Order, signature string) error {
	settings, err := s.settings.Load(ctx, brand.ID)
	if err != nil {
		return err
	}
	if !ValidReturnSignature(settings.CallbackSecret, brand.ID, order.ID, signature) {
		log.Printf("[Return] WARNING: unsigned or forged %s cancellation for order %s ignored", brand.ID, order.ID)
		return nil
	}

	transition := domain.StatusTransition{
		OrderID: order.ID,
		From:    order.Status,
		To:      domain.OrderFailed,
		Note:    "Customer cancelled " + brand.DisplayName + " payment",
	}
	applied, err := s.orders.TransitionStatus(ctx, transition)
	if err != nil {
		return storeError("failed to transition order", err)
	}
	if applied {
		log.Printf("[Return] order %s: %s -> %s (buyer cancelled at %s)", order.ID, order.Status, domain.OrderFailed, brand.ID)
		publishTransition(ctx, s.events, "[Return]", brand.ID, transition)
	}
	return nil
}

func (s *ReturnService) redirectFor(order *domain.Order) string {
	if order.ReturnURL != "" {
		return order.ReturnURL
	}
	return strings.ReplaceAll(s.orderReceivedURL, "{order_id}", url.PathEscape(order.ID))
}
