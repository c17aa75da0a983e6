package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
)

// supportedCurrencies is the checkout currency allow-list.
var supportedCurrencies = map[string]bool{
	"USD": true,
	"CNY": true,
}

// SupportedCurrency reports whether checkout accepts currency.
func SupportedCurrency(currency string) bool {
	return supportedCurrencies[strings.ToUpper(currency)]
}

// Initiator turns an order into a hosted payment request.
type Initiator struct {
	orders        ports.OrderStore
	settings      *SettingsService
	gateways      *Gateways
	publicBaseURL string
}

// NewInitiator creates a new payment initiator.
func NewInitiator(orders ports.OrderStore, settings *SettingsService, gateways *Gateways, publicBaseURL string) *Initiator {
	return &Initiator{
		orders:        orders,
		settings:      settings,
		gateways:      gateways,
		publicBaseURL: publicBaseURL,
	}
}

// Initiate creates a payment request for orderID with the given gateway and
// returns where to send the buyer. Currency and credentials are checked before
// any processor call. On processor failure the order gets an audit note and
// stays pending.
func (i *Initiator) Initiate(ctx context.Context, gatewayID, orderID string) (*domain.RedirectInstruction, error) {
	ctx, span := tracer.Start(ctx, "Initiator.Initiate", trace.WithAttributes(
		attribute.String("gateway.id", gatewayID),
		attribute.String("order.id", orderID),
	))
	defer span.End()

	redirect, err := i.initiate(ctx, gatewayID, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return redirect, nil
}

func (i *Initiator) initiate(ctx context.Context, gatewayID, orderID string) (*domain.RedirectInstruction, error) {
	processor, err := i.gateways.Lookup(gatewayID)
	if err != nil {
		return nil, err
	}
	brand := processor.Brand()

	settings, err := i.settings.Load(ctx, gatewayID)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrGatewayDisabled,
			brand.DisplayName+" is disabled", "GATEWAY_DISABLED")
	}

	order, err := i.orders.GetOrder(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrOrderNotFound,
			"order '"+orderID+"' not found", "ORDER_NOT_FOUND")
	}
	if err != nil {
		return nil, storeError("failed to load order", err)
	}
	if order.Status.IsTerminal() {
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrOrderNotPayable,
			"order is already "+string(order.Status), "ORDER_NOT_PAYABLE")
	}

	if !SupportedCurrency(order.Currency) {
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrUnsupportedCurrency,
			brand.DisplayName+" only support USD and CNY", "UNSUPPORTED_CURRENCY")
	}
	creds := settings.Credentials()
	if !creds.Complete() {
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrGatewayNotConfigured,
			brand.DisplayName+" plugin not configured", "GATEWAY_NOT_CONFIGURED")
	}

	secret, err := i.settings.EnsureCallbackSecret(ctx, gatewayID)
	if err != nil {
		return nil, err
	}
	notifyURL, err := NotifyURL(i.publicBaseURL, gatewayID, secret)
	if err != nil {
		return nil, domain.NewServiceError(domain.KindInternal, err, "failed to build notify URL", "CONFIG_ERROR")
	}
	successURL, err := ReturnURL(i.publicBaseURL, gatewayID, order.ID, secret)
	if err != nil {
		return nil, domain.NewServiceError(domain.KindInternal, err, "failed to build return URL", "CONFIG_ERROR")
	}

	params := domain.PaymentRequestParams{
		Name:        "Order #" + order.ID,
		Price:       domain.FormatPrice(order.TotalCents),
		Currency:    strings.ToUpper(order.Currency),
		CustomID:    order.ID,
		CallbackURL: notifyURL,
		SuccessURL:  successURL,
	}

	result, err := processor.CreatePaymentRequest(ctx, creds, params)
	if err != nil {
		log.Printf("[Checkout] %s payment request for order %s failed: %v", gatewayID, order.ID, err)
		note := "Error while processing " + brand.DisplayName + " payment: " + err.Error()
		if noteErr := i.orders.AddNote(ctx, order.ID, note); noteErr != nil {
			log.Printf("[Checkout] failed to add note to order %s: %v", order.ID, noteErr)
		}
		return nil, domain.NewServiceError(domain.KindUpstream, domain.ErrProcessorFailure,
			"Sorry, but there was an error processing your order. Please try again or try a different payment method.",
			"GATEWAY_ERROR")
	}

	log.Printf("[Checkout] created %s payment request %s for order %s, amount: %s %s",
		gatewayID, result.Reference, order.ID, params.Price, params.Currency)

	return &domain.RedirectInstruction{
		OrderID:     order.ID,
		GatewayID:   gatewayID,
		Reference:   result.Reference,
		RedirectURL: result.RedirectURL,
	}, nil
}
