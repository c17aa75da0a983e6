// Package mercadopago implements the Processor port using the official SDK.
package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/mercadopago/sdk-go/pkg/user"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// GatewayID is the id Mercado Pago is registered under.
const GatewayID = "mercadopago"

// PaymentLookup fetches a payment by id. It is satisfied by the SDK's payment client.
type PaymentLookup interface {
	Get(ctx context.Context, id int) (*payment.Response, error)
}

// Adapter implements ports.Processor and ports.NotificationResolver.
// The access token is the API secret; the API key holds the public key.
type Adapter struct {
	newPayments func(accessToken string) (PaymentLookup, error)
}

// NewAdapter creates a new Mercado Pago adapter.
func NewAdapter() *Adapter {
	return &Adapter{newPayments: sdkPayments}
}

func sdkPayments(accessToken string) (PaymentLookup, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, err
	}
	return payment.NewClient(cfg), nil
}

// Brand returns the processor brand.
func (a *Adapter) Brand() domain.Brand {
	return domain.Brand{ID: GatewayID, DisplayName: "Mercado Pago"}
}

// CreatePaymentRequest creates a Checkout Pro preference.
func (a *Adapter) CreatePaymentRequest(ctx context.Context, creds domain.Credentials, params domain.PaymentRequestParams) (*domain.PaymentRequestResult, error) {
	cfg, err := config.New(creds.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP config: %w", err)
	}

	price, err := strconv.ParseFloat(params.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", params.Price, err)
	}

	prefRequest := preference.Request{
		Items: []preference.ItemRequest{
			{
				Title:      params.Name,
				Quantity:   1,
				UnitPrice:  price,
				CurrencyID: params.Currency,
			},
		},
		ExternalReference: params.CustomID,
		AutoReturn:        "approved",
		BackURLs: &preference.BackURLsRequest{
			Success: params.SuccessURL,
			Failure: withCancelled(params.SuccessURL),
			Pending: params.SuccessURL,
		},
		NotificationURL: params.CallbackURL,
	}

	result, err := preference.NewClient(cfg).Create(ctx, prefRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to create preference: %w", err)
	}

	return &domain.PaymentRequestResult{
		Reference:   result.ID,
		RedirectURL: result.InitPoint,
	}, nil
}

// withCancelled tags a return URL so the buyer-return handler treats it as a cancellation.
func withCancelled(successURL string) string {
	u, err := url.Parse(successURL)
	if err != nil {
		return successURL
	}
	q := u.Query()
	q.Set("cancelled", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchAccountInfo validates the access token by reading the account owner.
func (a *Adapter) FetchAccountInfo(ctx context.Context, creds domain.Credentials) (*domain.AccountInfo, error) {
	cfg, err := config.New(creds.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP config: %w", err)
	}
	me, err := user.NewClient(cfg).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	return &domain.AccountInfo{Email: me.Email}, nil
}

type webhookBody struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseNotification decodes a webhook. Mercado Pago only sends the resource id,
// so the result carries no order id or status until it is resolved.
func (a *Adapter) ParseNotification(body []byte) (*domain.Notification, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	topic := wb.Type
	if topic == "" {
		topic = wb.Topic
	}
	if topic != "payment" {
		log.Printf("[MercadoPago] ignoring webhook type: %q", topic)
		return nil, domain.ErrIgnoredNotification
	}

	id := strings.Trim(string(wb.Data.ID), `"`)
	if id == "" || id == "null" {
		return nil, errors.New("missing data.id")
	}
	if _, err := strconv.Atoi(id); err != nil {
		return nil, fmt.Errorf("invalid payment ID format %q: %w", id, err)
	}
	return &domain.Notification{ProcessorOrderID: id, Raw: body}, nil
}

// ResolveNotification fetches the payment and maps it onto the order it pays for.
func (a *Adapter) ResolveNotification(ctx context.Context, creds domain.Credentials, n *domain.Notification) (*domain.Notification, error) {
	id, err := strconv.Atoi(n.ProcessorOrderID)
	if err != nil {
		return nil, fmt.Errorf("invalid payment ID format: %w", err)
	}
	payments, err := a.newPayments(creds.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create MP config: %w", err)
	}

	result, err := payments.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment info: %w", err)
	}

	return &domain.Notification{
		CustomID:         result.ExternalReference,
		ProcessorOrderID: n.ProcessorOrderID,
		Status:           mapPaymentStatus(result.Status),
		Raw:              n.Raw,
	}, nil
}

// mapPaymentStatus maps MP payment status to a notification status. A
// rejected payment is passed through: the buyer may retry on the same
// preference, so it must not fail the order.
func mapPaymentStatus(status string) string {
	switch status {
	case "approved":
		return domain.NotificationCompleted
	case "cancelled", "refunded", "charged_back":
		return domain.NotificationCanceled
	default:
		return status
	}
}
