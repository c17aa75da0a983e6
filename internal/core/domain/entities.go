// Package domain contains the core business entities for the payment service.
// This is the innermost layer - no external dependencies.
package domain

import (
	"fmt"
	"time"
)

// Order is the core's view of a storefront order. The order store owns it;
// the core only reads it and requests guarded status transitions.
type Order struct {
	ID               string      `json:"id"`
	Status           OrderStatus `json:"status"`
	TotalCents       int64       `json:"total_cents"`
	Currency         string      `json:"currency"`
	PaymentReference string      `json:"payment_reference,omitempty"` // processor order id, set once
	ReturnURL        string      `json:"return_url,omitempty"`        // storefront order-received page
}

// FormatPrice renders minor units as the two-decimal price string processors expect.
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// StatusTransition is a compare-and-set request against the order store:
// the order moves From -> To only if its current status is still From.
type StatusTransition struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
	Note    string
	// PaymentReference is attached only when the order has none yet.
	PaymentReference string
}

// Notification is an inbound payment-status callback. It is untrusted until
// the Verifier accepts the request that carried it.
type Notification struct {
	CustomID         string `json:"custom"`
	ProcessorOrderID string `json:"id"`
	Status           string `json:"status"`
	Raw              []byte `json:"-"`
}

// PaymentRequestParams is the wire payload sent to a processor for one checkout.
// It is never persisted.
type PaymentRequestParams struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Currency    string `json:"price_currency"`
	CustomID    string `json:"custom"`
	CallbackURL string `json:"callback_url"`
	SuccessURL  string `json:"success_url"`
}

// PaymentRequestResult is a processor's answer to a payment request.
type PaymentRequestResult struct {
	Reference   string `json:"reference"`    // processor button / preference id
	RedirectURL string `json:"redirect_url"` // hosted payment page
}

// RedirectInstruction tells the storefront where to send the buyer.
type RedirectInstruction struct {
	OrderID     string `json:"order_id"`
	GatewayID   string `json:"gateway"`
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

// Credentials are the per-gateway processor API credentials.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Complete reports whether both key and secret are present.
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// AccountInfo is what a processor reports about the merchant account.
type AccountInfo struct {
	Email string `json:"email"`
}

// Brand identifies a processor capability.
type Brand struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// GatewaySettings holds the per-installation configuration of one gateway.
type GatewaySettings struct {
	GatewayID      string    `json:"gateway"`
	Enabled        bool      `json:"enabled"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	APIKey         string    `json:"-"`
	APISecret      string    `json:"-"`
	CallbackSecret string    `json:"-"`
	AccountEmail   string    `json:"account_email,omitempty"`
	AccountError   string    `json:"account_error,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Credentials returns the API credentials held in the settings.
func (s GatewaySettings) Credentials() Credentials {
	return Credentials{APIKey: s.APIKey, APISecret: s.APISecret}
}

// DefaultGatewaySettings returns the settings a gateway has before it is configured.
func DefaultGatewaySettings(gatewayID string) GatewaySettings {
	return GatewaySettings{
		GatewayID:   gatewayID,
		Enabled:     true,
		Title:       "Bitcoin",
		Description: "Pay with bitcoin, a virtual currency.",
	}
}

// ReconcileAction describes what the reconciler did with a notification.
type ReconcileAction string

const (
	ActionTransitioned    ReconcileAction = "transitioned"
	ActionAlreadyTerminal ReconcileAction = "already_terminal"
	ActionUnhandledStatus ReconcileAction = "unhandled_status"
	ActionDuplicate       ReconcileAction = "duplicate"
	ActionIgnored         ReconcileAction = "ignored"
)

// ReconcileResult is the acknowledged outcome of one callback.
type ReconcileResult struct {
	OrderID  string          `json:"order_id,omitempty"`
	Action   ReconcileAction `json:"action"`
	Previous OrderStatus     `json:"previous,omitempty"`
	Current  OrderStatus     `json:"current,omitempty"`
}

// Order event types published after a transition commits.
const (
	EventOrderPaid          = "OrderPaid"
	EventOrderPaymentFailed = "OrderPaymentFailed"
)

// OrderEvent is emitted once per committed payment transition.
type OrderEvent struct {
	Type             string      `json:"type"`
	OrderID          string      `json:"order_id"`
	GatewayID        string      `json:"gateway"`
	PaymentReference string      `json:"payment_reference,omitempty"`
	Status           OrderStatus `json:"status"`
}
