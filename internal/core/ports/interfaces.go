// Package ports defines the interfaces (ports) for the payment service.
// These are contracts that adapters must implement.
package ports

import (
	"context"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// OrderStore is the external order system.
type OrderStore interface {
	// GetOrder returns domain.ErrOrderNotFound for unknown ids.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetStatus reads only the current status.
	GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error)

	// TransitionStatus atomically moves the order from t.From to t.To, appends
	// t.Note and attaches t.PaymentReference if the order has none. It returns
	// false without changing anything when the current status is not t.From.
	TransitionStatus(ctx context.Context, t domain.StatusTransition) (bool, error)

	// AddNote appends an audit note without touching the status.
	AddNote(ctx context.Context, orderID, note string) error
}

// GatewaySettingsStore persists per-gateway configuration.
type GatewaySettingsStore interface {
	// GetSettings returns domain.ErrSettingsNotFound for gateways never saved.
	GetSettings(ctx context.Context, gatewayID string) (*domain.GatewaySettings, error)

	// SaveSettings stores the editable fields (enabled, title, description,
	// API key and secret). The callback secret and account check are untouched.
	SaveSettings(ctx context.Context, s domain.GatewaySettings) error

	// SetCallbackSecretIfEmpty stores secret only when none is set and returns
	// whichever value is stored afterwards.
	SetCallbackSecretIfEmpty(ctx context.Context, gatewayID, secret string) (string, error)

	// ReplaceCallbackSecret unconditionally overwrites the callback secret.
	ReplaceCallbackSecret(ctx context.Context, gatewayID, secret string) error

	// RecordAccountCheck stores the result of the last credential validation.
	RecordAccountCheck(ctx context.Context, gatewayID, email, errMsg string) error
}

// Processor is one payment processor capability (one brand).
type Processor interface {
	Brand() domain.Brand

	// CreatePaymentRequest registers a hosted payment and returns where to send the buyer.
	CreatePaymentRequest(ctx context.Context, creds domain.Credentials, params domain.PaymentRequestParams) (*domain.PaymentRequestResult, error)

	// FetchAccountInfo validates credentials against the processor.
	FetchAccountInfo(ctx context.Context, creds domain.Credentials) (*domain.AccountInfo, error)

	// ParseNotification decodes a callback body. It performs no I/O.
	ParseNotification(body []byte) (*domain.Notification, error)
}

// NotificationResolver is implemented by processors whose callbacks only carry a
// resource id and must be looked up before reconciliation.
type NotificationResolver interface {
	ResolveNotification(ctx context.Context, creds domain.Credentials, n *domain.Notification) (*domain.Notification, error)
}

// EventPublisher announces committed order payment transitions.
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.OrderEvent) error
}
