package mercadopago

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/coinpay/internal/adapters/memory"
	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/service"
)

type fakePayments struct {
	resp  *payment.Response
	err   error
	gotID int
}

func (f *fakePayments) Get(ctx context.Context, id int) (*payment.Response, error) {
	f.gotID = id
	return f.resp, f.err
}

func newTestAdapter(fake *fakePayments) *Adapter {
	return &Adapter{newPayments: func(string) (PaymentLookup, error) { return fake, nil }}
}

func TestParseNotification(t *testing.T) {
	a := NewAdapter()

	n, err := a.ParseNotification([]byte(`{"type":"payment","action":"payment.updated","data":{"id":"123456"}}`))
	require.NoError(t, err)
	assert.Equal(t, "123456", n.ProcessorOrderID)
	assert.Empty(t, n.CustomID)

	n, err = a.ParseNotification([]byte(`{"topic":"payment","data":{"id":987}}`))
	require.NoError(t, err)
	assert.Equal(t, "987", n.ProcessorOrderID)

	_, err = a.ParseNotification([]byte(`{"type":"merchant_order","data":{"id":"1"}}`))
	assert.ErrorIs(t, err, domain.ErrIgnoredNotification)

	_, err = a.ParseNotification([]byte(`{"type":"payment","data":{}}`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrIgnoredNotification)

	_, err = a.ParseNotification([]byte(`not json`))
	assert.Error(t, err)

	_, err = a.ParseNotification([]byte(`{"type":"payment","data":{"id":"abc"}}`))
	assert.ErrorContains(t, err, "invalid payment ID")
}

func TestRejectedPaymentThenApprovedRetryCompletesOrder(t *testing.T) {
	orders := memory.NewOrderStore()
	orders.PutOrder(domain.Order{ID: "42", Status: domain.OrderPending, TotalCents: 1000, Currency: "USD"})
	reconciler := service.NewReconciler(orders, nil)
	fake := &fakePayments{}
	a := newTestAdapter(fake)
	creds := domain.Credentials{APIKey: "pk", APISecret: "token"}

	deliver := func(paymentID, mpStatus string) *domain.ReconcileResult {
		t.Helper()
		fake.resp = &payment.Response{Status: mpStatus, ExternalReference: "42"}
		parsed, err := a.ParseNotification([]byte(`{"type":"payment","data":{"id":"` + paymentID + `"}}`))
		require.NoError(t, err)
		n, err := a.ResolveNotification(context.Background(), creds, parsed)
		require.NoError(t, err)
		result, err := reconciler.Reconcile(context.Background(), a.Brand(), n)
		require.NoError(t, err)
		return result
	}

	rejected := deliver("1001", "rejected")
	assert.Equal(t, domain.ActionUnhandledStatus, rejected.Action)
	status, err := orders.GetStatus(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, status)

	approved := deliver("1002", "approved")
	assert.Equal(t, domain.ActionTransitioned, approved.Action)
	order, err := orders.GetOrder(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, order.Status)
	assert.Equal(t, "1002", order.PaymentReference)
}

func TestResolveNotification(t *testing.T) {
	tests := []struct {
		mpStatus string
		want     string
	}{
		{"approved", domain.NotificationCompleted},
		{"cancelled", domain.NotificationCanceled},
		{"refunded", domain.NotificationCanceled},
		{"charged_back", domain.NotificationCanceled},
		{"rejected", "rejected"},
		{"in_process", "in_process"},
	}

	for _, tt := range tests {
		t.Run(tt.mpStatus, func(t *testing.T) {
			fake := &fakePayments{resp: &payment.Response{Status: tt.mpStatus, ExternalReference: "42"}}
			a := newTestAdapter(fake)

			n, err := a.ResolveNotification(context.Background(),
				domain.Credentials{APIKey: "pk", APISecret: "token"},
				&domain.Notification{ProcessorOrderID: "555"})

			require.NoError(t, err)
			assert.Equal(t, 555, fake.gotID)
			assert.Equal(t, "42", n.CustomID)
			assert.Equal(t, "555", n.ProcessorOrderID)
			assert.Equal(t, tt.want, n.Status)
		})
	}
}

func TestResolveNotification_Errors(t *testing.T) {
	a := newTestAdapter(&fakePayments{err: errors.New("404 not found")})

	_, err := a.ResolveNotification(context.Background(), domain.Credentials{}, &domain.Notification{ProcessorOrderID: "abc"})
	assert.ErrorContains(t, err, "invalid payment ID")

	_, err = a.ResolveNotification(context.Background(), domain.Credentials{}, &domain.Notification{ProcessorOrderID: "1"})
	assert.ErrorContains(t, err, "404 not found")
}

func TestWithCancelled(t *testing.T) {
	got := withCancelled("https://shop.example.com/payments/return/mercadopago?order_id=42&return_from_mercadopago=1")

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "1", u.Query().Get("cancelled"))
	assert.Equal(t, "42", u.Query().Get("order_id"))
	assert.Equal(t, "1", u.Query().Get("return_from_mercadopago"))
}
