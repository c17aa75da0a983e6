package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/coinpay/internal/core/domain"
)

const testSecret = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b"

type callbackFixture struct {
	orders    *MockOrderStore
	settings  *MockSettingsStore
	events    *MockPublisher
	processor *MockProcessor
	svc       *CallbackService
}

func newCallbackFixture(t *testing.T, extra ...domain.Order) *callbackFixture {
	t.Helper()
	f := &callbackFixture{
		orders:    NewMockOrderStore(append([]domain.Order{pendingOrder("42")}, extra...)...),
		events:    &MockPublisher{},
		processor: NewMockProcessor("bihang", "Bihang"),
	}
	s := domain.DefaultGatewaySettings("bihang")
	s.CallbackSecret = testSecret
	f.settings = NewMockSettingsStore(s)

	gateways := NewGateways(f.processor)
	f.svc = NewCallbackService(
		gateways,
		NewSettingsService(f.settings, gateways),
		NewVerifier(),
		NewReconciler(f.orders, f.events),
	)
	return f
}

func (f *callbackFixture) deliver(secret, body string) (*domain.ReconcileResult, error) {
	return f.svc.HandleCallback(context.Background(), CallbackRequest{
		GatewayID:       "bihang",
		PresentedSecret: secret,
		Body:            []byte(body),
	})
}

func TestHandleCallback_CompletesPendingOrder(t *testing.T) {
	f := newCallbackFixture(t)

	result, err := f.deliver(testSecret, `{"id":"BH-9","custom":"42","status":"completed"}`)

	require.NoError(t, err)
	assert.Equal(t, domain.ActionTransitioned, result.Action)
	assert.Equal(t, domain.OrderCompleted, f.orders.Order("42").Status)
}

func TestHandleCallback_ReplayKeepsSingleNote(t *testing.T) {
	f := newCallbackFixture(t)
	body := `{"id":"BH-9","custom":"42","status":"completed"}`

	_, err := f.deliver(testSecret, body)
	require.NoError(t, err)
	result, err := f.deliver(testSecret, body)

	require.NoError(t, err)
	assert.Equal(t, domain.ActionAlreadyTerminal, result.Action)
	assert.Equal(t, domain.OrderCompleted, f.orders.Order("42").Status)
	assert.Len(t, f.orders.Notes("42"), 1)
	assert.Equal(t, 1, f.events.Count())
}

func TestHandleCallback_RejectsBadSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"wrong", "0000000000000000000000000000000000000000"},
		{"missing", ""},
		{"prefix", testSecret[:10]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCallbackFixture(t)

			_, err := f.deliver(tt.secret, `{"custom":"42","status":"completed"}`)

			require.Error(t, err)
			assert.Equal(t, domain.KindAuthentication, domain.KindOf(err))
			assert.Equal(t, domain.OrderPending, f.orders.Order("42").Status)
			assert.Zero(t, f.orders.TransitionCalls)
		})
	}
}

// wrongSecretBodies covers payloads the authentication gate must reject
// without looking at them.
var wrongSecretBodies = []string{
	`{"id":"BH-9","custom":"42","status":"completed"}`,
	`{"custom":"42","status":"canceled"}`,
	`not json at all`,
	``,
	"\xff\xfe\x00{\"custom\":\"42\"}",
	`{"custom":"42","status":"completed","pad":"` + strings.Repeat("A", 1<<20) + `"}`,
}

func assertRejectedUntouched(t *testing.T, f *callbackFixture, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, domain.KindAuthentication, domain.KindOf(err))
	assert.Zero(t, f.processor.ParseCalls)
	assert.Zero(t, f.orders.ReadCalls)
	assert.Zero(t, f.orders.TransitionCalls)
	assert.Zero(t, f.events.Count())
}

func TestHandleCallback_WrongSecretRejectsAnyBody(t *testing.T) {
	for i, body := range wrongSecretBodies {
		t.Run(fmt.Sprintf("body_%d", i), func(t *testing.T) {
			f := newCallbackFixture(t)

			_, err := f.deliver("0000000000000000000000000000000000000000", body)

			assertRejectedUntouched(t, f, err)
		})
	}
}

func FuzzHandleCallback_WrongSecret(f *testing.F) {
	for _, body := range wrongSecretBodies {
		f.Add("", body)
		f.Add(testSecret[:39], body)
	}
	f.Add(testSecret+"0", `{"custom":"42","status":"completed"}`)

	f.Fuzz(func(t *testing.T, secret, body string) {
		if secret == testSecret {
			t.Skip()
		}
		fx := newCallbackFixture(t)

		_, err := fx.deliver(secret, body)

		assertRejectedUntouched(t, fx, err)
	})
}

func TestHandleCallback_NoStoredSecretRejectsEverything(t *testing.T) {
	f := newCallbackFixture(t)
	f.settings = NewMockSettingsStore()
	gateways := NewGateways(f.processor)
	f.svc = NewCallbackService(gateways, NewSettingsService(f.settings, gateways), NewVerifier(), NewReconciler(f.orders, nil))

	_, err := f.deliver("", `{"custom":"42","status":"completed"}`)

	require.Error(t, err)
	assert.Equal(t, domain.KindAuthentication, domain.KindOf(err))
	assert.Equal(t, domain.OrderPending, f.orders.Order("42").Status)
}

func TestHandleCallback_UnknownOrder(t *testing.T) {
	f := newCallbackFixture(t)

	_, err := f.deliver(testSecret, `{"custom":"99","status":"canceled"}`)

	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Zero(t, f.orders.TransitionCalls)
}

func TestHandleCallback_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `status=completed`},
		{"empty", ``},
		{"missing order id", `{"status":"completed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCallbackFixture(t)

			_, err := f.deliver(testSecret, tt.body)

			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			assert.ErrorIs(t, err, domain.ErrMalformedNotification)
			assert.Zero(t, f.orders.TransitionCalls)
		})
	}
}

func TestHandleCallback_UnknownGateway(t *testing.T) {
	f := newCallbackFixture(t)

	_, err := f.svc.HandleCallback(context.Background(), CallbackRequest{
		GatewayID:       "paypal",
		PresentedSecret: testSecret,
		Body:            []byte(`{"custom":"42","status":"completed"}`),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownGateway)
}

func TestHandleCallback_DisabledGatewayStillSettles(t *testing.T) {
	f := newCallbackFixture(t)
	s := domain.DefaultGatewaySettings("bihang")
	s.Enabled = false
	require.NoError(t, f.settings.SaveSettings(context.Background(), s))

	result, err := f.deliver(testSecret, `{"custom":"42","status":"completed"}`)

	require.NoError(t, err)
	assert.Equal(t, domain.ActionTransitioned, result.Action)
}

func TestHandleCallback_ResolverSuppliesOrder(t *testing.T) {
	orders := NewMockOrderStore(pendingOrder("42"))
	s := domain.DefaultGatewaySettings("mercadopago")
	s.CallbackSecret = testSecret
	s.APIKey, s.APISecret = "TEST-key", "TEST-token"
	settings := NewMockSettingsStore(s)

	var gotCreds domain.Credentials
	processor := &MockResolvingProcessor{
		MockProcessor: NewMockProcessor("mercadopago", "Mercado Pago"),
		ResolveFunc: func(ctx context.Context, creds domain.Credentials, n *domain.Notification) (*domain.Notification, error) {
			gotCreds = creds
			if n.ProcessorOrderID == "" {
				return nil, domain.ErrIgnoredNotification
			}
			return &domain.Notification{CustomID: "42", ProcessorOrderID: n.ProcessorOrderID, Status: "completed"}, nil
		},
	}
	gateways := NewGateways(processor)
	svc := NewCallbackService(gateways, NewSettingsService(settings, gateways), NewVerifier(), NewReconciler(orders, nil))

	result, err := svc.HandleCallback(context.Background(), CallbackRequest{
		GatewayID:       "mercadopago",
		PresentedSecret: testSecret,
		Body:            []byte(`{"id":"123456"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionTransitioned, result.Action)
	assert.Equal(t, "TEST-key", gotCreds.APIKey)
	assert.Equal(t, "123456", orders.Order("42").PaymentReference)

	result, err = svc.HandleCallback(context.Background(), CallbackRequest{
		GatewayID:       "mercadopago",
		PresentedSecret: testSecret,
		Body:            []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionIgnored, result.Action)
}

func TestHandleCallback_ResolverFailureIsUpstream(t *testing.T) {
	orders := NewMockOrderStore(pendingOrder("42"))
	s := domain.DefaultGatewaySettings("mercadopago")
	s.CallbackSecret = testSecret
	processor := &MockResolvingProcessor{
		MockProcessor: NewMockProcessor("mercadopago", "Mercado Pago"),
		ResolveFunc: func(ctx context.Context, creds domain.Credentials, n *domain.Notification) (*domain.Notification, error) {
			return nil, ErrMockProcessor
		},
	}
	gateways := NewGateways(processor)
	svc := NewCallbackService(gateways, NewSettingsService(NewMockSettingsStore(s), gateways), NewVerifier(), NewReconciler(orders, nil))

	_, err := svc.HandleCallback(context.Background(), CallbackRequest{
		GatewayID:       "mercadopago",
		PresentedSecret: testSecret,
		Body:            []byte(`{"id":"1"}`),
	})

	require.Error(t, err)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))
	assert.Equal(t, domain.OrderPending, orders.Order("42").Status)
}
