package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/coinpay/internal/core/domain"
)

func TestTransitionStatus_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	s.PutOrder(domain.Order{ID: "42", Status: domain.OrderPending})

	applied, err := s.TransitionStatus(ctx, domain.StatusTransition{
		OrderID: "42", From: domain.OrderPending, To: domain.OrderCompleted,
		Note: "paid", PaymentReference: "REF-1",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.TransitionStatus(ctx, domain.StatusTransition{
		OrderID: "42", From: domain.OrderPending, To: domain.OrderFailed,
		Note: "late", PaymentReference: "REF-2",
	})
	require.NoError(t, err)
	assert.False(t, applied)

	o, err := s.GetOrder(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, o.Status)
	assert.Equal(t, "REF-1", o.PaymentReference)
	assert.Equal(t, []string{"paid"}, s.Notes("42"))
}

func TestTransitionStatus_UnknownOrder(t *testing.T) {
	s := NewOrderStore()

	_, err := s.TransitionStatus(context.Background(), domain.StatusTransition{OrderID: "x"})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = s.GetStatus(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestTransitionStatus_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()
	s.PutOrder(domain.Order{ID: "1", Status: domain.OrderPending})

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := domain.OrderCompleted
			if i%2 == 0 {
				to = domain.OrderFailed
			}
			ok, err := s.TransitionStatus(ctx, domain.StatusTransition{OrderID: "1", From: domain.OrderPending, To: to, Note: "n"})
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Len(t, s.Notes("1"), 1)
}

func TestSettingsStore_CallbackSecret(t *testing.T) {
	ctx := context.Background()
	s := NewSettingsStore()

	_, err := s.GetSettings(ctx, "bihang")
	assert.ErrorIs(t, err, domain.ErrSettingsNotFound)

	got, err := s.SetCallbackSecretIfEmpty(ctx, "bihang", "first")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = s.SetCallbackSecretIfEmpty(ctx, "bihang", "second")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, s.SaveSettings(ctx, domain.GatewaySettings{GatewayID: "bihang", Enabled: true, Title: "BTC", APIKey: "k", APISecret: "s"}))
	gs, err := s.GetSettings(ctx, "bihang")
	require.NoError(t, err)
	assert.Equal(t, "first", gs.CallbackSecret)
	assert.Equal(t, "BTC", gs.Title)

	require.NoError(t, s.ReplaceCallbackSecret(ctx, "bihang", "rotated"))
	require.NoError(t, s.RecordAccountCheck(ctx, "bihang", "m@example.com", ""))
	gs, err = s.GetSettings(ctx, "bihang")
	require.NoError(t, err)
	assert.Equal(t, "rotated", gs.CallbackSecret)
	assert.Equal(t, "m@example.com", gs.AccountEmail)
	assert.Equal(t, "k", gs.APIKey)
}
