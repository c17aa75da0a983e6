package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/coinpay/internal/core/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "internal-key")
}

func TestGetOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "internal-key", r.Header.Get("X-Internal-API-Key"))
		switch r.URL.Path {
		case "/api/v1/internal/orders/42/":
			_, _ = w.Write([]byte(`{"id":"42","status":"pending","total_cents":1999,"currency":"CNY","return_url":"https://shop/thanks"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	order, err := c.GetOrder(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, int64(1999), order.TotalCents)
	assert.Equal(t, "https://shop/thanks", order.ReturnURL)

	_, err = c.GetOrder(context.Background(), "99")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestTransitionStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		applied bool
		wantErr error
	}{
		{"applied", http.StatusOK, true, nil},
		{"conflict", http.StatusConflict, false, nil},
		{"not found", http.StatusNotFound, false, domain.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got transitionRequest
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/internal/orders/42/transition/", r.URL.Path)
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
			})

			applied, err := c.TransitionStatus(context.Background(), domain.StatusTransition{
				OrderID: "42", From: domain.OrderPending, To: domain.OrderCompleted,
				Note: "Bihang payment completed", PaymentReference: "BH-1",
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.applied, applied)
			assert.Equal(t, domain.OrderPending, got.From)
			assert.Equal(t, domain.OrderCompleted, got.To)
			assert.Equal(t, "BH-1", got.PaymentReference)
		})
	}
}

func TestTransitionStatus_ServerErrorIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	_, err := c.TransitionStatus(context.Background(), domain.StatusTransition{OrderID: "1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestAddNote(t *testing.T) {
	var note map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/internal/orders/42/notes/", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&note)
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.AddNote(context.Background(), "42", "Error while processing Bihang payment: timeout"))
	assert.Equal(t, "Error while processing Bihang payment: timeout", note["note"])
}
