// Package storefront provides an HTTP order store backed by the storefront
// backend's internal API.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// Client implements ports.OrderStore.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new storefront backend client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) orderURL(orderID, suffix string) string {
	return fmt.Sprintf("%s/api/v1/internal/orders/%s/%s", c.baseURL, url.PathEscape(orderID), suffix)
}

// GetOrder fetches an order.
// GET /api/v1/internal/orders/:id/
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	resp, err := c.send(ctx, http.MethodGet, c.orderURL(orderID, ""), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrOrderNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	return &order, nil
}

func (c *Client) GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	order, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}

type transitionRequest struct {
	From             domain.OrderStatus `json:"from"`
	To               domain.OrderStatus `json:"to"`
	Note             string             `json:"note,omitempty"`
	PaymentReference string             `json:"payment_reference,omitempty"`
}

// TransitionStatus asks the storefront to move the order. The storefront
// answers 409 when the order is no longer in the expected status.
// POST /api/v1/internal/orders/:id/transition/
func (c *Client) TransitionStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	body, err := json.Marshal(transitionRequest{
		From:             t.From,
		To:               t.To,
		Note:             t.Note,
		PaymentReference: t.PaymentReference,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal transition: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, c.orderURL(t.OrderID, "transition/"), body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return false, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, domain.ErrOrderNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, statusError(resp)
	}
	return true, nil
}

// AddNote appends an order note.
// POST /api/v1/internal/orders/:id/notes/
func (c *Client) AddNote(ctx context.Context, orderID, note string) error {
	body, err := json.Marshal(map[string]string{"note": note})
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, c.orderURL(orderID, "notes/"), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrOrderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storefront request failed: %w", err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("storefront returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
