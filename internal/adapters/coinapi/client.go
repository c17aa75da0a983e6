// Package coinapi implements the Processor port for the bihang and oklink
// merchant APIs, which share one REST protocol under different hosts.
package coinapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// Default endpoints. API bases end with a slash; paths are appended to them.
const (
	DefaultBihangAPIBase = "https://www.bihang.com/api/v1/"
	DefaultBihangWebBase = "https://www.bihang.com/"
	DefaultOklinkAPIBase = "https://www.oklink.com/api/v1/"
	DefaultOklinkWebBase = "https://www.oklink.com/"
)

// Endpoints are the brand-specific base URLs.
type Endpoints struct {
	APIBase string
	WebBase string
}

// Client implements ports.Processor for one brand.
type Client struct {
	brand      domain.Brand
	endpoints  Endpoints
	httpClient *http.Client
	nonces     *nonceSource
}

// NewClient creates a client for brand talking to endpoints.
func NewClient(brand domain.Brand, endpoints Endpoints) *Client {
	return &Client{
		brand:     brand,
		endpoints: normalize(endpoints),
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		nonces: &nonceSource{now: time.Now},
	}
}

// NewBihang creates the bihang processor. Empty endpoints fall back to the defaults.
func NewBihang(endpoints Endpoints) *Client {
	if endpoints.APIBase == "" {
		endpoints.APIBase = DefaultBihangAPIBase
	}
	if endpoints.WebBase == "" {
		endpoints.WebBase = DefaultBihangWebBase
	}
	return NewClient(domain.Brand{ID: "bihang", DisplayName: "Bihang"}, endpoints)
}

// NewOklink creates the oklink processor. Empty endpoints fall back to the defaults.
func NewOklink(endpoints Endpoints) *Client {
	if endpoints.APIBase == "" {
		endpoints.APIBase = DefaultOklinkAPIBase
	}
	if endpoints.WebBase == "" {
		endpoints.WebBase = DefaultOklinkWebBase
	}
	return NewClient(domain.Brand{ID: "oklink", DisplayName: "Oklink"}, endpoints)
}

func normalize(e Endpoints) Endpoints {
	if e.APIBase != "" && !strings.HasSuffix(e.APIBase, "/") {
		e.APIBase += "/"
	}
	if e.WebBase != "" && !strings.HasSuffix(e.WebBase, "/") {
		e.WebBase += "/"
	}
	return e
}

// Brand returns the processor brand.
func (c *Client) Brand() domain.Brand {
	return c.brand
}

type buttonRequest struct {
	Button domain.PaymentRequestParams `json:"button"`
}

type buttonResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
	Button  struct {
		ID string `json:"id"`
	} `json:"button"`
}

// CreatePaymentRequest creates a payment button and returns the hosted checkout URL.
// POST <api>/buttons
func (c *Client) CreatePaymentRequest(ctx context.Context, creds domain.Credentials, params domain.PaymentRequestParams) (*domain.PaymentRequestResult, error) {
	body, err := json.Marshal(buttonRequest{Button: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal button request: %w", err)
	}

	var out buttonResponse
	if err := c.do(ctx, creds, http.MethodPost, "buttons", body, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.Button.ID == "" {
		msg := strings.Join(out.Errors, "; ")
		if msg == "" {
			msg = "no button id returned"
		}
		return nil, fmt.Errorf("%s rejected payment request: %s", c.brand.DisplayName, msg)
	}

	return &domain.PaymentRequestResult{
		Reference:   out.Button.ID,
		RedirectURL: c.endpoints.WebBase + "merchant/mPayOrderStemp1.do?buttonid=" + out.Button.ID,
	}, nil
}

type userResponse struct {
	User struct {
		Email string `json:"email"`
	} `json:"user"`
}

// FetchAccountInfo returns the merchant account behind the credentials.
// GET <api>/users/user
func (c *Client) FetchAccountInfo(ctx context.Context, creds domain.Credentials) (*domain.AccountInfo, error) {
	var out userResponse
	if err := c.do(ctx, creds, http.MethodGet, "users/user", nil, &out); err != nil {
		return nil, err
	}
	if out.User.Email == "" {
		return nil, fmt.Errorf("%s returned no account email", c.brand.DisplayName)
	}
	return &domain.AccountInfo{Email: out.User.Email}, nil
}

func (c *Client) do(ctx context.Context, creds domain.Credentials, method, path string, body []byte, out any) error {
	if !creds.Complete() {
		return domain.ErrGatewayNotConfigured
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoints.APIBase+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	signRequest(req, creds.APIKey, creds.APISecret, c.nonces.next(), body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[CoinAPI] %s %s %s failed: %v", c.brand.ID, method, path, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d: %s", c.brand.DisplayName, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
