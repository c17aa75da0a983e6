package coinapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fitstack/coinpay/internal/core/domain"
)

type callbackBody struct {
	ID     json.RawMessage `json:"id"`
	Custom json.RawMessage `json:"custom"`
	Status string          `json:"status"`
}

// ParseNotification decodes an order callback. The processor echoes "custom"
// as given at button creation, which may arrive as a string or a number.
func (c *Client) ParseNotification(body []byte) (*domain.Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("body is not a JSON object")
	}

	var cb callbackBody
	if err := json.Unmarshal(trimmed, &cb); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	custom, err := scalar(cb.Custom)
	if err != nil {
		return nil, fmt.Errorf("invalid custom: %w", err)
	}
	if custom == "" {
		return nil, errors.New("missing custom")
	}
	id, err := scalar(cb.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}

	return &domain.Notification{
		CustomID:         custom,
		ProcessorOrderID: id,
		Status:           cb.Status,
		Raw:              body,
	}, nil
}

// scalar renders a JSON string or number as a string. Absent and null are empty.
func scalar(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", errors.New("expected string or number")
	}
	return n.String(), nil
}
