// Package memory provides in-process order and gateway settings stores for
// local development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fitstack/coinpay/internal/core/domain"
)

type orderRecord struct {
	order domain.Order
	notes []string
}

// OrderStore implements ports.OrderStore. A single mutex makes every
// transition an atomic compare-and-set.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*orderRecord
}

// NewOrderStore creates an empty order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*orderRecord)}
}

// PutOrder inserts or replaces an order.
func (s *OrderStore) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.orders[o.ID]; ok {
		rec.order = o
		return
	}
	s.orders[o.ID] = &orderRecord{order: o}
}

func (s *OrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o := rec.order
	return &o, nil
}

func (s *OrderStore) GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

func (s *OrderStore) TransitionStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.orders[t.OrderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if rec.order.Status != t.From {
		return false, nil
	}
	rec.order.Status = t.To
	if rec.order.PaymentReference == "" {
		rec.order.PaymentReference = t.PaymentReference
	}
	if t.Note != "" {
		rec.notes = append(rec.notes, t.Note)
	}
	return true, nil
}

func (s *OrderStore) AddNote(ctx context.Context, orderID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	rec.notes = append(rec.notes, note)
	return nil
}

// Notes returns the audit notes of an order, oldest first.
func (s *OrderStore) Notes(orderID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.orders[orderID]
	if !ok {
		return nil
	}
	return append([]string(nil), rec.notes...)
}

// SettingsStore implements ports.GatewaySettingsStore.
type SettingsStore struct {
	mu       sync.Mutex
	settings map[string]domain.GatewaySettings
	now      func() time.Time
}

// NewSettingsStore creates an empty settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		settings: make(map[string]domain.GatewaySettings),
		now:      time.Now,
	}
}

func (s *SettingsStore) GetSettings(ctx context.Context, gatewayID string) (*domain.GatewaySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs, ok := s.settings[gatewayID]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	return &gs, nil
}

// current returns the stored settings or the defaults. Callers hold mu.
func (s *SettingsStore) current(gatewayID string) domain.GatewaySettings {
	if gs, ok := s.settings[gatewayID]; ok {
		return gs
	}
	return domain.DefaultGatewaySettings(gatewayID)
}

func (s *SettingsStore) SaveSettings(ctx context.Context, in domain.GatewaySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.current(in.GatewayID)
	gs.Enabled = in.Enabled
	gs.Title = in.Title
	gs.Description = in.Description
	gs.APIKey = in.APIKey
	gs.APISecret = in.APISecret
	gs.UpdatedAt = s.now()
	s.settings[in.GatewayID] = gs
	return nil
}

func (s *SettingsStore) SetCallbackSecretIfEmpty(ctx context.Context, gatewayID, secret string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.current(gatewayID)
	if gs.CallbackSecret == "" {
		gs.CallbackSecret = secret
		gs.UpdatedAt = s.now()
		s.settings[gatewayID] = gs
	}
	return gs.CallbackSecret, nil
}

func (s *SettingsStore) ReplaceCallbackSecret(ctx context.Context, gatewayID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.current(gatewayID)
	gs.CallbackSecret = secret
	gs.UpdatedAt = s.now()
	s.settings[gatewayID] = gs
	return nil
}

func (s *SettingsStore) RecordAccountCheck(ctx context.Context, gatewayID, email, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gs := s.current(gatewayID)
	gs.AccountEmail = email
	gs.AccountError = errMsg
	gs.UpdatedAt = s.now()
	s.settings[gatewayID] = gs
	return nil
}
