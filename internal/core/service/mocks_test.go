package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// Common test errors
var (
	ErrMockStore     = errors.New("mock store error")
	ErrMockProcessor = errors.New("mock processor error")
	ErrMockPublish   = errors.New("mock publish error")
)

// MockOrderStore is a map-backed OrderStore with call counters and hooks.
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	notes  map[string][]string

	GetErr           error
	TransitionErr    error
	BeforeTransition func(t domain.StatusTransition) // runs before the compare-and-set, lock not held

	ReadCalls       int
	TransitionCalls int
}

func NewMockOrderStore(orders ...domain.Order) *MockOrderStore {
	m := &MockOrderStore{
		orders: make(map[string]*domain.Order),
		notes:  make(map[string][]string),
	}
	for i := range orders {
		o := orders[i]
		m.orders[o.ID] = &o
	}
	return m
}

func (m *MockOrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderStore) GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	o, err := m.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

func (m *MockOrderStore) TransitionStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	if m.BeforeTransition != nil {
		m.BeforeTransition(t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionCalls++
	if m.TransitionErr != nil {
		return false, m.TransitionErr
	}
	o, ok := m.orders[t.OrderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != t.From {
		return false, nil
	}
	o.Status = t.To
	if o.PaymentReference == "" {
		o.PaymentReference = t.PaymentReference
	}
	if t.Note != "" {
		m.notes[t.OrderID] = append(m.notes[t.OrderID], t.Note)
	}
	return true, nil
}

func (m *MockOrderStore) AddNote(ctx context.Context, orderID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[orderID] = append(m.notes[orderID], note)
	return nil
}

// SetStatus forces a status, bypassing the compare-and-set.
func (m *MockOrderStore) SetStatus(orderID string, status domain.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderID].Status = status
}

func (m *MockOrderStore) Order(orderID string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[orderID]
}

func (m *MockOrderStore) Notes(orderID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notes[orderID]...)
}

// MockSettingsStore implements GatewaySettingsStore in memory.
type MockSettingsStore struct {
	mu       sync.Mutex
	settings map[string]domain.GatewaySettings
	GetErr   error
}

func NewMockSettingsStore(settings ...domain.GatewaySettings) *MockSettingsStore {
	m := &MockSettingsStore{settings: make(map[string]domain.GatewaySettings)}
	for _, s := range settings {
		m.settings[s.GatewayID] = s
	}
	return m
}

func (m *MockSettingsStore) GetSettings(ctx context.Context, gatewayID string) (*domain.GatewaySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.settings[gatewayID]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	return &s, nil
}

func (m *MockSettingsStore) SaveSettings(ctx context.Context, s domain.GatewaySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.settings[s.GatewayID]
	if !ok {
		cur = domain.GatewaySettings{GatewayID: s.GatewayID}
	}
	cur.Enabled = s.Enabled
	cur.Title = s.Title
	cur.Description = s.Description
	cur.APIKey = s.APIKey
	cur.APISecret = s.APISecret
	m.settings[s.GatewayID] = cur
	return nil
}

func (m *MockSettingsStore) SetCallbackSecretIfEmpty(ctx context.Context, gatewayID, secret string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.settings[gatewayID]
	if !ok {
		cur = domain.DefaultGatewaySettings(gatewayID)
	}
	if cur.CallbackSecret == "" {
		cur.CallbackSecret = secret
		m.settings[gatewayID] = cur
	}
	return cur.CallbackSecret, nil
}

func (m *MockSettingsStore) ReplaceCallbackSecret(ctx context.Context, gatewayID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.settings[gatewayID]
	if !ok {
		cur = domain.DefaultGatewaySettings(gatewayID)
	}
	cur.CallbackSecret = secret
	m.settings[gatewayID] = cur
	return nil
}

func (m *MockSettingsStore) RecordAccountCheck(ctx context.Context, gatewayID, email, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.settings[gatewayID]
	cur.AccountEmail = email
	cur.AccountError = errMsg
	m.settings[gatewayID] = cur
	return nil
}

// MockProcessor implements Processor. ParseNotification decodes JSON.
type MockProcessor struct {
	brand       domain.Brand
	CreateFunc  func(ctx context.Context, creds domain.Credentials, params domain.PaymentRequestParams) (*domain.PaymentRequestResult, error)
	AccountFunc func(ctx context.Context, creds domain.Credentials) (*domain.AccountInfo, error)

	mu          sync.Mutex
	CreateCalls int
	ParseCalls  int
	LastParams  domain.PaymentRequestParams
}

func NewMockProcessor(id, displayName string) *MockProcessor {
	return &MockProcessor{brand: domain.Brand{ID: id, DisplayName: displayName}}
}

func (m *MockProcessor) Brand() domain.Brand { return m.brand }

func (m *MockProcessor) CreatePaymentRequest(ctx context.Context, creds domain.Credentials, params domain.PaymentRequestParams) (*domain.PaymentRequestResult, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.LastParams = params
	m.mu.Unlock()
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, creds, params)
	}
	return &domain.PaymentRequestResult{
		Reference:   "btn-1",
		RedirectURL: "https://pay.example.com/checkout?buttonid=btn-1",
	}, nil
}

func (m *MockProcessor) FetchAccountInfo(ctx context.Context, creds domain.Credentials) (*domain.AccountInfo, error) {
	if m.AccountFunc != nil {
		return m.AccountFunc(ctx, creds)
	}
	return &domain.AccountInfo{Email: "merchant@example.com"}, nil
}

func (m *MockProcessor) ParseNotification(body []byte) (*domain.Notification, error) {
	m.mu.Lock()
	m.ParseCalls++
	m.mu.Unlock()
	var n domain.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	n.Raw = body
	return &n, nil
}

// MockResolvingProcessor adds NotificationResolver to MockProcessor.
type MockResolvingProcessor struct {
	*MockProcessor
	ResolveFunc func(ctx context.Context, creds domain.Credentials, n *domain.Notification) (*domain.Notification, error)
}

func (m *MockResolvingProcessor) ResolveNotification(ctx context.Context, creds domain.Credentials, n *domain.Notification) (*domain.Notification, error) {
	return m.ResolveFunc(ctx, creds, n)
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Events []domain.OrderEvent
	Err    error
}

func (m *MockPublisher) Publish(ctx context.Context, evt domain.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, evt)
	return m.Err
}

func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}
