package gormstore

import (
	"time"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// Order is the orders table.
type Order struct {
	ID               string    `gorm:"primaryKey;size:64" json:"id"`
	Status           string    `gorm:"size:32;not null;index" json:"status"`
	TotalCents       int64     `gorm:"not null" json:"total_cents"`
	Currency         string    `gorm:"size:8;not null" json:"currency"`
	PaymentReference string    `gorm:"size:128;not null;default:''" json:"payment_reference"`
	ReturnURL        string    `gorm:"size:512" json:"return_url"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o Order) toDomain() *domain.Order {
	return &domain.Order{
		ID:               o.ID,
		Status:           domain.OrderStatus(o.Status),
		TotalCents:       o.TotalCents,
		Currency:         o.Currency,
		PaymentReference: o.PaymentReference,
		ReturnURL:        o.ReturnURL,
	}
}

// OrderNote is an append-only audit note.
type OrderNote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   string    `gorm:"size:64;not null;index" json:"order_id"`
	Note      string    `gorm:"type:text" json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderNote) TableName() string {
	return "order_notes"
}

// GatewaySetting is the gateway_settings table, one row per gateway.
type GatewaySetting struct {
	GatewayID      string    `gorm:"primaryKey;size:32" json:"gateway"`
	Enabled        bool      `gorm:"not null" json:"enabled"`
	Title          string    `gorm:"size:255" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	APIKey         string    `gorm:"column:api_key;size:255" json:"-"`
	APISecret      string    `gorm:"column:api_secret;size:255" json:"-"`
	CallbackSecret string    `gorm:"size:64;not null;default:''" json:"-"`
	AccountEmail   string    `gorm:"size:255" json:"account_email"`
	AccountError   string    `gorm:"type:text" json:"account_error"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (GatewaySetting) TableName() string {
	return "gateway_settings"
}

func (g GatewaySetting) toDomain() *domain.GatewaySettings {
	return &domain.GatewaySettings{
		GatewayID:      g.GatewayID,
		Enabled:        g.Enabled,
		Title:          g.Title,
		Description:    g.Description,
		APIKey:         g.APIKey,
		APISecret:      g.APISecret,
		CallbackSecret: g.CallbackSecret,
		AccountEmail:   g.AccountEmail,
		AccountError:   g.AccountError,
		UpdatedAt:      g.UpdatedAt,
	}
}

func settingFromDomain(s domain.GatewaySettings) GatewaySetting {
	return GatewaySetting{
		GatewayID:      s.GatewayID,
		Enabled:        s.Enabled,
		Title:          s.Title,
		Description:    s.Description,
		APIKey:         s.APIKey,
		APISecret:      s.APISecret,
		CallbackSecret: s.CallbackSecret,
		AccountEmail:   s.AccountEmail,
		AccountError:   s.AccountError,
	}
}
