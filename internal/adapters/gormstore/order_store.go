package gormstore

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// OrderStore implements ports.OrderStore.
type OrderStore struct {
	db *gorm.DB
}

// NewOrderStore creates an order store on db.
func NewOrderStore(db *gorm.DB) *OrderStore {
	return &OrderStore{db: db}
}

// CreateOrder inserts a new order.
func (r *OrderStore) CreateOrder(ctx context.Context, o domain.Order) error {
	return r.db.WithContext(ctx).Create(&Order{
		ID:               o.ID,
		Status:           string(o.Status),
		TotalCents:       o.TotalCents,
		Currency:         o.Currency,
		PaymentReference: o.PaymentReference,
		ReturnURL:        o.ReturnURL,
	}).Error
}

func (r *OrderStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var o Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return o.toDomain(), nil
}

func (r *OrderStore) GetStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	var o Order
	err := r.db.WithContext(ctx).Select("status").Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return domain.OrderStatus(o.Status), nil
}

// TransitionStatus is a single conditional UPDATE; the note is written in the
// same transaction only when the update matched.
func (r *OrderStore) TransitionStatus(ctx context.Context, t domain.StatusTransition) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Order{}).
			Where("id = ? AND status = ?", t.OrderID, string(t.From)).
			Updates(map[string]any{
				"status": string(t.To),
				"payment_reference": gorm.Expr(
					"CASE WHEN payment_reference = '' THEN ? ELSE payment_reference END", t.PaymentReference),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		if t.Note == "" {
			return nil
		}
		return tx.Create(&OrderNote{OrderID: t.OrderID, Note: t.Note}).Error
	})
	if err != nil {
		log.Printf("[DB] transition of order %s failed: %v", t.OrderID, err)
		return false, err
	}
	if !applied {
		if _, err := r.GetStatus(ctx, t.OrderID); err != nil {
			return false, err
		}
	}
	return applied, nil
}

func (r *OrderStore) AddNote(ctx context.Context, orderID, note string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrOrderNotFound
	}
	return r.db.WithContext(ctx).Create(&OrderNote{OrderID: orderID, Note: note}).Error
}

// Notes returns the audit notes of an order, oldest first.
func (r *OrderStore) Notes(ctx context.Context, orderID string) ([]string, error) {
	var notes []OrderNote
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&notes).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Note)
	}
	return out, nil
}
