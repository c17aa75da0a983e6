package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fitstack/coinpay/internal/core/domain"
)

// SettingsStore implements ports.GatewaySettingsStore.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore creates a settings store on db.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (r *SettingsStore) GetSettings(ctx context.Context, gatewayID string) (*domain.GatewaySettings, error) {
	var g GatewaySetting
	err := r.db.WithContext(ctx).Where("gateway_id = ?", gatewayID).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}
	return g.toDomain(), nil
}

func (r *SettingsStore) SaveSettings(ctx context.Context, s domain.GatewaySettings) error {
	row := settingFromDomain(s)
	row.CallbackSecret = ""
	row.AccountEmail = ""
	row.AccountError = ""
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "title", "description", "api_key", "api_secret", "updated_at"}),
	}).Create(&row).Error
}

// ensureRow inserts the default settings for gatewayID if no row exists.
func ensureRow(tx *gorm.DB, gatewayID string) error {
	row := settingFromDomain(domain.DefaultGatewaySettings(gatewayID))
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *SettingsStore) SetCallbackSecretIfEmpty(ctx context.Context, gatewayID, secret string) (string, error) {
	var stored string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRow(tx, gatewayID); err != nil {
			return err
		}
		if err := tx.Model(&GatewaySetting{}).
			Where("gateway_id = ? AND callback_secret = ''", gatewayID).
			Update("callback_secret", secret).Error; err != nil {
			return err
		}
		var g GatewaySetting
		if err := tx.Select("callback_secret").Where("gateway_id = ?", gatewayID).First(&g).Error; err != nil {
			return err
		}
		stored = g.CallbackSecret
		return nil
	})
	return stored, err
}

func (r *SettingsStore) ReplaceCallbackSecret(ctx context.Context, gatewayID, secret string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRow(tx, gatewayID); err != nil {
			return err
		}
		return tx.Model(&GatewaySetting{}).Where("gateway_id = ?", gatewayID).Update("callback_secret", secret).Error
	})
}

func (r *SettingsStore) RecordAccountCheck(ctx context.Context, gatewayID, email, errMsg string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRow(tx, gatewayID); err != nil {
			return err
		}
		return tx.Model(&GatewaySetting{}).Where("gateway_id = ?", gatewayID).Updates(map[string]any{
			"account_email": email,
			"account_error": errMsg,
		}).Error
	})
}
