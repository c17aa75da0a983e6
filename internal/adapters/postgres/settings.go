package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fitstack/coinpay/internal/core/domain"
)

func (r *Repository) GetSettings(ctx context.Context, gatewayID string) (*domain.GatewaySettings, error) {
	query := `
        SELECT gateway_id, enabled, title, description, api_key, api_secret,
               callback_secret, account_email, account_error, updated_at
        FROM gateway_settings
        WHERE gateway_id = $1
    `
	var s domain.GatewaySettings
	err := r.DB.QueryRowContext(ctx, query, gatewayID).Scan(
		&s.GatewayID, &s.Enabled, &s.Title, &s.Description, &s.APIKey, &s.APISecret,
		&s.CallbackSecret, &s.AccountEmail, &s.AccountError, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway settings: %w", err)
	}
	return &s, nil
}

func (r *Repository) SaveSettings(ctx context.Context, s domain.GatewaySettings) error {
	query := `
        INSERT INTO gateway_settings (gateway_id, enabled, title, description, api_key, api_secret)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (gateway_id) DO UPDATE SET
            enabled = EXCLUDED.enabled,
            title = EXCLUDED.title,
            description = EXCLUDED.description,
            api_key = EXCLUDED.api_key,
            api_secret = EXCLUDED.api_secret,
            updated_at = CURRENT_TIMESTAMP
    `
	if _, err := r.DB.ExecContext(ctx, query, s.GatewayID, s.Enabled, s.Title, s.Description, s.APIKey, s.APISecret); err != nil {
		return fmt.Errorf("failed to save gateway settings: %w", err)
	}
	return nil
}

// SetCallbackSecretIfEmpty is a single upsert, so concurrent first use
// converges on whichever secret lands first.
func (r *Repository) SetCallbackSecretIfEmpty(ctx context.Context, gatewayID, secret string) (string, error) {
	d := domain.DefaultGatewaySettings(gatewayID)
	query := `
        INSERT INTO gateway_settings (gateway_id, enabled, title, description, callback_secret)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (gateway_id) DO UPDATE SET
            callback_secret = CASE WHEN gateway_settings.callback_secret = ''
                THEN EXCLUDED.callback_secret ELSE gateway_settings.callback_secret END
        RETURNING callback_secret
    `
	var stored string
	if err := r.DB.QueryRowContext(ctx, query, gatewayID, d.Enabled, d.Title, d.Description, secret).Scan(&stored); err != nil {
		return "", fmt.Errorf("failed to set callback secret: %w", err)
	}
	return stored, nil
}

func (r *Repository) ReplaceCallbackSecret(ctx context.Context, gatewayID, secret string) error {
	d := domain.DefaultGatewaySettings(gatewayID)
	query := `
        INSERT INTO gateway_settings (gateway_id, enabled, title, description, callback_secret)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (gateway_id) DO UPDATE SET
            callback_secret = EXCLUDED.callback_secret,
            updated_at = CURRENT_TIMESTAMP
    `
	if _, err := r.DB.ExecContext(ctx, query, gatewayID, d.Enabled, d.Title, d.Description, secret); err != nil {
		return fmt.Errorf("failed to replace callback secret: %w", err)
	}
	return nil
}

func (r *Repository) RecordAccountCheck(ctx context.Context, gatewayID, email, errMsg string) error {
	d := domain.DefaultGatewaySettings(gatewayID)
	query := `
        INSERT INTO gateway_settings (gateway_id, enabled, title, description, account_email, account_error)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (gateway_id) DO UPDATE SET
            account_email = EXCLUDED.account_email,
            account_error = EXCLUDED.account_error,
            updated_at = CURRENT_TIMESTAMP
    `
	if _, err := r.DB.ExecContext(ctx, query, gatewayID, d.Enabled, d.Title, d.Description, email, errMsg); err != nil {
		return fmt.Errorf("failed to record account check: %w", err)
	}
	return nil
}
