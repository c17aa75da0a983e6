package service

import (
	"context"
	"errors"
	"log"

	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
)

// SettingsService reads gateway settings and owns the callback secret lifecycle.
type SettingsService struct {
	store     ports.GatewaySettingsStore
	gateways  *Gateways
	newSecret func() (string, error)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store ports.GatewaySettingsStore, gateways *Gateways) *SettingsService {
	return &SettingsService{
		store:     store,
		gateways:  gateways,
		newSecret: NewCallbackSecret,
	}
}

// Load returns the settings of a registered gateway, falling back to defaults
// when the gateway was never configured.
func (s *SettingsService) Load(ctx context.Context, gatewayID string) (*domain.GatewaySettings, error) {
	if _, err := s.gateways.Lookup(gatewayID); err != nil {
		return nil, err
	}
	settings, err := s.store.GetSettings(ctx, gatewayID)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		defaults := domain.DefaultGatewaySettings(gatewayID)
		return &defaults, nil
	}
	if err != nil {
		return nil, domain.NewServiceError(domain.KindInternal, domain.ErrStoreFailure,
			"failed to load gateway settings: "+err.Error(), "STORE_ERROR")
	}
	return settings, nil
}

// EnsureCallbackSecret returns the gateway's callback secret, generating it on
// first use. An existing secret is never replaced.
func (s *SettingsService) EnsureCallbackSecret(ctx context.Context, gatewayID string) (string, error) {
	settings, err := s.Load(ctx, gatewayID)
	if err != nil {
		return "", err
	}
	if settings.CallbackSecret != "" {
		return settings.CallbackSecret, nil
	}

	candidate, err := s.newSecret()
	if err != nil {
		return "", domain.NewServiceError(domain.KindInternal, err, "failed to generate callback secret", "SECRET_ERROR")
	}
	stored, err := s.store.SetCallbackSecretIfEmpty(ctx, gatewayID, candidate)
	if err != nil {
		return "", domain.NewServiceError(domain.KindInternal, domain.ErrStoreFailure,
			"failed to store callback secret: "+err.Error(), "STORE_ERROR")
	}
	if stored == candidate {
		log.Printf("[Settings] generated callback secret for gateway %s", gatewayID)
	}
	return stored, nil
}

// RotateCallbackSecret replaces the callback secret. Notify URLs registered
// with the processor before the rotation stop authenticating.
func (s *SettingsService) RotateCallbackSecret(ctx context.Context, gatewayID string) (string, error) {
	if _, err := s.gateways.Lookup(gatewayID); err != nil {
		return "", err
	}
	secret, err := s.newSecret()
	if err != nil {
		return "", domain.NewServiceError(domain.KindInternal, err, "failed to generate callback secret", "SECRET_ERROR")
	}
	if err := s.store.ReplaceCallbackSecret(ctx, gatewayID, secret); err != nil {
		return "", domain.NewServiceError(domain.KindInternal, domain.ErrStoreFailure,
			"failed to store callback secret: "+err.Error(), "STORE_ERROR")
	}
	log.Printf("[Settings] rotated callback secret for gateway %s", gatewayID)
	return secret, nil
}

// Configure saves the editable settings and validates the credentials against
// the processor, recording the account email or the validation error.
func (s *SettingsService) Configure(ctx context.Context, settings domain.GatewaySettings) (*domain.AccountInfo, error) {
	processor, err := s.gateways.Lookup(settings.GatewayID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, domain.NewServiceError(domain.KindInternal, domain.ErrStoreFailure,
			"failed to save gateway settings: "+err.Error(), "STORE_ERROR")
	}

	if !settings.Credentials().Complete() {
		const msg = "API key and API secret are required"
		if err := s.store.RecordAccountCheck(ctx, settings.GatewayID, "", msg); err != nil {
			log.Printf("[Settings] failed to record account check for %s: %v", settings.GatewayID, err)
		}
		return nil, domain.NewServiceError(domain.KindValidation, domain.ErrGatewayNotConfigured, msg, "GATEWAY_NOT_CONFIGURED")
	}

	account, err := processor.FetchAccountInfo(ctx, settings.Credentials())
	if err != nil {
		if recErr := s.store.RecordAccountCheck(ctx, settings.GatewayID, "", err.Error()); recErr != nil {
			log.Printf("[Settings] failed to record account check for %s: %v", settings.GatewayID, recErr)
		}
		return nil, domain.NewServiceError(domain.KindUpstream, domain.ErrProcessorFailure,
			"could not validate API key: "+err.Error(), "ACCOUNT_CHECK_FAILED")
	}

	if err := s.store.RecordAccountCheck(ctx, settings.GatewayID, account.Email, ""); err != nil {
		return nil, domain.NewServiceError(domain.KindInternal, domain.ErrStoreFailure,
			"failed to record account check: "+err.Error(), "STORE_ERROR")
	}
	log.Printf("[Settings] gateway %s connected to account %s", settings.GatewayID, account.Email)
	return account, nil
}

// ListEnabled returns the settings of every enabled gateway.
func (s *SettingsService) ListEnabled(ctx context.Context) ([]domain.GatewaySettings, error) {
	var out []domain.GatewaySettings
	for _, id := range s.gateways.IDs() {
		settings, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if settings.Enabled {
			out = append(out, *settings)
		}
	}
	return out, nil
}
