// Package bootstrap builds the adapters and services shared by the HTTP
// service and the operator CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fitstack/coinpay/config"
	"github.com/fitstack/coinpay/internal/adapters/coinapi"
	"github.com/fitstack/coinpay/internal/adapters/events"
	"github.com/fitstack/coinpay/internal/adapters/gormstore"
	"github.com/fitstack/coinpay/internal/adapters/memory"
	"github.com/fitstack/coinpay/internal/adapters/mercadopago"
	"github.com/fitstack/coinpay/internal/adapters/postgres"
	"github.com/fitstack/coinpay/internal/adapters/storefront"
	"github.com/fitstack/coinpay/internal/core/domain"
	"github.com/fitstack/coinpay/internal/core/ports"
	"github.com/fitstack/coinpay/internal/core/service"
)

// Stores holds the order and settings stores selected by configuration.
type Stores struct {
	Orders   ports.OrderStore
	Settings ports.GatewaySettingsStore
	closers  []func() error
}

// Close releases the underlying connections.
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenStores connects the configured store driver and, when ORDER_STORE is
// "storefront", routes order access to the storefront backend instead.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	stores := &Stores{}

	switch cfg.Store.Driver {
	case "memory", "":
		log.Println("[DB] using in-memory stores")
		stores.Orders = memory.NewOrderStore()
		stores.Settings = memory.NewSettingsStore()

	case "mysql":
		db, err := gormstore.Open(gormstore.Config{
			DSN:             cfg.Store.DSN,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		sqlDB, err := gormstore.Migrate(db)
		if err != nil {
			return nil, fmt.Errorf("MySQL: %w", err)
		}
		log.Println("[DB] Successfully connected to MySQL")
		stores.Orders = gormstore.NewOrderStore(db)
		stores.Settings = gormstore.NewSettingsStore(db)
		stores.closers = append(stores.closers, sqlDB.Close)

	case "postgres":
		db, err := postgres.Open(ctx, cfg.Store.DSN, cfg.Store.MaxOpenConns, cfg.Store.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		stores.Orders = repo
		stores.Settings = repo
		stores.closers = append(stores.closers, db.Close)

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}

	if cfg.Store.OrderStore == "storefront" {
		log.Printf("[DB] orders are read from the storefront at %s", cfg.Storefront.BaseURL)
		stores.Orders = storefront.NewClient(cfg.Storefront.BaseURL, cfg.Storefront.APIKey)
	}
	return stores, nil
}

// Processors returns every processor capability the service knows.
func Processors(cfg *config.Config) []ports.Processor {
	return []ports.Processor{
		coinapi.NewBihang(coinapi.Endpoints{
			APIBase: cfg.Processors.BihangAPIBase,
			WebBase: cfg.Processors.BihangWebBase,
		}),
		coinapi.NewOklink(coinapi.Endpoints{
			APIBase: cfg.Processors.OklinkAPIBase,
			WebBase: cfg.Processors.OklinkWebBase,
		}),
		mercadopago.NewAdapter(),
	}
}

// EventPublisher returns the Kafka producer, or a no-op publisher when no
// brokers are configured. The returned function closes the producer.
func EventPublisher(cfg *config.Config) (ports.EventPublisher, func() error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Println("[Kafka] KAFKA_BROKERS not set, order events are not published")
		return events.NoopPublisher{}, func() error { return nil }
	}
	producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrderEventsTopic)
	log.Printf("[Kafka] publishing order events to %s", cfg.Kafka.OrderEventsTopic)
	return producer, producer.Close
}

// Services bundles the core services.
type Services struct {
	Gateways  *service.Gateways
	Settings  *service.SettingsService
	Initiator *service.Initiator
	Callbacks *service.CallbackService
	Returns   *service.ReturnService
}

// NewServices wires the core services on top of the given stores.
func NewServices(cfg *config.Config, stores *Stores, processors []ports.Processor, publisher ports.EventPublisher) *Services {
	gateways := service.NewGateways(processors...)
	settings := service.NewSettingsService(stores.Settings, gateways)
	reconciler := service.NewReconciler(stores.Orders, publisher)

	return &Services{
		Gateways:  gateways,
		Settings:  settings,
		Initiator: service.NewInitiator(stores.Orders, settings, gateways, cfg.Server.PublicBaseURL),
		Callbacks: service.NewCallbackService(gateways, settings, service.NewVerifier(), reconciler),
		Returns:   service.NewReturnService(stores.Orders, gateways, settings, publisher, cfg.Storefront.OrderReceivedURL),
	}
}

// SeedGatewaySettings stores the API credentials provided in the environment,
// and the enabled flag when it is set there. Other settings, including the
// callback secret, are kept.
func SeedGatewaySettings(ctx context.Context, store ports.GatewaySettingsStore, seeds map[string]config.GatewaySeed) error {
	for gatewayID, seed := range seeds {
		current, err := store.GetSettings(ctx, gatewayID)
		if errors.Is(err, domain.ErrSettingsNotFound) {
			defaults := domain.DefaultGatewaySettings(gatewayID)
			current = &defaults
		} else if err != nil {
			return fmt.Errorf("failed to load %s settings: %w", gatewayID, err)
		}

		current.APIKey = seed.APIKey
		current.APISecret = seed.APISecret
		if seed.Enabled != nil {
			current.Enabled = *seed.Enabled
		}
		if err := store.SaveSettings(ctx, *current); err != nil {
			return fmt.Errorf("failed to seed %s settings: %w", gatewayID, err)
		}
		log.Printf("[Settings] seeded %s settings from environment (enabled=%t)", gatewayID, current.Enabled)
	}
	return nil
}
