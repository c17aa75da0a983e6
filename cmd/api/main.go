// coinpay payment callback service
//
// This is the main entry point for the payment service. It wires up all
// dependencies with fx and serves the checkout, return and webhook endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"

	"github.com/fitstack/coinpay/config"
	"github.com/fitstack/coinpay/internal/bootstrap"
	"github.com/fitstack/coinpay/internal/core/ports"
	"github.com/fitstack/coinpay/internal/handlers"
	"github.com/fitstack/coinpay/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			loadConfig,
			newStores,
			newEventPublisher,
			bootstrap.Processors,
			bootstrap.NewServices,
			newPaymentHandler,
		),
		fx.Invoke(
			setupTelemetry,
			registerWebServer,
		),
	)

	app.Run()
}

func loadConfig() (*config.Config, error) {
	log.Println("Starting coinpay payment service...")
	cfg := config.Load()
	log.Printf("Configuration loaded: Port=%s, Store=%s, PublicBaseURL=%s", cfg.Server.Port, cfg.Store.Driver, cfg.Server.PublicBaseURL)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// validateConfig checks that required configuration values are set.
func validateConfig(cfg *config.Config) error {
	if cfg.Server.PublicBaseURL == "" {
		return fmt.Errorf("PUBLIC_BASE_URL is required")
	}
	if cfg.Store.Driver != "memory" && cfg.Store.DSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for STORE_DRIVER=%s", cfg.Store.Driver)
	}
	if cfg.Store.OrderStore == "storefront" && cfg.Storefront.APIKey == "" {
		log.Println("Warning: STOREFRONT_API_KEY not set")
	}
	if cfg.Security.ServiceAPIKey == "" {
		log.Println("Warning: SERVICE_API_KEY not set")
	}
	return nil
}

// newStores opens the configured stores, seeds gateway settings from the
// environment and closes the connections on stop.
func newStores(lc fx.Lifecycle, cfg *config.Config) (*bootstrap.Stores, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := bootstrap.SeedGatewaySettings(ctx, stores.Settings, cfg.Gateways); err != nil {
		_ = stores.Close()
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return stores.Close()
		},
	})
	return stores, nil
}

// newEventPublisher constructs the order event publisher and binds its lifecycle to fx.
func newEventPublisher(lc fx.Lifecycle, cfg *config.Config) ports.EventPublisher {
	publisher, closeFn := bootstrap.EventPublisher(cfg)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return closeFn()
		},
	})
	return publisher
}

func newPaymentHandler(svc *bootstrap.Services) *handlers.PaymentHandler {
	return handlers.NewPaymentHandler(svc.Gateways, svc.Settings, svc.Initiator, svc.Callbacks, svc.Returns)
}

func setupTelemetry(lc fx.Lifecycle, cfg *config.Config) {
	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
			return err
		},
		OnStop: func(ctx context.Context) error {
			if shutdown != nil {
				return shutdown(ctx)
			}
			return nil
		},
	})
}

func registerWebServer(lc fx.Lifecycle, cfg *config.Config, handler *handlers.PaymentHandler, shutdowner fx.Shutdowner) {
	router := handlers.SetupRouter(handler, cfg.Server.GinMode, cfg.Security.ServiceAPIKey)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           otelhttp.NewHandler(router, cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Printf("Server listening on %s", httpServer.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("Server error: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	})
}
