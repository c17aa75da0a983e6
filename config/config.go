// Package config handles loading and managing application configuration.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Order and settings storage
	Store StoreConfig

	// Storefront backend (remote order store)
	Storefront StorefrontConfig

	// Security settings
	Security SecurityConfig

	// Processor endpoints per brand
	Processors ProcessorsConfig

	// Gateway settings seeded at startup, keyed by gateway id
	Gateways map[string]GatewaySeed

	Kafka     KafkaConfig
	Telemetry TelemetryConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          string
	GinMode       string // "debug", "release", or "test"
	PublicBaseURL string // base of the notify and return URLs handed to processors
}

// StoreConfig selects the order and settings storage.
type StoreConfig struct {
	Driver          string // "memory", "mysql" or "postgres"
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	OrderStore      string // "" (same as Driver) or "storefront"
}

// StorefrontConfig holds the storefront backend API configuration.
type StorefrontConfig struct {
	BaseURL          string
	APIKey           string
	OrderReceivedURL string // may contain {order_id}
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	ServiceAPIKey string // bearer token for the checkout API
}

// ProcessorsConfig holds the REST endpoints of the coin processors.
type ProcessorsConfig struct {
	BihangAPIBase string
	BihangWebBase string
	OklinkAPIBase string
	OklinkWebBase string
}

// GatewaySeed holds gateway settings provided through the environment.
type GatewaySeed struct {
	APIKey    string
	APISecret string
	Enabled   *bool // nil unless <GATEWAY>_ENABLED is set
}

// KafkaConfig holds the order event publisher configuration.
type KafkaConfig struct {
	Brokers          []string
	OrderEventsTopic string
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
}

// GatewayIDs are the gateways whose settings may be seeded from the environment.
var GatewayIDs = []string{"bihang", "oklink", "mercadopago"}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	return &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			GinMode:       getEnv("GIN_MODE", "debug"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Store: StoreConfig{
			Driver:          strings.ToLower(getEnv("STORE_DRIVER", "memory")),
			DSN:             getEnv("DATABASE_DSN", ""),
			MaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			MaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			ConnMaxLifetime: time.Duration(getEnvInt("DATABASE_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
			OrderStore:      strings.ToLower(getEnv("ORDER_STORE", "")),
		},
		Storefront: StorefrontConfig{
			BaseURL:          getEnv("STOREFRONT_URL", "http://localhost:8000"),
			APIKey:           getEnv("STOREFRONT_API_KEY", ""),
			OrderReceivedURL: getEnv("STOREFRONT_ORDER_RECEIVED_URL", "http://localhost:8000/checkout/order-received/{order_id}/"),
		},
		Security: SecurityConfig{
			ServiceAPIKey: getEnv("SERVICE_API_KEY", ""),
		},
		Processors: ProcessorsConfig{
			BihangAPIBase: getEnv("BIHANG_API_BASE", ""),
			BihangWebBase: getEnv("BIHANG_WEB_BASE", ""),
			OklinkAPIBase: getEnv("OKLINK_API_BASE", ""),
			OklinkWebBase: getEnv("OKLINK_WEB_BASE", ""),
		},
		Gateways: loadGatewaySeeds(),
		Kafka: KafkaConfig{
			Brokers:          getEnvList("KAFKA_BROKERS"),
			OrderEventsTopic: getEnv("KAFKA_ORDER_EVENTS_TOPIC", "orders.payments.v1"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  getEnv("SERVICE_NAME", "coinpay"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""),
		},
	}
}

// loadGatewaySeeds returns a seed for every gateway with an API key or secret set.
func loadGatewaySeeds() map[string]GatewaySeed {
	seeds := make(map[string]GatewaySeed)
	for _, id := range GatewayIDs {
		prefix := strings.ToUpper(id) + "_"
		seed := GatewaySeed{
			APIKey:    getEnv(prefix+"API_KEY", ""),
			APISecret: getEnv(prefix+"API_SECRET", ""),
			Enabled:   getEnvOptionalBool(prefix + "ENABLED"),
		}
		if seed.APIKey == "" && seed.APISecret == "" {
			continue
		}
		seeds[id] = seed
	}
	return seeds
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOptionalBool returns nil when the variable is unset or not a boolean.
func getEnvOptionalBool(key string) *bool {
	boolVal, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return nil
	}
	return &boolVal
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
