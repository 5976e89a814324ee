// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	DBPath     string `env:"DB_PATH" envDefault:"rent.db"`

	GatewayKeyID     string `env:"GATEWAY_KEY_ID"`
	GatewayKeySecret string `env:"GATEWAY_KEY_SECRET"`
	Currency         string `env:"CURRENCY" envDefault:"USD"`

	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	LinkTTL        time.Duration `env:"PAYMENT_LINK_TTL" envDefault:"24h"`

	// LinkRequestsPerMinute caps payment-link creation per process.
	LinkRequestsPerMinute float64 `env:"LINK_REQUESTS_PER_MINUTE" envDefault:"60"`

	// SweepInterval is how often the overdue sweep runs; 0 disables it.
	SweepInterval time.Duration `env:"OVERDUE_SWEEP_INTERVAL" envDefault:"1h"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
