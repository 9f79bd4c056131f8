// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ProducerURL   string `env:"ATELIER_PRODUCER_URL" envDefault:"https://api.replicate.com"`
	ProducerToken string `env:"ATELIER_PRODUCER_TOKEN"`
	ProducerModel string `env:"ATELIER_PRODUCER_MODEL" envDefault:"google/imagen-4"`

	ChainRPCURL string `env:"ATELIER_CHAIN_RPC_URL" envDefault:"https://mainnet.helius-rpc.com"`
	ChainAPIKey string `env:"ATELIER_CHAIN_API_KEY"`
	Collection  string `env:"ATELIER_COLLECTION"`

	// AdminToken guards the webhook admin endpoints; empty disables them.
	AdminToken string `env:"ATELIER_ADMIN_TOKEN"`

	DailyCap int    `env:"ATELIER_DAILY_CAP" envDefault:"250"`
	Timezone string `env:"ATELIER_TIMEZONE" envDefault:"UTC"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DailyCap <= 0 {
		return nil, fmt.Errorf("ATELIER_DAILY_CAP must be positive, got %d", cfg.DailyCap)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("ATELIER_TIMEZONE: %w", err)
	}
	return &cfg, nil
}

// Location returns the reference timezone whose midnight bounds the day
// window. Load validated the name, so this cannot fail afterwards.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
