package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	ESignBaseURL       string `env:"ESIGN_BASE_URL"`
	ESignAPIKey        string `env:"ESIGN_API_KEY"`
	ESignProvider      string `env:"ESIGN_PROVIDER" envDefault:"leegality"`
	ESignWebhookSecret string `env:"ESIGN_WEBHOOK_SECRET"`

	StorageDir     string `env:"STORAGE_DIR" envDefault:"data/documents"`
	StorageBaseURL string `env:"STORAGE_BASE_URL" envDefault:"http://localhost:8080/documents"`

	OpsPasswordHash string `env:"OPS_PASSWORD_HASH"`

	DealDetailsTokenTTLHours   int `env:"DEAL_DETAILS_TOKEN_TTL_HOURS" envDefault:"168"`
	ContractReadyTokenTTLHours int `env:"CONTRACT_READY_TOKEN_TTL_HOURS" envDefault:"720"`

	ProviderTimeoutSeconds int `env:"PROVIDER_TIMEOUT_SECONDS" envDefault:"15"`
	DownloadTimeoutSeconds int `env:"DOWNLOAD_TIMEOUT_SECONDS" envDefault:"20"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) DealDetailsTokenTTL() time.Duration {
	return time.Duration(c.DealDetailsTokenTTLHours) * time.Hour
}

func (c *Config) ContractReadyTokenTTL() time.Duration {
	return time.Duration(c.ContractReadyTokenTTLHours) * time.Hour
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.OpsPasswordHash != "" {
		if !strings.HasPrefix(c.OpsPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.OpsPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.OpsPasswordHash, "$2y$") {
			return fmt.Errorf("OPS_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if isProduction {
		if err := validateSecret("ESIGN_WEBHOOK_SECRET", c.ESignWebhookSecret); err != nil {
			return err
		}

		if c.ESignAPIKey == "" {
			log.Warn().Msg("ESIGN_API_KEY is empty in production: provider calls will be rejected upstream")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if strings.HasPrefix(c.StorageBaseURL, "http://") {
			log.Warn().Msg("STORAGE_BASE_URL uses http:// in production: signed contract links will not be served over TLS")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
