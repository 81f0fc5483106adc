// Package config loads run-scoped configuration from the environment.
// Secrets (the blob decryption key and IV) only ever exist here and in
// the provisioner; they are never logged and never written to disk.
package config

import (
	"encoding/hex"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

// Config contains the per-run inputs supplied by the CI environment.
type Config struct {
	EncryptionKey string `env:"SKIFF_ENCRYPTION_KEY"`
	EncryptionIV  string `env:"SKIFF_ENCRYPTION_IV"`
	Branch        string `env:"SKIFF_BRANCH"`
	RunID         string `env:"SKIFF_RUN_ID"`
	WebhookURL    string `env:"SKIFF_WEBHOOK_URL"`
	LogLevel      int    `env:"SKIFF_LOG_LEVEL" envDefault:"1"`
}

// Load reads configuration from environment variables. A missing run id
// gets a generated one so every run is identifiable in notifications.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &cfg, nil
}

// DecryptionKey decodes the hex-encoded symmetric key. The error names
// the variable, never its value.
func (c *Config) DecryptionKey() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, fmt.Errorf("SKIFF_ENCRYPTION_KEY is not set")
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("SKIFF_ENCRYPTION_KEY is not valid hex")
	}
	return key, nil
}

// DecryptionIV decodes the hex-encoded IV. The error names the variable,
// never its value.
func (c *Config) DecryptionIV() ([]byte, error) {
	if c.EncryptionIV == "" {
		return nil, fmt.Errorf("SKIFF_ENCRYPTION_IV is not set")
	}
	iv, err := hex.DecodeString(c.EncryptionIV)
	if err != nil {
		return nil, fmt.Errorf("SKIFF_ENCRYPTION_IV is not valid hex")
	}
	return iv, nil
}
