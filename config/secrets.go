package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a secret is not set.
var ErrSecretNotFound = errors.New("secret not found")

// Secret names read by LoadSecretsFromEnv.
const (
	SecretJWT           = "QUESTBOARD_JWT_SECRET"
	SecretRedisPassword = "QUESTBOARD_REDIS_PASSWORD"
	SecretSQLDSN        = "QUESTBOARD_SQL_DSN"
	SecretWebhook       = "QUESTBOARD_WEBHOOK_SECRET"
)

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from the process environment.
// KEY_FILE, when set, names a file holding the value (docker/k8s secrets).
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		b, err := os.ReadFile(path) // #nosec G304 - operator supplied path
		if err != nil {
			return "", fmt.Errorf("read secret %s: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

func (s EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// LoadSecretsFromEnv fills secrets from the environment secret store.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	return c.LoadSecrets(ctx, NewEnvironmentSecretStore())
}

// LoadSecrets fills the JWT secret, Redis password, SQL DSN and webhook secret
// from store. Missing secrets keep the current value.
func (c *Config) LoadSecrets(ctx context.Context, store SecretStore) error {
	targets := []struct {
		key string
		dst *string
	}{
		{SecretJWT, &c.Auth.JWTSecret},
		{SecretRedisPassword, &c.Storage.Redis.Password},
		{SecretSQLDSN, &c.Storage.SQL.DSN},
		{SecretWebhook, &c.Integrations.WebhookSecret},
	}
	for _, t := range targets {
		v, err := store.Get(ctx, t.key)
		switch {
		case err == nil:
			*t.dst = v
		case errors.Is(err, ErrSecretNotFound):
		default:
			return err
		}
	}
	return nil
}
