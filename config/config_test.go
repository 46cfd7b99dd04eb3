package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questboard/adapters/sqlx"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "/api", cfg.Server.PathPrefix)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QUESTBOARD_SERVER_ADDR", ":9999")
	t.Setenv("QUESTBOARD_STORAGE_ADAPTER", "redis")
	t.Setenv("QUESTBOARD_STORAGE_REDIS_ADDR", "cache:6379")
	t.Setenv("QUESTBOARD_STORAGE_REDIS_DIAL_TIMEOUT", "2s")
	t.Setenv("QUESTBOARD_SECURITY_ADMIN_KEYS", "k1,k2")
	t.Setenv("QUESTBOARD_LOG_ATTRIBUTES", "service=questboard,region=eu")
	t.Setenv("QUESTBOARD_AUTH_TOKEN_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "redis", cfg.Storage.Adapter)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Storage.Redis.DialTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.AdminKeys)
	assert.Equal(t, map[string]string{"service": "questboard", "region": "eu"}, cfg.Logging.Attributes)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("QUESTBOARD_SERVER_READ_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questboard.json")
	content := `{
		"environment": "testing",
		"server": {"address": ":9090"},
		"storage": {"adapter": "file", "file": {"dir": "/tmp/qb"}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "file", cfg.Storage.Adapter)
	assert.Equal(t, "/tmp/qb", cfg.Storage.File.Dir)
	// untouched sections keep defaults
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)

	t.Setenv("QUESTBOARD_SERVER_ADDR", ":7070")
	cfg, err = LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
}

func TestLoadFromFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Address:           ":8080",
			ReadTimeout:       time.Second,
			WriteTimeout:      time.Second,
			IdleTimeout:       time.Second,
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   time.Second,
		},
		Storage: StorageConfig{Adapter: "memory"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Auth:    AuthConfig{TokenTTL: time.Hour},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid environment", mutate: func(c *Config) { c.Environment = "" }, wantErr: "environment cannot be empty"},
		{name: "invalid server timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, wantErr: "read_timeout"},
		{name: "unknown adapter", mutate: func(c *Config) { c.Storage.Adapter = "etcd" }, wantErr: "adapter must be one of"},
		{name: "file without dir", mutate: func(c *Config) { c.Storage.Adapter = "file" }, wantErr: "dir cannot be empty"},
		{name: "sql without dsn", mutate: func(c *Config) {
			c.Storage.Adapter = "sql"
			c.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverMySQL)
		}, wantErr: "dsn cannot be empty"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "level must be one of"},
		{name: "bad bcrypt cost", mutate: func(c *Config) { c.Auth.BcryptCost = 40 }, wantErr: "bcrypt_cost"},
		{name: "rate limit without rpm", mutate: func(c *Config) { c.Security.EnableRateLimit = true }, wantErr: "requests_per_minute"},
		{name: "bad webhook", mutate: func(c *Config) {
			c.Integrations.Webhooks = []string{"ftp://example.com"}
			c.Integrations.WebhookTimeout = time.Second
		}, wantErr: "webhooks[0]"},
		{name: "production short secret", mutate: func(c *Config) {
			c.Environment = EnvProduction
			c.Auth.JWTSecret = "short"
		}, wantErr: "jwt_secret must be at least 32 bytes"},
		{name: "production debug without admin keys", mutate: func(c *Config) {
			c.Environment = EnvProduction
			c.Auth.JWTSecret = strings.Repeat("s", 32)
			c.Security.EnableDebug = true
		}, wantErr: "enable_debug requires admin_keys"},
		{name: "production ok", mutate: func(c *Config) {
			c.Environment = EnvProduction
			c.Auth.JWTSecret = strings.Repeat("s", 32)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = ""
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment cannot be empty")
	assert.Contains(t, err.Error(), "format must be one of")
	assert.Contains(t, err.Error(), "; ")
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
				assert.Equal(t, tt.profileName, cfg.Profile)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestProductionProfileNeedsSecret(t *testing.T) {
	cfg, err := LoadProfile("production")
	require.NoError(t, err)
	cfg.Storage.SQL.DSN = "postgres://localhost/qb"
	assert.Error(t, cfg.Validate())

	t.Setenv(SecretJWT, strings.Repeat("x", 40))
	require.NoError(t, cfg.LoadSecretsFromEnv(context.Background()))
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithProfileEnv(t *testing.T) {
	t.Setenv("QUESTBOARD_PROFILE", "testing")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, 4, cfg.Auth.BcryptCost)

	t.Setenv("QUESTBOARD_PROFILE", "nope")
	_, err = Load()
	assert.Error(t, err)
}

func TestSecrets(t *testing.T) {
	store := NewEnvironmentSecretStore()
	ctx := context.Background()

	t.Setenv("TEST_SECRET_KEY", "test_secret_value")

	value, err := store.Get(ctx, "TEST_SECRET_KEY")
	assert.NoError(t, err)
	assert.Equal(t, "test_secret_value", value)

	_, err = store.Get(ctx, "NONEXISTENT_KEY")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	assert.Equal(t, "default", store.GetWithDefault(ctx, "NONEXISTENT_KEY", "default"))
	assert.Equal(t, "test_secret_value", store.GetWithDefault(ctx, "TEST_SECRET_KEY", "default"))

	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	t.Setenv("FILE_SECRET_FILE", path)
	value, err = store.Get(ctx, "FILE_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Setenv(SecretJWT, "jwt")
	t.Setenv(SecretRedisPassword, "redis-pw")
	t.Setenv(SecretSQLDSN, "postgres://u:p@db/qb")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadSecretsFromEnv(context.Background()))
	assert.Equal(t, "jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, "redis-pw", cfg.Storage.Redis.Password)
	assert.Equal(t, "postgres://u:p@db/qb", cfg.Storage.SQL.DSN)
	assert.Empty(t, cfg.Integrations.WebhookSecret)
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.JWTSecret = "super-secret-jwt"
	cfg.Storage.SQL.DSN = "postgres://u:hunter2@db/qb"
	cfg.Storage.Redis.Password = "redispw"
	cfg.Security.AdminKeys = []string{"admin-key"}

	out := cfg.String()
	for _, secret := range []string{"super-secret-jwt", "hunter2", "redispw", "admin-key"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, redacted)
	// the receiver is untouched
	assert.Equal(t, "super-secret-jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"admin-key"}, cfg.Security.AdminKeys)
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "config.json")
	txtPath := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(txtPath, []byte("{}"), 0o600))

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"valid json file", jsonPath, false},
		{"empty path", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"non-json file", txtPath, true},
		{"nonexistent file", filepath.Join(dir, "nonexistent.json"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
