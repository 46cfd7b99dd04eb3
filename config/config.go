package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"questboard/adapters/redis"
	"questboard/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// MinProductionSecretLength is the shortest JWT secret accepted in production.
const MinProductionSecretLength = 32

const redacted = "[REDACTED]"

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"QUESTBOARD_ENV"`
	Profile     string      `json:"profile" env:"QUESTBOARD_PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Token and password settings
	Auth AuthConfig `json:"auth"`

	// Security configuration
	Security SecurityConfig `json:"security"`

	// Outbound event delivery
	Integrations IntegrationsConfig `json:"integrations"`

	// In-process analytics
	Analytics AnalyticsConfig `json:"analytics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"QUESTBOARD_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"QUESTBOARD_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"QUESTBOARD_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"QUESTBOARD_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"QUESTBOARD_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"QUESTBOARD_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"QUESTBOARD_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"QUESTBOARD_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" env:"QUESTBOARD_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" envPrefix:"QUESTBOARD_STORAGE_REDIS_"`
	SQL     sqlx.Config  `json:"sql,omitempty" envPrefix:"QUESTBOARD_STORAGE_SQL_"`
	File    FileConfig   `json:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	// Dir holds users.json and tasks.json.
	Dir string `json:"dir" env:"QUESTBOARD_STORAGE_FILE_DIR"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"QUESTBOARD_LOG_LEVEL"`
	Format     string            `json:"format" env:"QUESTBOARD_LOG_FORMAT"`
	Output     string            `json:"output" env:"QUESTBOARD_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"QUESTBOARD_LOG_ATTRIBUTES" envKeyValSeparator:"="`
}

// AuthConfig holds token issuing settings. An empty JWTSecret outside
// production makes the server generate a per-process key.
type AuthConfig struct {
	JWTSecret  string        `json:"jwt_secret,omitempty" env:"QUESTBOARD_AUTH_JWT_SECRET"`
	Issuer     string        `json:"issuer" env:"QUESTBOARD_AUTH_ISSUER"`
	TokenTTL   time.Duration `json:"token_ttl" env:"QUESTBOARD_AUTH_TOKEN_TTL"`
	BcryptCost int           `json:"bcrypt_cost" env:"QUESTBOARD_AUTH_BCRYPT_COST"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"QUESTBOARD_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	// EnableDebug mounts the manual XP adjustment route.
	EnableDebug bool     `json:"enable_debug" env:"QUESTBOARD_SECURITY_DEBUG_ENABLED"`
	AdminKeys   []string `json:"admin_keys,omitempty" env:"QUESTBOARD_SECURITY_ADMIN_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" env:"QUESTBOARD_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" env:"QUESTBOARD_SECURITY_RATE_LIMIT_BURST"`
}

// IntegrationsConfig configures webhook delivery.
type IntegrationsConfig struct {
	Webhooks       []string      `json:"webhooks,omitempty" env:"QUESTBOARD_WEBHOOK_URLS"`
	WebhookSecret  string        `json:"webhook_secret,omitempty" env:"QUESTBOARD_WEBHOOK_SECRET"`
	WebhookTimeout time.Duration `json:"webhook_timeout" env:"QUESTBOARD_WEBHOOK_TIMEOUT"`
	// WebhookEvents limits delivery to these event types. Empty sends all.
	WebhookEvents []string `json:"webhook_events,omitempty" env:"QUESTBOARD_WEBHOOK_EVENTS"`
}

// AnalyticsConfig toggles the in-process metrics and their periodic export.
type AnalyticsConfig struct {
	Enabled        bool          `json:"enabled" env:"QUESTBOARD_ANALYTICS_ENABLED"`
	ExportInterval time.Duration `json:"export_interval" env:"QUESTBOARD_ANALYTICS_EXPORT_INTERVAL"`
}

// Load loads configuration from environment variables and validates it.
// QUESTBOARD_PROFILE selects the preset the environment is applied over.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if name := os.Getenv("QUESTBOARD_PROFILE"); name != "" {
		p, err := profile(name)
		if err != nil {
			return nil, err
		}
		cfg = p
	}
	return finish(cfg)
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file. Environment variables
// override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := cfg.LoadSecretsFromEnv(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Dir: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			Issuer:     "questboard",
			TokenTTL:   24 * time.Hour,
			BcryptCost: 10,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			EnableDebug: true,
			AdminKeys:   []string{},
		},
		Integrations: IntegrationsConfig{
			WebhookTimeout: 5 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled:        true,
			ExportInterval: time.Minute,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}
	if err := c.Auth.Validate(c.Environment); err != nil {
		errs = append(errs, fmt.Sprintf("auth config: %v", err))
	}
	if err := c.Security.Validate(c.Environment); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}
	if err := c.Integrations.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("integrations config: %v", err))
	}
	if err := c.Analytics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("analytics config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = redacted
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = redacted
	}
	if cfg.Auth.JWTSecret != "" {
		cfg.Auth.JWTSecret = redacted
	}
	if cfg.Integrations.WebhookSecret != "" {
		cfg.Integrations.WebhookSecret = redacted
	}
	if len(cfg.Security.AdminKeys) > 0 {
		cfg.Security.AdminKeys = []string{redacted}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
