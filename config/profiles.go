package config

import (
	"fmt"
	"time"

	"questboard/adapters/sqlx"
)

// Profiles lists the preset names accepted by LoadProfile.
var Profiles = []string{"development", "testing", "staging", "production"}

// LoadProfile returns the named preset with environment overrides applied.
// It does not validate; call LoadSecretsFromEnv and Validate before use.
func LoadProfile(name string) (*Config, error) {
	cfg, err := profile(name)
	if err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}

func profile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name
	switch name {
	case "development", "default":
		cfg.Environment = EnvDevelopment
		cfg.Logging.Format = "text"
		cfg.Logging.Level = "debug"
	case "testing":
		cfg.Environment = EnvTesting
		cfg.Server.Address = "127.0.0.1:0"
		cfg.Auth.BcryptCost = 4
		cfg.Logging.Level = "warn"
		cfg.Analytics.ExportInterval = 0
	case "staging":
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = "redis"
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit = RateLimitConfig{RequestsPerMinute: 300, BurstSize: 50}
	case "production":
		cfg.Environment = EnvProduction
		cfg.Server.CORSOrigin = ""
		cfg.Storage.Adapter = "sql"
		cfg.Storage.SQL = sqlx.DefaultConfig(sqlx.DriverPostgres)
		cfg.Storage.SQL.MaxOpenConns = 25
		cfg.Storage.SQL.AutoMigrate = false
		cfg.Auth.TokenTTL = 12 * time.Hour
		cfg.Auth.BcryptCost = 12
		cfg.Security.EnableRateLimit = true
		cfg.Security.EnableDebug = false
		cfg.Analytics.ExportInterval = 5 * time.Minute
	default:
		return nil, fmt.Errorf("unknown profile %q (want one of %v)", name, Profiles)
	}
	return cfg, nil
}
