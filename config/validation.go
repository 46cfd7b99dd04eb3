package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"questboard/adapters/sqlx"
)

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	validAdapters := []string{"memory", "redis", "sql", "file"}
	if !slices.Contains(validAdapters, s.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	// Validate adapter-specific configs
	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		if s.SQL.Driver != sqlx.DriverPostgres && s.SQL.Driver != sqlx.DriverMySQL {
			errs = append(errs, fmt.Sprintf("sql config: driver must be one of: %s, %s", sqlx.DriverPostgres, sqlx.DriverMySQL))
		}
		if s.SQL.DSN == "" {
			errs = append(errs, "sql config: dsn cannot be empty")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Dir == "" {
		return errors.New("dir cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	check := func(field, value string, valid ...string) {
		if !slices.Contains(valid, value) {
			errs = append(errs, fmt.Sprintf("%s must be one of: %s", field, strings.Join(valid, ", ")))
		}
	}
	check("level", l.Level, "debug", "info", "warn", "error")
	check("format", l.Format, "json", "text")
	check("output", l.Output, "stdout", "stderr")

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate checks token settings. Production requires a long explicit secret.
func (a *AuthConfig) Validate(env Environment) error {
	var errs []string

	if a.TokenTTL <= 0 {
		errs = append(errs, "token_ttl must be positive")
	}
	if a.BcryptCost != 0 && (a.BcryptCost < 4 || a.BcryptCost > 31) {
		errs = append(errs, "bcrypt_cost must be between 4 and 31")
	}
	if env == EnvProduction && len(a.JWTSecret) < MinProductionSecretLength {
		errs = append(errs, fmt.Sprintf("jwt_secret must be at least %d bytes in production", MinProductionSecretLength))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates security settings.
func (s *SecurityConfig) Validate(env Environment) error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.AdminKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("admin_keys[%d] is empty", i))
		}
	}
	if env == EnvProduction && s.EnableDebug && len(s.AdminKeys) == 0 {
		errs = append(errs, "enable_debug requires admin_keys in production")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks webhook endpoints.
func (i *IntegrationsConfig) Validate() error {
	var errs []string
	for n, raw := range i.Webhooks {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("webhooks[%d] must be an http(s) url", n))
		}
	}
	if len(i.Webhooks) > 0 && i.WebhookTimeout <= 0 {
		errs = append(errs, "webhook_timeout must be positive")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Validate validates analytics configuration
func (a *AnalyticsConfig) Validate() error {
	if a.Enabled && a.ExportInterval < 0 {
		return errors.New("export_interval cannot be negative")
	}
	return nil
}
