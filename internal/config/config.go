// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Unmatched-route policies for the authorizer.
const (
	PolicyAllow = "allow"
	PolicyDeny  = "deny"
)

// Cross-instance cache invalidation backends.
const (
	InvalidationNone     = "none"
	InvalidationPostgres = "postgres"
	InvalidationRedis    = "redis"
)

// Config holds runtime configuration for the server and the CLI tools.
type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	AppPort string `envconfig:"APP_PORT" default:"8080"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL    string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns     int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns     int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	DBConnLifetime time.Duration `envconfig:"DB_CONN_LIFETIME" default:"1h"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string        `envconfig:"JWT_ISSUER" default:"backoffice"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"12h"`

	RBAC RBAC

	RedisAddr    string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"rbac:catalog:invalidate"`

	HousekeepingInterval  time.Duration `envconfig:"HOUSEKEEPING_INTERVAL" default:"1h"`
	OperationLogRetention time.Duration `envconfig:"OPERATION_LOG_RETENTION" default:"2160h"`

	SeedAdminUsername string `envconfig:"SEED_ADMIN_USERNAME" default:"admin"`
	SeedAdminPassword string `envconfig:"SEED_ADMIN_PASSWORD"`
}

// RBAC groups the authorization settings.
type RBAC struct {
	UnmatchedPolicy string        `envconfig:"RBAC_UNMATCHED_POLICY" default:"allow"`
	PublicRoutes    []string      `envconfig:"RBAC_PUBLIC_ROUTES" default:"POST /api/login,POST /api/logout,/api/health*,/health*,/api-docs*,/static*"`
	CacheSize       int           `envconfig:"RBAC_MATCHER_CACHE_SIZE" default:"4096"`
	CacheTTL        time.Duration `envconfig:"RBAC_MATCHER_CACHE_TTL" default:"0s"`
	Invalidation    string        `envconfig:"RBAC_INVALIDATION" default:"postgres"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL must be set"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("invalid pool bounds: min=%d max=%d", c.DBMinConns, c.DBMaxConns))
	}
	switch c.RBAC.UnmatchedPolicy {
	case PolicyAllow, PolicyDeny:
	default:
		errs = append(errs, fmt.Errorf("RBAC_UNMATCHED_POLICY must be %q or %q, got %q", PolicyAllow, PolicyDeny, c.RBAC.UnmatchedPolicy))
	}
	if c.RBAC.CacheSize < 1 {
		errs = append(errs, errors.New("RBAC_MATCHER_CACHE_SIZE must be positive"))
	}
	if c.RBAC.CacheTTL < 0 {
		errs = append(errs, errors.New("RBAC_MATCHER_CACHE_TTL must not be negative"))
	}
	if c.HousekeepingInterval <= 0 {
		errs = append(errs, errors.New("HOUSEKEEPING_INTERVAL must be positive"))
	}
	if c.OperationLogRetention < 0 {
		errs = append(errs, errors.New("OPERATION_LOG_RETENTION must not be negative"))
	}
	switch c.RBAC.Invalidation {
	case InvalidationNone, InvalidationPostgres:
	case InvalidationRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR must be set when RBAC_INVALIDATION=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RBAC_INVALIDATION %q", c.RBAC.Invalidation))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// FailClosed reports whether unmatched routes are denied.
func (c *Config) FailClosed() bool {
	return c.RBAC.UnmatchedPolicy == PolicyDeny
}
