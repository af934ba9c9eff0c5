package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/backoffice")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, PolicyAllow, cfg.RBAC.UnmatchedPolicy)
	assert.False(t, cfg.FailClosed())
	assert.Equal(t, 4096, cfg.RBAC.CacheSize)
	assert.Equal(t, time.Duration(0), cfg.RBAC.CacheTTL)
	assert.Contains(t, cfg.RBAC.PublicRoutes, "POST /api/login")
	assert.Equal(t, InvalidationPostgres, cfg.RBAC.Invalidation)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("RBAC_UNMATCHED_POLICY", "deny")
	t.Setenv("RBAC_PUBLIC_ROUTES", "/api/ping,GET /api/version")
	t.Setenv("RBAC_MATCHER_CACHE_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.FailClosed())
	assert.Equal(t, []string{"/api/ping", "GET /api/version"}, cfg.RBAC.PublicRoutes)
	assert.Equal(t, 5*time.Minute, cfg.RBAC.CacheTTL)
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Config{
		DatabaseURL: "",
		JWTSecret:   "short",
		JWTTTL:      time.Hour,
		DBMaxConns:  1,
		RBAC: RBAC{
			UnmatchedPolicy: "maybe",
			CacheSize:       0,
			Invalidation:    "carrier-pigeon",
		},
	}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL")
	assert.Contains(t, msg, "JWT_SECRET")
	assert.Contains(t, msg, "RBAC_UNMATCHED_POLICY")
	assert.Contains(t, msg, "RBAC_MATCHER_CACHE_SIZE")
	assert.Contains(t, msg, "carrier-pigeon")
}
