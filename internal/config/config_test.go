package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "job-application-tracker", cfg.AppName)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 24*time.Hour, cfg.VerificationTTL)
	assert.Equal(t, 30*time.Minute, cfg.ResetTTL)
	assert.True(t, cfg.PermissiveSecret)
	assert.True(t, cfg.ReturnTokens)
	assert.False(t, cfg.RequireVerifiedEmail)
	assert.Equal(t, 100, cfg.AuthRateLimit)
	assert.Equal(t, 120, cfg.SensitiveRateLimit)
	assert.Equal(t, time.Minute, cfg.AuthRateWindow)
	assert.Equal(t, "store", cfg.AuditSink)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("TRACKER_STORE", "postgres")
	t.Setenv("TRACKER_ACCESS_TTL", "15m")
	t.Setenv("TRACKER_REQUIRE_VERIFIED_EMAIL", "true")
	t.Setenv("TRACKER_RETURN_TOKENS", "false")
	t.Setenv("TRACKER_AUTH_RATE_LIMIT", "7")
	t.Setenv("TRACKER_RATE_LIMIT_BACKEND", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.True(t, cfg.RequireVerifiedEmail)
	assert.False(t, cfg.ReturnTokens)
	assert.Equal(t, 7, cfg.AuthRateLimit)
	assert.Equal(t, "redis", cfg.RateLimitBackend)
}
