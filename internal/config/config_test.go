package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BACKEND_BASE_URL", "http://localhost:5000/")
	t.Setenv("BACKEND_JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("TRUST_PROXY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.BackendBaseURL)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.RedirectDelay)
	assert.Equal(t, int64(2<<20), cfg.MaxPhotoBytes)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.TrustProxy)
}

func TestLoadRequiresBackend(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("BACKEND_JWT_SECRET", "secret")

	_, err := Load()
	assert.EqualError(t, err, "BACKEND_BASE_URL is required")
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://localhost:5000")
	t.Setenv("BACKEND_JWT_SECRET", "")

	_, err := Load()
	assert.EqualError(t, err, "BACKEND_JWT_SECRET is required")
}

func TestLoadRedisURL(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_URL", "redis://portal:pw@cache:6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, "portal", cfg.RedisUsername)
	assert.Equal(t, "pw", cfg.RedisPassword)
	assert.True(t, cfg.RedisEnabled())
}

func TestGetDuration(t *testing.T) {
	t.Setenv("X_SECONDS", "15")
	t.Setenv("X_PARSED", "250ms")
	t.Setenv("X_BROKEN", "soon")

	assert.Equal(t, 15*time.Second, getDuration("X_SECONDS", time.Minute))
	assert.Equal(t, 250*time.Millisecond, getDuration("X_PARSED", time.Minute))
	assert.Equal(t, time.Minute, getDuration("X_BROKEN", time.Minute))
	assert.Equal(t, time.Minute, getDuration("X_MISSING", time.Minute))
}
