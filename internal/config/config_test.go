package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "DB_LOG", "HEALTH_CHECK", "STRICT_ROUTING", "HEALTH_CHECK_INTERVAL", "UPSTREAM_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "5001", cfg.Port)
	assert.False(t, cfg.DBLog)
	assert.False(t, cfg.HealthCheck)
	assert.False(t, cfg.StrictRouting)
	assert.Equal(t, time.Hour, cfg.HealthCheckInterval)
	assert.Equal(t, 90*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFlags(t *testing.T) {
	t.Setenv("DB_LOG", "on")
	t.Setenv("HEALTH_CHECK", "on")
	t.Setenv("STRICT_ROUTING", "on")
	t.Setenv("HEALTH_CHECK_INTERVAL", "15m")
	t.Setenv("UPSTREAM_TIMEOUT", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.DBLog)
	assert.True(t, cfg.HealthCheck)
	assert.True(t, cfg.StrictRouting)
	assert.Equal(t, 15*time.Minute, cfg.HealthCheckInterval)
	assert.Equal(t, 2*time.Minute, cfg.UpstreamTimeout)
}

func TestFlagsRequireExactValue(t *testing.T) {
	t.Setenv("DB_LOG", "true")
	t.Setenv("HEALTH_CHECK", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.DBLog)
	assert.False(t, cfg.HealthCheck)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.UpstreamTimeout)
}
