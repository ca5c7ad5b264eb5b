package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("ESCALATION_AFTER_HOURS", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_VERSION", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "helpdesk", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "dev", cfg.App.Version)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Policy.EscalationAfter())
	assert.Equal(t, 15, cfg.Policy.ExpiryHorizonDays)
	assert.Equal(t, time.Hour, cfg.Policy.SweepInterval())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ESCALATION_AFTER_HOURS", "48")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "5")
	t.Setenv("POSTGRES_MAX_CONNS", "not-a-number")
	t.Setenv("LOG_FILE", "/tmp/helpdesk.log")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Policy.EscalationAfter())
	assert.Equal(t, 5*time.Minute, cfg.Policy.SweepInterval())
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, "/tmp/helpdesk.log", cfg.Logger.File)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	assert.Error(t, err)
}
