package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Artifacts.TTL)
	assert.Equal(t, time.Hour, cfg.Sweeper.Interval)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "-stage", cfg.KServe.StageSuffix)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INFERENCE_TIMEOUT", "750ms")
	t.Setenv("ARTIFACT_TTL", "2h")
	t.Setenv("SWEEP_INTERVAL", "bogus")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("REDIS_ADDR", "redis:6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Inference.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Artifacts.TTL)
	assert.Equal(t, time.Hour, cfg.Sweeper.Interval, "unparseable durations fall back")
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "scan", Password: "p@ss word", Name: "records", SSLMode: "disable"}

	assert.Equal(t, "postgres://scan:p%40ss%20word@db:5432/records?sslmode=disable", d.DSN())
}
