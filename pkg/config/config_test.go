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

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.SessionTimeout)
	assert.Equal(t, 30*time.Minute, cfg.ExtensionThreshold)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, 50055, cfg.GRPCPort)
	assert.Equal(t, time.Minute, cfg.CheckInterval)
	assert.Equal(t, "workflows.yaml", cfg.WorkflowFile)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_TIMEOUT_SECONDS", "120")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("METRICS_PORT", "9191")
	t.Setenv("EXCHANGE_ID", "NYSE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 5433, cfg.DB.Port)
	assert.Equal(t, 9191, cfg.MetricsPort)
	assert.Equal(t, "NYSE", cfg.ExchangeID)
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ConnectionBoundsValidated(t *testing.T) {
	t.Setenv("DB_MIN_CONNECTIONS", "20")
	t.Setenv("DB_MAX_CONNECTIONS", "5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("DB_PORT", "fivethousand")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.DB.Port)
}

func TestDSN(t *testing.T) {
	d := DBConfig{Host: "localhost", Port: 5432, Name: "tradefleet", User: "svc", Password: "secret"}
	assert.Equal(t,
		"host=localhost port=5432 dbname=tradefleet user=svc password=secret sslmode=disable",
		d.DSN())
}
