package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "hospitai", cfg.Database.Database)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 300, cfg.Redis.CycleTTLSeconds)
	assert.Equal(t, "hospitai/actions/executed", cfg.MQTT.Topic)
	assert.Equal(t, 30, cfg.Agent.HistoryDays)
	assert.Equal(t, 500, cfg.Agent.AuditLogCap)
	assert.Equal(t, "default", cfg.Agent.DefaultFacilityID)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("AGENT_AUTONOMOUS_MODE", "1")
	t.Setenv("AGENT_HISTORY_DAYS", "14")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Agent.AutonomousMode)
	assert.Equal(t, 14, cfg.Agent.HistoryDays)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_YamlFileWithEnvPrecedence(t *testing.T) {
	yaml := `
server:
  port: 9100
agent:
  history_days: 21
  default_facility_id: central
log:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 21, cfg.Agent.HistoryDays)
	assert.Equal(t, "central", cfg.Agent.DefaultFacilityID)
	// Environment wins over the file.
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "agent")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "metrics")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t,
		"host=db.internal port=5433 user=agent password=secret dbname=metrics sslmode=disable",
		cfg.DSN())
}
