package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghcn-daily/internal/models"
	"ghcn-daily/pkg/logging"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(FileEnv, "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "*.dly", cfg.Ingest.Pattern)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.True(t, cfg.Ingest.SkipMalformed)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("GHCN_SERVER_PORT", "9090")
	t.Setenv("GHCN_DATABASE_DRIVER", "sqlite")
	t.Setenv("GHCN_DATABASE_DSN", "file:ghcn.db")
	t.Setenv("GHCN_INGEST_START_YEAR", "1900")
	t.Setenv("GHCN_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:ghcn.db", cfg.Database.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	start, end := cfg.Ingest.YearRange()
	require.NotNil(t, start)
	assert.Equal(t, 1900, *start)
	assert.Nil(t, end)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
  read_timeout: 5s
logging:
  level: debug
ingest:
  data_dir: /srv/ghcn
  workers: 8
`), 0o600))
	t.Setenv(FileEnv, path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/srv/ghcn", cfg.Ingest.DataDir)
	assert.Equal(t, 8, cfg.Ingest.Workers)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		t.Setenv(FileEnv, "")
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"sqlite without dsn", func(c *Config) { c.Database.Driver = "sqlite"; c.Database.DSN = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_LogLevels(t *testing.T) {
	t.Setenv(FileEnv, "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	for _, level := range []string{"debug", "info", "warn", "warning", "error", "fatal"} {
		t.Run(level, func(t *testing.T) {
			cfg.Logging.Level = level
			assert.NoError(t, cfg.Validate())

			_, err := logging.ParseLevel(level)
			assert.NoError(t, err)
		})
	}
}

func TestValidate_YearRange(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("GHCN_INGEST_START_YEAR", "2000")
	t.Setenv("GHCN_INGEST_END_YEAR", "1990")

	_, err := LoadConfig()
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "ingest.end_year", validation.Field)
}

func TestDatabaseOptions(t *testing.T) {
	c := DatabaseConfig{Driver: "pgx", DSN: "postgres://x", MaxOpenConns: 3, PoolInterval: time.Second}
	opts := c.DatabaseOptions()

	assert.Equal(t, "pgx", opts.Driver)
	assert.Equal(t, "postgres://x", opts.DSN)
	assert.Equal(t, 3, opts.MaxOpenConns)
	assert.Equal(t, time.Second, opts.PoolInterval)
}
