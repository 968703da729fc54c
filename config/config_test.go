package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  port: 5432
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 12*time.Hour, cfg.Holds.AuthorizationWindow())
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval())
	assert.Equal(t, 25, cfg.Scheduler.BatchSize)
	assert.Equal(t, "notifications.topic", cfg.Kafka.NotificationsTopic)
	assert.Equal(t, "kafka", cfg.Events.Driver)
	assert.Equal(t, "host=localhost port=5432 user= password= dbname= sslmode=", cfg.Database.DSN())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
scheduler:
  batch_size: 10
events:
  driver: kafka
`)
	t.Setenv("RIDEHOLD_DATABASE_HOST", "db.internal")
	t.Setenv("RIDEHOLD_EVENTS_DRIVER", "rabbitmq")
	t.Setenv("RIDEHOLD_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "rabbitmq", cfg.Events.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
}

func TestLoadConfig_InvalidDriver(t *testing.T) {
	path := writeConfig(t, "events:\n  driver: smtp\n")

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "invalid events.driver")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}
