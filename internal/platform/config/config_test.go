package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, DefaultPollInterval, cfg.Scheduler.PollInterval)
	assert.Equal(t, DefaultConcurrency, cfg.Scheduler.Concurrency)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "log", cfg.Notifier.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DSN", "postgres://localhost/meds")
	t.Setenv("SCHEDULER_POLL_INTERVAL", "45s")
	t.Setenv("NOTIFIER_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DEV_USERS", "u1:a@x.com,u2:b@x.com")
	t.Setenv("DEV_MEDICATIONS", "m1:u1, m2:u1:2025-12-31")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "postgres://localhost/meds", cfg.DB.DSN)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notifier.Brokers)
	assert.Equal(t, []string{"u1:a@x.com", "u2:b@x.com"}, cfg.Dev.Users)
	assert.Equal(t, []string{"m1:u1", "m2:u1:2025-12-31"}, cfg.Dev.Medications)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  concurrency: 8
  strict_recipients: true
notifier:
  driver: webhook
  webhook_url: http://push.local/send
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Scheduler.Concurrency)
	assert.True(t, cfg.Scheduler.StrictRecipients)
	assert.Equal(t, "http://push.local/send", cfg.Notifier.WebhookURL)
}

func TestValidate_RejectsIncompleteNotifier(t *testing.T) {
	t.Setenv("NOTIFIER_DRIVER", "sqs")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqs_queue_url")
}

func TestNotifierDrivers_SplitsCSV(t *testing.T) {
	assert.Equal(t, []string{"log"}, NotifierConfig{}.Drivers())
	assert.Equal(t, []string{"log", "kafka"}, NotifierConfig{Driver: " Log, kafka ,"}.Drivers())

	cfg := Config{
		Scheduler: SchedulerConfig{PollInterval: 1, Concurrency: 1},
		Notifier:  NotifierConfig{Driver: "log,webhook"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url")
}
