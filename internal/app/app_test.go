package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminders/internal/platform/config"
	"medication-reminders/internal/platform/logger"
)

func memoryConfig() config.Config {
	return config.Config{
		HTTP: config.HTTPConfig{Port: "0"},
		Dev: config.DevConfig{
			Users:       []string{"p1:p1@example.com"},
			Medications: []string{"med-1:p1:2030-01-01"},
		},
		Scheduler: config.SchedulerConfig{
			PollInterval: time.Minute,
			Concurrency:  1,
		},
	}
}

func TestNew_MemoryModeWiresEverything(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.DB)
	assert.NotNil(t, a.SharedAccess)
	assert.NotNil(t, a.Reminders)
	assert.NotNil(t, a.Scheduler)
	assert.NotNil(t, a.Handler)
	assert.NoError(t, a.ready(context.Background()))
}

func TestNew_RejectsUnknownNotifier(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notifier.Driver = "pigeon"

	_, err := New(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pigeon")
}

func TestNew_RejectsBadSeeds(t *testing.T) {
	cfg := memoryConfig()
	cfg.Dev.Medications = []string{"med-1:p1:not-a-date"}

	_, err := New(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
}

func TestNew_WebhookNeedsValidURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.Notifier.Driver = "webhook"
	cfg.Notifier.WebhookURL = "not a url"

	_, err := New(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
}

func TestRunScheduler_StopsWithContext(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunScheduler(ctx) }()

	require.Eventually(t, a.Scheduler.Running, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunScheduler did not return after cancel")
	}
	assert.False(t, a.Scheduler.Running())
}
