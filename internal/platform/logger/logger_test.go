package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        Info,
		"debug":   Debug,
		" WARN ":  Warn,
		"warning": Warn,
		"error":   Error,
		"bogus":   Info,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat(""))
	assert.Equal(t, FormatText, ParseFormat("console"))
}

func TestZapLogger_WithMergesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	child := l.With(map[string]any{"component": "scheduler"})
	child.Warn("reminder failed", map[string]any{
		"reminder_id": "r-1",
		"error":       errors.New("boom"),
		"":            "ignored",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "reminder failed", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "scheduler", ctx["component"])
	assert.Equal(t, "r-1", ctx["reminder_id"])
	assert.Equal(t, "boom", ctx["error"])
	_, hasEmpty := ctx[""]
	assert.False(t, hasEmpty)
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop()
	l.Info("x", nil)
	l.With(nil).Error("y", map[string]any{"k": 1})
}
