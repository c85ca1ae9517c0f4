package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"upper case", "DEBUG", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetLogLevel(tt.level))
		})
	}
}

func TestValidateLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected string
	}{
		{"valid debug", "debug", "debug"},
		{"valid info", "info", "info"},
		{"valid warn", "warn", "warn"},
		{"valid error", "error", "error"},
		{"mixed case", "Warn", "warn"},
		{"invalid defaults to info", "invalid", "info"},
		{"empty defaults to info", "", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateLogLevel(tt.level))
		})
	}
}

func TestValidateLogFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		expected string
	}{
		{"valid text", "text", "text"},
		{"valid json", "json", "json"},
		{"invalid defaults to text", "invalid", "text"},
		{"empty defaults to text", "", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateLogFormat(tt.format))
		})
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json")

	logger.Debug("scheduler: hidden")
	logger.Info("scheduler: day planned", "day", "mon")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "scheduler: day planned", record["msg"])
	assert.Equal(t, "mon", record["day"])
	assert.Equal(t, "INFO", record["level"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "bogus")

	logger.Info("light: hidden")
	logger.Warn("light: slow reply", "attempt", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg="light: slow reply"`)
	assert.Contains(t, out, "attempt=2")
}

func TestSetupLoggers(t *testing.T) {
	assert.NotNil(t, SetupLogger("debug", "text"))

	errLogger := SetupErrorLogger()
	require.NotNil(t, errLogger)
	assert.False(t, errLogger.Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, errLogger.Enabled(t.Context(), slog.LevelError))

	previous := slog.Default()
	t.Cleanup(func() { SetAsDefaultLogger(previous) })
	logger := SetupLogger("info", "json")
	SetAsDefaultLogger(logger)
	assert.Same(t, logger, slog.Default())
}
