package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		environment string
	}{
		{name: "debug level development", level: "debug", environment: "development"},
		{name: "info level production", level: "info", environment: "production"},
		{name: "warn level", level: "warn", environment: "production"},
		{name: "error level", level: "error", environment: "production"},
		{name: "invalid level defaults to info", level: "invalid", environment: "production"},
		{name: "empty level defaults to info", level: "", environment: "production"},
		{name: "case insensitive level", level: "DEBUG", environment: "development"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.environment)
			require.NoError(t, err)
			require.NotNil(t, logger)
			require.NotNil(t, logger.SugaredLogger)
		})
	}
}

func TestLogger_WithFields(t *testing.T) {
	logger, err := New("debug", "test")
	require.NoError(t, err)

	withFields := logger.WithFields(map[string]interface{}{
		"stakeAddress": "stake1uxabc",
		"epoch":        312,
	})
	require.NotNil(t, withFields)
	assert.NotSame(t, logger, withFields)

	assert.NotPanics(t, func() {
		logger.WithFields(nil).Info("no fields")
	})
}

func newCaptureLogger(level zapcore.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&buf),
		level,
	)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}, &buf
}

func TestLogger_LoggingMethods(t *testing.T) {
	logger, buf := newCaptureLogger(zapcore.DebugLevel)

	tests := []struct {
		name     string
		logFunc  func()
		expected string
		level    string
	}{
		{name: "debugw", logFunc: func() { logger.Debugw("fetching rewards", "page", 2) }, expected: "fetching rewards", level: "debug"},
		{name: "infow", logFunc: func() { logger.Infow("epoch synced", "epoch", 312) }, expected: "epoch synced", level: "info"},
		{name: "warnw", logFunc: func() { logger.Warnw("duplicate history row", "epoch", 300) }, expected: "duplicate history row", level: "warn"},
		{name: "errorw", logFunc: func() { logger.Errorw("upstream unavailable", "code", 503) }, expected: "upstream unavailable", level: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			output := buf.String()
			assert.Contains(t, output, tt.expected)
			assert.Contains(t, output, tt.level)

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(output), &entry))
			assert.Equal(t, tt.expected, entry["msg"])
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newCaptureLogger(zapcore.WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}
