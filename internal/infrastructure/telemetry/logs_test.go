package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{})
	require.NoError(t, err)

	assert.False(t, lp.Core().Enabled(zapcore.ErrorLevel))
	assert.NoError(t, lp.Shutdown(context.Background()))

	var nilProvider *LoggerProvider
	assert.False(t, nilProvider.Core().Enabled(zapcore.ErrorLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	logger := zap.New(core).With(zap.String("component", "sync"))
	logger.Info("dropped")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "sync", entry.ContextMap()["component"])
}

func TestTee(t *testing.T) {
	baseCore, base := observer.New(zapcore.InfoLevel)
	extraCore, extra := observer.New(zapcore.ErrorLevel)

	logger := Tee(zap.New(baseCore), extraCore)
	logger.Info("info")
	logger.Error("error")

	assert.Equal(t, 2, base.Len())
	assert.Equal(t, 1, extra.Len())
}
