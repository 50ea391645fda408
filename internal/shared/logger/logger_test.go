package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"tenant-portal/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerInterface_Contract(t *testing.T) {
	var _ Logger = NewLogger()
	var _ Logger = NewLoggerWithConfig("info", "json")
	var _ Logger = New(Config{Backend: BackendZap})
	var _ Logger = NewNop()
}

func TestLogrusLogger_WithContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	ctx := context.Background()
	ctx = context.WithValue(ctx, contextkeys.TenantIDKey, "acme")
	ctx = context.WithValue(ctx, contextkeys.ApplicationKey, "admin")
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "req-1")

	log.WithContext(ctx).WithComponent("gateway").Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "acme", entry["tenant"])
	assert.Equal(t, "admin", entry["application"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "gateway", entry["component"])
}

func TestLogrusLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(Config{Level: "warning"}, &buf)
	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestConfig_JSON(t *testing.T) {
	assert.True(t, Config{Format: "json"}.JSON())
	assert.True(t, Config{Environment: "production"}.JSON())
	assert.False(t, Config{Format: "text", Environment: "development"}.JSON())
}

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapFromCore(core)

	ctx := context.WithValue(context.Background(), contextkeys.TenantIDKey, "acme")
	log.WithContext(ctx).WithComponent("realtime").WithFields(map[string]interface{}{"attempt": 2}).Warnf("retry %d", 2)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "retry 2", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "acme", fields["tenant"])
	assert.Equal(t, "realtime", fields["component"])
	assert.EqualValues(t, 2, fields["attempt"])
}
