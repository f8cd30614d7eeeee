package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestNew_SlogJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: "json", Output: &buf})

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	With(logger, "conversation_id", "c-1").Info("decided", "agent", "UMS")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "decided", entry["msg"])
	assert.Equal(t, "c-1", entry["conversation_id"])
	assert.Equal(t, "UMS", entry["agent"])
}

func TestNew_ZerologJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Backend: "zerolog", Level: LevelWarn, Output: &buf})

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	With(logger, "request_id", "r-1").Error("failed", "phase", "dispatch")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "failed", entry["message"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "r-1", entry["request_id"])
	assert.Equal(t, "dispatch", entry["phase"])
}

type captureLogger struct {
	NoOpLogger
	args []any
}

func (c *captureLogger) Info(_ string, args ...any) { c.args = args }

func TestWith_WrapsPlainLoggers(t *testing.T) {
	base := &captureLogger{}
	With(base, "a", 1).Info("x", "b", 2)
	assert.Equal(t, []any{"a", 1, "b", 2}, base.args)

	assert.IsType(t, NoOpLogger{}, With(nil, "a", 1))
	assert.Same(t, base, With(base))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, "WARN", LevelWarn.String())
}
