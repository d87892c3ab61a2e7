package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()

	prev := std
	t.Cleanup(func() { Use(prev) })

	var buf bytes.Buffer
	Use(New(&buf, level, "json"))
	return &buf
}

func TestInfoWritesFields(t *testing.T) {
	buf := capture(t, "info")

	Info("login succeeded", map[string]any{
		"user_id":  "u-1",
		"provider": "local",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "login succeeded", entry["msg"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, "local", entry["provider"])
}

func TestSensitiveFieldsAreRedacted(t *testing.T) {
	buf := capture(t, "debug")

	Warn("callback failed", map[string]any{
		"password":     "pw123",
		"Access_Token": "ya29.abc",
		"code":         "4/0Ab",
		"provider":     "google",
	})

	out := buf.String()
	assert.NotContains(t, out, "pw123")
	assert.NotContains(t, out, "ya29.abc")
	assert.NotContains(t, out, "4/0Ab")
	assert.Contains(t, out, "google")
	assert.Contains(t, out, redacted)
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "warn")

	Info("hidden", nil)
	Debug("hidden", nil)
	assert.Empty(t, buf.String())

	Error("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in).String(), in)
	}
}
