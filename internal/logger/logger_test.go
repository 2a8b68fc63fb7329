package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefault(t *testing.T, level LogLevel) *bytes.Buffer {
	t.Helper()

	original := defaultLogger
	var buf bytes.Buffer
	defaultLogger = New(&buf, level)
	t.Cleanup(func() { defaultLogger = original })

	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines[len(lines)-1], "no log output")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(string, ...map[string]interface{})
		level string
	}{
		{"debug", Debug, "debug"},
		{"info", Info, "info"},
		{"warn", Warn, "warn"},
		{"error", Error, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureDefault(t, DEBUG)

			tt.log("something happened", map[string]interface{}{"field1": "value1", "field2": 42})

			entry := lastEntry(t, buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "something happened", entry["message"])
			assert.Equal(t, "value1", entry["field1"])
			assert.Equal(t, float64(42), entry["field2"])
			assert.NotEmpty(t, entry["time"])
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := captureDefault(t, WARN)

	Debug("hidden")
	Info("hidden")
	assert.Empty(t, buf.String())

	Warn("shown")
	assert.Equal(t, "shown", lastEntry(t, buf)["message"])
}

func TestLogWithoutFields(t *testing.T) {
	buf := captureDefault(t, INFO)

	Info("message without fields")
	Info("message with empty fields", map[string]interface{}{})

	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 2)
	assert.Equal(t, "message with empty fields", lastEntry(t, buf)["message"])
}

func TestMergeFields(t *testing.T) {
	buf := captureDefault(t, INFO)

	Info("merged", map[string]interface{}{"a": "1"}, map[string]interface{}{"b": "2", "a": "3"})

	entry := lastEntry(t, buf)
	assert.Equal(t, "3", entry["a"])
	assert.Equal(t, "2", entry["b"])
}

func TestSanitizeFields(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]interface{}
		expected map[string]interface{}
	}{
		{
			name:     "nil fields",
			input:    nil,
			expected: nil,
		},
		{
			name:     "non-sensitive fields untouched",
			input:    map[string]interface{}{"email": "a@b.co", "count": 3},
			expected: map[string]interface{}{"email": "a@b.co", "count": 3},
		},
		{
			name:     "long secret keeps prefix and suffix",
			input:    map[string]interface{}{"stripe_secret_key": "sk_test_1234567890"},
			expected: map[string]interface{}{"stripe_secret_key": "sk_...890"},
		},
		{
			name:     "short secret fully redacted",
			input:    map[string]interface{}{"password": "hunter2"},
			expected: map[string]interface{}{"password": "[REDACTED]"},
		},
		{
			name:     "non-string sensitive value redacted",
			input:    map[string]interface{}{"Authorization": 12345},
			expected: map[string]interface{}{"Authorization": "[REDACTED]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeFields(tt.input))
		})
	}
}

func TestSensitiveFieldsRedactedInOutput(t *testing.T) {
	buf := captureDefault(t, INFO)

	Info("configured", map[string]interface{}{"cryptlex_token": "eyJhbGciOiJIUzI1NiJ9.secret"})

	assert.NotContains(t, buf.String(), "eyJhbGciOiJIUzI1NiJ9.secret")
	assert.Equal(t, "eyJ...ret", lastEntry(t, buf)["cryptlex_token"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" Warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}

func TestConfigureConsole(t *testing.T) {
	original := defaultLogger
	t.Cleanup(func() { defaultLogger = original })

	var buf bytes.Buffer
	Configure(&buf, INFO, "console")
	Info("human readable", map[string]interface{}{"route": "/health"})

	out := buf.String()
	assert.Contains(t, out, "human readable")
	assert.Contains(t, out, "route=")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}
