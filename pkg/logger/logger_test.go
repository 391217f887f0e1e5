package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	return New(Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})
}

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestLoggerCarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logg := newTestLogger(&buf)

	ctx := logg.WithRequestID(context.Background(), "req-123")
	ctx = logg.WithOrderID(ctx, 42)
	logg.Info(ctx, "accumulated")

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, float64(42), entry["order_id"])
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "accumulated", entry["message"])
}

func TestLoggerErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := newTestLogger(&buf)

	logg.Error(context.Background(), "boom", errors.New("db down"))

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	assert.Equal(t, "db down", entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("garbage"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
}
