package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestLogger_InfoFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf))

	logger.Info("content synced", "item_id", 42, "url", "https://example.com/a")

	entry := parseLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "chatlink", entry["service"])
	assert.Equal(t, "content synced", entry["message"])

	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, float64(42), fields["item_id"])
	assert.Equal(t, "https://example.com/a", fields["url"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("hidden")
	logger.Info("hidden too")
	assert.Empty(t, buf.String())

	logger.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestLogger_CorrelationFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithOutput(&buf))

	ctx := WithCorrelationID(context.Background(), "abc-123")
	logger.InfoWithContext(ctx, "request completed")

	entry := parseLine(t, &buf)
	assert.Equal(t, "abc-123", entry["correlation_id"])
}

func TestGenerateCorrelationID_Unique(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestGetCorrelationID_Missing(t *testing.T) {
	assert.Equal(t, "", GetCorrelationID(context.Background()))
}
