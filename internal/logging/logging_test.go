package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, time.UTC)

	l.Info("started", map[string]any{"port": "8080"})
	l.Warn("slow", nil)
	l.Error("failed", errors.New("boom"), map[string]any{"hash": "ab"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "started", lines[0]["msg"])
	assert.Equal(t, "8080", lines[0]["port"])
	assert.NotEmpty(t, lines[0]["ts"])

	assert.Equal(t, "warn", lines[1]["level"])

	assert.Equal(t, "error", lines[2]["level"])
	assert.Equal(t, "boom", lines[2]["error"])
	assert.Equal(t, "ab", lines[2]["hash"])
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, time.UTC).Component("agent")

	l.Info("subscribed", nil)
	l.Log(map[string]any{"event": "x", "component": "override"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "agent", lines[0]["component"])
	assert.Equal(t, "override", lines[1]["component"])
}

func TestLogger_LogDefaultsLevelFromStatus(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, time.UTC)

	l.Log(map[string]any{"event": "db_migration_failed", "status": "error"})
	l.Log(map[string]any{"event": "db_migration_step", "status": "success"})

	lines := decodeLines(t, &buf)
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "info", lines[1]["level"])
}

func TestLogger_TimestampUsesLocation(t *testing.T) {
	var buf bytes.Buffer
	loc := time.FixedZone("UTC+7", 7*3600)
	l := NewWithWriter(&buf, loc)

	l.Info("tz", nil)

	lines := decodeLines(t, &buf)
	ts, err := time.Parse(time.RFC3339Nano, lines[0]["ts"].(string))
	require.NoError(t, err)
	_, offset := ts.Zone()
	assert.Equal(t, 7*3600, offset)
}

func TestLogger_LogTakesMessageFromEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, time.UTC)

	l.Log(map[string]any{"event": "db_migration_step", "level": "warn", "step": 2})
	l.Log(map[string]any{"msg": "explicit", "event": "ignored"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "db_migration_step", lines[0]["msg"])
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, float64(2), lines[0]["step"])
	assert.NotContains(t, lines[0], "time")

	assert.Equal(t, "explicit", lines[1]["msg"])
	assert.Equal(t, "ignored", lines[1]["event"])
}

func TestLogger_ErrorDoesNotMutateFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, time.UTC)
	fields := map[string]any{"hash": "ab"}

	l.Error("failed", errors.New("boom"), fields)

	assert.NotContains(t, fields, "error")
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "rid-1")

	assert.Equal(t, "rid-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}
