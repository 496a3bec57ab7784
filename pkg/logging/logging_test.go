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

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        LevelInfo,
		"DEBUG":   LevelDebug,
		"warning": LevelWarn,
		" error ": LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LevelWarn, NewWriterTransport("buf", &buf))

	l.Info(context.Background(), "skipped", nil)
	l.Warn(context.Background(), "kept", map[string]interface{}{"k": 1})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec LogRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "kept", rec.Message)
	assert.Equal(t, LevelWarn, rec.Level)
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LevelDebug, NewWriterTransport("buf", &buf))

	child := l.With(map[string]interface{}{"request_id": "r-1"})
	child.Info(context.Background(), "cv.uploaded", map[string]interface{}{"file": "cv.pdf"})

	var rec LogRecord
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "r-1", rec.Fields["request_id"])
	assert.Equal(t, "cv.pdf", rec.Fields["file"])
}

func TestContextWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LevelDebug, NewWriterTransport("buf", &buf))

	ctx := ContextWith(context.Background(), map[string]interface{}{"request_id": "r-2", "route": "a"})
	ctx = ContextWith(ctx, map[string]interface{}{"route": "b"})
	l.Info(ctx, "ingest.completed", map[string]interface{}{"chunks": 4})

	var rec LogRecord
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "r-2", rec.Fields["request_id"])
	assert.Equal(t, "b", rec.Fields["route"])
	assert.EqualValues(t, 4, rec.Fields["chunks"])
}
