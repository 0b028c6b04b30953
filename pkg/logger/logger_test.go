package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Options{Level: "info", Output: &buf}), "observer")

	log.Debug("hidden")
	log.Info("event captured", "course_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "event captured", entry["msg"])
	assert.Equal(t, "observer", entry["component"])
	assert.Equal(t, float64(7), entry["course_id"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Level: "debug", Format: "text", Output: &buf}).Debug("event skipped", "reason", "guest_user")

	assert.Contains(t, buf.String(), "reason=guest_user")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
