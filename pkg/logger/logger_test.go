package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"albumzip/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug json", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "albumzip.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(&config.LoggingConfig{Level: "debug"}, &buf)
	require.NoError(t, err)

	l.WithField("part_number", "ORL-1").
		WithError(errors.New("boom")).
		InfoWithFields("Album export failed", map[string]interface{}{
			"duration": 1500 * time.Millisecond,
			"attempt":  1,
		})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))

	assert.Equal(t, "Album export failed", entry["message"])
	assert.Equal(t, "ORL-1", entry["part_number"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "albumzip", entry["app"])
	assert.Equal(t, "info", entry["level"])
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base, err := newWithWriter(&config.LoggingConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	child := base.WithField("part_number", "A")
	child.Info("child")
	base.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"part_number":"A"`)
	assert.NotContains(t, lines[1], "part_number")
}

func TestLogAlbum(t *testing.T) {
	tl := NewTestLogger()

	LogAlbum(tl, "A", "A_export.zip", true, time.Second, nil)
	LogAlbum(tl, "B", "", false, time.Second, errors.New("timed out"))
	LogAlbum(tl, "C", "", false, time.Second, nil)

	msgs := tl.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "INFO", msgs[0].Level)
	assert.Equal(t, "A_export.zip", msgs[0].Fields["file"])
	assert.Equal(t, "ERROR", msgs[1].Level)
	assert.EqualError(t, msgs[1].Error, "timed out")
	assert.Equal(t, "WARN", msgs[2].Level)
}

func TestTestLoggerSharesSink(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "batch")
	child.Warn("slow")

	require.True(t, tl.HasMessage("slow"))
	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, "batch", warns[0].Fields["component"])
}
