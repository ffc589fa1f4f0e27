package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name          string
		logsDir       string
		extensionName string
		want          string
	}{
		{
			name:          "basic path",
			logsDir:       "fclogs",
			extensionName: "firecontrol",
			want:          filepath.Join("fclogs", "firecontrol.20260212_213836.log"),
		},
		{
			name:          "relative path with dot",
			logsDir:       "./fclogs",
			extensionName: "firecontrol",
			want:          filepath.Join(".", "fclogs", "firecontrol.20260212_213836.log"),
		},
		{
			name:          "absolute path",
			logsDir:       filepath.Join("/var", "log", "fc"),
			extensionName: "firecontrol_x64",
			want:          filepath.Join("/var", "log", "fc", "firecontrol_x64.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, tt.extensionName, sessionStart))
		})
	}
}

func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	lj := RotatingFile(dir, "firecontrol", start)
	t.Cleanup(func() { lj.Close() })

	assert.Equal(t, filepath.Join(dir, "firecontrol.20261018_090000.log"), lj.Filename)
	assert.Equal(t, MaxLogSizeMB, lj.MaxSize)
	assert.Equal(t, MaxLogBackups, lj.MaxBackups)

	m := NewSlogManager()
	m.Setup(lj, "info", nil)
	m.Logger().Info("solution computed", "distance", 1000.0)

	data, err := os.ReadFile(lj.Filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), "solution computed")
	assert.Contains(t, string(data), "distance=1000")
}

func TestContextHandler_AddsDynamicAttrs(t *testing.T) {
	var buf bytes.Buffer
	weapon := "M119A2"

	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("weapon", weapon)}
	})
	logger := slog.New(h)

	logger.Info("first")
	weapon = "M252"
	logger.Info("second")

	out := buf.String()
	assert.Contains(t, out, "msg=first weapon=M119A2")
	assert.Contains(t, out, "msg=second weapon=M252")
}

func TestContextHandler_NilProvider(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil))
	logger.Info("plain")
	assert.Contains(t, buf.String(), "plain")
}

func TestContextHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.Int("n", 1)}
	})

	assert.Same(t, h, h.WithGroup(""))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))

	slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "solver")})).WithGroup("g").Info("grouped", "k", "v")
	out := buf.String()
	assert.Contains(t, out, "component=solver")
	assert.Contains(t, out, "g.k=v")
}

func TestSlogManager_WithContext(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	logger := m.WithContext(func() []slog.Attr {
		return []slog.Attr{slog.String("world", "Altis")}
	})
	logger.Info("mission logged")

	assert.Contains(t, buf.String(), "world=Altis")
}
