package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aihub/internal/infra/config"
)

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	log, closer, err := New(config.LoggerConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	log.Debug("hello", "k", "v")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), tt.input)
	}
}

func TestOpenOutput(t *testing.T) {
	w, closer, err := openOutput("stdout")
	require.NoError(t, err)
	assert.Same(t, os.Stdout, w)
	assert.NoError(t, closer())

	w, closer, err = openOutput("")
	require.NoError(t, err)
	assert.Same(t, os.Stderr, w)
	assert.NoError(t, closer())
}

func TestLineHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewLineHandler(&buf, slog.LevelInfo)
	log := slog.New(h).With("run", "01J")

	log.Debug("hidden")
	log.WithGroup("tool").Info("called exec_command", "command", "ls -l", "code", 0)

	line := buf.String()
	require.True(t, strings.HasSuffix(line, "\n"))
	require.Equal(t, 1, strings.Count(line, "\n"))

	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	_, err := time.Parse(time.RFC3339, fields[0])
	require.NoError(t, err)
	assert.Equal(t, "INFO", fields[1])
	assert.Equal(t, `called exec_command run=01J tool.command="ls -l" tool.code=0`, fields[2])
}

func TestNewFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system_log.txt")
	for _, msg := range []string{"first", "second"} {
		log, closer, err := NewFileLogger(path, "info")
		require.NoError(t, err)
		log.InfoContext(context.Background(), msg)
		require.NoError(t, closer())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "INFO first"))
	assert.True(t, strings.HasSuffix(lines[1], "INFO second"))
}
