package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "", want: slog.LevelInfo},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h).With("repo", "o/r")

	logger.Debug("cache miss")
	logger.Warn("rate limited")

	assert.Contains(t, debugBuf.String(), "cache miss")
	assert.Contains(t, debugBuf.String(), "rate limited")
	assert.NotContains(t, warnBuf.String(), "cache miss")
	assert.Contains(t, warnBuf.String(), "rate limited")
	assert.Contains(t, warnBuf.String(), "repo=o/r")
}

func TestMultiHandler_Enabled(t *testing.T) {
	h := NewMultiHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
	)

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandler_ContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(
		failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)},
		slog.NewTextHandler(&buf, nil),
	)

	err := slog.New(h).Handler().Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0))

	assert.EqualError(t, err, "sink down")
	assert.Contains(t, buf.String(), "hello")
}

func TestSetup_WritesFileAndStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "monitor.log")
	var stderr bytes.Buffer

	logger, closer, err := Setup(Options{File: path, Level: "info", Stderr: &stderr})
	require.NoError(t, err)

	logger.Info("server listening", "addr", "127.0.0.1:3001")
	logger.Debug("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "server listening")
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, stderr.String(), "server listening")
}

func TestSetup_TUIModeSkipsStderr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")
	var stderr bytes.Buffer

	logger, closer, err := Setup(Options{File: path, Level: "debug", TUI: true, Stderr: &stderr})
	require.NoError(t, err)

	logger.Debug("polled target")
	require.NoError(t, closer.Close())

	assert.Empty(t, stderr.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "polled target")
}

func TestSetup_RejectsUnknownLevel(t *testing.T) {
	_, _, err := Setup(Options{File: filepath.Join(t.TempDir(), "x.log"), Level: "loud"})

	assert.Error(t, err)
}
