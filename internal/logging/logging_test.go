package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_RingBound(t *testing.T) {
	logger, h := New(nil, slog.LevelDebug, 3)
	for i := 0; i < 5; i++ {
		logger.Info(fmt.Sprintf("msg %d", i))
	}
	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "msg 2", entries[0].Message)
	assert.Equal(t, "msg 4", entries[2].Message)

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "msg 3", recent[0].Message)
	assert.Len(t, h.Recent(0), 3)

	h.Clear()
	assert.Empty(t, h.Entries())
}

func TestHandler_LevelFilter(t *testing.T) {
	logger, h := New(nil, slog.LevelWarn, 10)
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown too")
	assert.Len(t, h.Entries(), 2)
}

func TestHandler_AttrsAndGroups(t *testing.T) {
	logger, h := New(nil, slog.LevelInfo, 10)
	logger.With("run", "abc").WithGroup("robot").Info("moved", "x", 3)

	entries := h.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]string{"run": "abc", "robot.x": "3"}, entries[0].Attrs)
}

func TestHandler_Search(t *testing.T) {
	logger, h := New(nil, slog.LevelInfo, 10)
	logger.Info("stage complete", "stage", "compile")
	logger.Info("hello from user code", "source", "console")
	logger.Info("unrelated")

	assert.Len(t, h.Search("COMPILE"), 1)
	assert.Len(t, h.Search("console"), 1)
	assert.Len(t, h.Search("nothing"), 0)
}

func TestNew_TeesToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(&buf, slog.LevelInfo, 10)
	logger.Info("to the writer", "k", "v")
	assert.Contains(t, buf.String(), "to the writer")
	assert.Contains(t, buf.String(), "k=v")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "": slog.LevelInfo,
		"warn": slog.LevelWarn, "Warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "karol.log")
	r, err := OpenRotatingFile(path, 1, 2)
	require.NoError(t, err)
	defer r.Close()

	chunk := []byte(strings.Repeat("x", 600*1024))
	for i := 0; i < 4; i++ {
		_, err := r.Write(chunk)
		require.NoError(t, err)
	}

	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())

	require.NoError(t, r.Close())
	_, err = r.Write(chunk)
	assert.ErrorIs(t, err, os.ErrClosed)
}
