package program

import (
	"context"
	"log/slog"
	"sync"
)

const maxConsoleLines = 1000

// ConsoleLine is one line written by user code through console.log,
// console.warn or console.error.
type ConsoleLine struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// consoleCapture is the console printer installed in the sandbox. It keeps a
// bounded transcript for the run report and forwards each line to the log.
type consoleCapture struct {
	logger  *slog.Logger
	mu      sync.Mutex
	lines   []ConsoleLine
	dropped int
}

func newConsoleCapture(logger *slog.Logger) *consoleCapture {
	return &consoleCapture{logger: logger.With("source", "console")}
}

func (c *consoleCapture) Log(s string)   { c.add("log", slog.LevelInfo, s) }
func (c *consoleCapture) Warn(s string)  { c.add("warn", slog.LevelWarn, s) }
func (c *consoleCapture) Error(s string) { c.add("error", slog.LevelError, s) }

func (c *consoleCapture) add(level string, lvl slog.Level, s string) {
	c.logger.Log(context.Background(), lvl, s)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) >= maxConsoleLines {
		c.dropped++
		return
	}
	c.lines = append(c.lines, ConsoleLine{Level: level, Text: s})
}

// transcript returns the captured lines and how many were dropped once the
// limit was reached.
func (c *consoleCapture) transcript() ([]ConsoleLine, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ConsoleLine, len(c.lines))
	copy(out, c.lines)
	return out, c.dropped
}
