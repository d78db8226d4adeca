// Package logging provides the slog setup shared by the karol CLI and MCP
// server: a bounded in-memory history of records that can also be teed to a
// text handler.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultMaxEntries = 1000

// Entry is a single retained log record.
type Entry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// ring is the history shared by a handler and every handler derived from it
// through WithAttrs or WithGroup.
type ring struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
}

func (r *ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.maxSize; over > 0 {
		r.entries = append(r.entries[:0], r.entries[over:]...)
	}
}

// Handler is a slog.Handler that keeps the most recent records in memory and
// optionally forwards every record to another handler.
type Handler struct {
	ring   *ring
	level  slog.Leveler
	next   slog.Handler
	attrs  []slog.Attr
	prefix string
}

// NewHandler returns a Handler retaining up to maxEntries records at or above
// level. next may be nil.
func NewHandler(level slog.Leveler, maxEntries int, next slog.Handler) *Handler {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{
		ring:  &ring{entries: make([]Entry, 0, min(maxEntries, 64)), maxSize: maxEntries},
		level: level,
		next:  next,
	}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.String()
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[h.prefix+a.Key] = a.Value.String()
		return true
	})
	h.ring.add(Entry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})

	if h.next != nil && h.next.Enabled(ctx, record.Level) {
		return h.next.Handle(ctx, record)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}

// Entries returns a copy of every retained record, oldest first.
func (h *Handler) Entries() []Entry {
	h.ring.mu.RLock()
	defer h.ring.mu.RUnlock()
	out := make([]Entry, len(h.ring.entries))
	copy(out, h.ring.entries)
	return out
}

// Recent returns up to n of the newest records, oldest first. n <= 0 returns
// everything.
func (h *Handler) Recent(n int) []Entry {
	h.ring.mu.RLock()
	defer h.ring.mu.RUnlock()
	if n <= 0 || n > len(h.ring.entries) {
		n = len(h.ring.entries)
	}
	out := make([]Entry, n)
	copy(out, h.ring.entries[len(h.ring.entries)-n:])
	return out
}

// Search returns the records whose message, attribute keys or attribute
// values contain query, case-insensitively.
func (h *Handler) Search(query string) []Entry {
	h.ring.mu.RLock()
	defer h.ring.mu.RUnlock()

	query = strings.ToLower(query)
	var matches []Entry
	for _, e := range h.ring.entries {
		if strings.Contains(strings.ToLower(e.Message), query) {
			matches = append(matches, e)
			continue
		}
		for k, v := range e.Attrs {
			if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// Clear drops every retained record.
func (h *Handler) Clear() {
	h.ring.mu.Lock()
	defer h.ring.mu.Unlock()
	h.ring.entries = h.ring.entries[:0]
}

// New returns a logger backed by a Handler. Records are also written as text
// to w when w is non-nil.
func New(w io.Writer, level slog.Level, maxEntries int) (*slog.Logger, *Handler) {
	var next slog.Handler
	if w != nil {
		next = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	h := NewHandler(level, maxEntries, next)
	return slog.New(h), h
}

// ParseLevel maps debug, info, warn and error (any case) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
