package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// RotatingFile is an io.WriteCloser that appends to a log file and shifts it
// to numbered backups (path.1, path.2, ...) once it would grow past a size
// limit. A single write is never split across files. Safe for concurrent use.
type RotatingFile struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	backups  int
	size     int64
	f        *os.File
}

var _ io.WriteCloser = (*RotatingFile)(nil)

// OpenRotatingFile opens path for appending. maxSizeMB is raised to 1 if
// smaller; backups is the number of old files kept (0 keeps none).
func OpenRotatingFile(path string, maxSizeMB, backups int) (*RotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	r := &RotatingFile{
		path:     path,
		maxBytes: int64(max(maxSizeMB, 1)) << 20,
		backups:  max(backups, 0),
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("log file: %w", err)
	}
	r.f, r.size = f, info.Size()
	return nil
}

// Write implements io.Writer.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return 0, os.ErrClosed
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("log file rotate: %w", err)
		}
	}
	n, err := r.f.Write(p)
	r.size += int64(n)
	return n, err
}

// Close implements io.Closer.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *RotatingFile) backup(n int) string {
	return r.path + "." + strconv.Itoa(n)
}

// rotate requires r.mu.
func (r *RotatingFile) rotate() error {
	if err := r.f.Close(); err != nil {
		return err
	}
	// Oldest first, so each rename lands on a slot already vacated.
	_ = os.Remove(r.backup(r.backups))
	for n := r.backups - 1; n >= 1; n-- {
		_ = os.Rename(r.backup(n), r.backup(n+1))
	}
	if r.backups > 0 {
		_ = os.Rename(r.path, r.backup(1))
	} else {
		_ = os.Remove(r.path)
	}
	return r.open()
}
