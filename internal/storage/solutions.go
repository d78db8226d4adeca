package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	solutionExt      = ".js"
	solutionLockName = ".solutions.lock"
)

var (
	// ErrInvalidKey is returned for assignment names that cannot be stored.
	ErrInvalidKey = errors.New("invalid solution key")

	// ErrStoreBusy is returned when another process holds the store lock.
	ErrStoreBusy = errors.New("solution store is locked by another process")
)

// SolutionStore persists one source text per assignment name in a directory.
// Writes are atomic and serialized across processes by a lock file.
type SolutionStore struct {
	dir string
}

// NewSolutionStore returns a store rooted at dir, creating it if needed.
func NewSolutionStore(dir string) (*SolutionStore, error) {
	if dir == "" {
		return nil, errors.New("solution directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create solution directory: %w", err)
	}
	return &SolutionStore{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *SolutionStore) Dir() string { return s.dir }

func (s *SolutionStore) path(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	name := url.PathEscape(key)
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, name+solutionExt), nil
}

// Save replaces the stored source for key.
func (s *SolutionStore) Save(key, source string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	lock, ok, err := AcquireLock(filepath.Join(s.dir, solutionLockName))
	if err != nil {
		return fmt.Errorf("failed to lock solution store: %w", err)
	}
	if !ok {
		return ErrStoreBusy
	}
	defer ReleaseLock(lock)

	if err := AtomicWriteFile(p, []byte(source), 0644); err != nil {
		return fmt.Errorf("failed to save solution %q: %w", key, err)
	}
	return nil
}

// Load returns the stored source for key. It reports found=false when no
// solution has been saved.
func (s *SolutionStore) Load(key string) (source string, found bool, err error) {
	p, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read solution %q: %w", key, err)
	}
	return string(data), true, nil
}

// Delete removes the stored source for key. Deleting a missing key is not an
// error.
func (s *SolutionStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete solution %q: %w", key, err)
	}
	return nil
}

// Keys lists every stored assignment name, sorted.
func (s *SolutionStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read solution directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != solutionExt {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, solutionExt))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
