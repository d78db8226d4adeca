package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// WorkspacePrefix names every run workspace directory.
	WorkspacePrefix = "karol-run-"

	// WorkspaceLockName is the lock file a live run holds inside its workspace.
	WorkspaceLockName = ".lock"

	sweepLockName = ".karol-sweep.lock"

	defaultMinAge = 5 * time.Second
)

// Sweeper removes run workspaces that outlived the process that created
// them. A workspace whose lock is still held is never touched.
type Sweeper struct {
	// Root is the directory run workspaces are created in.
	Root string
	// MaxAge is how long a workspace must go unmodified before it is a
	// candidate. Values below a short grace period are raised to it, so a
	// workspace that has been created but not yet locked is left alone.
	MaxAge time.Duration
	// DryRun reports what would be removed without touching the filesystem.
	DryRun bool

	now func() time.Time
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Removed []string
	Skipped []string
}

// Sweep scans Root once.
func (s *Sweeper) Sweep() (*SweepReport, error) {
	if s.Root == "" {
		return nil, fmt.Errorf("sweeper root cannot be empty")
	}

	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return &SweepReport{}, nil
		}
		return nil, fmt.Errorf("failed to read workspace root %q: %w", s.Root, err)
	}

	globalLock, ok, err := AcquireLock(filepath.Join(s.Root, sweepLockName))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", ErrWouldBlock)
	}
	defer ReleaseLock(globalLock)

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	minAge := max(s.MaxAge, defaultMinAge)
	cutoff := now().Add(-minAge)

	var report SweepReport
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, WorkspacePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		if s.DryRun {
			report.Removed = append(report.Removed, name)
			continue
		}
		if s.removeWorkspace(filepath.Join(s.Root, name)) {
			report.Removed = append(report.Removed, name)
		} else {
			report.Skipped = append(report.Skipped, name)
		}
	}

	sort.Strings(report.Removed)
	sort.Strings(report.Skipped)
	return &report, nil
}

// removeWorkspace deletes dir if its lock can be taken. The contents go
// first while the lock is held, then the lock file, then the directory.
func (s *Sweeper) removeWorkspace(dir string) bool {
	lock, ok, err := AcquireLock(filepath.Join(dir, WorkspaceLockName))
	if err != nil || !ok {
		return false
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		_ = lock.Close()
		return false
	}
	for _, e := range entries {
		if e.Name() == WorkspaceLockName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			_ = lock.Close()
			return false
		}
	}

	if err := ReleaseLock(lock); err != nil {
		return false
	}
	return os.Remove(dir) == nil
}
