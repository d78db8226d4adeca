// Package storage holds the on-disk pieces of karol: exclusive file locks,
// atomic writes, the solution store, and the sweeper that removes run
// workspaces left behind by crashed processes.
package storage

import (
	"errors"
	"os"
)

// ErrWouldBlock signals that a non-blocking lock attempt failed because
// another handle holds the lock.
var ErrWouldBlock = errors.New("file lock would block")

// AcquireLock attempts to take an exclusive, non-blocking lock on path,
// creating the file if needed. It reports ok=false with a nil error when the
// lock is held elsewhere.
func AcquireLock(path string) (f *os.File, ok bool, err error) {
	f, err = acquireFileLock(path)
	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return f, true, nil
}

// ReleaseLock releases a lock taken by AcquireLock and removes the lock file.
func ReleaseLock(f *os.File) error { return releaseFileLock(f) }
