package program

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dop251/goja_nodejs/require"
	"github.com/google/uuid"
	"github.com/joeycumines/karol/internal/storage"
)

// workspace is the private directory one run compiles and loads from. It
// holds an exclusive lock for its whole life so the stale-workspace sweeper
// never removes it from under a live run.
type workspace struct {
	dir  string
	lock *os.File
	once sync.Once
	err  error
}

func newWorkspace(root string) (*workspace, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	dir := filepath.Join(root, storage.WorkspacePrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	lock, ok, err := storage.AcquireLock(filepath.Join(dir, storage.WorkspaceLockName))
	if err == nil && !ok {
		err = storage.ErrWouldBlock
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to lock workspace: %w", err)
	}
	return &workspace{dir: dir, lock: lock}, nil
}

// writeSource stores src as <name>.js and returns the file name relative to
// the workspace.
func (w *workspace) writeSource(name, src string) (string, error) {
	file := name + ".js"
	if err := os.WriteFile(filepath.Join(w.dir, file), []byte(src), 0600); err != nil {
		return "", fmt.Errorf("failed to write source: %w", err)
	}
	return file, nil
}

// rename moves a workspace file to <name>.js and returns the new name.
func (w *workspace) rename(file, name string) (string, error) {
	to := name + ".js"
	if to == file {
		return file, nil
	}
	if err := os.Rename(filepath.Join(w.dir, file), filepath.Join(w.dir, to)); err != nil {
		return "", fmt.Errorf("failed to rename source: %w", err)
	}
	return to, nil
}

// load is the require source loader. It only serves regular files inside
// the workspace; anything else looks like a missing file to the resolver.
func (w *workspace) load(p string) ([]byte, error) {
	rel := filepath.FromSlash(p)
	if !filepath.IsLocal(rel) {
		return nil, require.ModuleFileDoesNotExistError
	}
	full := filepath.Join(w.dir, rel)
	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, require.ModuleFileDoesNotExistError
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, require.ModuleFileDoesNotExistError
	}
	return os.ReadFile(full)
}

// close releases the lock and removes the directory. It is idempotent and
// returns the first call's result on every call.
func (w *workspace) close() error {
	w.once.Do(func() {
		lockErr := storage.ReleaseLock(w.lock)
		w.err = errors.Join(lockErr, os.RemoveAll(w.dir))
	})
	return w.err
}
