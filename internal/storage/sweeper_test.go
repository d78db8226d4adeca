package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWorkspace creates a workspace directory with a source file and backdates
// it by age.
func makeWorkspace(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, WorkspacePrefix+name)
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.js"), []byte("//"), 0600))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(dir, old, old))
	return dir
}

func TestSweeper_RemovesStaleWorkspaces(t *testing.T) {
	root := t.TempDir()
	stale := makeWorkspace(t, root, "stale", 2*time.Hour)
	fresh := makeWorkspace(t, root, "fresh", time.Minute)
	unrelated := filepath.Join(root, "keep-me")
	require.NoError(t, os.MkdirAll(unrelated, 0700))

	report, err := (&Sweeper{Root: root, MaxAge: time.Hour}).Sweep()
	require.NoError(t, err)

	assert.Equal(t, []string{WorkspacePrefix + "stale"}, report.Removed)
	assert.Equal(t, []string{WorkspacePrefix + "fresh"}, report.Skipped)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, unrelated)
	assert.NoFileExists(t, filepath.Join(root, sweepLockName))
}

func TestSweeper_SkipsLockedWorkspace(t *testing.T) {
	root := t.TempDir()
	dir := makeWorkspace(t, root, "live", 2*time.Hour)

	lock, ok, err := AcquireLock(filepath.Join(dir, WorkspaceLockName))
	require.NoError(t, err)
	require.True(t, ok)
	defer ReleaseLock(lock)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(dir, old, old))

	report, err := (&Sweeper{Root: root, MaxAge: time.Hour}).Sweep()
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
	assert.Equal(t, []string{WorkspacePrefix + "live"}, report.Skipped)
	assert.FileExists(t, filepath.Join(dir, "Main.js"))
}

func TestSweeper_DryRun(t *testing.T) {
	root := t.TempDir()
	dir := makeWorkspace(t, root, "stale", 2*time.Hour)

	report, err := (&Sweeper{Root: root, MaxAge: time.Hour, DryRun: true}).Sweep()
	require.NoError(t, err)
	assert.Equal(t, []string{WorkspacePrefix + "stale"}, report.Removed)
	assert.DirExists(t, dir)
}

func TestSweeper_GracePeriod(t *testing.T) {
	root := t.TempDir()
	dir := makeWorkspace(t, root, "young", time.Second)

	report, err := (&Sweeper{Root: root}).Sweep()
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
	assert.DirExists(t, dir)
}

func TestSweeper_MissingRoot(t *testing.T) {
	report, err := (&Sweeper{Root: filepath.Join(t.TempDir(), "nope")}).Sweep()
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
}
