package turnip

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetWorkspaceCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	require.NoError(t, resetWorkspace(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResetWorkspaceEmptiesDirtyDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	writeFile(t, filepath.Join(dir, "mesa-main", "meson.build"), "project('mesa')")
	writeFile(t, filepath.Join(dir, "stale.zip"), "zip")

	require.NoError(t, resetWorkspace(dir))
	require.NoError(t, resetWorkspace(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResetWorkspaceRefusesDangerousPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	for _, dir := range []string{"", "/", "relative/dir", home} {
		assert.Error(t, checkResettable(dir), "path %q", dir)
	}
	assert.NoError(t, checkResettable(filepath.Join(t.TempDir(), "work")))
}

func TestLockWorkspaceConflict(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "work.lock")

	first, err := lockWorkspace(lockPath)
	require.NoError(t, err)

	_, err = lockWorkspace(lockPath)
	require.ErrorIs(t, err, ErrWorkdirBusy)

	require.NoError(t, first.Release())
	second, err := lockWorkspace(lockPath)
	require.NoError(t, err)
	require.NoError(t, second.Release())
	assert.NoFileExists(t, lockPath)
}

func TestLockFileReplacedAfterOpen(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "work.lock")

	// A run that opened the lock file just before its holder released it.
	first, err := lockWorkspace(lockPath)
	require.NoError(t, err)
	stale, err := os.Open(lockPath)
	require.NoError(t, err)
	defer stale.Close()
	require.NoError(t, first.Release())
	assert.False(t, isCurrentLockFile(stale, lockPath))

	// A third run recreates the file and owns the lock.
	third, err := lockWorkspace(lockPath)
	require.NoError(t, err)
	defer third.Release()
	assert.False(t, isCurrentLockFile(stale, lockPath))
	assert.True(t, isCurrentLockFile(third.f, lockPath))

	_, err = lockWorkspace(lockPath)
	require.ErrorIs(t, err, ErrWorkdirBusy)
}

func TestRemoveWorkspace(t *testing.T) {
	bc := testBuildConfig(t)
	p := bc.Paths()
	writeFile(t, filepath.Join(p.WorkDir, "turnip_main_magisk.zip"), "x")

	require.NoError(t, removeWorkspace(p))
	assert.NoDirExists(t, p.WorkDir)
}

func TestRemoveWorkspaceWhileLocked(t *testing.T) {
	bc := testBuildConfig(t)
	p := bc.Paths()
	require.NoError(t, os.MkdirAll(p.WorkDir, 0o755))

	lock, err := lockWorkspace(p.LockFile)
	require.NoError(t, err)
	defer lock.Release()

	require.ErrorIs(t, removeWorkspace(p), ErrWorkdirBusy)
	assert.DirExists(t, p.WorkDir)
}
