package turnip

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// WorkspaceLock is an exclusive flock held on <workdir>.lock for one run.
type WorkspaceLock struct {
	f    *os.File
	path string
}

// lockWorkspace takes the run lock without blocking.
func lockWorkspace(lockPath string) (*WorkspaceLock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%w: %s", ErrWorkdirBusy, lockPath)
			}
			return nil, fmt.Errorf("failed to lock %s: %w", lockPath, err)
		}
		// The previous holder unlinks the file before unlocking, so the inode
		// we locked may no longer be the one at lockPath.
		if isCurrentLockFile(f, lockPath) {
			f.Truncate(0)
			fmt.Fprintf(f, "%d\n", os.Getpid())
			return &WorkspaceLock{f: f, path: lockPath}, nil
		}
		debugf("lock file %s was replaced, retrying\n", lockPath)
		f.Close()
	}
}

// isCurrentLockFile reports whether f is still the file linked at path.
func isCurrentLockFile(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	onDisk, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, onDisk)
}

// Release removes the lock file while still holding the lock, then unlocks.
func (l *WorkspaceLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() { l.f = nil }()
	_ = os.Remove(l.path)
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}

// resetWorkspace deletes dir if present and recreates it empty.
func resetWorkspace(dir string) error {
	if err := checkResettable(dir); err != nil {
		return err
	}
	if _, err := os.Lstat(dir); err == nil {
		debugf("Removing existing work directory %s\n", dir)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

// checkResettable refuses paths whose removal would be catastrophic.
func checkResettable(dir string) error {
	if dir == "" {
		return fmt.Errorf("refusing to reset an empty work directory path")
	}
	clean := filepath.Clean(dir)
	if !filepath.IsAbs(clean) {
		return fmt.Errorf("work directory must be absolute: %s", dir)
	}
	if clean == "/" {
		return fmt.Errorf("refusing to reset /")
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == clean {
		return fmt.Errorf("refusing to reset the home directory %s", clean)
	}
	return nil
}

// removeWorkspace deletes the work directory while holding the run lock.
func removeWorkspace(p Paths) error {
	if err := checkResettable(p.WorkDir); err != nil {
		return err
	}
	lock, err := lockWorkspace(p.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release()
	if err := os.RemoveAll(p.WorkDir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", p.WorkDir, err)
	}
	return nil
}
