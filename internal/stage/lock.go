package stage

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"loopforge/internal/fileutil"
)

// Lock enforces single-instance execution for one stage. Two watcher
// processes draining the same input directory would double-process items.
type Lock struct {
	path string
	lock *flock.Flock
}

// NewLock creates a lock file handle for the named stage under dir.
func NewLock(dir, stageName string) *Lock {
	path := filepath.Join(dir, stageName+".lock")
	return &Lock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. It fails if another instance of
// the same stage already holds it.
func (l *Lock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire stage lock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("stage lock %s is held by another process", l.path)
	}
	return nil
}

// Release drops the lock and removes the lock file so stale files do not
// accumulate in the log directory.
func (l *Lock) Release() error {
	if err := l.lock.Unlock(); err != nil {
		return err
	}
	return fileutil.RemoveIfExists(l.path)
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}
