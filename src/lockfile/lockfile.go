package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// ErrLocked is returned when another process already holds the lock.
var ErrLocked = errors.New("another run is active")

// Lock holds an exclusive advisory flock on a well-known path. The lock
// lives on the open descriptor, not on file content, so it is released by
// the kernel when the process exits for any reason.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes a non-blocking exclusive lock on path, creating the file
// if needed. If another process holds the lock it returns an error wrapping
// ErrLocked and makes no other filesystem changes.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK || err == syscall.EAGAIN {
			return nil, fmt.Errorf("%w (lock held on %s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &Lock{path: path, file: f}, nil
}

// Release drops the lock and closes the descriptor. Safe to call once on a
// lock obtained from Acquire; the kernel would release it at exit anyway.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return closeErr
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }
