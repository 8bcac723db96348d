// Package lockfile takes advisory, non-blocking, cross-process locks on a
// path. A second process (or a second Lock in the same process) trying the
// same path gets [ErrWouldBlock] instead of waiting.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrWouldBlock is returned by [TryLock] when the path is locked elsewhere.
var ErrWouldBlock = errors.New("lock held by another process")

// errReplaced means the file at path changed between open and lock.
var errReplaced = errors.New("lock file replaced")

const (
	filePerm = 0o600
	dirPerm  = 0o755

	maxReplacedRetries = 8
)

// Lock is a held lock. Close releases it; Close is idempotent.
type Lock struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Path returns the locked path.
func (l *Lock) Path() string {
	return l.path
}

// TryLock takes an exclusive lock on path, creating the file and its parent
// folder when needed.
func TryLock(path string) (*Lock, error) {
	for range maxReplacedRetries {
		f, err := openLockFile(path)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}

		err = acquire(f, path)
		if err == nil {
			return &Lock{file: f, path: path}, nil
		}

		_ = f.Close()

		if errors.Is(err, errReplaced) {
			continue
		}

		if errors.Is(err, ErrWouldBlock) {
			return nil, fmt.Errorf("lock %s: %w", path, ErrWouldBlock)
		}

		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	return nil, fmt.Errorf("lock %s: %w", path, errReplaced)
}

// Close releases the lock. The lock file itself stays in place.
func (l *Lock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, unlockErr)
	}

	if closeErr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, closeErr)
	}

	return nil
}

func openLockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, filePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	err = os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return nil, err
	}

	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, filePerm)
}

// acquire locks f and then checks that f is still the file at path. Locks
// belong to the open file, not the name: if the name was swapped for a new
// file in between, two holders would lock different files.
func acquire(f *os.File, path string) error {
	err := lockFile(f)
	if err != nil {
		return err
	}

	held, err := f.Stat()
	if err != nil {
		_ = unlock(f)
		return err
	}

	current, err := os.Stat(path)
	if err != nil {
		_ = unlock(f)

		if errors.Is(err, os.ErrNotExist) {
			return errReplaced
		}

		return err
	}

	if !os.SameFile(held, current) {
		_ = unlock(f)
		return errReplaced
	}

	return nil
}
