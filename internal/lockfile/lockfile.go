// Package lockfile provides non-blocking advisory locks on files.
package lockfile // import "github.com/Xunop/bookworm/internal/lockfile"

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrLocked is returned by TryLock when another holder has the lock.
var ErrLocked = errors.New("lockfile: already locked")

// Lock is an exclusive flock held on an open file. The kernel drops it if
// the process dies, so a stale file never blocks the next run.
type Lock struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// TryLock takes an exclusive lock on path without waiting. The file is
// created if needed and receives the holder's pid.
func TryLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "create lock directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open lock file %s", path)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errors.Wrap(ErrLocked, path)
		}
		return nil, errors.Wrapf(err, "lock %s", path)
	}

	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{path: path, file: f}, nil
}

func (l *Lock) Path() string {
	return l.path
}

// Unlock releases the lock. Calling it more than once is harmless.
func (l *Lock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
