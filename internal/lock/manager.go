// Package lock guards mutating file operations with OS-level advisory
// locks, so two processes pointed at the same sandbox cannot interleave
// writes to one file.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrLockTimeout is returned when acquiring a lock times out.
	ErrLockTimeout = errors.New("timeout acquiring lock")
	// ErrPathRequired is returned when the path is empty.
	ErrPathRequired = errors.New("path is required")
	// ErrNilLock is returned when a nil lock handle is released.
	ErrNilLock = errors.New("nil lock handle")
)

// pollInterval is how often a contended lock is retried.
const pollInterval = 10 * time.Millisecond

// FileLock is a held lock on one file.
type FileLock struct {
	Path  string
	flock *flock.Flock
}

// Manager acquires and releases per-file locks.
type Manager interface {
	AcquireLock(path string, timeout time.Duration) (*FileLock, error)
	ReleaseLock(l *FileLock) error
}

// FlockManager implements Manager with gofrs/flock sidecar lock files.
type FlockManager struct{}

// NewFlockManager initializes and returns a new FlockManager.
func NewFlockManager() *FlockManager {
	return &FlockManager{}
}

var _ Manager = (*FlockManager)(nil)

// AcquireLock attempts to acquire an exclusive OS-level lock for the file.
func (m *FlockManager) AcquireLock(path string, timeout time.Duration) (*FileLock, error) {
	if path == "" {
		return nil, ErrPathRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, pollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, fmt.Errorf("acquiring file lock for %s: %w", path, err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	return &FileLock{Path: path, flock: fl}, nil
}

// ReleaseLock releases the given OS-level lock and removes the sidecar
// file, so the sidecar never lingers in the sandbox where a later directory
// analysis or batch read would pick it up.
func (m *FlockManager) ReleaseLock(l *FileLock) error {
	if l == nil {
		return ErrNilLock
	}
	if l.flock != nil {
		_ = l.flock.Unlock()
		_ = os.Remove(l.flock.Path())
	}
	return nil
}
