package chunk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/hydroline-data/swathproc/internal/security"
)

// Synchronizer hands out cross-process locks keyed by resource path, so
// two runs never write the same dataset directory at once. Lock files live
// under a shared directory and survive crashes; the OS releases the
// underlying flock when the holder dies.
type Synchronizer struct {
	dir string

	mu    sync.Mutex
	locks map[string]*flock.Flock
}

// NewSynchronizer creates the lock directory if needed.
func NewSynchronizer(dir string) (*Synchronizer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &Synchronizer{dir: dir, locks: make(map[string]*flock.Flock)}, nil
}

// lockFile maps a resource path to its lock file name. Resource names are
// caller-supplied dataset paths, so they get flattened to one safe file
// name and the result is checked to stay inside the lock directory.
func (s *Synchronizer) lockFile(resource string) (string, error) {
	path := filepath.Join(s.dir, security.SanitizeFilename(resource)+".lock")
	if err := security.ValidatePathWithinDirectory(path, s.dir); err != nil {
		return "", fmt.Errorf("lock file for %s: %w", resource, err)
	}
	return path, nil
}

func (s *Synchronizer) handle(resource string) (*flock.Flock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.locks[resource]
	if !ok {
		path, err := s.lockFile(resource)
		if err != nil {
			return nil, err
		}
		f = flock.New(path)
		s.locks[resource] = f
	}
	return f, nil
}

// Acquire blocks until the resource lock is held or ctx is done.
func (s *Synchronizer) Acquire(ctx context.Context, resource string) error {
	f, err := s.handle(resource)
	if err != nil {
		return err
	}
	ok, err := f.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", resource, err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", resource)
	}
	return nil
}

// TryAcquire attempts the lock without blocking.
func (s *Synchronizer) TryAcquire(resource string) (bool, error) {
	f, err := s.handle(resource)
	if err != nil {
		return false, err
	}
	ok, err := f.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", resource, err)
	}
	return ok, nil
}

// Release drops the resource lock. Releasing an unheld lock is a no-op.
func (s *Synchronizer) Release(resource string) error {
	s.mu.Lock()
	f, ok := s.locks[resource]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := f.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", resource, err)
	}
	return nil
}
