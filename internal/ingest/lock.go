package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WriterLock enforces single-writer ingestion per data directory using
// a cross-process file lock. Readers are unaffected; the SQLite WAL and
// the immutable index snapshots stay consistent for them.
type WriterLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriterLock creates the ingestion lock for a data directory.
// The lock file lives at <dataDir>/.ingest.lock.
func NewWriterLock(dataDir string) *WriterLock {
	lockPath := filepath.Join(dataDir, ".ingest.lock")
	return &WriterLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns false when another ingestion holds it.
func (l *WriterLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire ingest lock: %w", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked WriterLock.
func (l *WriterLock) Unlock() error {
	if !l.locked {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("failed to release ingest lock: %w", err)
	}

	l.locked = false
	return nil
}

// Path returns the lock file path.
func (l *WriterLock) Path() string {
	return l.path
}
