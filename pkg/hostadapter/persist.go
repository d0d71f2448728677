package hostadapter

import (
	"context"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
)

// Store implements the host's optional object-store adapter (spec.md:
// "save(snapshot_bytes) and load() -> Option<bytes>") against a single
// local file, guarded by a gofrs/flock lock so a concurrent save and load
// from another process never interleave. Transient lock contention is
// retried with cenkalti/backoff rather than failing outright.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a Store persisting snapshots to path.
func NewStore(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	op := func() error {
		locked, err := s.lock.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !locked {
			return context.DeadlineExceeded
		}
		defer s.lock.Unlock()
		return fn()
	}

	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(op, b)
}

// Save persists snapshotBytes, replacing any prior content.
func (s *Store) Save(ctx context.Context, snapshotBytes []byte) error {
	return s.withLock(ctx, func() error {
		return os.WriteFile(s.path, snapshotBytes, 0o644)
	})
}

// Load returns the most recently saved snapshot, or ok=false if none
// exists yet.
func (s *Store) Load(ctx context.Context) (data []byte, ok bool, retErr error) {
	retErr = s.withLock(ctx, func() error {
		b, err := os.ReadFile(s.path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		data, ok = b, true
		return nil
	})
	return data, ok, retErr
}

// DefaultBackoffTimeout bounds how long Save/Load will retry lock
// acquisition before giving up, via context.WithTimeout.
const DefaultBackoffTimeout = 5 * time.Second
