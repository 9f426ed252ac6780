package cachestore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"dvdmaker/internal/atomicfile"
	"dvdmaker/internal/fileutil"
	"dvdmaker/internal/integrity"
	"dvdmaker/internal/lockfile"
	"dvdmaker/internal/logging"
)

// Reservation is an exclusive in-flight write for one (namespace, key). The
// holder streams content into StagingPath and finishes with exactly one of
// Commit or Abort; both release the key lock and are safe to call repeatedly.
type Reservation struct {
	store     *Store
	namespace string
	key       string
	name      string
	payload   string
	sidecar   string
	lock      *lockfile.Handle
	staging   *atomicfile.Staging

	mu   sync.Mutex
	done bool
}

// Reserve acquires the key lock and opens a staging file for the caller to
// write into, waiting up to the store's configured lock timeout. Contention
// past the timeout yields an error wrapping ErrLockTimeout.
func (s *Store) Reserve(ctx context.Context, namespace, key string) (*Reservation, error) {
	return s.ReserveWithTimeout(ctx, namespace, key, s.acquireTimeout)
}

// ReserveWithTimeout is Reserve with a caller-supplied lock wait bound.
// Producers holding a key for expensive work pass a longer timeout so a
// second process waits for the result instead of duplicating it.
func (s *Store) ReserveWithTimeout(ctx context.Context, namespace, key string, timeout time.Duration) (*Reservation, error) {
	name, payload, sidecar, err := s.entryPaths(namespace, key)
	if err != nil {
		return nil, err
	}
	nsDir := s.NamespaceDir(namespace)
	if err := os.MkdirAll(nsDir, 0o755); err != nil {
		return nil, fmt.Errorf("cachestore: create namespace dir: %w", err)
	}

	if timeout <= 0 {
		timeout = s.acquireTimeout
	}
	handle, err := s.locks.Acquire(ctx, nsDir, key, timeout)
	if err != nil {
		return nil, err
	}

	staging, err := atomicfile.BeginStaging(nsDir, key)
	if err != nil {
		handle.Release()
		return nil, fmt.Errorf("%w: %v", ErrStagingIO, err)
	}

	s.logger.Debug("reserved cache entry",
		logging.String(logging.FieldNamespace, namespace),
		logging.String(logging.FieldKey, key),
		logging.String("staging_path", staging.Path()),
	)

	return &Reservation{
		store:     s,
		namespace: namespace,
		key:       key,
		name:      name,
		payload:   payload,
		sidecar:   sidecar,
		lock:      handle,
		staging:   staging,
	}, nil
}

// StagingPath is the temporary file the holder writes the artifact into.
func (r *Reservation) StagingPath() string {
	return r.staging.Path()
}

// Key returns the reserved key.
func (r *Reservation) Key() string {
	return r.key
}

// Commit checksums the staged content, promotes it to the canonical path with
// a single rename, and writes the metadata sidecar. Failures before the rename
// discard the staged file and keep the previous entry; a sidecar write failure
// after it removes the promoted payload so the key reads as a clean miss.
func (r *Reservation) Commit(ctx context.Context) (Entry, error) {
	return r.commit(ctx, "")
}

// CommitWithChecksum is Commit for callers that already hashed the staged
// bytes while writing them, skipping the extra read pass.
func (r *Reservation) CommitWithChecksum(ctx context.Context, checksum string) (Entry, error) {
	return r.commit(ctx, checksum)
}

func (r *Reservation) commit(ctx context.Context, checksum string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return Entry{}, fmt.Errorf("cachestore: reservation for %s/%s already finished", r.namespace, r.key)
	}

	fail := func(err error) (Entry, error) {
		r.staging.Abort()
		r.finishLocked()
		return Entry{}, err
	}

	info, err := os.Stat(r.staging.Path())
	if err != nil {
		return fail(fmt.Errorf("%w: stat staging file: %v", ErrStagingIO, err))
	}

	if checksum == "" {
		checksum, err = integrity.Checksum(r.staging.Path())
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrStagingIO, err))
		}
	}

	meta := Metadata{
		Key:       r.key,
		Checksum:  checksum,
		SizeBytes: info.Size(),
		CreatedAt: time.Now().UTC(),
	}

	if err := r.staging.Commit(r.payload); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrStagingIO, err))
	}
	if err := writeMeta(r.sidecar, meta); err != nil {
		// The payload is in place but untrusted without its sidecar; remove
		// it so the key reads as a clean miss instead of invalid.
		_ = os.Remove(r.payload)
		r.finishLocked()
		return Entry{}, fmt.Errorf("cachestore: write sidecar: %w", err)
	}

	r.finishLocked()

	r.store.logger.Info("committed cache entry",
		logging.String(logging.FieldNamespace, r.namespace),
		logging.String(logging.FieldKey, r.key),
		logging.Int64("size_bytes", meta.SizeBytes),
		logging.String("checksum", meta.Checksum),
		logging.String(logging.FieldEventType, "cache_commit"),
	)
	r.store.record(ctx, r.namespace, r.key, "commit", meta.SizeBytes, meta.Checksum)

	return Entry{
		Namespace: r.namespace,
		Key:       r.key,
		Name:      r.name,
		Path:      r.payload,
		Meta:      meta,
	}, nil
}

// Abort discards the staged content and releases the lock. Idempotent, and a
// no-op after Commit, so callers defer it on every path.
func (r *Reservation) Abort() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.staging.Abort()
	r.finishLocked()
}

func (r *Reservation) finishLocked() {
	r.done = true
	r.lock.Release()
}

// StoreFile caches an existing file under (namespace, key) by copying it
// through staging. The copy is hashed as it streams, so commit needs no second
// read of the content.
func (s *Store) StoreFile(ctx context.Context, namespace, key, srcPath string) (Entry, error) {
	res, err := s.Reserve(ctx, namespace, key)
	if err != nil {
		return Entry{}, err
	}
	defer res.Abort()

	checksum, _, err := fileutil.CopyFileHashed(srcPath, res.StagingPath())
	if err != nil {
		return Entry{}, fmt.Errorf("%w: copy %q: %v", ErrStagingIO, srcPath, err)
	}
	return res.CommitWithChecksum(ctx, checksum)
}
