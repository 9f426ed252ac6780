package cachestore

import (
	"errors"

	"dvdmaker/internal/integrity"
	"dvdmaker/internal/lockfile"
)

var (
	// ErrNotFound reports a key with no committed entry. Lookup itself never
	// returns it; operations that require an existing entry do.
	ErrNotFound = errors.New("cache entry not found")

	// ErrIntegrityMismatch reports stored content diverging from its recorded
	// checksum.
	ErrIntegrityMismatch = integrity.ErrMismatch

	// ErrLockTimeout reports that a reservation could not obtain its key lock
	// in time. Retryable.
	ErrLockTimeout = lockfile.ErrTimeout

	// ErrStagingIO wraps failures while writing or promoting staged content.
	ErrStagingIO = errors.New("staging write failed")
)
