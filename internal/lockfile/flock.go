package lockfile

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"dvdmaker/internal/logging"
)

// acquireFlock polls TryLock until the timeout elapses. The kernel drops the
// lock if the holder dies, so this path needs no stale reclamation.
func (c *Coordinator) acquireFlock(ctx context.Context, path string, timeout time.Duration) (*Handle, error) {
	fl := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lockfile: flock %q: %w", path, err)
		}
		if ok {
			break
		}
		if err := waitPoll(ctx, deadline); err != nil {
			if err == ErrTimeout {
				return nil, fmt.Errorf("%w: %q after %s", ErrTimeout, path, timeout)
			}
			return nil, err
		}
	}

	// The record is informational under flock; waiters block on the lock
	// itself, not on the record.
	rec := newRecord(c.owner, c.host)
	if err := writeRecord(path, rec); err != nil {
		_ = fl.Unlock()
		return nil, err
	}

	h := newHandle(c, path, rec)
	h.flock = fl
	h.startHeartbeat()
	c.logger.Debug("acquired lock",
		logging.String("path", path),
		logging.String("owner", c.owner),
		logging.String("strategy", string(StrategyFlock)),
	)
	return h, nil
}

// releaseFlock truncates the owner record and unlocks. The lock file is left
// in place: removing it would let a waiter polling an unlinked inode and a
// fresh acquirer hold the "same" lock on different inodes simultaneously.
func (h *Handle) releaseFlock() {
	_ = os.Truncate(h.path, 0)
	if h.flock != nil {
		_ = h.flock.Unlock()
	}
}
