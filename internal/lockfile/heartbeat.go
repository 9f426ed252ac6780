package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"dvdmaker/internal/logging"
)

// acquireHeartbeat loops on exclusive lock-file creation. An existing lock is
// reclaimable when its heartbeat has aged past the stale timeout, when its
// record is unreadable, or when its owner process on this host is dead.
func (c *Coordinator) acquireHeartbeat(ctx context.Context, path string, timeout time.Duration) (*Handle, error) {
	deadline := time.Now().Add(timeout)
	for {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			if err := file.Close(); err != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("lockfile: close lock file: %w", err)
			}
			rec := newRecord(c.owner, c.host)
			if err := writeRecord(path, rec); err != nil {
				_ = os.Remove(path)
				return nil, err
			}
			h := newHandle(c, path, rec)
			h.startHeartbeat()
			c.logger.Debug("acquired lock",
				logging.String("path", path),
				logging.String("owner", c.owner),
				logging.String("strategy", string(StrategyHeartbeat)),
			)
			return h, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lockfile: create lock file %q: %w", path, err)
		}

		if c.reclaimIfStale(path) {
			continue
		}

		if err := waitPoll(ctx, deadline); err != nil {
			if err == ErrTimeout {
				return nil, fmt.Errorf("%w: %q after %s", ErrTimeout, path, timeout)
			}
			return nil, err
		}
	}
}

// reclaimGuardSuffix names the marker file serializing stale-lock removal.
const reclaimGuardSuffix = ".reclaim"

// reclaimIfStale removes a stale lock file and reports whether the caller
// should immediately retry acquisition. Removal happens under an exclusive
// guard file and only while the record still matches the one judged stale,
// so two waiters cannot unlink a successor's freshly created lock.
func (c *Coordinator) reclaimIfStale(path string) bool {
	rec, wellFormed, err := c.inspect(path)
	if err != nil {
		// Holder released between our create attempt and the read; retry.
		return errors.Is(err, os.ErrNotExist)
	}

	stale := false
	reason := ""
	switch {
	case !wellFormed:
		stale = true
		reason = "unreadable lock record"
	case time.Since(rec.HeartbeatAt) > c.staleTimeout:
		stale = true
		reason = "heartbeat expired"
	case rec.Host == c.host && !processAlive(rec.PID):
		stale = true
		reason = "owner process dead"
	}
	if !stale {
		return false
	}

	guard := path + reclaimGuardSuffix
	file, err := os.OpenFile(guard, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		// Another waiter is mid-reclaim. Clear the guard if that waiter
		// died while holding it.
		if info, statErr := os.Stat(guard); statErr == nil && time.Since(info.ModTime()) > c.staleTimeout {
			_ = os.Remove(guard)
		}
		return false
	}
	_ = file.Close()
	defer os.Remove(guard)

	// Re-read under the guard. A successor that replaced the lock since the
	// staleness check shows up as a changed record and keeps its lock.
	current, currentFormed, err := readRecord(path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}
	if currentFormed != wellFormed || (currentFormed && current != rec) {
		return false
	}

	logging.WarnWithContext(c.logger, "reclaiming stale lock", "lock_reclaimed",
		logging.String("path", path),
		logging.String("previous_owner", rec.Owner),
		logging.String("reason", reason),
		logging.Duration("heartbeat_age", time.Since(rec.HeartbeatAt)),
		logging.String(logging.FieldErrorHint, "previous holder likely crashed; raise locking.stale_timeout_seconds if it was alive"),
		logging.String(logging.FieldImpact, "lock forcibly taken over"),
	)
	_ = os.Remove(path)
	return true
}

func (c *Coordinator) inspect(path string) (Record, bool, error) {
	rec, ok, err := readRecord(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, err
		}
		// Unreadable for other reasons counts as malformed.
		return Record{}, false, nil
	}
	return rec, ok, nil
}

// releaseHeartbeat removes the lock file; exclusive creation is the mutual
// exclusion mechanism, so the file must disappear on release. A lock that was
// reclaimed while this holder stalled belongs to the successor and stays put.
func (h *Handle) releaseHeartbeat() {
	rec, ok, err := readRecord(h.path)
	if err != nil || (ok && rec.Owner != h.record.Owner) {
		return
	}
	_ = os.Remove(h.path)
}
