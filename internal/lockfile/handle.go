package lockfile

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"dvdmaker/internal/logging"
)

// Handle represents a held (namespace, key) lock. Release is idempotent.
type Handle struct {
	coordinator *Coordinator
	path        string
	record      Record
	flock       *flock.Flock

	mu       sync.Mutex
	released bool
	stop     chan struct{}
	done     chan struct{}
}

func newHandle(c *Coordinator, path string, rec Record) *Handle {
	return &Handle{
		coordinator: c,
		path:        path,
		record:      rec,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Path returns the lock file location.
func (h *Handle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// Owner returns the identity recorded for this lock.
func (h *Handle) Owner() string {
	if h == nil {
		return ""
	}
	return h.record.Owner
}

// startHeartbeat refreshes the heartbeat timestamp in the lock record until
// release. Under flock the record is informational only, but keeping it fresh
// makes operator inspection and mixed-strategy deployments coherent.
func (h *Handle) startHeartbeat() {
	interval := h.coordinator.heartbeatInterval
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				h.mu.Lock()
				if h.released {
					h.mu.Unlock()
					return
				}
				if h.flock == nil {
					current, ok, err := readRecord(h.path)
					if errors.Is(err, os.ErrNotExist) || (err == nil && ok && current.Owner != h.record.Owner) {
						h.mu.Unlock()
						h.coordinator.logger.Warn("lock reclaimed by another holder",
							logging.String("path", h.path),
							logging.String("owner", h.record.Owner),
							logging.String(logging.FieldEventType, "lock_lost"),
						)
						return
					}
				}
				h.record.HeartbeatAt = time.Now().UTC()
				err := writeRecord(h.path, h.record)
				h.mu.Unlock()
				if err != nil {
					h.coordinator.logger.Warn("heartbeat update failed",
						logging.String("path", h.path),
						logging.Error(err),
						logging.String(logging.FieldEventType, "lock_heartbeat_failed"),
					)
				}
			}
		}
	}()
}

// Release drops the lock. Safe to call multiple times and safe to defer
// alongside an explicit call on the success path.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	close(h.stop)
	h.mu.Unlock()
	<-h.done

	if h.flock != nil {
		h.releaseFlock()
	} else {
		h.releaseHeartbeat()
	}
	h.coordinator.logger.Debug("released lock",
		logging.String("path", h.path),
		logging.String("owner", h.record.Owner),
	)
}
