package lockfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dvdmaker/internal/logging"
)

// LockDirName is the per-namespace directory holding lock files.
const LockDirName = ".locks"

// Strategy selects the cross-process locking mechanism.
type Strategy string

const (
	// StrategyFlock uses native advisory locks via flock(2).
	StrategyFlock Strategy = "flock"
	// StrategyHeartbeat uses exclusive lock-file creation with a heartbeat
	// record, for filesystems where flock is unreliable.
	StrategyHeartbeat Strategy = "heartbeat"
)

// ErrTimeout reports that a lock could not be acquired within the caller's
// timeout. Retryable with backoff; acquisition never silently proceeds
// without the lock.
var ErrTimeout = errors.New("lock acquisition timed out")

// pollInterval is how often a blocked waiter re-attempts acquisition.
const pollInterval = 100 * time.Millisecond

// Options configures a Coordinator.
type Options struct {
	Strategy          Strategy
	StaleTimeout      time.Duration
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// Coordinator hands out per-(namespace, key) locks rooted in each namespace's
// .locks directory.
type Coordinator struct {
	strategy          Strategy
	staleTimeout      time.Duration
	heartbeatInterval time.Duration
	logger            *slog.Logger
	owner             string
	host              string
}

// NewCoordinator builds a coordinator with the given policy. Zero durations
// fall back to a 5 minute stale timeout and 30 second heartbeat.
func NewCoordinator(opts Options) *Coordinator {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyFlock
	}
	staleTimeout := opts.StaleTimeout
	if staleTimeout <= 0 {
		staleTimeout = 5 * time.Minute
	}
	heartbeat := opts.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return &Coordinator{
		strategy:          strategy,
		staleTimeout:      staleTimeout,
		heartbeatInterval: heartbeat,
		logger:            logging.NewComponentLogger(opts.Logger, "lockfile"),
		owner:             newOwnerID(),
		host:              host,
	}
}

// Owner exposes this coordinator's owner identity for logging and tests.
func (c *Coordinator) Owner() string {
	return c.owner
}

// LockPath returns the lock file location for key within namespaceDir.
func LockPath(namespaceDir, key string) string {
	return filepath.Join(namespaceDir, LockDirName, sanitizeKey(key)+".lock")
}

// Acquire blocks until the (namespace, key) lock is held or timeout elapses.
// The context cancels waiting early. Timeout expiry yields an error wrapping
// ErrTimeout.
func (c *Coordinator) Acquire(ctx context.Context, namespaceDir, key string, timeout time.Duration) (*Handle, error) {
	namespaceDir = strings.TrimSpace(namespaceDir)
	if namespaceDir == "" {
		return nil, errors.New("lockfile: namespace directory is empty")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("lockfile: key is empty")
	}
	if err := os.MkdirAll(filepath.Join(namespaceDir, LockDirName), 0o755); err != nil {
		return nil, fmt.Errorf("lockfile: create lock dir: %w", err)
	}

	path := LockPath(namespaceDir, key)

	switch c.strategy {
	case StrategyHeartbeat:
		return c.acquireHeartbeat(ctx, path, timeout)
	default:
		return c.acquireFlock(ctx, path, timeout)
	}
}

func sanitizeKey(key string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		" ", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	key = replacer.Replace(strings.TrimSpace(key))
	key = strings.Trim(key, "-_.")
	if key == "" {
		return "entry"
	}
	return key
}

func waitPoll(ctx context.Context, deadline time.Time) error {
	if time.Now().After(deadline) {
		return ErrTimeout
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(pollInterval):
		return nil
	}
}
