package lockfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dvdmaker/internal/logging"
)

func newTestCoordinator(t *testing.T, strategy Strategy) *Coordinator {
	t.Helper()
	return NewCoordinator(Options{
		Strategy:          strategy,
		StaleTimeout:      time.Minute,
		HeartbeatInterval: time.Minute,
		Logger:            logging.NewNop(),
	})
}

func TestAcquireReleaseReacquire(t *testing.T) {
	for _, strategy := range []Strategy{StrategyFlock, StrategyHeartbeat} {
		t.Run(string(strategy), func(t *testing.T) {
			nsDir := t.TempDir()
			coord := newTestCoordinator(t, strategy)

			handle, err := coord.Acquire(context.Background(), nsDir, "movie", 2*time.Second)
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
			if filepath.Dir(handle.Path()) != filepath.Join(nsDir, LockDirName) {
				t.Errorf("lock file %s not under %s", handle.Path(), LockDirName)
			}
			handle.Release()
			handle.Release()

			again, err := coord.Acquire(context.Background(), nsDir, "movie", 2*time.Second)
			if err != nil {
				t.Fatalf("reacquire after release: %v", err)
			}
			again.Release()
		})
	}
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	for _, strategy := range []Strategy{StrategyFlock, StrategyHeartbeat} {
		t.Run(string(strategy), func(t *testing.T) {
			nsDir := t.TempDir()
			holder := newTestCoordinator(t, strategy)
			waiter := newTestCoordinator(t, strategy)

			handle, err := holder.Acquire(context.Background(), nsDir, "movie", 2*time.Second)
			if err != nil {
				t.Fatalf("Acquire: %v", err)
			}
			defer handle.Release()

			_, err = waiter.Acquire(context.Background(), nsDir, "movie", 300*time.Millisecond)
			if !errors.Is(err, ErrTimeout) {
				t.Fatalf("expected ErrTimeout, got %v", err)
			}
		})
	}
}

func TestAcquireDifferentKeysDoNotContend(t *testing.T) {
	nsDir := t.TempDir()
	coord := newTestCoordinator(t, StrategyFlock)

	first, err := coord.Acquire(context.Background(), nsDir, "movie-a", time.Second)
	if err != nil {
		t.Fatalf("Acquire first: %v", err)
	}
	defer first.Release()

	second, err := coord.Acquire(context.Background(), nsDir, "movie-b", time.Second)
	if err != nil {
		t.Fatalf("Acquire second: %v", err)
	}
	second.Release()
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	nsDir := t.TempDir()
	holder := newTestCoordinator(t, StrategyHeartbeat)
	waiter := newTestCoordinator(t, StrategyHeartbeat)

	handle, err := holder.Acquire(context.Background(), nsDir, "movie", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer handle.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()
	_, err = waiter.Acquire(ctx, nsDir, "movie", 10*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHeartbeatReclaimsDeadOwner(t *testing.T) {
	nsDir := t.TempDir()
	coord := newTestCoordinator(t, StrategyHeartbeat)

	path := LockPath(nsDir, "movie")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir locks: %v", err)
	}
	stale := Record{
		Owner:       "host-999999999-dead",
		Host:        coord.host,
		PID:         999999999,
		AcquiredAt:  time.Now().Add(-time.Hour),
		HeartbeatAt: time.Now(),
	}
	if err := writeRecord(path, stale); err != nil {
		t.Fatalf("write stale record: %v", err)
	}

	handle, err := coord.Acquire(context.Background(), nsDir, "movie", 2*time.Second)
	if err != nil {
		t.Fatalf("expected reclaim of dead owner's lock: %v", err)
	}
	if handle.Owner() != coord.Owner() {
		t.Errorf("lock owner = %s, want %s", handle.Owner(), coord.Owner())
	}
	handle.Release()
}

func TestHeartbeatReclaimsExpiredHeartbeat(t *testing.T) {
	nsDir := t.TempDir()
	coord := NewCoordinator(Options{
		Strategy:          StrategyHeartbeat,
		StaleTimeout:      200 * time.Millisecond,
		HeartbeatInterval: time.Minute,
		Logger:            logging.NewNop(),
	})

	path := LockPath(nsDir, "movie")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir locks: %v", err)
	}
	// Live PID on another host, but the heartbeat is long past stale.
	stale := Record{
		Owner:       "elsewhere-1-x",
		Host:        "elsewhere",
		PID:         1,
		AcquiredAt:  time.Now().Add(-time.Hour),
		HeartbeatAt: time.Now().Add(-time.Hour),
	}
	if err := writeRecord(path, stale); err != nil {
		t.Fatalf("write stale record: %v", err)
	}

	handle, err := coord.Acquire(context.Background(), nsDir, "movie", 2*time.Second)
	if err != nil {
		t.Fatalf("expected reclaim of expired lock: %v", err)
	}
	handle.Release()
}

func TestHeartbeatReclaimsMalformedRecord(t *testing.T) {
	nsDir := t.TempDir()
	coord := newTestCoordinator(t, StrategyHeartbeat)

	path := LockPath(nsDir, "movie")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir locks: %v", err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	handle, err := coord.Acquire(context.Background(), nsDir, "movie", 2*time.Second)
	if err != nil {
		t.Fatalf("expected reclaim of malformed lock: %v", err)
	}
	handle.Release()
}

func TestHeartbeatKeepsFreshForeignLock(t *testing.T) {
	nsDir := t.TempDir()
	coord := newTestCoordinator(t, StrategyHeartbeat)

	path := LockPath(nsDir, "movie")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir locks: %v", err)
	}
	fresh := Record{
		Owner:       "elsewhere-1-x",
		Host:        "elsewhere",
		PID:         1,
		AcquiredAt:  time.Now(),
		HeartbeatAt: time.Now(),
	}
	if err := writeRecord(path, fresh); err != nil {
		t.Fatalf("write fresh record: %v", err)
	}

	_, err := coord.Acquire(context.Background(), nsDir, "movie", 300*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("fresh foreign lock must not be reclaimed, got %v", err)
	}
}

func TestReclaimDefersToActiveGuard(t *testing.T) {
	nsDir := t.TempDir()
	coord := newTestCoordinator(t, StrategyHeartbeat)

	path := LockPath(nsDir, "movie")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir locks: %v", err)
	}
	stale := Record{
		Owner:       "host-999999999-dead",
		Host:        coord.host,
		PID:         999999999,
		AcquiredAt:  time.Now().Add(-time.Hour),
		HeartbeatAt: time.Now(),
	}
	if err := writeRecord(path, stale); err != nil {
		t.Fatalf("write stale record: %v", err)
	}
	// Another waiter is mid-reclaim.
	if err := os.WriteFile(path+reclaimGuardSuffix, nil, 0o644); err != nil {
		t.Fatalf("write guard: %v", err)
	}

	_, err := coord.Acquire(context.Background(), nsDir, "movie", 300*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("reclaim must defer to the guard holder, got %v", err)
	}
}

func TestReclaimClearsAbandonedGuard(t *testing.T) {
	nsDir := t.TempDir()
	coord := newTestCoordinator(t, StrategyHeartbeat)

	path := LockPath(nsDir, "movie")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir locks: %v", err)
	}
	stale := Record{
		Owner:       "host-999999999-dead",
		Host:        coord.host,
		PID:         999999999,
		AcquiredAt:  time.Now().Add(-time.Hour),
		HeartbeatAt: time.Now(),
	}
	if err := writeRecord(path, stale); err != nil {
		t.Fatalf("write stale record: %v", err)
	}
	guard := path + reclaimGuardSuffix
	if err := os.WriteFile(guard, nil, 0o644); err != nil {
		t.Fatalf("write guard: %v", err)
	}
	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(guard, old, old); err != nil {
		t.Fatalf("age guard: %v", err)
	}

	handle, err := coord.Acquire(context.Background(), nsDir, "movie", 2*time.Second)
	if err != nil {
		t.Fatalf("expected reclaim after clearing the dead waiter's guard: %v", err)
	}
	handle.Release()

	if _, err := os.Stat(guard); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("guard should be gone after reclaim: %v", err)
	}
}

func TestHeartbeatReleaseLeavesSuccessorLock(t *testing.T) {
	nsDir := t.TempDir()
	coord := newTestCoordinator(t, StrategyHeartbeat)

	handle, err := coord.Acquire(context.Background(), nsDir, "movie", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// A reclaimer replaced the lock while this holder stalled.
	successor := newRecord("elsewhere-1-x", "elsewhere")
	if err := writeRecord(handle.Path(), successor); err != nil {
		t.Fatalf("write successor record: %v", err)
	}

	handle.Release()

	rec, wellFormed, err := readRecord(handle.Path())
	if err != nil || !wellFormed {
		t.Fatalf("successor lock disturbed by release: %v", err)
	}
	if rec.Owner != "elsewhere-1-x" {
		t.Errorf("lock owner = %s, want the successor", rec.Owner)
	}
}

func TestFlockReleaseKeepsLockFile(t *testing.T) {
	nsDir := t.TempDir()
	coord := newTestCoordinator(t, StrategyFlock)

	handle, err := coord.Acquire(context.Background(), nsDir, "movie", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	path := handle.Path()
	handle.Release()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("lock file must survive release: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("released lock record should be truncated, has %d bytes", info.Size())
	}
}

func TestLockPathSanitizesKeys(t *testing.T) {
	nsDir := "/ns"
	path := LockPath(nsDir, `weird/key: "name"?`)
	if filepath.Dir(path) != filepath.Join(nsDir, LockDirName) {
		t.Fatalf("lock path %s escaped %s", path, LockDirName)
	}
	if base := filepath.Base(path); base == ".lock" || base == "" {
		t.Errorf("sanitized key collapsed to nothing: %q", path)
	}

	empty := LockPath(nsDir, "///")
	if filepath.Base(empty) != "entry.lock" {
		t.Errorf("degenerate key should fall back to entry.lock, got %s", filepath.Base(empty))
	}
}

func TestRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entry.lock")
	rec := newRecord("owner-1", "hostname")
	if err := writeRecord(path, rec); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}

	got, wellFormed, err := readRecord(path)
	if err != nil {
		t.Fatalf("readRecord: %v", err)
	}
	if !wellFormed {
		t.Fatal("record should be well formed")
	}
	if got.Owner != "owner-1" || got.Host != "hostname" || got.PID != os.Getpid() {
		t.Errorf("record mismatch: %+v", got)
	}
}
