package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Record is the owner identity persisted inside a held lock file.
type Record struct {
	Owner       string    `json:"owner"`
	Host        string    `json:"host"`
	PID         int       `json:"pid"`
	AcquiredAt  time.Time `json:"acquired_at"`
	HeartbeatAt time.Time `json:"heartbeat_at"`
}

// newOwnerID builds a process-unique owner identity of the form
// host-pid-random so lock records are attributable in logs.
func newOwnerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	id := uuid.NewString()
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), id)
}

func newRecord(owner, host string) Record {
	now := time.Now().UTC()
	return Record{
		Owner:       owner,
		Host:        host,
		PID:         os.Getpid(),
		AcquiredAt:  now,
		HeartbeatAt: now,
	}
}

// writeRecord rewrites the lock file in place. Heartbeat refreshes go through
// here; a torn write is read back as malformed and treated as stale, which is
// the conservative outcome.
func writeRecord(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("lockfile: marshal record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("lockfile: write record: %w", err)
	}
	return nil
}

// readRecord loads the owner record from a lock file. The boolean reports
// whether a well-formed record was present.
func readRecord(path string) (Record, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, err
		}
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Owner == "" {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// processAlive reports whether pid refers to a live process on this host.
// Signal 0 probes existence without delivering anything; EPERM still means
// the process exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}
