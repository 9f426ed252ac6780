package atomicfile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dvdmaker/internal/logging"
)

// PurgeResult contains the outcome of an orphan sweep.
type PurgeResult struct {
	Removed []string
	Errors  []PurgeError
}

// PurgeError pairs a staging path with its removal error.
type PurgeError struct {
	Path  string
	Error error
}

// PurgeOrphans removes staging files under namespaceDir/.in-progress that are
// older than maxAge and whose owning process is no longer alive or cannot be
// determined. Fresh files and files owned by live processes are kept, so a
// sweep never races an in-flight writer.
func PurgeOrphans(namespaceDir string, maxAge time.Duration, logger *slog.Logger) PurgeResult {
	result := PurgeResult{}

	namespaceDir = strings.TrimSpace(namespaceDir)
	if namespaceDir == "" {
		return result
	}
	stagingDir := filepath.Join(namespaceDir, StagingDirName)

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, PurgeError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, PurgeError{Path: path, Error: err})
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if pid, ok := ownerPID(entry.Name()); ok && processAlive(pid) {
			continue
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, PurgeError{Path: path, Error: err})
			if logger != nil {
				logging.WarnWithContext(logger, "failed to remove orphaned staging file", "staging_purge_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check staging directory permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed orphaned staging file",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_purge"),
			)
		}
	}

	return result
}

// ownerPID extracts the PID segment from a staging name of the form
// <base>.<pid>.<id>.part.
func ownerPID(name string) (int, bool) {
	name = strings.TrimSuffix(name, ".part")
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return 0, false
	}
	pid, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive reports whether pid refers to a live process. Signal 0 probes
// existence without delivering anything; EPERM still means the process exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}
