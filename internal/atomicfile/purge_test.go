package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dvdmaker/internal/logging"
)

func writeStagingFile(t *testing.T, nsDir, name string, age time.Duration) string {
	t.Helper()
	stagingDir := filepath.Join(nsDir, StagingDirName)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}
	path := filepath.Join(stagingDir, name)
	if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if age > 0 {
		stamp := time.Now().Add(-age)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatalf("age %s: %v", name, err)
		}
	}
	return path
}

func TestPurgeOrphansMissingDir(t *testing.T) {
	for _, dir := range []string{"", "   ", filepath.Join(t.TempDir(), "absent")} {
		result := PurgeOrphans(dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for %q", dir)
		}
	}
}

func TestPurgeOrphansRemovesDeadOwners(t *testing.T) {
	nsDir := t.TempDir()

	// PID 1 is init and always alive; a very large PID is never allocated.
	deadOld := writeStagingFile(t, nsDir, "entry.999999999.abc.part", 48*time.Hour)
	liveOld := writeStagingFile(t, nsDir, "entry.1.def.part", 48*time.Hour)
	ownerlessOld := writeStagingFile(t, nsDir, "mystery.part", 48*time.Hour)
	deadFresh := writeStagingFile(t, nsDir, "entry.999999999.ghi.part", 0)

	result := PurgeOrphans(nsDir, 24*time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removals, got %d: %v", len(result.Removed), result.Removed)
	}

	for _, path := range []string{deadOld, ownerlessOld} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", filepath.Base(path))
		}
	}
	for _, path := range []string{liveOld, deadFresh} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should have been kept: %v", filepath.Base(path), err)
		}
	}
}

func TestPurgeOrphansSkipsDirectories(t *testing.T) {
	nsDir := t.TempDir()
	sub := filepath.Join(nsDir, StagingDirName, "subdir")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(sub, old, old); err != nil {
		t.Fatalf("age subdir: %v", err)
	}

	result := PurgeOrphans(nsDir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("directories must not be purged: %v", result.Removed)
	}
	if _, err := os.Stat(sub); err != nil {
		t.Errorf("subdir should survive: %v", err)
	}
}

func TestOwnerPID(t *testing.T) {
	cases := []struct {
		name string
		pid  int
		ok   bool
	}{
		{"entry.1234.abcd.part", 1234, true},
		{fmt.Sprintf("a.b.c.%d.xyz.part", os.Getpid()), os.Getpid(), true},
		{"entry.part", 0, false},
		{"entry.notanumber.abcd.part", 0, false},
		{"entry.-5.abcd.part", 0, false},
	}
	for _, tc := range cases {
		pid, ok := ownerPID(tc.name)
		if ok != tc.ok || pid != tc.pid {
			t.Errorf("ownerPID(%q) = (%d, %v), want (%d, %v)", tc.name, pid, ok, tc.pid, tc.ok)
		}
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if processAlive(999999999) {
		t.Error("absurd PID should not be alive")
	}
}
