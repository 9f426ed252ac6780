package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dvdmaker/internal/logging"
	"dvdmaker/internal/namemap"
	"dvdmaker/internal/testsupport"
)

func TestPreviewMissingDirIsEmpty(t *testing.T) {
	engine := NewEngine(logging.NewNop(), 0)
	plan, err := engine.Preview(Target{Label: "x", Dir: filepath.Join(t.TempDir(), "absent"), Kind: KindEntries})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(plan.Items) != 0 || plan.TotalBytes != 0 {
		t.Errorf("expected empty plan, got %+v", plan)
	}
}

func TestPreviewSkipsDotEntriesAndMapping(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "movie.mp4"), 100)
	testsupport.WriteFile(t, filepath.Join(dir, "movie.mp4.meta.json"), 50)
	testsupport.WriteFile(t, filepath.Join(dir, namemap.MappingFileName), 30)
	testsupport.WriteFile(t, filepath.Join(dir, ".in-progress", "x.part"), 10)
	testsupport.WriteFile(t, filepath.Join(dir, ".locks", "x.lock"), 10)

	engine := NewEngine(logging.NewNop(), 0)
	plan, err := engine.Preview(Target{Label: "downloads", Dir: dir, Kind: KindEntries})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(plan.Items) != 2 {
		t.Fatalf("items = %v, want payload and sidecar only", plan.Items)
	}
	if plan.TotalBytes != 150 {
		t.Errorf("total = %d, want 150", plan.TotalBytes)
	}
	for _, item := range plan.Items {
		base := filepath.Base(item.Path)
		if base == namemap.MappingFileName || base[0] == '.' {
			t.Errorf("protected path planned for removal: %s", item.Path)
		}
	}
}

func TestExecuteRemovesPlannedItems(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "movie.mp4")
	sub := filepath.Join(dir, "extras")
	testsupport.WriteFile(t, file, 100)
	testsupport.WriteFile(t, filepath.Join(sub, "bonus.mp4"), 200)
	mapping := filepath.Join(dir, namemap.MappingFileName)
	testsupport.WriteFile(t, mapping, 30)

	engine := NewEngine(logging.NewNop(), 0)
	plan, err := engine.Preview(Target{Label: "downloads", Dir: dir, Kind: KindEntries})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	result := engine.Execute(plan)
	if len(result.Errors) != 0 {
		t.Fatalf("errors: %v", result.Errors)
	}
	if result.FilesRemoved != 1 || result.DirsRemoved != 1 {
		t.Errorf("removed %d files, %d dirs", result.FilesRemoved, result.DirsRemoved)
	}
	if result.BytesFreed != 300 {
		t.Errorf("freed = %d", result.BytesFreed)
	}

	for _, gone := range []string{file, sub} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s should be gone", gone)
		}
	}
	if _, err := os.Stat(mapping); err != nil {
		t.Errorf("mapping document must survive: %v", err)
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "movie.mp4"), 100)

	engine := NewEngine(logging.NewNop(), 0)
	plan, err := engine.Preview(Target{Label: "downloads", Dir: dir, Kind: KindEntries})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	first := engine.Execute(plan)
	if len(first.Errors) != 0 {
		t.Fatalf("first execute: %v", first.Errors)
	}

	// Re-executing the same plan and re-previewing a clean dir both succeed.
	second := engine.Execute(plan)
	if len(second.Errors) != 0 {
		t.Errorf("second execute: %v", second.Errors)
	}
	replanned, err := engine.Preview(Target{Label: "downloads", Dir: dir, Kind: KindEntries})
	if err != nil {
		t.Fatalf("re-preview: %v", err)
	}
	if len(replanned.Items) != 0 {
		t.Errorf("clean dir replanned items: %v", replanned.Items)
	}
}

func TestVideoTSTargetSelectsAuthoredTrees(t *testing.T) {
	out := t.TempDir()
	authored := filepath.Join(out, "My Movie")
	testsupport.WriteFile(t, filepath.Join(authored, "VIDEO_TS", "VTS_01_1.VOB"), 500)
	plain := filepath.Join(out, "notes")
	testsupport.WriteFile(t, filepath.Join(plain, "readme.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(out, "stray.mp4"), 20)

	engine := NewEngine(logging.NewNop(), 0)
	plan, err := engine.Preview(Target{Label: "dvd-output", Dir: out, Kind: KindVideoTS})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(plan.Items) != 1 || plan.Items[0].Path != authored {
		t.Fatalf("items = %v, want only the authored tree", plan.Items)
	}
	if plan.TotalBytes != 500 {
		t.Errorf("total = %d", plan.TotalBytes)
	}

	result := engine.Execute(plan)
	if len(result.Errors) != 0 {
		t.Fatalf("execute: %v", result.Errors)
	}
	if _, err := os.Stat(authored); !os.IsNotExist(err) {
		t.Error("authored tree should be gone")
	}
	if _, err := os.Stat(plain); err != nil {
		t.Errorf("non-DVD directory must survive: %v", err)
	}
}

func TestISOTargetSelectsImagesOnly(t *testing.T) {
	out := t.TempDir()
	iso := filepath.Join(out, "movie.iso")
	upper := filepath.Join(out, "OTHER.ISO")
	testsupport.WriteFile(t, iso, 100)
	testsupport.WriteFile(t, upper, 100)
	testsupport.WriteFile(t, filepath.Join(out, "movie.mp4"), 100)
	testsupport.WriteFile(t, filepath.Join(out, "isodir", "inner.iso"), 100)

	engine := NewEngine(logging.NewNop(), 0)
	plan, err := engine.Preview(Target{Label: "isos", Dir: out, Kind: KindISO})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(plan.Items) != 2 {
		t.Fatalf("items = %v, want the two top-level images", plan.Items)
	}
	for _, item := range plan.Items {
		if item.Path != iso && item.Path != upper {
			t.Errorf("unexpected item %s", item.Path)
		}
	}
}

func TestAgeFilterKeepsRecentArtifacts(t *testing.T) {
	dir := t.TempDir()
	oldFile := filepath.Join(dir, "old.mp4")
	newFile := filepath.Join(dir, "new.mp4")
	testsupport.WriteFile(t, oldFile, 100)
	testsupport.WriteFile(t, newFile, 100)
	stamp := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, stamp, stamp); err != nil {
		t.Fatalf("age old file: %v", err)
	}

	engine := NewEngine(logging.NewNop(), 24*time.Hour)
	plan, err := engine.Preview(Target{Label: "downloads", Dir: dir, Kind: KindEntries})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(plan.Items) != 1 || plan.Items[0].Path != oldFile {
		t.Errorf("items = %v, want only the old file", plan.Items)
	}
}
