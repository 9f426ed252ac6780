package cleanup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dvdmaker/internal/namemap"
)

// Kind selects how a target directory is scanned for removal candidates.
type Kind int

const (
	// KindEntries removes the visible contents of a directory: cache entry
	// payloads, sidecars, and stray subdirectories.
	KindEntries Kind = iota
	// KindVideoTS removes authored DVD trees, i.e. subdirectories that
	// contain a VIDEO_TS directory.
	KindVideoTS
	// KindISO removes .iso images directly under the directory.
	KindISO
)

// Target names one directory to clean and how to interpret its contents.
type Target struct {
	Label string
	Dir   string
	Kind  Kind
}

// Item is one planned removal.
type Item struct {
	Path    string
	Bytes   int64
	IsDir   bool
	ModTime time.Time
}

// collect lists the target's removal candidates. Missing directories yield an
// empty list; a vanished target is already clean.
func (t Target) collect() ([]Item, error) {
	entries, err := os.ReadDir(t.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cleanup: read %q: %w", t.Dir, err)
	}

	var items []Item
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if name == namemap.MappingFileName {
			continue
		}
		path := filepath.Join(t.Dir, name)

		switch t.Kind {
		case KindVideoTS:
			if !entry.IsDir() || !hasVideoTS(path) {
				continue
			}
		case KindISO:
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".iso") {
				continue
			}
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("cleanup: stat %q: %w", path, err)
		}

		item := Item{Path: path, IsDir: entry.IsDir(), ModTime: info.ModTime()}
		if entry.IsDir() {
			item.Bytes, err = dirSize(path)
			if err != nil {
				return nil, err
			}
		} else {
			item.Bytes = info.Size()
		}
		items = append(items, item)
	}
	return items, nil
}

func hasVideoTS(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "VIDEO_TS"))
	return err == nil && info.IsDir()
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup: measure %q: %w", dir, err)
	}
	return total, nil
}
