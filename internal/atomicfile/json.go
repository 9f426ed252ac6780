package atomicfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSON marshals v as indented JSON and writes it to path atomically via
// a temp file and rename, so the file is never observed half-written.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("atomicfile: marshal json: %w", err)
	}
	return WriteFile(path, data, 0o644)
}

// WriteFile writes data to path atomically via a temp file and rename.
func WriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicfile: create dir: %w", err)
	}

	tmp := path + ".tmp." + shortID()
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("atomicfile: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomicfile: rename temp file: %w", err)
	}
	return nil
}
