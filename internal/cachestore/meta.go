package cachestore

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"dvdmaker/internal/atomicfile"
)

// MetaSuffix is appended to an entry's canonical name to form its sidecar.
const MetaSuffix = ".meta.json"

// Metadata is the sidecar document committed alongside every entry.
type Metadata struct {
	Key       string    `json:"key"`
	Checksum  string    `json:"checksum"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Metadata) validate() error {
	if strings.TrimSpace(m.Key) == "" {
		return fmt.Errorf("metadata missing key")
	}
	if strings.TrimSpace(m.Checksum) == "" {
		return fmt.Errorf("metadata missing checksum")
	}
	if m.SizeBytes < 0 {
		return fmt.Errorf("metadata has negative size %d", m.SizeBytes)
	}
	return nil
}

func writeMeta(path string, meta Metadata) error {
	return atomicfile.WriteJSON(path, meta)
}

// readMeta loads and validates a sidecar. Any defect is reported as an error;
// callers map it to an invalid lookup state rather than failing.
func readMeta(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse sidecar %q: %w", path, err)
	}
	if err := meta.validate(); err != nil {
		return Metadata{}, fmt.Errorf("sidecar %q: %w", path, err)
	}
	return meta, nil
}
