package namemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dvdmaker/internal/atomicfile"
	"dvdmaker/internal/logging"
)

// MappingFileName is the document holding identifier to name assignments.
// Cleanup must never remove it; losing it severs every burned disc from its
// source identifier.
const MappingFileName = "filename_mapping.json"

// Mapper hands out unique DVD-safe names and remembers every assignment.
type Mapper struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	forward map[string]string
	reverse map[string]string
}

// NewMapper loads the mapping document at path, or starts empty when the file
// does not exist. A corrupt document is discarded with a warning rather than
// blocking all naming.
func NewMapper(path string, logger *slog.Logger) (*Mapper, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Mapper{
		path:    path,
		logger:  logger.With(logging.String(logging.FieldComponent, "namemap")),
		forward: make(map[string]string),
		reverse: make(map[string]string),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mapper) load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("namemap: read %q: %w", m.path, err)
	}

	var forward map[string]string
	if err := json.Unmarshal(data, &forward); err != nil {
		logging.WarnWithContext(m.logger, "discarding corrupt filename mapping", "mapping_corrupt",
			logging.String("path", m.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "previously assigned names will be regenerated"),
		)
		return nil
	}
	for id, name := range forward {
		m.forward[id] = name
		m.reverse[name] = id
	}
	return nil
}

// Path returns the mapping document location.
func (m *Mapper) Path() string {
	return m.path
}

// Normalize returns the stable DVD-safe name for originalID, assigning and
// persisting a new one on first sight. Names are unique across identifiers.
func (m *Mapper) Normalize(originalID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name, ok := m.forward[originalID]; ok {
		return name, nil
	}

	name := m.disambiguate(NormalizeName(originalID))
	m.forward[originalID] = name
	m.reverse[name] = originalID
	if err := m.saveLocked(); err != nil {
		delete(m.forward, originalID)
		delete(m.reverse, name)
		return "", err
	}

	m.logger.Debug("assigned normalized name",
		logging.String("original_id", originalID),
		logging.String("name", name),
	)
	return name, nil
}

// disambiguate appends _1, _2, ... before the extension until the candidate
// collides with no existing assignment.
func (m *Mapper) disambiguate(candidate string) string {
	if _, taken := m.reverse[candidate]; !taken {
		return candidate
	}
	ext := filepath.Ext(candidate)
	stem := strings.TrimSuffix(candidate, ext)
	for i := 1; ; i++ {
		suffix := fmt.Sprintf("_%d", i)
		keep := maxNameLength - len(ext) - len(suffix)
		if keep > len(stem) {
			keep = len(stem)
		}
		if keep < 0 {
			keep = 0
		}
		next := stem[:keep] + suffix + ext
		if len(next) > maxNameLength {
			// An oversized extension leaves no stem budget at all; the
			// counter inside the kept prefix still varies per attempt.
			next = next[:maxNameLength]
		}
		if _, taken := m.reverse[next]; !taken {
			return next
		}
	}
}

// Peek reports the name a read of originalID should resolve to without
// assigning one. ok is false when the identifier has no assignment and its
// candidate already belongs to another identifier; such a key cannot have an
// entry on disk under any name.
func (m *Mapper) Peek(originalID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name, ok := m.forward[originalID]; ok {
		return name, true
	}
	candidate := NormalizeName(originalID)
	if _, taken := m.reverse[candidate]; taken {
		return "", false
	}
	return candidate, true
}

// Name reports the assigned name for originalID, if any.
func (m *Mapper) Name(originalID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.forward[originalID]
	return name, ok
}

// OriginalID reports the identifier a normalized name was assigned to.
func (m *Mapper) OriginalID(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.reverse[name]
	return id, ok
}

// Len reports how many identifiers have assigned names.
func (m *Mapper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.forward)
}

// Forget removes an assignment, freeing its name for reuse.
func (m *Mapper) Forget(originalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, ok := m.forward[originalID]
	if !ok {
		return nil
	}
	delete(m.forward, originalID)
	delete(m.reverse, name)
	if err := m.saveLocked(); err != nil {
		m.forward[originalID] = name
		m.reverse[name] = originalID
		return err
	}
	return nil
}

func (m *Mapper) saveLocked() error {
	if err := atomicfile.WriteJSON(m.path, m.forward); err != nil {
		return fmt.Errorf("namemap: persist mapping: %w", err)
	}
	return nil
}
