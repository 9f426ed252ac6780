package atomicfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// StagingDirName is the per-namespace directory holding in-flight writes.
const StagingDirName = ".in-progress"

// Staging is an exclusive temporary write location inside a namespace's
// staging directory. Exactly one of Commit or Abort ends its lifecycle;
// both are safe to call more than once.
type Staging struct {
	mu   sync.Mutex
	path string
	done bool
}

// BeginStaging creates a uniquely named staging file under
// namespaceDir/.in-progress and returns a handle to it. The name embeds the
// owning PID so the orphan sweep can tell live writers from dead ones.
func BeginStaging(namespaceDir, key string) (*Staging, error) {
	namespaceDir = strings.TrimSpace(namespaceDir)
	if namespaceDir == "" {
		return nil, errors.New("atomicfile: namespace directory is empty")
	}
	stagingDir := filepath.Join(namespaceDir, StagingDirName)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("atomicfile: create staging dir: %w", err)
	}

	name := fmt.Sprintf("%s.%d.%s.part", sanitizeStagingBase(key), os.Getpid(), shortID())
	path := filepath.Join(stagingDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("atomicfile: create staging file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("atomicfile: close staging file: %w", err)
	}

	return &Staging{path: path}, nil
}

// Path returns the staging file location callers stream bytes into.
func (s *Staging) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Commit atomically promotes the staged content to canonicalPath. The staging
// file and canonicalPath must share a volume. After a successful Commit the
// handle is spent.
func (s *Staging) Commit(canonicalPath string) error {
	if s == nil {
		return errors.New("atomicfile: nil staging handle")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.New("atomicfile: staging handle already finished")
	}
	canonicalPath = strings.TrimSpace(canonicalPath)
	if canonicalPath == "" {
		return errors.New("atomicfile: canonical path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(canonicalPath), 0o755); err != nil {
		return fmt.Errorf("atomicfile: create canonical dir: %w", err)
	}
	if err := os.Rename(s.path, canonicalPath); err != nil {
		return fmt.Errorf("atomicfile: promote %q: %w", filepath.Base(s.path), err)
	}
	s.done = true
	return nil
}

// Abort deletes the staging file. Idempotent and safe after Commit, so callers
// can defer it on every exit path.
func (s *Staging) Abort() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	_ = os.Remove(s.path)
	s.done = true
}

func shortID() string {
	id := uuid.NewString()
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func sanitizeStagingBase(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "entry"
	}
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
	key = replacer.Replace(key)
	key = strings.Trim(key, "-_.")
	if key == "" {
		return "entry"
	}
	if len(key) > 64 {
		key = key[:64]
	}
	return key
}
