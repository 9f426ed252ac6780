package cachestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dvdmaker/internal/atomicfile"
	"dvdmaker/internal/integrity"
	"dvdmaker/internal/lockfile"
	"dvdmaker/internal/logging"
	"dvdmaker/internal/namemap"
)

// Well-known namespaces. The store accepts any valid namespace name; these are
// the ones the pipeline uses.
const (
	NamespaceDownloads = "downloads"
	NamespaceConverted = "converted"
	NamespaceMetadata  = "metadata"
)

// State classifies a lookup outcome.
type State int

const (
	// StateNotFound means no committed entry exists for the key.
	StateNotFound State = iota
	// StateFound means a complete, trusted entry exists.
	StateFound
	// StateInvalid means an entry exists but cannot be trusted: missing or
	// corrupt sidecar, size disagreement, or checksum mismatch.
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateFound:
		return "found"
	case StateInvalid:
		return "invalid"
	default:
		return "not_found"
	}
}

// Entry describes a committed cache entry.
type Entry struct {
	Namespace string
	Key       string
	Name      string
	Path      string
	Meta      Metadata
}

// Result is the tri-state outcome of Lookup. A miss is a value, not an error.
type Result struct {
	State  State
	Entry  Entry
	Reason string
}

// Recorder receives cache lifecycle events. Implemented by the ledger; a nil
// recorder disables history.
type Recorder interface {
	Record(ctx context.Context, namespace, key, event string, sizeBytes int64, checksum string) error
}

// Options assembles a Store from its collaborators.
type Options struct {
	Root  string
	Locks *lockfile.Coordinator
	Names *namemap.Mapper

	Logger   *slog.Logger
	Recorder Recorder

	AcquireTimeout   time.Duration
	StagingMaxAge    time.Duration
	RevalidateOnRead bool

	// ForceMiss lists namespaces whose lookups always report not found,
	// forcing regeneration without destroying cached content.
	ForceMiss []string
}

// Store is the namespaced, checksum-carrying artifact cache.
type Store struct {
	root           string
	locks          *lockfile.Coordinator
	names          *namemap.Mapper
	logger         *slog.Logger
	recorder       Recorder
	acquireTimeout time.Duration
	stagingMaxAge  time.Duration
	revalidate     bool
	forceMiss      map[string]bool
}

// New builds a Store rooted at opts.Root and creates the root directory.
func New(opts Options) (*Store, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, errors.New("cachestore: root is empty")
	}
	if opts.Locks == nil {
		return nil, errors.New("cachestore: lock coordinator is required")
	}
	if opts.Names == nil {
		return nil, errors.New("cachestore: filename mapper is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cachestore: create root: %w", err)
	}

	acquireTimeout := opts.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = time.Minute
	}
	stagingMaxAge := opts.StagingMaxAge
	if stagingMaxAge <= 0 {
		stagingMaxAge = 24 * time.Hour
	}

	forceMiss := make(map[string]bool, len(opts.ForceMiss))
	for _, ns := range opts.ForceMiss {
		forceMiss[strings.TrimSpace(ns)] = true
	}

	return &Store{
		root:           root,
		locks:          opts.Locks,
		names:          opts.Names,
		logger:         logging.NewComponentLogger(opts.Logger, "cachestore"),
		recorder:       opts.Recorder,
		acquireTimeout: acquireTimeout,
		stagingMaxAge:  stagingMaxAge,
		revalidate:     opts.RevalidateOnRead,
		forceMiss:      forceMiss,
	}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// NamespaceDir returns the directory holding a namespace's entries.
func (s *Store) NamespaceDir(namespace string) string {
	return filepath.Join(s.root, namespace)
}

func validNamespace(namespace string) error {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return errors.New("cachestore: namespace is empty")
	}
	if strings.HasPrefix(namespace, ".") {
		return fmt.Errorf("cachestore: namespace %q must not start with a dot", namespace)
	}
	if strings.ContainsAny(namespace, `/\`) {
		return fmt.Errorf("cachestore: namespace %q must not contain path separators", namespace)
	}
	return nil
}

func validKey(namespace, key string) (string, error) {
	if err := validNamespace(namespace); err != nil {
		return "", err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("cachestore: key is empty")
	}
	return key, nil
}

func (s *Store) pathsFor(namespace, name string) (payload, sidecar string) {
	dir := s.NamespaceDir(namespace)
	return filepath.Join(dir, name), filepath.Join(dir, name+MetaSuffix)
}

// entryPaths resolves a key to its canonical payload and sidecar locations,
// assigning a normalized name on first use. Only write paths call it; reads
// go through peekPaths so a lookup never touches the mapping document.
func (s *Store) entryPaths(namespace, key string) (name, payload, sidecar string, err error) {
	key, err = validKey(namespace, key)
	if err != nil {
		return "", "", "", err
	}
	name, err = s.names.Normalize(key)
	if err != nil {
		return "", "", "", err
	}
	payload, sidecar = s.pathsFor(namespace, name)
	return name, payload, sidecar, nil
}

// peekPaths is entryPaths without the assignment side effect. ok is false
// when no entry for the key can exist because its candidate name belongs to
// another identifier.
func (s *Store) peekPaths(namespace, key string) (name, payload, sidecar string, ok bool, err error) {
	key, err = validKey(namespace, key)
	if err != nil {
		return "", "", "", false, err
	}
	name, ok = s.names.Peek(key)
	if !ok {
		return "", "", "", false, nil
	}
	payload, sidecar = s.pathsFor(namespace, name)
	return name, payload, sidecar, true, nil
}

// Lookup classifies the entry for key. It never fails on a miss: absent,
// untrusted, and present entries are all ordinary results. Only resolution
// errors (bad namespace, empty key, unreadable mapping) surface as errors.
func (s *Store) Lookup(ctx context.Context, namespace, key string) (Result, error) {
	name, payload, sidecar, ok, err := s.peekPaths(namespace, key)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{State: StateNotFound}, nil
	}

	if s.forceMiss[namespace] {
		s.logger.Debug("lookup forced to miss",
			logging.String(logging.FieldNamespace, namespace),
			logging.String(logging.FieldKey, key),
		)
		return Result{State: StateNotFound, Reason: "regeneration forced"}, nil
	}

	info, err := os.Stat(payload)
	if errors.Is(err, os.ErrNotExist) {
		return Result{State: StateNotFound}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("cachestore: stat %q: %w", payload, err)
	}
	if info.IsDir() {
		return s.invalid(namespace, key, name, payload, Metadata{}, "entry is a directory"), nil
	}

	meta, err := readMeta(sidecar)
	if errors.Is(err, os.ErrNotExist) {
		return s.invalid(namespace, key, name, payload, Metadata{}, "sidecar missing"), nil
	}
	if err != nil {
		return s.invalid(namespace, key, name, payload, Metadata{}, err.Error()), nil
	}
	if meta.SizeBytes != info.Size() {
		reason := fmt.Sprintf("size mismatch: sidecar %d bytes, file %d bytes", meta.SizeBytes, info.Size())
		return s.invalid(namespace, key, name, payload, meta, reason), nil
	}

	if s.revalidate {
		if err := integrity.Validate(payload, meta.Checksum); err != nil {
			if errors.Is(err, integrity.ErrMismatch) {
				return s.invalid(namespace, key, name, payload, meta, "checksum mismatch"), nil
			}
			return Result{}, err
		}
	}

	return Result{State: StateFound, Entry: Entry{
		Namespace: namespace,
		Key:       key,
		Name:      name,
		Path:      payload,
		Meta:      meta,
	}}, nil
}

func (s *Store) invalid(namespace, key, name, payload string, meta Metadata, reason string) Result {
	logging.WarnWithContext(s.logger, "cache entry failed validation", "cache_entry_invalid",
		logging.String(logging.FieldNamespace, namespace),
		logging.String(logging.FieldKey, key),
		logging.String("path", payload),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "the entry will be regenerated; run cache invalidate to reclaim the space now"),
		logging.String(logging.FieldImpact, "cached artifact unusable"),
	)
	return Result{
		State:  StateInvalid,
		Entry:  Entry{Namespace: namespace, Key: key, Name: name, Path: payload, Meta: meta},
		Reason: reason,
	}
}

// Verify recomputes the checksum of a committed entry regardless of the
// revalidate_on_read setting. ErrNotFound when no entry exists;
// ErrIntegrityMismatch (wrapped) when content diverged.
func (s *Store) Verify(ctx context.Context, namespace, key string) error {
	_, payload, sidecar, ok, err := s.peekPaths(namespace, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}
	meta, err := readMeta(sidecar)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}
	if err != nil {
		return err
	}
	return integrity.Validate(payload, meta.Checksum)
}

// Invalidate removes the entry and its sidecar under the key lock. Removing an
// absent entry succeeds; the operation is idempotent.
func (s *Store) Invalidate(ctx context.Context, namespace, key string) error {
	_, payload, sidecar, ok, err := s.peekPaths(namespace, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	handle, err := s.locks.Acquire(ctx, s.NamespaceDir(namespace), key, s.acquireTimeout)
	if err != nil {
		return err
	}
	defer handle.Release()

	var removed bool
	for _, path := range []string{payload, sidecar} {
		err := os.Remove(path)
		if err == nil {
			removed = true
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cachestore: remove %q: %w", path, err)
		}
	}

	if removed {
		s.logger.Info("invalidated cache entry",
			logging.String(logging.FieldNamespace, namespace),
			logging.String(logging.FieldKey, key),
			logging.String(logging.FieldEventType, "cache_invalidate"),
		)
		s.record(ctx, namespace, key, "invalidate", 0, "")
	}
	return nil
}

// Sweep purges orphaned staging files in every namespace under the root.
// Files younger than the staging age limit or owned by live processes are
// untouched.
func (s *Store) Sweep(ctx context.Context) (atomicfile.PurgeResult, error) {
	var total atomicfile.PurgeResult

	namespaces, err := s.Namespaces()
	if err != nil {
		return total, err
	}
	for _, ns := range namespaces {
		res := atomicfile.PurgeOrphans(s.NamespaceDir(ns), s.stagingMaxAge, s.logger)
		total.Removed = append(total.Removed, res.Removed...)
		total.Errors = append(total.Errors, res.Errors...)
	}
	return total, nil
}

// Namespaces lists the namespace directories present under the root, skipping
// dot-directories and loose files.
func (s *Store) Namespaces() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cachestore: read root: %w", err)
	}
	var namespaces []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		namespaces = append(namespaces, entry.Name())
	}
	return namespaces, nil
}

func (s *Store) record(ctx context.Context, namespace, key, event string, sizeBytes int64, checksum string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, namespace, key, event, sizeBytes, checksum); err != nil {
		s.logger.Warn("failed to record cache event",
			logging.String(logging.FieldNamespace, namespace),
			logging.String(logging.FieldKey, key),
			logging.String("event", event),
			logging.Error(err),
		)
	}
}
