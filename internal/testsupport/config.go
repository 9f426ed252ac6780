package testsupport

import (
	"path/filepath"
	"testing"

	"dvdmaker/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheRoot = filepath.Join(base, "cache")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Ledger.Path = filepath.Join(base, "ledger.db")
	cfgVal.Locking.AcquireTimeoutSeconds = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLockStrategy overrides the lock strategy on the test config.
func WithLockStrategy(strategy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Locking.Strategy = strategy
	}
}

// WithRevalidateOnRead enables checksum validation on every lookup.
func WithRevalidateOnRead() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.RevalidateOnRead = true
	}
}

// WithLedgerEnabled turns on the SQLite event history for the test.
func WithLedgerEnabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheRoot)
}
