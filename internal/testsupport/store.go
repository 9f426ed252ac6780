package testsupport

import (
	"path/filepath"
	"testing"

	"dvdmaker/internal/cachestore"
	"dvdmaker/internal/config"
	"dvdmaker/internal/lockfile"
	"dvdmaker/internal/logging"
	"dvdmaker/internal/namemap"
)

// MustOpenStore assembles a cachestore.Store from a test config.
func MustOpenStore(t testing.TB, cfg *config.Config) *cachestore.Store {
	t.Helper()

	logger := logging.NewNop()
	names, err := namemap.NewMapper(filepath.Join(cfg.Paths.CacheRoot, namemap.MappingFileName), logger)
	if err != nil {
		t.Fatalf("namemap.NewMapper: %v", err)
	}
	locks := lockfile.NewCoordinator(lockfile.Options{
		Strategy:          lockfile.Strategy(cfg.Locking.Strategy),
		StaleTimeout:      cfg.StaleTimeout(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		Logger:            logger,
	})
	var forceMiss []string
	if cfg.Cache.ForceDownload {
		forceMiss = append(forceMiss, cachestore.NamespaceDownloads)
	}
	if cfg.Cache.ForceConvert {
		forceMiss = append(forceMiss, cachestore.NamespaceConverted)
	}
	store, err := cachestore.New(cachestore.Options{
		Root:             cfg.Paths.CacheRoot,
		Locks:            locks,
		Names:            names,
		Logger:           logger,
		AcquireTimeout:   cfg.AcquireTimeout(),
		StagingMaxAge:    cfg.StagingMaxAge(),
		RevalidateOnRead: cfg.Cache.RevalidateOnRead,
		ForceMiss:        forceMiss,
	})
	if err != nil {
		t.Fatalf("cachestore.New: %v", err)
	}
	return store
}
