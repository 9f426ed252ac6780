package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dvdmaker/internal/cachestore"
	"dvdmaker/internal/config"
	"dvdmaker/internal/ledger"
	"dvdmaker/internal/lockfile"
	"dvdmaker/internal/logging"
	"dvdmaker/internal/namemap"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	storeOnce sync.Once
	store     *cachestore.Store
	ledger    *ledger.Ledger
	logger    *slog.Logger
	storeErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureStore lazily assembles the cache store and, when enabled, the event
// ledger from the resolved configuration. The CLI logs to files only, keeping
// stdout free for command output.
func (c *commandContext) ensureStore() (*cachestore.Store, error) {
	c.storeOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.storeErr = err
			return
		}

		logger, err := logging.New(logging.Options{
			Level:            cfg.Logging.Level,
			Format:           cfg.Logging.Format,
			OutputPaths:      []string{filepath.Join(cfg.Paths.LogDir, "dvdmaker.log")},
			ErrorOutputPaths: []string{"stderr"},
		})
		if err != nil {
			c.storeErr = err
			return
		}
		c.logger = logger

		names, err := namemap.NewMapper(filepath.Join(cfg.Paths.CacheRoot, namemap.MappingFileName), logger)
		if err != nil {
			c.storeErr = err
			return
		}

		locks := lockfile.NewCoordinator(lockfile.Options{
			Strategy:          lockfile.Strategy(cfg.Locking.Strategy),
			StaleTimeout:      cfg.StaleTimeout(),
			HeartbeatInterval: cfg.HeartbeatInterval(),
			Logger:            logger,
		})

		var recorder cachestore.Recorder
		if cfg.Ledger.Enabled {
			led, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				c.storeErr = err
				return
			}
			c.ledger = led
			recorder = led
		}

		var forceMiss []string
		if cfg.Cache.ForceDownload {
			forceMiss = append(forceMiss, cachestore.NamespaceDownloads)
		}
		if cfg.Cache.ForceConvert {
			forceMiss = append(forceMiss, cachestore.NamespaceConverted)
		}

		c.store, c.storeErr = cachestore.New(cachestore.Options{
			Root:             cfg.Paths.CacheRoot,
			Locks:            locks,
			Names:            names,
			Logger:           logger,
			Recorder:         recorder,
			AcquireTimeout:   cfg.AcquireTimeout(),
			StagingMaxAge:    cfg.StagingMaxAge(),
			RevalidateOnRead: cfg.Cache.RevalidateOnRead,
			ForceMiss:        forceMiss,
		})
	})
	return c.store, c.storeErr
}

// ensureLogger returns the file-backed logger shared by all subsystems.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if _, err := c.ensureStore(); err != nil {
		return nil, err
	}
	return c.logger, nil
}

// ensureLedger returns the event ledger, or nil when history is disabled.
func (c *commandContext) ensureLedger() (*ledger.Ledger, error) {
	if _, err := c.ensureStore(); err != nil {
		return nil, err
	}
	return c.ledger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
