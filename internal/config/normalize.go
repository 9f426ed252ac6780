package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLocking()
	c.normalizeCache()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheRoot) == "" {
		c.Paths.CacheRoot = defaultCacheRoot
	}
	if c.Paths.CacheRoot, err = expandPath(c.Paths.CacheRoot); err != nil {
		return fmt.Errorf("paths.cache_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	if c.Ledger.Path, err = expandPath(c.Ledger.Path); err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLocking() {
	c.Locking.Strategy = strings.ToLower(strings.TrimSpace(c.Locking.Strategy))
	if c.Locking.Strategy == "" {
		c.Locking.Strategy = defaultLockStrategy
	}
	if c.Locking.AcquireTimeoutSeconds <= 0 {
		c.Locking.AcquireTimeoutSeconds = defaultAcquireTimeoutSecs
	}
	if c.Locking.StaleTimeoutSeconds <= 0 {
		c.Locking.StaleTimeoutSeconds = defaultStaleTimeoutSecs
	}
	if c.Locking.HeartbeatIntervalSeconds <= 0 {
		c.Locking.HeartbeatIntervalSeconds = defaultHeartbeatSecs
	}
}

func (c *Config) normalizeCache() {
	if c.Cache.StagingMaxAgeHours <= 0 {
		c.Cache.StagingMaxAgeHours = defaultStagingMaxAgeHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
