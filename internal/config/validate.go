package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLocking(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CacheRoot) == "" {
		return errors.New("paths.cache_root must be set")
	}
	if c.Paths.CacheRoot == c.Paths.OutputDir {
		return errors.New("paths.cache_root and paths.output_dir must differ")
	}
	return nil
}

func (c *Config) validateLocking() error {
	switch c.Locking.Strategy {
	case "flock", "heartbeat":
	default:
		return fmt.Errorf("locking.strategy: unsupported value %q (use \"flock\" or \"heartbeat\")", c.Locking.Strategy)
	}
	if c.Locking.StaleTimeoutSeconds <= c.Locking.HeartbeatIntervalSeconds {
		return errors.New("locking.stale_timeout_seconds must exceed locking.heartbeat_interval_seconds")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
