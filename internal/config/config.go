package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheRoot string `toml:"cache_root"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Cache contains configuration for the content cache.
type Cache struct {
	// RevalidateOnRead forces a checksum re-validation on every Lookup.
	// Off by default; committed entries are already checksum-verified.
	RevalidateOnRead bool `toml:"revalidate_on_read"`
	// StagingMaxAgeHours bounds how long abandoned staging files survive
	// before the orphan sweep removes them.
	StagingMaxAgeHours int `toml:"staging_max_age_hours"`
	// ForceDownload and ForceConvert make Lookup report a miss for the
	// corresponding namespace so producers regenerate the artifact.
	ForceDownload bool `toml:"force_download"`
	ForceConvert  bool `toml:"force_convert"`
}

// Locking contains cross-process lock policy.
type Locking struct {
	// Strategy selects "flock" (native advisory locks) or "heartbeat"
	// (lock-file-with-heartbeat for filesystems without flock support).
	Strategy                 string `toml:"strategy"`
	AcquireTimeoutSeconds    int    `toml:"acquire_timeout_seconds"`
	StaleTimeoutSeconds      int    `toml:"stale_timeout_seconds"`
	HeartbeatIntervalSeconds int    `toml:"heartbeat_interval_seconds"`
}

// Ledger contains configuration for the SQLite cache-event history.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dvdmaker.
//
// Configuration sections by subsystem:
//   - Paths: cache root, authored-output directory, log directory
//   - Cache: lookup validation policy and staging retention
//   - Locking: cross-process lock strategy and timing
//   - Ledger: optional SQLite history of cache events
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Cache   Cache   `toml:"cache"`
	Locking Locking `toml:"locking"`
	Ledger  Ledger  `toml:"ledger"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dvdmaker/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// config file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dvdmaker.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the engine needs at startup.
// OutputDir is created on a best-effort basis so the CLI can run when the
// authored-output volume is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheRoot, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// AcquireTimeout returns the configured lock acquisition timeout.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Locking.AcquireTimeoutSeconds) * time.Second
}

// StaleTimeout returns the heartbeat age after which a lock may be reclaimed.
func (c *Config) StaleTimeout() time.Duration {
	return time.Duration(c.Locking.StaleTimeoutSeconds) * time.Second
}

// HeartbeatInterval returns how often a held lock refreshes its heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Locking.HeartbeatIntervalSeconds) * time.Second
}

// StagingMaxAge returns the retention window for abandoned staging files.
func (c *Config) StagingMaxAge() time.Duration {
	return time.Duration(c.Cache.StagingMaxAgeHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
