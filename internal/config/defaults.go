package config

const (
	defaultCacheRoot          = "~/.local/share/dvdmaker/cache"
	defaultOutputDir          = "~/dvdmaker/output"
	defaultLogDir             = "~/.local/share/dvdmaker/logs"
	defaultLedgerPath         = "~/.local/share/dvdmaker/ledger.db"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLockStrategy       = "flock"
	defaultAcquireTimeoutSecs = 60
	defaultStaleTimeoutSecs   = 300
	defaultHeartbeatSecs      = 30
	defaultStagingMaxAgeHours = 24
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheRoot: defaultCacheRoot,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Cache: Cache{
			RevalidateOnRead:   false,
			StagingMaxAgeHours: defaultStagingMaxAgeHours,
		},
		Locking: Locking{
			Strategy:                 defaultLockStrategy,
			AcquireTimeoutSeconds:    defaultAcquireTimeoutSecs,
			StaleTimeoutSeconds:      defaultStaleTimeoutSecs,
			HeartbeatIntervalSeconds: defaultHeartbeatSecs,
		},
		Ledger: Ledger{
			Enabled: false,
			Path:    defaultLedgerPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
