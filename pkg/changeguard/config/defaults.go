package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultHashCommand   = "xxhsum -H0"
	DefaultMaxWorkers    = 10
	DefaultMethod        = "auto"
	DefaultDiffCommand   = "git diff --no-index --exit-code"
	DefaultOutput        = "pretty"
	DefaultProgress      = "auto"
	DefaultRetentionDays = 30
	DefaultDebounce      = 500 * time.Millisecond
)

// DefaultComponentLevels are the per-component log levels.
var DefaultComponentLevels = map[string]string{
	"discovery": "info",
	"hasher":    "info",
	"guard":     "info",
	"cache":     "warn",
	"watch":     "info",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hash_command", DefaultHashCommand)
	v.SetDefault("max_workers", DefaultMaxWorkers)
	v.SetDefault("method", DefaultMethod)
	v.SetDefault("diff_command", DefaultDiffCommand)
	v.SetDefault("ignore_files", []string{})
	v.SetDefault("ignore_lines", []string{})
	v.SetDefault("default_ignore_file", true)
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("progress", DefaultProgress)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("watch.debounce", DefaultDebounce)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

func defaultFile() string {
	return fmt.Sprintf(`# changeguard configuration

# Command that prints "<hash> <label>" for one file, or builtin:<algo>
# (md5, sha1, sha256, sha512, xxh64) to hash in process.
hash_command: %q

# Maximum concurrent hash invocations (0 means one per file).
max_workers: %d

# File discovery: auto, walk or git.
method: %s

# Command used to diff backup copies against current files on audit failure.
diff_command: %q

# Extra ignore pattern files and literal patterns.
ignore_files: []
ignore_lines: []

# Add the nearest .changeguard-ignore automatically.
default_ignore_file: true

# Output format: pretty, plain, json or yaml.
output: %s

# Progress display: auto, always or never.
progress: %s

# Reuse hashes of unchanged files during snapshots.
cache:
  enabled: false
  # Empty means $XDG_CACHE_HOME/changeguard/hashes
  path: ""

# Run history.
history:
  enabled: true
  # Empty means $XDG_DATA_HOME/changeguard/history
  path: ""
  retention_days: %d

watch:
  debounce: %s

logging:
  # debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/changeguard/changeguard.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    discovery: info
    hasher: info
    guard: info
    cache: warn
    watch: info
`, DefaultHashCommand, DefaultMaxWorkers, DefaultMethod, DefaultDiffCommand,
		DefaultOutput, DefaultProgress, DefaultRetentionDays, DefaultDebounce)
}
