package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jamesainslie/changeguard/pkg/changeguard/discovery"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	for _, key := range []string{"MAX_WORKERS", "HASH_COMMAND", "METHOD", "IGNORE_LINES", "CACHE_ENABLED"} {
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
	return home
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HashCommand != DefaultHashCommand {
		t.Errorf("HashCommand = %q, want %q", cfg.HashCommand, DefaultHashCommand)
	}
	if cfg.MaxWorkers != DefaultMaxWorkers {
		t.Errorf("MaxWorkers = %d, want %d", cfg.MaxWorkers, DefaultMaxWorkers)
	}
	if cfg.Method != DefaultMethod || cfg.DiffCommand != DefaultDiffCommand {
		t.Errorf("Method = %q, DiffCommand = %q", cfg.Method, cfg.DiffCommand)
	}
	if !cfg.DefaultIgnoreFile {
		t.Error("DefaultIgnoreFile = false, want true")
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if !cfg.History.Enabled || cfg.History.RetentionDays != DefaultRetentionDays {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Watch.Debounce != DefaultDebounce {
		t.Errorf("Watch.Debounce = %v, want %v", cfg.Watch.Debounce, DefaultDebounce)
	}
	if cfg.Logging.Components["cache"] != "warn" {
		t.Errorf("Logging.Components = %v", cfg.Logging.Components)
	}
}

func TestLoad_FromDefaultLocation(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".config", "changeguard", "config.yaml"), `
hash_command: "sha256sum"
max_workers: 3
method: initial_iterdir
ignore_lines:
  - "*.log"
  - build/
history:
  enabled: false
  path: ~/runs
watch:
  debounce: 2s
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HashCommand != "sha256sum" || cfg.MaxWorkers != 3 {
		t.Errorf("HashCommand = %q, MaxWorkers = %d", cfg.HashCommand, cfg.MaxWorkers)
	}
	if m, _ := discovery.ParseMethod(cfg.Method); m != discovery.MethodWalk {
		t.Errorf("Method = %q does not parse to walk", cfg.Method)
	}
	if len(cfg.IgnoreLines) != 2 || cfg.IgnoreLines[1] != "build/" {
		t.Errorf("IgnoreLines = %v", cfg.IgnoreLines)
	}
	if cfg.History.Enabled {
		t.Error("History.Enabled = true, want false")
	}
	if cfg.History.Path != filepath.Join(home, "runs") {
		t.Errorf("History.Path = %q, want ~ expanded", cfg.History.Path)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("Watch.Debounce = %v", cfg.Watch.Debounce)
	}
}

func TestLoad_XDGConfigHome(t *testing.T) {
	isolate(t)
	xdgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdgHome)
	writeConfig(t, filepath.Join(xdgHome, "changeguard", "config.yaml"), "max_workers: 7\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxWorkers != 7 {
		t.Errorf("MaxWorkers = %d, want 7", cfg.MaxWorkers)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeConfig(t, path, "output: json\ncache:\n  enabled: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "json" || !cfg.Cache.Enabled {
		t.Errorf("Output = %q, Cache.Enabled = %v", cfg.Output, cfg.Cache.Enabled)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of missing explicit file succeeded")
	}
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("CHANGEGUARD_MAX_WORKERS", "2")
	t.Setenv("CHANGEGUARD_HASH_COMMAND", "builtin:xxh64")
	t.Setenv("CHANGEGUARD_CACHE_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxWorkers != 2 || cfg.HashCommand != "builtin:xxh64" || !cfg.Cache.Enabled {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"negative workers", "max_workers: -1\n", nil},
		{"bad method", "method: svn\n", discovery.ErrInvalidMethod},
		{"bad progress", "progress: sometimes\n", nil},
		{"not yaml", "max_workers: [\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeConfig(t, path, tt.content)

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogConfig(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	lc, err := cfg.LogConfig("debug")
	if err != nil {
		t.Fatalf("LogConfig() error = %v", err)
	}
	if lc.Rotation.MaxSize != 10_000_000 {
		t.Errorf("Rotation.MaxSize = %d, want 10MB", lc.Rotation.MaxSize)
	}
	if lc.ConsoleLevel != "debug" || lc.Level != "info" || lc.Rotation.MaxBackups != 5 {
		t.Errorf("LogConfig() = %+v", lc)
	}

	cfg.Logging.Rotation.MaxSize = "lots"
	if _, err := cfg.LogConfig(""); err == nil {
		t.Error("LogConfig() accepted an invalid max_size")
	}
}

func TestWriteDefault(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	written, err := WriteDefault(path)
	if err != nil || !written {
		t.Fatalf("WriteDefault() = %v, %v", written, err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of default file error = %v", err)
	}
	if cfg.HashCommand != DefaultHashCommand || cfg.MaxWorkers != DefaultMaxWorkers || cfg.Watch.Debounce != DefaultDebounce {
		t.Errorf("default file decodes to %+v", cfg)
	}

	written, err = WriteDefault(path)
	if err != nil || written {
		t.Errorf("second WriteDefault() = %v, %v, want no write", written, err)
	}
}

func TestPath(t *testing.T) {
	home := isolate(t)

	got, err := Path()
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if want := filepath.Join(home, ".config", "changeguard", "config.yaml"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}
