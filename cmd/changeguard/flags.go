package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/changeguard/pkg/changeguard/cache"
	"github.com/jamesainslie/changeguard/pkg/changeguard/config"
	"github.com/jamesainslie/changeguard/pkg/changeguard/hasher"
	"github.com/jamesainslie/changeguard/pkg/changeguard/ignore"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
	"github.com/jamesainslie/changeguard/pkg/changeguard/manifest"
	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
)

// ignoreFlags are shared by the commands that discover files.
type ignoreFlags struct {
	files     []string
	lines     []string
	noDefault bool
}

func addDirectoryFlag(cmd *cobra.Command, dst *string, action string) {
	cmd.Flags().StringVarP(dst, "directory", "C", ".", fmt.Sprintf("directory to %s", action))
}

func addIgnoreFlags(cmd *cobra.Command, f *ignoreFlags) {
	cmd.Flags().StringArrayVar(&f.files, "ignorefile", nil, "file of ignore patterns in gitignore syntax (repeatable)")
	cmd.Flags().StringArrayVar(&f.lines, "ignoreline", nil, "ignore pattern in gitignore syntax (repeatable)")
	cmd.Flags().BoolVar(&f.noDefault, "no-default-ignorefile", false, "do not look for "+ignore.DefaultFileName)
}

// buildRules compiles the ignore sources for root. Configured files come
// first, then flag files, then literal lines from both. The nearest
// .changeguard-ignore is prepended unless disabled.
func buildRules(root string, f ignoreFlags) (*ignore.RuleSet, error) {
	files := append(append([]string{}, cfg.IgnoreFiles...), f.files...)
	lines := append(append([]string{}, cfg.IgnoreLines...), f.lines...)

	if cfg.DefaultIgnoreFile && !f.noDefault {
		found, err := ignore.FindIgnoreFile(root)
		if err != nil {
			return nil, err
		}
		if found != "" && !containsPath(files, found) {
			logging.Get("cli").Debug("using ignore file", "path", found)
			files = append([]string{found}, files...)
		}
	}

	sources := make([]ignore.Source, 0, len(files)+1)
	for _, file := range files {
		path, err := config.ExpandPath(file)
		if err != nil {
			return nil, err
		}
		src, err := ignore.ReadFileSource(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(lines) > 0 {
		sources = append(sources, ignore.LinesSource(lines))
	}
	return ignore.Compile(sources...)
}

// containsPath reports whether paths names target, comparing absolute forms.
func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		expanded, err := config.ExpandPath(p)
		if err != nil {
			continue
		}
		if abs, err := filepath.Abs(expanded); err == nil && abs == target {
			return true
		}
	}
	return false
}

// buildHasher returns the hasher for spec, wrapped in the hash cache when
// useCache is set. The returned function releases the cache.
func buildHasher(spec string, useCache bool) (hasher.Hasher, func(), error) {
	h, err := hasher.New(spec, shell.NewOSRunner())
	if err != nil {
		return nil, nil, err
	}
	if !useCache {
		return h, func() {}, nil
	}

	path := cfg.Cache.Path
	if path == "" {
		path = cache.DefaultPath()
	}
	store, err := cache.Open(path)
	if err != nil {
		logging.Get("cache").Warn("hash cache unavailable, hashing everything", "path", path, "error", err)
		return h, func() {}, nil
	}

	cached := hasher.NewCachedHasher(h, store)
	return cached, func() {
		hits, misses := cached.Stats()
		logging.Get("cache").Info("hash cache used", "hits", hits, "misses", misses)
		_ = store.Close()
	}, nil
}

// auditHashCommand returns the configured hash command for verifying m.
// The command recorded in the manifest is informational and never run; a
// difference is only logged.
func auditHashCommand(m *manifest.Manifest) string {
	if recorded := m.Meta.HashCommand; recorded != "" && recorded != cfg.HashCommand {
		logging.Get("cli").Warn("audit file was recorded with a different hash command",
			"recorded", recorded, "using", cfg.HashCommand)
	}
	return cfg.HashCommand
}
