// Package guard records the state of a directory tree into a manifest and
// later verifies the tree against it.
package guard

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/changeguard/pkg/changeguard/backup"
	"github.com/jamesainslie/changeguard/pkg/changeguard/discovery"
	"github.com/jamesainslie/changeguard/pkg/changeguard/hasher"
	"github.com/jamesainslie/changeguard/pkg/changeguard/ignore"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
	"github.com/jamesainslie/changeguard/pkg/changeguard/manifest"
	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// ErrNoHasher is returned when no Hasher is configured.
var ErrNoHasher = errors.New("no hasher configured")

// SnapshotOptions configures Snapshot.
type SnapshotOptions struct {
	Root       string
	Method     discovery.Method
	Rules      *ignore.RuleSet
	Hasher     hasher.Hasher
	MaxWorkers int
	// BackupDir, when set, receives a copy of every hashed file.
	BackupDir string
	// Exclude lists extra paths, absolute or relative to the working
	// directory, that must not be recorded, such as the manifest being
	// written. Ignore files in Rules are always excluded.
	Exclude []string
	Runner  shell.Runner
	// OnDiscovered is called once with the number of paths about to be hashed.
	OnDiscovered func(total int)
	OnHashed     hasher.ProgressFunc
	Version      string
}

// SnapshotResult is the outcome of Snapshot.
type SnapshotResult struct {
	Manifest  *manifest.Manifest
	Failures  []types.Failure
	Discovery discovery.Result
	Method    discovery.Method
	// Backup is set when a backup was written.
	Backup *backup.Stats
}

// Snapshot discovers the files under Root, hashes them and builds a manifest.
// Paths that cannot be hashed are reported as failures and left out of the
// manifest; in that case no backup is made. Discovery and backup errors are
// returned as errors.
func Snapshot(ctx context.Context, opts SnapshotOptions) (*SnapshotResult, error) {
	if opts.Hasher == nil {
		return nil, ErrNoHasher
	}
	root, err := discovery.ResolveRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	log := logging.Get("guard")

	found, method, err := discovery.Discover(ctx, discovery.Options{
		Root:   root,
		Method: opts.Method,
		Rules:  opts.Rules,
		Runner: opts.Runner,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	artifacts := append(opts.Rules.Files(), opts.Exclude...)
	if opts.BackupDir != "" {
		artifacts = append(artifacts, opts.BackupDir)
	}
	found = excludeArtifacts(root, found, artifacts)

	log.Info("snapshot started", "root", root, "method", method, "files", len(found.Included), "ignored", len(found.Ignored))
	if opts.OnDiscovered != nil {
		opts.OnDiscovered(len(found.Included))
	}

	records := hasher.HashAll(ctx, opts.Hasher, root, found.Included, opts.MaxWorkers, opts.OnHashed)
	hashes, failed := hasher.Split(records)

	failures := make([]types.Failure, 0, len(failed))
	for _, r := range failed {
		failures = append(failures, types.NewHashError(r.Path, r.Err))
	}
	types.SortFailures(failures)

	m := manifest.New()
	m.Files = hashes
	m.Meta = manifest.Meta{
		RunID:             uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		Version:           opts.Version,
		DiscoveryMethod:   method.String(),
		HashCommand:       opts.Hasher.Name(),
		Ignored:           found.Ignored,
		MaxWorkers:        opts.MaxWorkers,
		IgnoreRuleSources: opts.Rules.Sources(),
	}

	res := &SnapshotResult{Manifest: m, Failures: failures, Discovery: found, Method: method}

	if opts.BackupDir != "" && len(failures) == 0 {
		dir, err := filepath.Abs(opts.BackupDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve backup directory: %w", err)
		}
		stats, err := backup.Mirror(ctx, root, dir, found.Included, opts.MaxWorkers)
		if err != nil {
			return nil, err
		}
		m.SetBackup(dir)
		res.Backup = &stats
	}

	log.Info("snapshot finished", "hashed", len(hashes), "failures", len(failures))
	return res, nil
}

// excludeArtifacts moves paths that are, or lie under, one of the given
// locations from Included to Ignored. Locations outside root are skipped.
func excludeArtifacts(root string, res discovery.Result, locations []string) discovery.Result {
	var prefixes []string
	for _, loc := range locations {
		abs, err := filepath.Abs(loc)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		prefixes = append(prefixes, filepath.ToSlash(rel))
	}
	if len(prefixes) == 0 {
		return res
	}

	out := discovery.Result{Ignored: append([]string{}, res.Ignored...), Included: make([]string, 0, len(res.Included))}
	for _, p := range res.Included {
		if underAny(p, prefixes) {
			out.Ignored = append(out.Ignored, p)
			continue
		}
		out.Included = append(out.Included, p)
	}
	sort.Strings(out.Ignored)
	return out
}

func underAny(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
