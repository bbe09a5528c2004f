package guard

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jamesainslie/changeguard/pkg/changeguard/discovery"
	"github.com/jamesainslie/changeguard/pkg/changeguard/hasher"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
	"github.com/jamesainslie/changeguard/pkg/changeguard/manifest"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// AuditOptions configures Audit.
type AuditOptions struct {
	Root       string
	Hasher     hasher.Hasher
	MaxWorkers int
	OnHashed   hasher.ProgressFunc
}

// Audit re-hashes every path recorded in m and returns one failure per path
// that is missing, cannot be hashed or hashes differently. Every path is
// checked; the failures are sorted by path. An empty result means the tree
// matches the manifest.
func Audit(ctx context.Context, m *manifest.Manifest, opts AuditOptions) ([]types.Failure, error) {
	if opts.Hasher == nil {
		return nil, ErrNoHasher
	}
	root, err := discovery.ResolveRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	log := logging.Get("guard")

	var (
		failures []types.Failure
		present  []string
	)
	for _, p := range m.Paths() {
		// Stat follows symlinks: a link whose target is gone counts as missing.
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(p)))
		switch {
		case err == nil:
			present = append(present, p)
		case errors.Is(err, fs.ErrNotExist):
			failures = append(failures, types.NewMissing(p))
		default:
			failures = append(failures, types.NewHashError(p, err))
		}
	}
	log.Info("audit started", "root", root, "files", len(m.Files), "missing", len(failures))

	for _, r := range hasher.HashAll(ctx, opts.Hasher, root, present, opts.MaxWorkers, opts.OnHashed) {
		switch {
		case r.Err != nil:
			failures = append(failures, types.NewHashError(r.Path, r.Err))
		case r.Hash != m.Files[r.Path]:
			failures = append(failures, types.NewMismatch(r.Path, m.Files[r.Path], r.Hash))
		}
	}

	types.SortFailures(failures)
	log.Info("audit finished", "failures", len(failures))
	return failures, nil
}

// Subset returns a copy of m restricted to the given paths. Paths m does not
// record are dropped.
func Subset(m *manifest.Manifest, paths []string) *manifest.Manifest {
	out := manifest.New()
	out.BackupDir = m.BackupDir
	out.Meta = m.Meta
	for _, p := range paths {
		if h, ok := m.Files[p]; ok {
			out.Files[p] = h
		}
	}
	return out
}
