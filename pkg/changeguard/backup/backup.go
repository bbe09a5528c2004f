// Package backup copies snapshotted files aside and, after a failed audit,
// diffs those copies against the current files.
package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
)

// FileMode is applied to every copy so it can be read and diffed no matter
// who owned the original.
const FileMode os.FileMode = 0o777

// Stats summarizes a Mirror run.
type Stats struct {
	Files int
	Bytes int64
}

// Mirror copies each root-relative path from root into dir under the same
// relative path. Copies run concurrently, at most workers at a time, and
// workers <= 0 allows one per path. The first copy error is returned.
func Mirror(ctx context.Context, root, dir string, paths []string, workers int) (Stats, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if len(paths) == 0 {
		return Stats{}, nil
	}
	if workers <= 0 || workers > len(paths) {
		workers = len(paths)
	}

	var files, bytes atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := copyFile(filepath.Join(root, filepath.FromSlash(rel)), filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("failed to back up %s: %w", rel, err)
			}
			files.Add(1)
			bytes.Add(n)
			return nil
		})
	}

	err := g.Wait()
	stats := Stats{Files: int(files.Load()), Bytes: bytes.Load()}
	logging.Get("backup").Debug("mirror finished", "dir", dir, "files", stats.Files, "bytes", stats.Bytes, "err", err)
	return stats, err
}

// copyFile copies src's contents to dst, following symlinks on the source
// side, and relaxes dst's permissions to FileMode.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, FileMode)
	if err != nil {
		return 0, err
	}

	n, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return n, copyErr
	}
	if closeErr != nil {
		return n, closeErr
	}
	return n, os.Chmod(dst, FileMode)
}
