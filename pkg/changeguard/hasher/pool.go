package hasher

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
)

// ProgressFunc is called once per finished path, from worker goroutines.
type ProgressFunc func(Record)

// HashAll hashes every path with at most maxWorkers hashes in flight and
// returns one Record per path, in input order. A failing path never stops the
// others; its error is kept in its Record. maxWorkers <= 0 allows one worker
// per path.
func HashAll(ctx context.Context, h Hasher, root string, paths []string, maxWorkers int, onDone ProgressFunc) []Record {
	records := make([]Record, len(paths))
	if len(paths) == 0 {
		return records
	}

	limit := maxWorkers
	if limit <= 0 || limit > len(paths) {
		limit = len(paths)
	}

	log := logging.Get("hasher")
	log.Debug("hashing files", "count", len(paths), "workers", limit, "hasher", h.Name())
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			sum, err := h.Hash(ctx, root, p)
			records[i] = Record{Path: p, Hash: sum, Err: err}
			if err != nil {
				log.Debug("hash failed", "path", p, "err", err)
			}
			if onDone != nil {
				onDone(records[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Debug("hashing finished", "count", len(paths), "elapsed", time.Since(start))
	return records
}

// Split separates successful records into a path to hash map and returns the
// failed records in input order.
func Split(records []Record) (hashes map[string]string, failed []Record) {
	hashes = make(map[string]string, len(records))
	for _, r := range records {
		if r.Err != nil {
			failed = append(failed, r)
			continue
		}
		hashes[r.Path] = r.Hash
	}
	return hashes, failed
}
