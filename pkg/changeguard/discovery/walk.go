package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/changeguard/pkg/changeguard/ignore"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
)

// vcsDirName is never reported by the walk; git does not list its own
// metadata either.
const vcsDirName = ".git"

// walker performs one parallel traversal using fastwalk.
type walker struct {
	root  string
	rules *ignore.RuleSet

	dirsVisited atomic.Int64

	mu       sync.Mutex
	included []string
	ignored  []string
	errs     []error
}

// Walk enumerates every non-directory entry under root. Entries matched by
// rules are recorded as ignored; ignored directories are not descended.
// Symlinks are reported as entries and never followed. Any read error aborts
// the walk, since the result must be exhaustive.
func Walk(ctx context.Context, root string, rules *ignore.RuleSet) (Result, error) {
	root, err := ResolveRoot(root)
	if err != nil {
		return Result{}, err
	}

	w := &walker{root: root, rules: rules}
	conf := fastwalk.Config{
		Follow: false,
	}

	walkErr := fastwalk.Walk(&conf, root, w.callback(ctx))
	if walkErr != nil && !errors.Is(walkErr, fastwalk.ErrSkipFiles) {
		return Result{}, fmt.Errorf("failed to walk %s: %w", root, walkErr)
	}
	if len(w.errs) > 0 {
		return Result{}, fmt.Errorf("failed to walk %s: %w", root, errors.Join(w.errs...))
	}

	logging.Get("discovery").Debug("walk finished",
		"root", root,
		"dirs", w.dirsVisited.Load(),
		"files", len(w.included),
	)

	res := Result{Included: w.included, Ignored: w.ignored}
	sortResult(&res)
	return res, nil
}

func (w *walker) callback(ctx context.Context) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			w.addError(fmt.Errorf("%s: %w", path, err))
			return nil
		}

		rel := relative(w.root, path)
		if rel == "" || rel == "." {
			return nil
		}

		if d.Name() == vcsDirName {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if w.rules.Match(rel, d.IsDir()) {
			w.add(&w.ignored, rel)
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			w.dirsVisited.Add(1)
			return nil
		}

		w.add(&w.included, rel)
		return nil
	}
}

func (w *walker) add(dst *[]string, rel string) {
	w.mu.Lock()
	*dst = append(*dst, rel)
	w.mu.Unlock()
}

func (w *walker) addError(err error) {
	w.mu.Lock()
	w.errs = append(w.errs, err)
	w.mu.Unlock()
}
