// Package watch reports changes to the files recorded in a manifest as they
// happen.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
)

// DefaultDebounce is how long events are coalesced before OnChange runs.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the sorted root-relative paths that changed.
type ChangeFunc func(ctx context.Context, changed []string)

// Options configures Run.
type Options struct {
	Root     string
	Paths    []string
	Debounce time.Duration
	OnChange ChangeFunc
}

// Watcher watches the directories holding a set of tracked files.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	tracked map[string]bool

	mu     sync.Mutex
	dirs   map[string]bool
	closed bool
}

// New watches the parent directory of every path. A parent that does not
// exist is replaced by its nearest existing ancestor under root.
func New(root string, paths []string) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:    absRoot,
		fsw:     fsw,
		tracked: make(map[string]bool, len(paths)),
		dirs:    make(map[string]bool),
	}
	for _, p := range paths {
		w.tracked[p] = true
		if err := w.addWatch(w.existingParent(p)); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// existingParent returns the nearest existing directory above rel, stopping
// at the root.
func (w *Watcher) existingParent(rel string) string {
	dir := filepath.Dir(filepath.Join(w.root, filepath.FromSlash(rel)))
	for dir != w.root && strings.HasPrefix(dir, w.root) {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		dir = filepath.Dir(dir)
	}
	return w.root
}

func (w *Watcher) addWatch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.dirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		logging.Get("watch").Warn("failed to add watch", "path", dir, "error", err)
		return err
	}
	w.dirs[dir] = true
	return nil
}

// Dirs returns the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Run delivers coalesced changes to onChange until ctx is done. Events are
// collected until debounce passes without a new one.
func (w *Watcher) Run(ctx context.Context, debounce time.Duration, onChange ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log := logging.Get("watch")

	pending := make(map[string]bool)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if rel, hit := w.handle(event); hit {
				log.Debug("tracked file changed", "path", rel, "op", event.Op.String())
				pending[rel] = true
				timer.Reset(debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			if onChange != nil {
				onChange(ctx, changed)
			}
		}
	}
}

// handle reports whether event concerns a tracked path. A created directory
// on the way to a tracked path gets watched.
func (w *Watcher) handle(event fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() && w.leadsToTracked(rel) {
			_ = w.addWatch(event.Name)
		}
	}

	if event.Op == fsnotify.Chmod {
		return "", false
	}
	return rel, w.tracked[rel]
}

func (w *Watcher) leadsToTracked(dir string) bool {
	prefix := dir + "/"
	for p := range w.tracked {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	clear(w.dirs)
	return w.fsw.Close()
}

// Run watches opts.Paths under opts.Root until ctx is done. Cancellation is
// not reported as an error.
func Run(ctx context.Context, opts Options) error {
	w, err := New(opts.Root, opts.Paths)
	if err != nil {
		return err
	}
	defer w.Close()

	logging.Get("watch").Info("watching", "root", w.root, "files", len(opts.Paths), "dirs", len(w.Dirs()))
	err = w.Run(ctx, opts.Debounce, opts.OnChange)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
