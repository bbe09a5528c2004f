// Package discovery enumerates the files under a root directory that a
// snapshot should cover.
//
// Two strategies are available: a raw filesystem walk and the list of files
// tracked by git. Both consult the same ignore rules and return paths
// relative to the root, slash-separated and sorted.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jamesainslie/changeguard/pkg/changeguard/ignore"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
)

var (
	// ErrInvalidMethod is returned for an unknown discovery method name.
	ErrInvalidMethod = errors.New("invalid discovery method")
	// ErrInconsistentListing is returned when git lists a path that does not
	// exist on disk.
	ErrInconsistentListing = errors.New("git listed a file that does not exist")
	// ErrMismatchedDiscovery is returned by Reconcile when the strategies disagree.
	ErrMismatchedDiscovery = errors.New("walk and git discovery do not match")
	// ErrNotRepository is returned by Reconcile when the root has no .git directory.
	ErrNotRepository = errors.New("no .git directory found")
)

// Result is the outcome of one discovery strategy.
type Result struct {
	// Included are the paths to hash.
	Included []string
	// Ignored are the paths excluded by ignore rules. For the walk strategy
	// an ignored directory appears once and its contents are not listed.
	Ignored []string
}

// Options configures a discovery run.
type Options struct {
	// Root is the directory to enumerate.
	Root string
	// Method selects the strategy. The zero value means MethodAuto.
	Method Method
	// Rules excludes paths; nil ignores nothing.
	Rules *ignore.RuleSet
	// Runner executes git. Defaults to shell.NewOSRunner().
	Runner shell.Runner
}

func (o *Options) normalize() error {
	if o.Root == "" {
		o.Root = "."
	}
	root, err := ResolveRoot(o.Root)
	if err != nil {
		return err
	}
	o.Root = root
	if o.Method == "" {
		o.Method = MethodAuto
	}
	if o.Runner == nil {
		o.Runner = shell.NewOSRunner()
	}
	return nil
}

// Discover runs the configured strategy and returns its result together with
// the method actually used, with MethodAuto resolved.
func Discover(ctx context.Context, opts Options) (Result, Method, error) {
	if err := opts.normalize(); err != nil {
		return Result{}, "", err
	}

	method := opts.Method.Resolve(opts.Root)
	log := logging.Get("discovery")
	log.Debug("discovering files", "root", opts.Root, "method", method)

	var (
		res Result
		err error
	)
	switch method {
	case MethodWalk:
		res, err = Walk(ctx, opts.Root, opts.Rules)
	case MethodGit:
		res, err = GitList(ctx, opts.Runner, opts.Root, opts.Rules)
	default:
		return Result{}, "", fmt.Errorf("%w: %q", ErrInvalidMethod, opts.Method)
	}
	if err != nil {
		return Result{}, method, err
	}

	log.Debug("discovery complete", "included", len(res.Included), "ignored", len(res.Ignored))
	return res, method, nil
}

// ResolveRoot returns the absolute form of root after checking that it is a
// directory.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %s is not a directory", abs)
	}

	return abs, nil
}

// HasGitDir reports whether root contains a .git entry. Worktrees and
// submodules use a .git file, which counts as well.
func HasGitDir(root string) bool {
	_, err := os.Lstat(filepath.Join(root, ".git"))
	return err == nil
}

// relative converts an absolute path under root to its slash-separated
// relative form.
func relative(root, full string) string {
	rel := strings.TrimPrefix(full, root)
	rel = strings.TrimPrefix(rel, string(filepath.Separator))
	return filepath.ToSlash(rel)
}

func sortResult(res *Result) {
	sort.Strings(res.Included)
	sort.Strings(res.Ignored)
	if res.Included == nil {
		res.Included = []string{}
	}
	if res.Ignored == nil {
		res.Ignored = []string{}
	}
}
