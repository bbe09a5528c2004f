package discovery

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jamesainslie/changeguard/pkg/changeguard/ignore"
	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
)

// GitList enumerates the files git tracks under root. Every listed path must
// exist on disk; the first one that does not aborts with
// ErrInconsistentListing.
func GitList(ctx context.Context, runner shell.Runner, root string, rules *ignore.RuleSet) (Result, error) {
	root, err := ResolveRoot(root)
	if err != nil {
		return Result{}, err
	}
	if runner == nil {
		runner = shell.NewOSRunner()
	}

	out, err := shell.Execute(ctx, runner, shell.Command{
		Name: "git",
		Args: []string{"ls-files"},
		Dir:  root,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to list git files: %w", err)
	}

	var res Result
	scanner := bufio.NewScanner(strings.NewReader(out.Stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rel := unquoteGitPath(strings.TrimSpace(scanner.Text()))
		if rel == "" {
			continue
		}

		if _, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			return Result{}, fmt.Errorf("%w: %s: %v", ErrInconsistentListing, rel, err)
		}

		if rules.Match(rel, false) {
			res.Ignored = append(res.Ignored, rel)
			continue
		}
		res.Included = append(res.Included, rel)
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("failed to read git output: %w", err)
	}

	sortResult(&res)
	return res, nil
}

// unquoteGitPath undoes git's C-style quoting of unusual file names.
func unquoteGitPath(line string) string {
	if len(line) < 2 || line[0] != '"' || line[len(line)-1] != '"' {
		return line
	}
	unquoted, err := strconv.Unquote(line)
	if err != nil {
		return line
	}
	return unquoted
}
