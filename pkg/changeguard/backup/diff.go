package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/shlex"

	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// DefaultDiffCommand compares two files; exit status 1 means they differ.
const DefaultDiffCommand = "git diff --no-index --exit-code"

// differencesFound is the exit status diff tools use when files differ.
const differencesFound = 1

// Differ renders the difference between a backup copy and the current file
// with an external diff command.
type Differ struct {
	argv   []string
	runner shell.Runner
}

// NewDiffer tokenizes command; an empty command uses DefaultDiffCommand.
func NewDiffer(command string, runner shell.Runner) (*Differ, error) {
	if command == "" {
		command = DefaultDiffCommand
	}
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("diff command is empty")
	}
	if runner == nil {
		runner = shell.NewOSRunner()
	}
	return &Differ{argv: argv, runner: runner}, nil
}

// Diff returns the diff output for rel between backupDir and root. A file
// that no longer exists is compared against the null device.
func (d *Differ) Diff(ctx context.Context, backupDir, root, rel string) (string, error) {
	before := filepath.Join(backupDir, filepath.FromSlash(rel))
	after := filepath.Join(root, filepath.FromSlash(rel))
	if _, err := os.Lstat(after); os.IsNotExist(err) {
		after = os.DevNull
	}

	args := append(append([]string{}, d.argv[1:]...), before, after)
	res, err := shell.Execute(ctx, d.runner, shell.Command{Name: d.argv[0], Args: args, Dir: root}, differencesFound)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Attach sets Diff on every failure that names a path. A diff that cannot be
// produced is described in its place; it never aborts the others.
func (d *Differ) Attach(ctx context.Context, failures []types.Failure, backupDir, root string) {
	for i := range failures {
		if failures[i].Path == "" {
			continue
		}
		diff, err := d.Diff(ctx, backupDir, root, failures[i].Path)
		if err != nil {
			failures[i].Diff = "diff unavailable: " + err.Error()
			continue
		}
		failures[i].Diff = diff
	}
}
