package hasher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
)

// CommandHasher runs an external program for every file. The program is
// invoked as "<template tokens...> ./<path>" with the root as working
// directory and must print "<hash> <label>".
type CommandHasher struct {
	template string
	argv     []string
	runner   shell.Runner
}

// NewCommandHasher tokenizes template with shell quoting rules.
func NewCommandHasher(template string, runner shell.Runner) (*CommandHasher, error) {
	argv, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hash command %q: %w", template, err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	if runner == nil {
		runner = shell.NewOSRunner()
	}
	return &CommandHasher{template: template, argv: argv, runner: runner}, nil
}

// Name returns the command template.
func (h *CommandHasher) Name() string {
	return h.template
}

// Hash implements Hasher.
func (h *CommandHasher) Hash(ctx context.Context, root, rel string) (string, error) {
	args := make([]string, 0, len(h.argv))
	args = append(args, h.argv[1:]...)
	// "./" keeps names like "-b" from being read as options.
	args = append(args, "."+string(filepath.Separator)+filepath.FromSlash(rel))

	res, err := shell.Execute(ctx, h.runner, shell.Command{
		Name: h.argv[0],
		Args: args,
		Dir:  root,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashCommandFailed, err)
	}

	fields := strings.Fields(res.Stdout)
	if len(fields) != 2 {
		return "", fmt.Errorf("%w: expected 2 fields, got %d: %q", ErrMalformedHashOutput, len(fields), res.Stdout)
	}
	return fields[0], nil
}
