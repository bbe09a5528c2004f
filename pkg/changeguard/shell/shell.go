// Package shell runs external commands for hashing, VCS listing and diffing.
//
// Runner abstracts process execution so callers can be tested with fakes.
// Execute layers the exit-status policy on top: status 0 and any explicitly
// expected status succeed, everything else becomes a CommandFailedError.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
}

// String renders the command line with arguments quoted where needed.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, p := range append([]string{c.Name}, c.Args...) {
		if p == "" || strings.ContainsAny(p, " \t\n'\"\\$") {
			p = "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// Result holds the captured output and exit status of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands.
type Runner interface {
	// Run starts the command and waits for it. A non-zero exit status is
	// reported through Result.ExitCode, not as an error; errors mean the
	// process could not be run at all.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// OSRunner executes commands with os/exec.
type OSRunner struct{}

// NewOSRunner returns a Runner backed by the operating system.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// Run implements Runner.
func (r *OSRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	proc := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		proc.Dir = cmd.Dir
	}

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	if err := proc.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				ExitCode: exitErr.ExitCode(),
			}, nil
		}
		return Result{}, fmt.Errorf("failed to run %q: %w", cmd.Name, err)
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// CommandFailedError reports a command that exited with an unexpected status.
type CommandFailedError struct {
	Command Command
	Result  Result
}

// Error renders the command, its status and any captured output indented
// below it.
func (e *CommandFailedError) Error() string {
	name, _ := json.Marshal(e.Command.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "failed to run %s: exit status %d", name, e.Result.ExitCode)
	fmt.Fprintf(&b, "\n  command: %s", e.Command.String())
	if e.Result.Stderr != "" {
		fmt.Fprintf(&b, "\n  stderr:\n%s", Indent(e.Result.Stderr, "    "))
	}
	if e.Result.Stdout != "" {
		fmt.Fprintf(&b, "\n  stdout:\n%s", Indent(e.Result.Stdout, "    "))
	}
	return b.String()
}

// Execute runs cmd and succeeds when the exit status is 0 or one of
// expected. Any other status yields a *CommandFailedError together with the
// captured result.
func Execute(ctx context.Context, runner Runner, cmd Command, expected ...int) (Result, error) {
	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return res, err
	}

	if res.ExitCode == 0 || slices.Contains(expected, res.ExitCode) {
		return res, nil
	}

	return res, &CommandFailedError{Command: cmd, Result: res}
}

// Indent prefixes every non-empty line of s.
func Indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
