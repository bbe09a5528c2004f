//go:build stave

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

var Default = Build

var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"i": Install,
	"c": Clean,
}

const (
	binaryName   = "changeguard"
	mainPkg      = "./cmd/changeguard"
	binDir       = "bin"
	coverProfile = "coverage.out"
)

// All lints, tests, builds and then checks that the built binary lists
// this repository the same way git does.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build, ListPaths)
	return nil
}

// Build compiles bin/changeguard with version information.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	return sh.RunV("go", "build", "-trimpath", "-ldflags", versionFlags(), "-o", builtBinary(), mainPkg)
}

// Install copies the built binary into GOBIN, GOPATH/bin or /usr/local/bin.
func Install() error {
	st.Deps(Build)

	dst, err := installedBinary()
	if err != nil {
		return err
	}
	logf("installing %s", dst)
	return sh.Copy(dst, builtBinary())
}

// Uninstall removes the installed binary, if any.
func Uninstall() error {
	dst, err := installedBinary()
	if err != nil {
		return err
	}
	logf("removing %s", dst)
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Test runs the test suite with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Cover writes a coverage profile and prints the per-function summary.
func Cover() error {
	if err := sh.RunV("go", "test", "-coverprofile="+coverProfile, "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func="+coverProfile)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// ListPaths runs 'changeguard check' on this repository. It fails when a
// plain walk and git ls-files disagree.
func ListPaths() error {
	st.Deps(Build)
	return sh.RunV(builtBinary(), "check", "-C", ".", "-o", "plain",
		"--ignoreline", binDir+"/", "--ignoreline", coverProfile)
}

// Clean removes bin/ and the coverage profile.
func Clean() error {
	logf("cleaning %s/ and %s", binDir, coverProfile)
	if err := sh.Rm(binDir); err != nil {
		return err
	}
	return sh.Rm(coverProfile)
}

// Fmt runs gofmt and goimports over the tree.
func Fmt() error {
	for _, tool := range []string{"gofmt", "goimports"} {
		if err := sh.Run(tool, "-w", "."); err != nil {
			return fmt.Errorf("%s: %w", tool, err)
		}
	}
	return nil
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func logf(format string, args ...interface{}) {
	if st.Verbose() {
		fmt.Printf(format+"\n", args...)
	}
}

func builtBinary() string {
	name := binaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(binDir, name)
}

// installedBinary is the install location of the binary: GOBIN first, then
// GOPATH/bin, then /usr/local/bin.
func installedBinary() (string, error) {
	name := filepath.Base(builtBinary())
	for _, key := range []string{"GOBIN", "GOPATH"} {
		val, err := sh.Output(st.GoCmd(), "env", key)
		if err != nil {
			return "", fmt.Errorf("go env %s: %w", key, err)
		}
		if val == "" {
			continue
		}
		if key == "GOPATH" {
			val = filepath.Join(val, "bin")
		}
		return filepath.Join(val, name), nil
	}
	return filepath.Join("/usr/local/bin", name), nil
}

// versionFlags sets main.version, main.commit and main.date from git.
func versionFlags() string {
	vars := map[string]string{
		"version": "dev",
		"commit":  "unknown",
		"date":    time.Now().UTC().Format(time.RFC3339),
	}
	if v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil && v != "" {
		vars["version"] = strings.TrimSpace(v)
	}
	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		vars["commit"] = strings.TrimSpace(c)
	}

	flags := []string{"-s", "-w"}
	for _, name := range []string{"version", "commit", "date"} {
		flags = append(flags, fmt.Sprintf("-X main.%s=%s", name, vars[name]))
	}
	return strings.Join(flags, " ")
}
