// Package hasher computes content hashes for files under a root, either by
// invoking an external command or in process, and hashes many files with a
// bounded worker pool.
package hasher

import (
	"context"
	"errors"
	"strings"

	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
)

// DefaultCommand is the hash command used when none is configured.
const DefaultCommand = "xxhsum -H0"

// BuiltinPrefix selects an in-process algorithm, as in "builtin:sha256".
const BuiltinPrefix = "builtin:"

var (
	// ErrMalformedHashOutput is returned when a hash command does not print
	// exactly two fields.
	ErrMalformedHashOutput = errors.New("malformed hash output")
	// ErrHashCommandFailed is returned when a hash command cannot run or
	// exits with a non-zero status.
	ErrHashCommandFailed = errors.New("hash command failed")
	// ErrEmptyCommand is returned for a blank hash command.
	ErrEmptyCommand = errors.New("hash command is empty")
	// ErrUnknownAlgorithm is returned for an unsupported builtin algorithm.
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
)

// Hasher computes the hash of one file.
type Hasher interface {
	// Hash returns the hash of rel, a slash-separated path relative to root.
	Hash(ctx context.Context, root, rel string) (string, error)
	// Name identifies the hasher; it is recorded in manifests and cache
	// entries.
	Name() string
}

// New returns the Hasher described by spec: "builtin:<algorithm>" for an
// in-process digest, anything else is a command template.
func New(spec string, runner shell.Runner) (Hasher, error) {
	spec = strings.TrimSpace(spec)
	if algo, ok := strings.CutPrefix(spec, BuiltinPrefix); ok {
		return NewDigestHasher(algo)
	}
	return NewCommandHasher(spec, runner)
}

// Record is the outcome of hashing one path.
type Record struct {
	Path string
	Hash string
	Err  error
}

// OK reports whether hashing succeeded.
func (r Record) OK() bool {
	return r.Err == nil
}
