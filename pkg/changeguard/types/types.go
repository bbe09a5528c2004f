// Package types holds the data shared by the snapshot and audit engines and
// their reporters: failure records and run summaries.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FailureKind tags a Failure.
type FailureKind int

const (
	// MissingFile means a recorded path no longer exists.
	MissingFile FailureKind = iota + 1
	// HashMismatch means a recorded path now hashes differently.
	HashMismatch
	// HashCommandError means hashing a path failed.
	HashCommandError
)

// Kinds returns every failure kind in reporting order.
func Kinds() []FailureKind {
	return []FailureKind{MissingFile, HashMismatch, HashCommandError}
}

// String returns the kind's stable name.
func (k FailureKind) String() string {
	switch k {
	case MissingFile:
		return "missing_file"
	case HashMismatch:
		return "hash_mismatch"
	case HashCommandError:
		return "hash_command_error"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *FailureKind) UnmarshalText(b []byte) error {
	for _, kind := range Kinds() {
		if kind.String() == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown failure kind %q", b)
}

// Failure is one problem found by a snapshot or audit.
type Failure struct {
	Kind FailureKind `json:"kind" yaml:"kind"`
	// Path is the root-relative path the failure concerns, if any.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Expected and Actual are set for HashMismatch.
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string `json:"actual,omitempty" yaml:"actual,omitempty"`
	// Cause is the underlying error for HashCommandError.
	Cause error `json:"-" yaml:"-"`
	// Diff is the textual difference against the backup copy, attached
	// during reporting.
	Diff string `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// NewMissing returns a MissingFile failure.
func NewMissing(path string) Failure {
	return Failure{Kind: MissingFile, Path: path}
}

// NewMismatch returns a HashMismatch failure.
func NewMismatch(path, expected, actual string) Failure {
	return Failure{Kind: HashMismatch, Path: path, Expected: expected, Actual: actual}
}

// NewHashError returns a HashCommandError failure.
func NewHashError(path string, cause error) Failure {
	return Failure{Kind: HashCommandError, Path: path, Cause: cause}
}

// Message describes the failure in one line.
func (f Failure) Message() string {
	switch f.Kind {
	case MissingFile:
		return "file does not exist"
	case HashMismatch:
		exp, _ := json.Marshal(f.Expected)
		act, _ := json.Marshal(f.Actual)
		return fmt.Sprintf("hash mismatch: expected=%s actual=%s", exp, act)
	case HashCommandError:
		if f.Cause == nil {
			return "failed to hash file"
		}
		first, _, _ := strings.Cut(f.Cause.Error(), "\n")
		return "failed to hash file: " + first
	default:
		return f.Kind.String()
	}
}

// Detail returns the full error text for failures that carry a cause.
func (f Failure) Detail() string {
	if f.Cause == nil {
		return ""
	}
	return f.Cause.Error()
}

// MarshalJSON adds the message and cause text to the encoded form.
func (f Failure) MarshalJSON() ([]byte, error) {
	type plain Failure
	return json.Marshal(struct {
		plain
		Message string `json:"message"`
		Error   string `json:"error,omitempty"`
	}{plain(f), f.Message(), f.Detail()})
}

// SortFailures orders failures by path, then kind.
func SortFailures(failures []Failure) {
	sort.SliceStable(failures, func(i, j int) bool {
		if failures[i].Path != failures[j].Path {
			return failures[i].Path < failures[j].Path
		}
		return failures[i].Kind < failures[j].Kind
	})
}

// CountByKind tallies failures per kind.
func CountByKind(failures []Failure) map[FailureKind]int {
	counts := make(map[FailureKind]int)
	for _, f := range failures {
		counts[f.Kind]++
	}
	return counts
}

// Operation names a run type.
type Operation string

const (
	// OpSnapshot records a manifest.
	OpSnapshot Operation = "snapshot"
	// OpAudit verifies a manifest.
	OpAudit Operation = "audit"
	// OpCheck compares discovery strategies.
	OpCheck Operation = "check"
)

// Summary describes the outcome of one run.
type Summary struct {
	Operation Operation     `json:"operation" yaml:"operation"`
	RunID     string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Root      string        `json:"root" yaml:"root"`
	Manifest  string        `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Method    string        `json:"method,omitempty" yaml:"method,omitempty"`
	Files     int           `json:"files" yaml:"files"`
	Ignored   int           `json:"ignored" yaml:"ignored"`
	Started   time.Time     `json:"started" yaml:"started"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Failures  []Failure     `json:"failures" yaml:"failures"`
	// Delta lists paths found by only one discovery strategy (check runs).
	Delta []string `json:"delta,omitempty" yaml:"delta,omitempty"`
	// Notes carry non-fatal observations such as case collisions.
	Notes []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Passed reports whether the run recorded no failures and, for check runs,
// no discovery delta.
func (s *Summary) Passed() bool {
	return len(s.Failures) == 0 && len(s.Delta) == 0
}

// FormatSize renders bytes with IEC units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatDuration renders a run duration rounded for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
