package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Reconciliation holds the output of both strategies for the same root.
type Reconciliation struct {
	Walk  []string `json:"walk_paths" yaml:"walk_paths"`
	Git   []string `json:"git_paths" yaml:"git_paths"`
	Delta []string `json:"delta" yaml:"delta"`
	// CaseCollisions lists paths whose names differ only by letter case.
	// On a case-insensitive filesystem they refer to the same file; they
	// are reported, never merged.
	CaseCollisions []string `json:"case_collisions,omitempty" yaml:"case_collisions,omitempty"`
}

// MismatchError is returned when the strategies disagree.
type MismatchError struct {
	Delta []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %d path(s) differ: %s", ErrMismatchedDiscovery, len(e.Delta), strings.Join(e.Delta, ", "))
}

// Is makes errors.Is(err, ErrMismatchedDiscovery) match.
func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatchedDiscovery
}

// Reconcile runs the walk and git strategies with the same rules and
// compares the included sets. It returns the comparison in every case where
// both strategies ran; when they disagree the error is a *MismatchError.
func Reconcile(ctx context.Context, opts Options) (*Reconciliation, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if !HasGitDir(opts.Root) {
		return nil, fmt.Errorf("%w in %s: the check only makes sense inside a git repository", ErrNotRepository, opts.Root)
	}

	walked, err := Walk(ctx, opts.Root, opts.Rules)
	if err != nil {
		return nil, err
	}
	listed, err := GitList(ctx, opts.Runner, opts.Root, opts.Rules)
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{
		Walk:           walked.Included,
		Git:            listed.Included,
		Delta:          SymmetricDifference(walked.Included, listed.Included),
		CaseCollisions: CaseCollisions(append(append([]string{}, walked.Included...), listed.Included...)),
	}

	if len(rec.Delta) > 0 {
		return rec, &MismatchError{Delta: rec.Delta}
	}
	return rec, nil
}

// SymmetricDifference returns the sorted paths present in exactly one of a
// and b.
func SymmetricDifference(a, b []string) []string {
	inA := make(map[string]bool, len(a))
	for _, p := range a {
		inA[p] = true
	}
	inB := make(map[string]bool, len(b))
	for _, p := range b {
		inB[p] = true
	}

	delta := []string{}
	for p := range inA {
		if !inB[p] {
			delta = append(delta, p)
		}
	}
	for p := range inB {
		if !inA[p] {
			delta = append(delta, p)
		}
	}
	sort.Strings(delta)
	return delta
}

// CaseCollisions returns the distinct paths that share a lower-cased form
// with at least one other distinct path.
func CaseCollisions(paths []string) []string {
	groups := make(map[string]map[string]bool)
	for _, p := range paths {
		key := strings.ToLower(p)
		if groups[key] == nil {
			groups[key] = make(map[string]bool)
		}
		groups[key][p] = true
	}

	var out []string
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		for p := range group {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
