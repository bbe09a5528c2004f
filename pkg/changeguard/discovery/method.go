package discovery

import (
	"fmt"
	"strings"
)

// Method names a discovery strategy.
type Method string

const (
	// MethodAuto uses git when the root has a .git entry, otherwise walks.
	MethodAuto Method = "auto"
	// MethodWalk enumerates the filesystem directly.
	MethodWalk Method = "walk"
	// MethodGit lists files tracked by git.
	MethodGit Method = "git"
)

// legacyWalkName is accepted as an alias for MethodWalk.
const legacyWalkName = "initial_iterdir"

// Methods returns the valid method names.
func Methods() []Method {
	return []Method{MethodAuto, MethodWalk, MethodGit}
}

// ParseMethod converts a name into a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(MethodAuto):
		return MethodAuto, nil
	case string(MethodWalk), legacyWalkName:
		return MethodWalk, nil
	case string(MethodGit):
		return MethodGit, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: auto, walk, git)", ErrInvalidMethod, s)
	}
}

// Resolve turns MethodAuto into a concrete method for root. Other methods are
// returned unchanged.
func (m Method) Resolve(root string) Method {
	if m != MethodAuto {
		return m
	}
	if HasGitDir(root) {
		return MethodGit
	}
	return MethodWalk
}

// String implements fmt.Stringer.
func (m Method) String() string {
	return string(m)
}
