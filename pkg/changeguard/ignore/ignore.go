// Package ignore compiles gitignore-style pattern lists into matchers that
// decide which paths are excluded from discovery.
//
// A RuleSet holds one compiled list per source. Within a list the last
// matching rule decides; across lists a path is ignored if any list ignores
// it. A path is also ignored when any of its ancestor directories is, which
// keeps directory-pruning walks and flat file listings in agreement.
package ignore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultFileName is the pattern file looked up by FindIgnoreFile.
const DefaultFileName = ".changeguard-ignore"

// LinesSourceName names the source holding literal pattern lines.
const LinesSourceName = "~ignorelines"

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid ignore pattern")

// Source is one list of patterns, read from a file or given literally.
type Source struct {
	// Name identifies the source in metadata and error messages.
	Name string
	// Path is the file the lines came from, empty for literal lines.
	Path string
	// Lines holds the raw pattern lines.
	Lines []string
}

// ReadFileSource reads a pattern file into a Source.
func ReadFileSource(filePath string) (Source, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Source{}, fmt.Errorf("failed to read ignore file: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Source{}, fmt.Errorf("failed to read ignore file %s: %w", filePath, err)
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		abs = filePath
	}

	return Source{Name: filePath, Path: abs, Lines: lines}, nil
}

// LinesSource wraps literal pattern lines into a Source.
func LinesSource(lines []string) Source {
	return Source{Name: LinesSourceName, Lines: lines}
}

// RuleSet is an immutable, compiled collection of pattern lists.
// A nil RuleSet ignores nothing.
type RuleSet struct {
	lists   []ruleList
	sources []Source
}

type ruleList struct {
	name  string
	rules []rule
}

// Compile parses every source into a RuleSet.
func Compile(sources ...Source) (*RuleSet, error) {
	rs := &RuleSet{}

	for _, src := range sources {
		list := ruleList{name: src.Name}
		for i, line := range src.Lines {
			r, ok, err := parseRule(line)
			if err != nil {
				return nil, fmt.Errorf("%w: %s:%d: %q: %v", ErrInvalidPattern, src.Name, i+1, line, err)
			}
			if ok {
				list.rules = append(list.rules, r)
			}
		}
		rs.lists = append(rs.lists, list)
		rs.sources = append(rs.sources, src)
	}

	return rs, nil
}

// IsIgnored reports whether rel is ignored. A trailing slash marks rel as a
// directory.
func (rs *RuleSet) IsIgnored(rel string) bool {
	isDir := strings.HasSuffix(rel, "/")
	return rs.Match(strings.TrimSuffix(rel, "/"), isDir)
}

// Match reports whether the root-relative path rel is ignored.
func (rs *RuleSet) Match(rel string, isDir bool) bool {
	if rs == nil || len(rs.lists) == 0 {
		return false
	}

	rel = path.Clean(filepath.ToSlash(rel))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "." || rel == "" {
		return false
	}

	parts := strings.Split(rel, "/")
	for i := 1; i <= len(parts); i++ {
		candidate := strings.Join(parts[:i], "/")
		candidateIsDir := i < len(parts) || isDir
		for _, list := range rs.lists {
			if list.ignores(candidate, candidateIsDir) {
				return true
			}
		}
	}

	return false
}

// Sources returns the raw lines of every source keyed by source name.
func (rs *RuleSet) Sources() map[string][]string {
	out := make(map[string][]string)
	if rs == nil {
		return out
	}
	for _, src := range rs.sources {
		lines := make([]string, len(src.Lines))
		copy(lines, src.Lines)
		out[src.Name] = lines
	}
	return out
}

// Files returns the absolute paths of the pattern files in the set.
func (rs *RuleSet) Files() []string {
	if rs == nil {
		return nil
	}
	var files []string
	for _, src := range rs.sources {
		if src.Path != "" {
			files = append(files, src.Path)
		}
	}
	return files
}

func (l ruleList) ignores(candidate string, isDir bool) bool {
	ignored := false
	for _, r := range l.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.match(candidate) {
			ignored = !r.negate
		}
	}
	return ignored
}

// FindIgnoreFile looks for DefaultFileName in start and each of its parents.
// It returns an empty string when no file is found.
func FindIgnoreFile(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	for {
		candidate := filepath.Join(dir, DefaultFileName)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
