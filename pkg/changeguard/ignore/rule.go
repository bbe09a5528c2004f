package ignore

import (
	"errors"
	"strings"

	"github.com/gobwas/glob"
)

// rule is a single compiled pattern line.
type rule struct {
	pattern string
	negate  bool
	dirOnly bool
	globs   []glob.Glob
}

func (r rule) match(candidate string) bool {
	for _, g := range r.globs {
		if g.Match(candidate) {
			return true
		}
	}
	return false
}

// parseRule turns one pattern line into a rule. ok is false for blank lines
// and comments.
func parseRule(line string) (r rule, ok bool, err error) {
	line = strings.TrimSuffix(line, "\r")
	line = trimTrailingSpaces(line)

	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false, nil
	}

	switch {
	case strings.HasPrefix(line, "!"):
		r.negate = true
		line = line[1:]
	case strings.HasPrefix(line, `\!`), strings.HasPrefix(line, `\#`):
		line = line[1:]
	}

	for strings.HasSuffix(line, "/") && !strings.HasSuffix(line, `\/`) {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return rule{}, false, nil
	}

	if err := validate(line); err != nil {
		return rule{}, false, err
	}

	r.pattern = line
	for _, variant := range variants(line, anchored) {
		g, err := glob.Compile(toGlob(variant), '/')
		if err != nil {
			return rule{}, false, err
		}
		r.globs = append(r.globs, g)
	}

	return r, true, nil
}

// variants expands a pattern into the globs needed to express gitignore
// semantics with a separator-aware matcher.
func variants(pattern string, anchored bool) []string {
	out := []string{pattern}

	// "a/**/b" also matches "a/b".
	if strings.Contains(pattern, "/**/") {
		out = append(out, strings.ReplaceAll(pattern, "/**/", "/"))
	}
	// "**/foo" also matches "foo" at the root.
	if strings.HasPrefix(pattern, "**/") {
		out = append(out, strings.TrimPrefix(pattern, "**/"))
	}

	if !anchored {
		n := len(out)
		for i := 0; i < n; i++ {
			out = append(out, "**/"+out[i])
		}
	}

	return out
}

// validate rejects patterns git would never match: an unterminated
// character class or a dangling escape.
func validate(pattern string) error {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			if i == len(pattern)-1 {
				return errors.New("trailing backslash")
			}
			i++
		case '[':
			j := i + 1
			if j < len(pattern) && (pattern[j] == '!' || pattern[j] == '^') {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			closed := false
			for ; j < len(pattern); j++ {
				if pattern[j] == '\\' {
					j++
					continue
				}
				if pattern[j] == ']' {
					closed = true
					break
				}
			}
			if !closed {
				return errors.New("unterminated character class")
			}
			i = j
		}
	}
	return nil
}

// toGlob adapts gitignore syntax to gobwas/glob: "{" and "}" become literal
// since gitignore has no alternation, and a class opened with "[^" becomes
// "[!", the only negation gobwas understands.
func toGlob(pattern string) string {
	if !strings.ContainsAny(pattern, "{}[") {
		return pattern
	}

	var b strings.Builder
	rs := []rune(pattern)
	inClass := false
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '\\' && i+1 < len(rs):
			b.WriteRune(c)
			b.WriteRune(rs[i+1])
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
			b.WriteRune(c)
		case c == '[':
			inClass = true
			b.WriteRune(c)
			if i+1 < len(rs) && (rs[i+1] == '^' || rs[i+1] == '!') {
				b.WriteRune('!')
				i++
			}
			// A "]" right after the opening bracket is a member, not the end.
			if i+1 < len(rs) && rs[i+1] == ']' {
				b.WriteRune(']')
				i++
			}
		case c == '{' || c == '}':
			b.WriteRune('\\')
			b.WriteRune(c)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func trimTrailingSpaces(line string) string {
	for strings.HasSuffix(line, " ") {
		if strings.HasSuffix(line, `\ `) {
			return strings.TrimSuffix(line, `\ `) + " "
		}
		line = strings.TrimSuffix(line, " ")
	}
	return line
}
