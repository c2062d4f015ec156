package compression

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Wildcard is a glob pattern supporting *, ** and ?.
//   - *  matches within a path segment (no '/')
//   - ** matches across directories
//   - ?  matches one character other than '/'
type Wildcard struct {
	pattern string
	re      *regexp.Regexp
}

// NewWildcard compiles a pattern.
func NewWildcard(pattern string) (Wildcard, error) {
	pat := filepath.ToSlash(strings.TrimSpace(pattern))
	if pat == "" {
		return Wildcard{}, fmt.Errorf("empty wildcard")
	}
	re, err := regexp.Compile(globToRegex(pat))
	if err != nil {
		return Wildcard{}, fmt.Errorf("invalid wildcard %q: %w", pattern, err)
	}
	return Wildcard{pattern: pat, re: re}, nil
}

func (w Wildcard) String() string { return w.pattern }

// Match reports whether the slash-separated path matches the whole pattern.
func (w Wildcard) Match(p string) bool {
	return w.re != nil && w.re.MatchString(filepath.ToSlash(p))
}

func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		switch ch := runes[i]; ch {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString("[^/]*")
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// IgnoreSet is a union of wildcards.
type IgnoreSet []Wildcard

// ParseIgnores parses a comma separated pattern list. Blank entries are skipped,
// so an absent or empty property yields an empty set.
func ParseIgnores(value string) (IgnoreSet, error) {
	var set IgnoreSet
	seen := map[string]bool{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		w, err := NewWildcard(part)
		if err != nil {
			return nil, err
		}
		seen[part] = true
		set = append(set, w)
	}
	return set, nil
}

// Matches reports whether any pattern matches the file's base name, its full
// path, or any trailing part of the path that starts at a directory boundary.
// The last case covers paths relative to whichever resource root holds the file.
// Flattened resources (<type>_<name>.flat) are also matched as <name> and
// <type>/<name>.
func (s IgnoreSet) Matches(file string) bool {
	if len(s) == 0 {
		return false
	}
	p := filepath.ToSlash(file)
	base := path.Base(p)
	candidates := []string{base, p}
	for i := 0; i < len(p); i++ {
		if p[i] == '/' && i+1 < len(p) {
			candidates = append(candidates, p[i+1:])
		}
	}
	if flat, ok := strings.CutSuffix(base, ".flat"); ok {
		if typ, name, found := strings.Cut(flat, "_"); found {
			candidates = append(candidates, name, typ+"/"+name)
		}
	}
	for _, w := range s {
		for _, c := range candidates {
			if w.Match(c) {
				return true
			}
		}
	}
	return false
}

// Patterns returns the pattern strings.
func (s IgnoreSet) Patterns() []string {
	out := make([]string, len(s))
	for i, w := range s {
		out[i] = w.pattern
	}
	return out
}
