package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"
)

// Line is one host release line with its own private variant object model.
type Line interface {
	// Name is the release line, e.g. "4.1".
	Name() string
	Supports(version string) bool
	NewVariant(p *Project, spec VariantSpec) (Variant, error)
}

var (
	linesMu sync.RWMutex
	lines   = map[string]Line{}
)

// Register adds a host line. Lines register themselves from init.
func Register(l Line) {
	linesMu.Lock()
	defer linesMu.Unlock()
	if _, dup := lines[l.Name()]; dup {
		panic(fmt.Sprintf("host: line %s registered twice", l.Name()))
	}
	lines[l.Name()] = l
}

// ForVersion returns the line supporting the given host version.
func ForVersion(version string) (Line, error) {
	linesMu.RLock()
	defer linesMu.RUnlock()
	if !semver.IsValid(Canonical(version)) {
		return nil, fmt.Errorf("invalid host version %q", version)
	}
	for _, name := range sortedLineNames() {
		if l := lines[name]; l.Supports(version) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("unsupported host version %s (known lines: %s)", version, strings.Join(sortedLineNames(), ", "))
}

// Lines returns the registered line names, sorted.
func Lines() []string {
	linesMu.RLock()
	defer linesMu.RUnlock()
	return sortedLineNames()
}

func sortedLineNames() []string {
	names := make([]string, 0, len(lines))
	for name := range lines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Canonical converts a host version such as "4.1.3" to semver form ("v4.1.3").
func Canonical(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return semver.Canonical(version)
}

// InRange reports whether min <= version < max. Bounds are host versions.
func InRange(version, min, max string) bool {
	v := Canonical(version)
	if v == "" {
		return false
	}
	return semver.Compare(v, Canonical(min)) >= 0 && semver.Compare(v, Canonical(max)) < 0
}
