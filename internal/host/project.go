// Package host models the Android build host the post-processors run inside:
// a project with properties, a lazily configured task graph and per-version
// variant object models.
package host

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dosanma1/forge-booster/internal/graph"
)

// PropertyAapt2 toggles the host's optimized resource processing.
const PropertyAapt2 = "android.enableAapt2"

// Project is the host project.
type Project struct {
	Name        string
	Dir         string
	BuildDir    string
	HostVersion string
	Properties  map[string]string
	Tasks       *graph.Container
	Logger      *slog.Logger

	variants []Variant
}

// NewProject creates a project rooted at dir with its build directory at dir/build.
func NewProject(name, dir, hostVersion string, props map[string]string, logger *slog.Logger) *Project {
	if logger == nil {
		logger = slog.Default()
	}
	if props == nil {
		props = map[string]string{}
	}
	return &Project{
		Name:        name,
		Dir:         dir,
		BuildDir:    filepath.Join(dir, "build"),
		HostVersion: hostVersion,
		Properties:  props,
		Tasks:       graph.NewContainer(),
		Logger:      logger.With("project", name),
	}
}

// FindProperty returns the property value, if set.
func (p *Project) FindProperty(key string) (string, bool) {
	v, ok := p.Properties[key]
	return v, ok
}

// BoolProperty parses a boolean property, falling back to def when unset or malformed.
func (p *Project) BoolProperty(key string, def bool) bool {
	v, ok := p.Properties[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		p.Logger.Warn("ignoring malformed boolean property", "key", key, "value", v)
		return def
	}
	return b
}

// IntProperty parses an integer property; def is returned when unset.
func (p *Project) IntProperty(key string, def int) (int, error) {
	v, ok := p.Properties[key]
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("property %s: %w", key, err)
	}
	return n, nil
}

// Intermediates returns build/intermediates/<kind>/<variant>.
func (p *Project) Intermediates(kind, variantName string) string {
	return filepath.Join(p.BuildDir, "intermediates", kind, variantName)
}

// AddVariant records a configured variant.
func (p *Project) AddVariant(v Variant) {
	p.variants = append(p.variants, v)
}

// Variants returns configured variants sorted by name.
func (p *Project) Variants() []Variant {
	out := append([]Variant(nil), p.variants...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Variant returns the configured variant with the given name.
func (p *Project) Variant(name string) (Variant, bool) {
	for _, v := range p.variants {
		if v.Name() == name {
			return v, true
		}
	}
	return nil, false
}

// Variant is the public facet of a host variant. Everything else the host
// knows about a variant is private to its version's object model.
type Variant interface {
	Name() string
}
