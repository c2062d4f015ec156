// Package adapter gives post-processors a version-independent view of host
// variants. Each supported host line contributes a Host implementation that
// reaches into that line's private object model.
package adapter

import (
	"fmt"

	"github.com/dosanma1/forge-booster/internal/artifact"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/variant"
)

// Host is implemented once per supported host line.
//
// Implementations validate the host's private types when constructed. Calls on
// a variant that does not match the validated shape panic with
// *introspect.MismatchError.
type Host interface {
	HostVersion() string

	// FilesFor returns the locations the host produces for t. It is empty
	// when the variant does not produce t.
	FilesFor(v host.Variant, t artifact.Type) []string

	// TaskHandle returns the provider of a lifecycle task. Repeated calls
	// return the same provider. It panics on a role outside variant.Roles().
	TaskHandle(v host.Variant, role variant.Role) *graph.Provider

	// TaskName composes prefix, the capitalized variant name and suffix.
	TaskName(v host.Variant, prefix string, suffix ...string) string

	Metadata(v host.Variant) variant.Metadata

	// DependencyArtifacts returns dependency files of the given kind whose
	// origin is included in scope.
	DependencyArtifacts(v host.Variant, scope variant.Scope, kind string) []string

	Project(v host.Variant) *host.Project

	// OptimizedResources reports whether the host flattens merged resources.
	OptimizedResources(v host.Variant) bool

	// RawResources returns the source resource directories of the variant.
	RawResources(v host.Variant) []string
}

// Adapter adds the derived accessors post-processors use on top of a Host.
type Adapter struct {
	Host
}

// MergedRes returns the merged resource locations.
func (a *Adapter) MergedRes(v host.Variant) []string {
	return a.FilesFor(v, artifact.MergedRes)
}

// ProcessedRes returns the linked resource packages.
func (a *Adapter) ProcessedRes(v host.Variant) []string {
	return a.FilesFor(v, artifact.ProcessedRes)
}

// MergedAssets returns the merged asset locations.
func (a *Adapter) MergedAssets(v host.Variant) ([]string, error) {
	md := a.Metadata(v)
	switch md.Kind {
	case variant.KindApplication:
		return a.FilesFor(v, artifact.MergedAssets), nil
	case variant.KindLibrary:
		return a.FilesFor(v, artifact.LibraryAssets), nil
	case variant.KindDynamicFeature:
		return nil, &variant.UnsupportedKindError{Variant: md.Name, Op: "merged assets", Kind: md.Kind}
	case variant.KindTest:
		return nil, &variant.UnsupportedKindError{Variant: md.Name, Op: "merged assets", Kind: md.Kind}
	default:
		return nil, &variant.UnsupportedKindError{Variant: md.Name, Op: "merged assets", Kind: md.Kind}
	}
}

// SymbolList returns the R.txt locations.
func (a *Adapter) SymbolList(v host.Variant) ([]string, error) {
	md := a.Metadata(v)
	switch md.Kind {
	case variant.KindApplication:
		return a.FilesFor(v, artifact.RuntimeSymbolList), nil
	case variant.KindLibrary:
		return a.FilesFor(v, artifact.CompileSymbolList), nil
	case variant.KindDynamicFeature:
		return nil, &variant.UnsupportedKindError{Variant: md.Name, Op: "symbol list", Kind: md.Kind}
	case variant.KindTest:
		return nil, &variant.UnsupportedKindError{Variant: md.Name, Op: "symbol list", Kind: md.Kind}
	default:
		return nil, &variant.UnsupportedKindError{Variant: md.Name, Op: "symbol list", Kind: md.Kind}
	}
}

// Files pairs an artifact type with the locations produced for it.
type Files struct {
	Type  artifact.Type
	Files []string
}

// AllArtifacts returns every registered artifact type with its files, sorted by name.
func (a *Adapter) AllArtifacts(v host.Variant) []Files {
	all := artifact.Default().All()
	out := make([]Files, 0, len(all))
	for _, t := range all {
		out = append(out, Files{Type: t, Files: a.FilesFor(v, t)})
	}
	return out
}

// LifecycleTasks returns the lifecycle task name for every role.
func (a *Adapter) LifecycleTasks(v host.Variant) map[variant.Role]string {
	out := make(map[variant.Role]string, len(variant.Roles()))
	for _, r := range variant.Roles() {
		if p := a.TaskHandle(v, r); p != nil {
			out[r] = p.Name()
		}
	}
	return out
}

func (a *Adapter) String() string {
	return fmt.Sprintf("adapter(host %s)", a.HostVersion())
}
