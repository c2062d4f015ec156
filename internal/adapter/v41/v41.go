// Package v41 adapts the 4.1 host line.
package v41

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dosanma1/forge-booster/internal/adapter"
	"github.com/dosanma1/forge-booster/internal/artifact"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	hostv41 "github.com/dosanma1/forge-booster/internal/host/v41"
	"github.com/dosanma1/forge-booster/internal/introspect"
	"github.com/dosanma1/forge-booster/internal/variant"
)

func init() {
	adapter.Register(adapter.Factory{
		Name:     "4.1",
		Supports: func(version string) bool { return host.InRange(version, "4.1.0", "4.3.0") },
		New:      New,
	})
}

const root = "componentProperties."

var requirements = []introspect.Requirement{
	introspect.Expect[string](root + "name"),
	introspect.Expect[bool](root + "variantType.isApk"),
	introspect.Expect[bool](root + "variantType.isAar"),
	introspect.Expect[bool](root + "variantType.isDynamicFeature"),
	introspect.Expect[bool](root + "variantType.isTestComponent"),
	introspect.Expect[int](root + "minSdkVersion.apiLevel"),
	introspect.Expect[int](root + "targetSdkVersion.apiLevel"),
	introspect.Expect[string](root + "variantDslInfo.packageName"),
	introspect.Expect[*host.Project](root + "globalScope.project"),
	introspect.Expect[bool](root + "globalScope.hasDynamicFeatures"),
	introspect.Expect[map[string]bool](root + "globalScope.projectOptions"),
	introspect.Expect[bool](root + "variantScope.precompileDependenciesResources"),
	introspect.Expect[map[string][]string](root + "artifacts.final"),
	introspect.Expect[*graph.Provider](root + "taskContainer.preBuildTask"),
	introspect.Expect[*graph.Provider](root + "taskContainer.javacTask"),
	introspect.Expect[*graph.Provider](root + "taskContainer.assembleTask"),
	introspect.Expect[*graph.Provider](root + "taskContainer.mergeResourcesTask"),
	introspect.Expect[*graph.Provider](root + "taskContainer.mergeAssetsTask"),
	introspect.Expect[*graph.Provider](root + "taskContainer.processAndroidResTask"),
	introspect.Expect[[]host.Dependency](root + "variantDependencies.artifacts"),
	introspect.Expect[[]string](root + "variantData.rawAndroidResources"),
}

// Adapter reads 4.1 variants.
type Adapter struct {
	version string
}

// New validates the 4.1 object model and returns its adapter.
func New(version string) (adapter.Host, error) {
	return newAdapter(version, reflect.TypeFor[*hostv41.BaseVariantImpl]())
}

func newAdapter(version string, variantType reflect.Type) (*Adapter, error) {
	if err := introspect.Verify(version, variantType, requirements...); err != nil {
		return nil, err
	}
	return &Adapter{version: version}, nil
}

func get[T any](a *Adapter, v host.Variant, path string) T {
	return introspect.MustGet[T](a.version, v, root+path)
}

func (a *Adapter) HostVersion() string { return a.version }

func (a *Adapter) FilesFor(v host.Variant, t artifact.Type) []string {
	files := get[map[string][]string](a, v, "artifacts.final")[t.Name]
	return append([]string(nil), files...)
}

func (a *Adapter) TaskHandle(v host.Variant, role variant.Role) *graph.Provider {
	switch role {
	case variant.RolePreBuild:
		return get[*graph.Provider](a, v, "taskContainer.preBuildTask")
	case variant.RoleCompile:
		return get[*graph.Provider](a, v, "taskContainer.javacTask")
	case variant.RoleAssemble:
		return get[*graph.Provider](a, v, "taskContainer.assembleTask")
	case variant.RoleMergeResources:
		return get[*graph.Provider](a, v, "taskContainer.mergeResourcesTask")
	case variant.RoleMergeAssets:
		return get[*graph.Provider](a, v, "taskContainer.mergeAssetsTask")
	case variant.RoleProcessResources:
		return get[*graph.Provider](a, v, "taskContainer.processAndroidResTask")
	default:
		panic(fmt.Sprintf("adapter %s: unknown lifecycle role %s", a.version, role))
	}
}

func (a *Adapter) TaskName(v host.Variant, prefix string, suffix ...string) string {
	return host.TaskName(get[string](a, v, "name"), prefix, strings.Join(suffix, ""))
}

func (a *Adapter) Metadata(v host.Variant) variant.Metadata {
	return variant.Metadata{
		Name:                                   get[string](a, v, "name"),
		MinSdk:                                 get[int](a, v, "minSdkVersion.apiLevel"),
		TargetSdk:                              get[int](a, v, "targetSdkVersion.apiLevel"),
		Kind:                                   a.kind(v),
		ApplicationID:                          get[string](a, v, "variantDslInfo.packageName"),
		HasDynamicFeature:                      get[bool](a, v, "globalScope.hasDynamicFeatures"),
		PrecompileDependenciesResourcesEnabled: get[bool](a, v, "variantScope.precompileDependenciesResources"),
	}
}

func (a *Adapter) kind(v host.Variant) variant.Kind {
	switch {
	case get[bool](a, v, "variantType.isTestComponent"):
		return variant.KindTest
	case get[bool](a, v, "variantType.isDynamicFeature"):
		return variant.KindDynamicFeature
	case get[bool](a, v, "variantType.isAar"):
		return variant.KindLibrary
	case get[bool](a, v, "variantType.isApk"):
		return variant.KindApplication
	default:
		return 0
	}
}

func (a *Adapter) DependencyArtifacts(v host.Variant, scope variant.Scope, kind string) []string {
	var out []string
	for _, dep := range get[[]host.Dependency](a, v, "variantDependencies.artifacts") {
		if dep.Kind == kind && scope.Includes(dep.Scope) {
			out = append(out, dep.Path)
		}
	}
	return out
}

func (a *Adapter) Project(v host.Variant) *host.Project {
	return get[*host.Project](a, v, "globalScope.project")
}

func (a *Adapter) OptimizedResources(v host.Variant) bool {
	return get[map[string]bool](a, v, "globalScope.projectOptions")[host.PropertyAapt2]
}

func (a *Adapter) RawResources(v host.Variant) []string {
	return append([]string(nil), get[[]string](a, v, "variantData.rawAndroidResources")...)
}
