// Package v70 adapts the 7.x host line.
package v70

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dosanma1/forge-booster/internal/adapter"
	"github.com/dosanma1/forge-booster/internal/artifact"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	hostv70 "github.com/dosanma1/forge-booster/internal/host/v70"
	"github.com/dosanma1/forge-booster/internal/introspect"
	"github.com/dosanma1/forge-booster/internal/variant"
)

func init() {
	adapter.Register(adapter.Factory{
		Name:     "7.0",
		Supports: func(version string) bool { return host.InRange(version, "7.0.0", "8.0.0") },
		New:      New,
	})
}

const root = "creationConfig."

var requirements = []introspect.Requirement{
	introspect.Expect[string](root + "componentName"),
	introspect.Expect[string](root + "componentType"),
	introspect.Expect[*host.Project](root + "services.projectInfo.project"),
	introspect.Expect[map[string]string](root + "services.projectOptions"),
	introspect.Expect[int](root + "minSdkVersion.apiLevel"),
	introspect.Expect[int](root + "targetSdkVersion.apiLevel"),
	introspect.Expect[string](root + "applicationID"),
	introspect.Expect[bool](root + "global.hasDynamicFeatures"),
	introspect.Expect[bool](root + "androidResources.isPrecompileDependenciesResourcesEnabled"),
	introspect.Expect[[]string](root + "artifacts.storage.files"),
	introspect.Expect[map[string]*graph.Provider](root + "taskContainer.tasks"),
	introspect.Expect[string](root + "variantDependencies.resolved.file"),
	introspect.Expect[bool](root + "variantDependencies.resolved.isProject"),
	introspect.Expect[[]string](root + "sources.res"),
}

var roleKeys = map[variant.Role]string{
	variant.RolePreBuild:         "preBuild",
	variant.RoleCompile:          "javac",
	variant.RoleAssemble:         "assemble",
	variant.RoleMergeResources:   "mergeResources",
	variant.RoleMergeAssets:      "mergeAssets",
	variant.RoleProcessResources: "processResources",
}

// Adapter reads 7.x variants.
type Adapter struct {
	version string
}

// New validates the 7.x object model and returns its adapter.
func New(version string) (adapter.Host, error) {
	return newAdapter(version, reflect.TypeFor[*hostv70.VariantImpl]())
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

func (a *Adapter) value(v host.Variant, path string) reflect.Value {
	rv, err := introspect.Value(a.version, v, root+path)
	if err != nil {
		panic(err)
	}
	return rv
}

func (a *Adapter) HostVersion() string { return a.version }

func (a *Adapter) FilesFor(v host.Variant, t artifact.Type) []string {
	container := a.value(v, "artifacts.storage").MapIndex(reflect.ValueOf(t.Name))
	if !container.IsValid() || container.IsNil() {
		return nil
	}
	return append([]string(nil), introspect.MustGetFrom[[]string](a.version, container, "files")...)
}

func (a *Adapter) TaskHandle(v host.Variant, role variant.Role) *graph.Provider {
	key, ok := roleKeys[role]
	if !ok {
		panic(fmt.Sprintf("adapter %s: unknown lifecycle role %s", a.version, role))
	}
	return get[map[string]*graph.Provider](a, v, "taskContainer.tasks")[key]
}

func (a *Adapter) TaskName(v host.Variant, prefix string, suffix ...string) string {
	return host.TaskName(get[string](a, v, "componentName"), prefix, strings.Join(suffix, ""))
}

func (a *Adapter) Metadata(v host.Variant) variant.Metadata {
	return variant.Metadata{
		Name:                                   get[string](a, v, "componentName"),
		MinSdk:                                 get[int](a, v, "minSdkVersion.apiLevel"),
		TargetSdk:                              get[int](a, v, "targetSdkVersion.apiLevel"),
		Kind:                                   kindOf(get[string](a, v, "componentType")),
		ApplicationID:                          get[string](a, v, "applicationID"),
		HasDynamicFeature:                      get[bool](a, v, "global.hasDynamicFeatures"),
		PrecompileDependenciesResourcesEnabled: get[bool](a, v, "androidResources.isPrecompileDependenciesResourcesEnabled"),
	}
}

func kindOf(componentType string) variant.Kind {
	switch componentType {
	case "BASE_APK":
		return variant.KindApplication
	case "LIBRARY":
		return variant.KindLibrary
	case "OPTIONAL_APK":
		return variant.KindDynamicFeature
	case "ANDROID_TEST", "UNIT_TEST":
		return variant.KindTest
	default:
		return 0
	}
}

func (a *Adapter) DependencyArtifacts(v host.Variant, scope variant.Scope, kind string) []string {
	resolved := a.value(v, "variantDependencies.resolved").MapIndex(reflect.ValueOf(kind))
	if !resolved.IsValid() {
		return nil
	}
	var out []string
	for i := range resolved.Len() {
		item := resolved.Index(i)
		origin := variant.ScopeExternal
		if introspect.MustGetFrom[bool](a.version, item, "isProject") {
			origin = variant.ScopeProject
		}
		if scope.Includes(origin) {
			out = append(out, introspect.MustGetFrom[string](a.version, item, "file"))
		}
	}
	return out
}

func (a *Adapter) Project(v host.Variant) *host.Project {
	return get[*host.Project](a, v, "services.projectInfo.project")
}

func (a *Adapter) OptimizedResources(v host.Variant) bool {
	return get[map[string]string](a, v, "services.projectOptions")[host.PropertyAapt2] == "true"
}

func (a *Adapter) RawResources(v host.Variant) []string {
	return append([]string(nil), get[[]string](a, v, "sources.res")...)
}
