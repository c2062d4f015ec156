// Package v70 is the 7.x host line. Its variants hold a creation config whose
// layout is unrelated to the 4.1 component properties.
package v70

import (
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/variant"
)

func init() {
	host.Register(line{})
}

type line struct{}

func (line) Name() string { return "7.0" }

func (line) Supports(version string) bool {
	return host.InRange(version, "7.0.0", "8.0.0")
}

func (line) NewVariant(p *host.Project, spec host.VariantSpec) (host.Variant, error) {
	lc, out, err := host.RegisterLifecycle(p, spec)
	if err != nil {
		return nil, err
	}

	storage := make(map[string]*artifactContainer, len(out))
	for name, files := range out {
		storage[name] = &artifactContainer{files: append([]string(nil), files...)}
	}

	resolved := map[string][]resolvedArtifact{}
	for _, dep := range spec.Dependencies {
		resolved[dep.Kind] = append(resolved[dep.Kind], resolvedArtifact{
			file:      dep.Path,
			isProject: dep.Scope == variant.ScopeProject,
		})
	}

	v := &VariantImpl{
		creationConfig: &componentImpl{
			componentName: spec.Name(),
			componentType: componentTypeOf(spec.Kind),
			services: &taskCreationServices{
				projectInfo:    &projectInfo{project: p},
				projectOptions: map[string]string{host.PropertyAapt2: boolString(p.BoolProperty(host.PropertyAapt2, true))},
			},
			minSdkVersion:    androidVersion{apiLevel: spec.MinSdk},
			targetSdkVersion: androidVersion{apiLevel: spec.TargetSdk},
			applicationID:    spec.ApplicationID,
			global:           &globalTaskCreationConfig{hasDynamicFeatures: spec.HasDynamicFeature},
			androidResources: &androidResourcesCreationConfig{
				isPrecompileDependenciesResourcesEnabled: spec.PrecompileDependenciesResources,
			},
			artifacts: &artifactsImpl{storage: storage},
			taskContainer: &mutableTaskContainer{tasks: map[string]*graph.Provider{
				"preBuild":         lc.PreBuild,
				"javac":            lc.Compile,
				"assemble":         lc.Assemble,
				"mergeResources":   lc.MergeResources,
				"mergeAssets":      lc.MergeAssets,
				"processResources": lc.ProcessResources,
			}},
			variantDependencies: &variantDependencies{resolved: resolved},
			sources:             &sourcesImpl{res: append([]string(nil), spec.ResDirs...)},
		},
	}
	p.AddVariant(v)
	return v, nil
}

// VariantImpl is the variant object handed to plugins.
type VariantImpl struct {
	creationConfig *componentImpl
}

// Name returns the variant name.
func (v *VariantImpl) Name() string {
	return v.creationConfig.componentName
}

type componentImpl struct {
	componentName       string
	componentType       string
	services            *taskCreationServices
	minSdkVersion       androidVersion
	targetSdkVersion    androidVersion
	applicationID       string
	global              *globalTaskCreationConfig
	androidResources    *androidResourcesCreationConfig
	artifacts           *artifactsImpl
	taskContainer       *mutableTaskContainer
	variantDependencies *variantDependencies
	sources             *sourcesImpl
}

func componentTypeOf(k variant.Kind) string {
	switch k {
	case variant.KindApplication:
		return "BASE_APK"
	case variant.KindLibrary:
		return "LIBRARY"
	case variant.KindDynamicFeature:
		return "OPTIONAL_APK"
	case variant.KindTest:
		return "ANDROID_TEST"
	default:
		return ""
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

type taskCreationServices struct {
	projectInfo    *projectInfo
	projectOptions map[string]string
}

type projectInfo struct {
	project *host.Project
}

type androidVersion struct {
	apiLevel int
	codename string
}

type globalTaskCreationConfig struct {
	hasDynamicFeatures bool
}

type androidResourcesCreationConfig struct {
	isPrecompileDependenciesResourcesEnabled bool
}

type artifactContainer struct {
	files []string
}

type artifactsImpl struct {
	storage map[string]*artifactContainer
}

type mutableTaskContainer struct {
	tasks map[string]*graph.Provider
}

type resolvedArtifact struct {
	file      string
	isProject bool
}

type variantDependencies struct {
	resolved map[string][]resolvedArtifact
}

type sourcesImpl struct {
	res []string
}
