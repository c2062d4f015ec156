// Package v41 is the 4.1 host line. Its variants keep their state in a
// private component-properties object reachable only through BaseVariantImpl.
package v41

import (
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/variant"
)

func init() {
	host.Register(line{})
}

type line struct{}

func (line) Name() string { return "4.1" }

func (line) Supports(version string) bool {
	return host.InRange(version, "4.1.0", "4.3.0")
}

func (line) NewVariant(p *host.Project, spec host.VariantSpec) (host.Variant, error) {
	lc, out, err := host.RegisterLifecycle(p, spec)
	if err != nil {
		return nil, err
	}

	final := make(map[string][]string, len(out))
	for name, files := range out {
		final[name] = append([]string(nil), files...)
	}

	v := &BaseVariantImpl{
		componentProperties: &componentPropertiesImpl{
			name:             spec.Name(),
			variantType:      newVariantType(spec.Kind),
			minSdkVersion:    apiVersion{apiLevel: spec.MinSdk},
			targetSdkVersion: apiVersion{apiLevel: spec.TargetSdk},
			variantDslInfo:   &variantDslInfo{packageName: spec.ApplicationID},
			globalScope: &globalScope{
				project:            p,
				hasDynamicFeatures: spec.HasDynamicFeature,
				projectOptions:     map[string]bool{host.PropertyAapt2: p.BoolProperty(host.PropertyAapt2, true)},
			},
			variantScope: &variantScope{
				precompileDependenciesResources: spec.PrecompileDependenciesResources,
			},
			artifacts: &artifactsImpl{final: final},
			taskContainer: &taskContainer{
				preBuildTask:          lc.PreBuild,
				javacTask:             lc.Compile,
				assembleTask:          lc.Assemble,
				mergeResourcesTask:    lc.MergeResources,
				mergeAssetsTask:       lc.MergeAssets,
				processAndroidResTask: lc.ProcessResources,
			},
			variantDependencies: &variantDependencies{artifacts: append([]host.Dependency(nil), spec.Dependencies...)},
			variantData:         &baseVariantData{rawAndroidResources: append([]string(nil), spec.ResDirs...)},
		},
	}
	p.AddVariant(v)
	return v, nil
}

// BaseVariantImpl is the variant object handed to plugins.
type BaseVariantImpl struct {
	componentProperties *componentPropertiesImpl
}

// Name returns the variant name.
func (v *BaseVariantImpl) Name() string {
	return v.componentProperties.name
}

type componentPropertiesImpl struct {
	name                string
	variantType         variantType
	minSdkVersion       apiVersion
	targetSdkVersion    apiVersion
	variantDslInfo      *variantDslInfo
	globalScope         *globalScope
	variantScope        *variantScope
	artifacts           *artifactsImpl
	taskContainer       *taskContainer
	variantDependencies *variantDependencies
	variantData         *baseVariantData
}

type variantType struct {
	isApk            bool
	isAar            bool
	isDynamicFeature bool
	isTestComponent  bool
}

func newVariantType(k variant.Kind) variantType {
	switch k {
	case variant.KindApplication:
		return variantType{isApk: true}
	case variant.KindLibrary:
		return variantType{isAar: true}
	case variant.KindDynamicFeature:
		return variantType{isApk: true, isDynamicFeature: true}
	case variant.KindTest:
		return variantType{isApk: true, isTestComponent: true}
	default:
		return variantType{}
	}
}

type apiVersion struct {
	apiLevel int
}

type variantDslInfo struct {
	packageName string
}

type globalScope struct {
	project            *host.Project
	hasDynamicFeatures bool
	projectOptions     map[string]bool
}

type variantScope struct {
	precompileDependenciesResources bool
}

type artifactsImpl struct {
	final map[string][]string
}

type taskContainer struct {
	preBuildTask          *graph.Provider
	javacTask             *graph.Provider
	assembleTask          *graph.Provider
	mergeResourcesTask    *graph.Provider
	mergeAssetsTask       *graph.Provider
	processAndroidResTask *graph.Provider
}

type variantDependencies struct {
	artifacts []host.Dependency
}

type baseVariantData struct {
	rawAndroidResources []string
}
