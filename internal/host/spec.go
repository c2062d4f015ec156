package host

import (
	"fmt"

	"github.com/dosanma1/forge-booster/internal/variant"
)

// Dependency is a resolved artifact of a variant dependency.
type Dependency struct {
	Path  string
	Scope variant.Scope
	Kind  string // consumed artifact kind, e.g. "android-res", "jar"
}

// VariantSpec describes a variant to configure.
type VariantSpec struct {
	BuildType                       string
	Flavors                         []string
	Kind                            variant.Kind
	MinSdk                          int
	TargetSdk                       int
	ApplicationID                   string
	ResDirs                         []string
	AssetDirs                       []string
	Dependencies                    []Dependency
	PrecompileDependenciesResources bool
	HasDynamicFeature               bool
}

// Name returns the variant name derived from flavors and build type.
func (s VariantSpec) Name() string {
	return variant.Name(s.BuildType, s.Flavors...)
}

// Validate checks the spec is usable.
func (s VariantSpec) Validate() error {
	if s.BuildType == "" {
		return fmt.Errorf("variant build type is required")
	}
	if s.Kind == 0 {
		return fmt.Errorf("variant %s: kind is required", s.Name())
	}
	if s.MinSdk <= 0 {
		return fmt.Errorf("variant %s: minSdk must be positive", s.Name())
	}
	if s.TargetSdk != 0 && s.TargetSdk < s.MinSdk {
		return fmt.Errorf("variant %s: targetSdk %d is lower than minSdk %d", s.Name(), s.TargetSdk, s.MinSdk)
	}
	return nil
}

// TaskName builds a lifecycle task name the way the host does.
func TaskName(variantName, prefix, suffix string) string {
	return prefix + variant.Capitalize(variantName) + suffix
}
