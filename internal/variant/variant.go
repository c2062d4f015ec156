// Package variant defines the host-independent vocabulary used to talk about build variants.
package variant

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of variant kinds the host produces.
type Kind int

const (
	KindApplication Kind = iota + 1
	KindLibrary
	KindDynamicFeature
	KindTest
)

func (k Kind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindLibrary:
		return "library"
	case KindDynamicFeature:
		return "dynamic-feature"
	case KindTest:
		return "test"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind parses a kind from its string form.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "application", "app":
		return KindApplication, nil
	case "library", "lib":
		return KindLibrary, nil
	case "dynamic-feature", "feature":
		return KindDynamicFeature, nil
	case "test":
		return KindTest, nil
	default:
		return 0, fmt.Errorf("unknown variant kind: %q", s)
	}
}

// Role identifies one of the host lifecycle tasks of a variant.
type Role int

const (
	RolePreBuild Role = iota + 1
	RoleCompile
	RoleAssemble
	RoleMergeResources
	RoleMergeAssets
	RoleProcessResources
)

// Roles lists every lifecycle role in pipeline order.
func Roles() []Role {
	return []Role{RolePreBuild, RoleCompile, RoleMergeResources, RoleMergeAssets, RoleProcessResources, RoleAssemble}
}

func (r Role) String() string {
	switch r {
	case RolePreBuild:
		return "pre-build"
	case RoleCompile:
		return "compile"
	case RoleAssemble:
		return "assemble"
	case RoleMergeResources:
		return "merge-resources"
	case RoleMergeAssets:
		return "merge-assets"
	case RoleProcessResources:
		return "process-resources"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Scope filters dependency artifacts by where they come from.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeProject
	ScopeExternal
)

func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeProject:
		return "project"
	case ScopeExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseScope parses a scope from its string form.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, nil
	case "project":
		return ScopeProject, nil
	case "external":
		return ScopeExternal, nil
	default:
		return 0, fmt.Errorf("unknown scope: %q", s)
	}
}

// Includes reports whether a dependency of scope other is visible through s.
func (s Scope) Includes(other Scope) bool {
	return s == ScopeAll || s == other
}

// Metadata is a read-only snapshot of a variant's properties.
type Metadata struct {
	Name                                   string
	MinSdk                                 int
	TargetSdk                              int
	Kind                                   Kind
	ApplicationID                          string
	HasDynamicFeature                      bool
	PrecompileDependenciesResourcesEnabled bool
}

// ErrUnsupportedKind classifies operations not implemented for a variant kind.
var ErrUnsupportedKind = errors.New("not implemented for this variant kind")

// UnsupportedKindError names the variant, the operation and the offending kind.
type UnsupportedKindError struct {
	Variant string
	Op      string
	Kind    Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("%s: %s is %s (variant %s)", e.Op, ErrUnsupportedKind, e.Kind, e.Variant)
}

func (e *UnsupportedKindError) Unwrap() error { return ErrUnsupportedKind }

// Capitalize upper-cases the first letter of s, as the host does when composing task names.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Name composes a variant name from flavors and build type, e.g. ("debug", "free") -> "freeDebug".
func Name(buildType string, flavors ...string) string {
	var b strings.Builder
	for _, f := range flavors {
		if b.Len() == 0 {
			b.WriteString(f)
		} else {
			b.WriteString(Capitalize(f))
		}
	}
	if b.Len() == 0 {
		return buildType
	}
	b.WriteString(Capitalize(buildType))
	return b.String()
}
