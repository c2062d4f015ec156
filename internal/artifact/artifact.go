// Package artifact provides the catalog of build output categories known to the host.
package artifact

// Cardinality describes how many files an artifact type resolves to.
type Cardinality int

const (
	// Single artifacts resolve to zero or one file (or directory).
	Single Cardinality = iota + 1
	// Multiple artifacts resolve to a set of files.
	Multiple
)

func (c Cardinality) String() string {
	switch c {
	case Single:
		return "single"
	case Multiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// Type describes one category of build output.
type Type struct {
	// Name is the stable simple name used as the registry key (e.g. "MERGED_RES")
	Name string
	// Category is the hierarchy the type belongs to
	Category string
	// Cardinality of the files backing the type
	Cardinality Cardinality
}

func (t Type) String() string {
	return t.Name
}

// Category is a closed hierarchy of artifact types exposed by the host.
type Category struct {
	Name    string
	Members []Type
}

func category(name string, members ...Type) Category {
	for i := range members {
		members[i].Category = name
	}
	return Category{Name: name, Members: members}
}

func single(name string) Type   { return Type{Name: name, Cardinality: Single} }
func multiple(name string) Type { return Type{Name: name, Cardinality: Multiple} }

// Public artifact types.
var (
	APK            = single("APK")
	Bundle         = single("BUNDLE")
	MergedManifest = single("MERGED_MANIFEST")
	ObfuscationMap = single("OBFUSCATION_MAPPING_FILE")
)

// Anchor artifact types.
var (
	AllClasses = multiple("ALL_CLASSES")
)

// Internal artifact types.
var (
	AAR                            = single("AAR")
	Javac                          = single("JAVAC")
	MergedRes                      = single("MERGED_RES")
	MergedAssets                   = single("MERGED_ASSETS")
	LibraryAssets                  = single("LIBRARY_ASSETS")
	ProcessedRes                   = single("PROCESSED_RES")
	RuntimeSymbolList              = single("RUNTIME_SYMBOL_LIST")
	CompileSymbolList              = single("COMPILE_SYMBOL_LIST")
	SymbolListWithPackageName      = single("SYMBOL_LIST_WITH_PACKAGE_NAME")
	DataBindingDependencyArtifacts = single("DATA_BINDING_DEPENDENCY_ARTIFACTS")
)

// Categories returns the closed set of category roots the host exposes.
func Categories() []Category {
	return []Category{
		category("public", APK, Bundle, MergedManifest, ObfuscationMap),
		category("anchor", AllClasses),
		category("internal",
			AAR,
			Javac,
			MergedRes,
			MergedAssets,
			LibraryAssets,
			ProcessedRes,
			RuntimeSymbolList,
			CompileSymbolList,
			SymbolListWithPackageName,
			DataBindingDependencyArtifacts,
		),
	}
}
