// Package config loads the booster.yaml manifest describing the project, its
// variants and the properties handed to post-processors.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/variant"
	"github.com/dosanma1/forge-booster/pkg/xos"
)

// FileName is the manifest looked up in the working directory.
const FileName = "booster.yaml"

//go:embed schema/booster.v1.schema.json
var schema []byte

// ErrSchema classifies manifests rejected by the JSON schema.
var ErrSchema = errors.New("manifest does not match schema")

// Config represents the booster.yaml manifest.
type Config struct {
	// Project configuration
	Project ProjectConfig `yaml:"project"`

	// Properties handed to processors, e.g. cwebp.quality
	Properties map[string]string `yaml:"properties,omitempty"`

	// Processors to run; empty means all registered
	Processors []string `yaml:"processors,omitempty"`

	// Workers bounds per-file concurrency; 0 means one per CPU
	Workers int `yaml:"workers,omitempty"`

	// MetricsFile receives Prometheus text metrics after a build
	MetricsFile string `yaml:"metrics_file,omitempty"`

	Variants []VariantConfig `yaml:"variants"`

	// dir is the directory holding the manifest.
	dir string
}

// ProjectConfig holds project-level settings.
type ProjectConfig struct {
	Name        string `yaml:"name"`
	Dir         string `yaml:"dir,omitempty"`
	HostVersion string `yaml:"host_version"`
}

// VariantConfig describes one build variant.
type VariantConfig struct {
	BuildType                       string             `yaml:"build_type"`
	Flavors                         []string           `yaml:"flavors,omitempty"`
	Kind                            string             `yaml:"kind"`
	MinSdk                          int                `yaml:"min_sdk"`
	TargetSdk                       int                `yaml:"target_sdk,omitempty"`
	ApplicationID                   string             `yaml:"application_id,omitempty"`
	ResDirs                         []string           `yaml:"res_dirs,omitempty"`
	AssetDirs                       []string           `yaml:"asset_dirs,omitempty"`
	PrecompileDependenciesResources bool               `yaml:"precompile_dependencies_resources,omitempty"`
	DynamicFeature                  bool               `yaml:"dynamic_feature,omitempty"`
	Dependencies                    []DependencyConfig `yaml:"dependencies,omitempty"`
}

// DependencyConfig is a resolved dependency artifact of a variant.
type DependencyConfig struct {
	Path  string `yaml:"path"`
	Scope string `yaml:"scope,omitempty"` // project or external
	Kind  string `yaml:"kind,omitempty"`
}

// Name returns the variant name.
func (v VariantConfig) Name() string {
	return variant.Name(v.BuildType, v.Flavors...)
}

// Load reads, schema-checks and parses the manifest at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if violations, err := ValidateSchema(data); err != nil {
		return nil, err
	} else if len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(violations, "; "))
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	config.dir = abs

	// Apply defaults
	config.applyDefaults()

	// Validate
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// ValidateSchema checks a YAML document against the embedded JSON schema and
// returns one message per violation.
func ValidateSchema(data []byte) ([]string, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}

// Save writes the config to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := xos.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	if host.Canonical(c.Project.HostVersion) == "" {
		return fmt.Errorf("project.host_version %q is not a version", c.Project.HostVersion)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	names := make(map[string]bool)
	for _, v := range c.Variants {
		name := v.Name()
		if names[name] {
			return fmt.Errorf("duplicate variant: %s", name)
		}
		names[name] = true

		spec, err := c.spec(v)
		if err != nil {
			return err
		}
		if err := spec.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// applyDefaults sets default values for missing fields.
func (c *Config) applyDefaults() {
	if c.Project.Dir == "" {
		c.Project.Dir = "."
	}
	if c.Properties == nil {
		c.Properties = map[string]string{}
	}

	for i := range c.Variants {
		v := &c.Variants[i]
		if len(v.ResDirs) == 0 {
			v.ResDirs = []string{"src/main/res"}
		}
		if len(v.AssetDirs) == 0 {
			v.AssetDirs = []string{"src/main/assets"}
		}
		if v.TargetSdk == 0 {
			v.TargetSdk = v.MinSdk
		}
		if v.ApplicationID == "" {
			v.ApplicationID = "com.example." + strings.ToLower(c.Project.Name)
		}
	}
}

// ProjectDir returns the absolute project directory.
func (c *Config) ProjectDir() string {
	if filepath.IsAbs(c.Project.Dir) {
		return c.Project.Dir
	}
	return filepath.Join(c.dir, c.Project.Dir)
}

// Specs converts the variants into host specs with paths resolved against
// the project directory.
func (c *Config) Specs() ([]host.VariantSpec, error) {
	specs := make([]host.VariantSpec, 0, len(c.Variants))
	for _, v := range c.Variants {
		spec, err := c.spec(v)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (c *Config) spec(v VariantConfig) (host.VariantSpec, error) {
	kind, err := variant.ParseKind(v.Kind)
	if err != nil {
		return host.VariantSpec{}, fmt.Errorf("variant %s: %w", v.Name(), err)
	}
	spec := host.VariantSpec{
		BuildType:                       v.BuildType,
		Flavors:                         v.Flavors,
		Kind:                            kind,
		MinSdk:                          v.MinSdk,
		TargetSdk:                       v.TargetSdk,
		ApplicationID:                   v.ApplicationID,
		ResDirs:                         c.resolve(v.ResDirs),
		AssetDirs:                       c.resolve(v.AssetDirs),
		PrecompileDependenciesResources: v.PrecompileDependenciesResources,
		HasDynamicFeature:               v.DynamicFeature,
	}
	for _, d := range v.Dependencies {
		scope, err := variant.ParseScope(d.Scope)
		if err != nil {
			return host.VariantSpec{}, fmt.Errorf("variant %s: dependency %s: %w", v.Name(), d.Path, err)
		}
		if scope == variant.ScopeAll {
			scope = variant.ScopeExternal
		}
		kind := d.Kind
		if kind == "" {
			kind = "android-res"
		}
		spec.Dependencies = append(spec.Dependencies, host.Dependency{
			Path:  c.resolve([]string{d.Path})[0],
			Scope: scope,
			Kind:  kind,
		})
	}
	return spec, nil
}

func (c *Config) resolve(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.ProjectDir(), filepath.FromSlash(p))
		}
		out = append(out, p)
	}
	return out
}

// ParseOverrides parses repeated key=value flags.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q: expected key=value", pair)
		}
		out[key] = value
	}
	return out, nil
}

// NewDefaultConfig creates a new config with sensible defaults.
func NewDefaultConfig(projectName, hostVersion string) *Config {
	return &Config{
		Project: ProjectConfig{
			Name:        projectName,
			HostVersion: hostVersion,
		},
		Properties: map[string]string{
			host.PropertyAapt2: "true",
		},
		Variants: []VariantConfig{
			{BuildType: "debug", Kind: "application", MinSdk: 21, TargetSdk: 34},
			{BuildType: "release", Kind: "application", MinSdk: 21, TargetSdk: 34},
		},
	}
}
