package config

import (
	"fmt"
	"runtime"
	"slices"
)

// Resolver handles configuration precedence: CLI flags > booster.yaml > defaults
type Resolver struct {
	config *Config
}

// NewResolver creates a new configuration resolver.
func NewResolver(config *Config) *Resolver {
	return &Resolver{config: config}
}

// ResolveWorkers resolves per-file concurrency.
// Precedence: CLI flag > workers > one per CPU
func (r *Resolver) ResolveWorkers(cliWorkers int) int {
	if cliWorkers > 0 {
		return cliWorkers
	}
	if r.config.Workers > 0 {
		return r.config.Workers
	}
	return runtime.NumCPU()
}

// ResolveMetricsFile resolves where metrics are written; empty disables them.
// Precedence: CLI flag > metrics_file
func (r *Resolver) ResolveMetricsFile(cliPath string) string {
	if cliPath != "" {
		return cliPath
	}
	return r.config.MetricsFile
}

// ResolveProcessors returns the processors to run.
// Precedence: CLI flag > processors > all registered (empty result)
func (r *Resolver) ResolveProcessors(cliProcessors []string) []string {
	if len(cliProcessors) > 0 {
		return cliProcessors
	}
	return r.config.Processors
}

// ResolveProperties merges -P key=value overrides over the manifest properties.
func (r *Resolver) ResolveProperties(cliPairs []string) (map[string]string, error) {
	overrides, err := ParseOverrides(cliPairs)
	if err != nil {
		return nil, err
	}
	props := make(map[string]string, len(r.config.Properties)+len(overrides))
	for k, v := range r.config.Properties {
		props[k] = v
	}
	for k, v := range overrides {
		props[k] = v
	}
	return props, nil
}

// ResolveVariants returns the variant names to build, in manifest order.
// No names selects every variant.
func (r *Resolver) ResolveVariants(names []string) ([]string, error) {
	all := make([]string, 0, len(r.config.Variants))
	for _, v := range r.config.Variants {
		all = append(all, v.Name())
	}
	if len(names) == 0 {
		return all, nil
	}
	for _, name := range names {
		if !slices.Contains(all, name) {
			return nil, fmt.Errorf("variant not found: %s (available: %v)", name, all)
		}
	}
	return slices.DeleteFunc(all, func(n string) bool { return !slices.Contains(names, n) }), nil
}
