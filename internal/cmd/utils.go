package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/dosanma1/forge-booster/internal/adapter"
	"github.com/dosanma1/forge-booster/internal/config"
	"github.com/dosanma1/forge-booster/internal/host"
)

// findManifest finds booster.yaml in dir or any parent directory.
func findManifest(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	// Traverse up the directory tree looking for booster.yaml
	for {
		path := filepath.Join(dir, config.FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in current directory or any parent directory", config.FileName)
}

// session is a configured project: the manifest loaded, the host project
// created and the selected variants added to it.
type session struct {
	manifest string
	config   *config.Config
	resolver *config.Resolver
	project  *host.Project
	adapter  *adapter.Adapter
	variants []host.Variant
}

// openSession loads the manifest and configures the named variants, or all
// of them when names is empty. props are -P key=value overrides.
func openSession(manifest string, names, props []string, logger *slog.Logger) (*session, error) {
	cfg, err := config.Load(manifest)
	if err != nil {
		return nil, err
	}
	resolver := config.NewResolver(cfg)

	properties, err := resolver.ResolveProperties(props)
	if err != nil {
		return nil, err
	}
	selected, err := resolver.ResolveVariants(names)
	if err != nil {
		return nil, err
	}

	version := cfg.Project.HostVersion
	line, err := host.ForVersion(version)
	if err != nil {
		return nil, err
	}
	a, err := adapter.Activate(version)
	if err != nil {
		return nil, err
	}

	p := host.NewProject(cfg.Project.Name, cfg.ProjectDir(), version, properties, logger)
	specs, err := cfg.Specs()
	if err != nil {
		return nil, err
	}

	s := &session{
		manifest: manifest,
		config:   cfg,
		resolver: resolver,
		project:  p,
		adapter:  a,
	}
	for _, spec := range specs {
		if !slices.Contains(selected, spec.Name()) {
			continue
		}
		// The host line registers the variant on the project.
		if _, err := line.NewVariant(p, spec); err != nil {
			return nil, fmt.Errorf("failed to configure variant %s: %w", spec.Name(), err)
		}
	}
	for _, name := range selected {
		v, ok := p.Variant(name)
		if !ok {
			return nil, fmt.Errorf("variant %s was not configured by host %s", name, line.Name())
		}
		s.variants = append(s.variants, v)
	}
	configured := make([]string, 0, len(selected))
	for _, v := range p.Variants() {
		configured = append(configured, v.Name())
	}
	logger.Debug("project configured", "host", line.Name(), "adapter", a.String(), "variants", configured)

	return s, nil
}

// statePath is where incremental task state of the project is kept.
func (s *session) statePath() string {
	return filepath.Join(s.project.BuildDir, "booster", "tasks.state")
}
