// Package cwebp converts the merged png resources of each variant to webp.
package cwebp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dosanma1/forge-booster/internal/compression"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/processor"
	"github.com/dosanma1/forge-booster/internal/variant"
)

// ArtifactID identifies this processor in reports, metrics and properties.
const ArtifactID = "cwebp"

// DefaultQuality is the cwebp -q value used when cwebp.quality is unset.
const DefaultQuality = 80

var (
	propertyPrefix = strings.ReplaceAll(ArtifactID, "-", ".")

	PropertyIgnores = propertyPrefix + ".ignores"
	PropertyLayout  = propertyPrefix + ".layout"
	PropertyQuality = propertyPrefix + ".quality"
	PropertyPath    = propertyPrefix + ".path"
)

func init() {
	processor.Register(ArtifactID, func(env processor.Env) processor.VariantProcessor {
		return New(env)
	})
}

// Processor adds compress<Variant>ResourcesWithCwebp between merge-resources
// and process-resources.
type Processor struct {
	env processor.Env
}

// New creates a Processor.
func New(env processor.Env) *Processor {
	return &Processor{env: env}
}

// Name implements processor.VariantProcessor.
func (p *Processor) Name() string { return ArtifactID }

// Process implements processor.VariantProcessor.
func (p *Processor) Process(v host.Variant) error {
	a := p.env.Adapter
	project := a.Project(v)
	logger := project.Logger.With("processor", ArtifactID, "variant", v.Name())

	roots := a.MergedRes(v)
	if len(roots) == 0 {
		logger.Debug("no merged resources")
		return nil
	}

	md := a.Metadata(v)
	mode := ModeFor(md.MinSdk)
	if mode == ModeUnsupported {
		logger.Warn("webp is not supported below minSdk 14, skipping", "minSdk", md.MinSdk)
		return nil
	}

	tool, err := p.tool(project, mode)
	if errors.Is(err, ErrNotFound) {
		if _, explicit := project.FindProperty(PropertyPath); !explicit {
			logger.Warn("cwebp not found on PATH, skipping")
			return nil
		}
	}
	if err != nil {
		return err
	}

	flat, err := flatLayout(project, a.OptimizedResources(v))
	if err != nil {
		return err
	}
	raw, _ := project.FindProperty(PropertyIgnores)
	ignores, err := compression.ParseIgnores(raw)
	if err != nil {
		return fmt.Errorf("property %s: %w", PropertyIgnores, err)
	}

	results := compression.NewResults()
	creator := compression.NewTaskCreator(a, tool, ArtifactID, p.env.CreatorOptions()...)
	candidates := compression.Search(roots, compression.CandidatePredicate(flat))
	prov, err := creator.CreateCompressionTask(v, results, "resources", candidates, ignores, a.TaskHandle(v, variant.RoleMergeResources))
	if err != nil {
		return err
	}

	prov.Configure(func(t *graph.Task) {
		t.DoLast(func(context.Context, *graph.Task) error {
			results.Finalize()
			if p.env.Reporter == nil {
				return nil
			}
			path, err := p.env.Reporter.Report(results, v, ArtifactID)
			if err != nil {
				return err
			}
			before, after := results.Totals()
			logger.Info("📊 report written", "path", path, "files", results.Len(), "saved", before-after)
			return nil
		})
	})
	logger.Debug("task created", "task", prov.Name(), "mode", mode, "flat", flat, "ignores", ignores.Patterns())
	return nil
}

func (p *Processor) tool(project *host.Project, mode Mode) (*Tool, error) {
	quality, err := project.IntProperty(PropertyQuality, DefaultQuality)
	if err != nil {
		return nil, err
	}
	if quality < 0 || quality > 100 {
		return nil, fmt.Errorf("property %s: quality %d out of range [0, 100]", PropertyQuality, quality)
	}
	configured, _ := project.FindProperty(PropertyPath)
	path, err := Lookup(strings.TrimSpace(configured))
	if err != nil {
		return nil, err
	}
	return &Tool{Path: path, Quality: quality, Mode: mode}, nil
}

// flatLayout resolves the layout property against the host's optimized flag.
func flatLayout(project *host.Project, optimized bool) (bool, error) {
	value, _ := project.FindProperty(PropertyLayout)
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return optimized, nil
	case "flat":
		return true, nil
	case "raw":
		return false, nil
	default:
		return false, fmt.Errorf("property %s: unknown layout %q (want auto, flat or raw)", PropertyLayout, value)
	}
}
