package compression

import (
	"context"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/dosanma1/forge-booster/internal/adapter"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/variant"
)

// TaskCreator creates the compression task of one variant.
type TaskCreator interface {
	// CreateCompressionTask registers a task compressing the candidates not
	// matched by ignores. The task runs after upstream and before the
	// consumers of upstream's outputs.
	CreateCompressionTask(v host.Variant, results *Results, label string, candidates iter.Seq[string], ignores IgnoreSet, upstream *graph.Provider) (*graph.Provider, error)
}

// Creator is the TaskCreator shared by the compression processors.
type Creator struct {
	adapter    *adapter.Adapter
	compressor Compressor
	artifactID string
	workers    int
	progress   io.Writer
	metrics    Metrics
}

// CreatorOption configures a Creator.
type CreatorOption func(*Creator)

// WithWorkers bounds per-file concurrency inside the task.
func WithWorkers(n int) CreatorOption {
	return func(c *Creator) { c.workers = n }
}

// WithProgress renders a progress bar to w while compressing.
func WithProgress(w io.Writer) CreatorOption {
	return func(c *Creator) { c.progress = w }
}

// WithMetrics records per-file outcomes.
func WithMetrics(m Metrics) CreatorOption {
	return func(c *Creator) { c.metrics = m }
}

// NewTaskCreator creates a Creator for compressor. artifactID labels metrics.
func NewTaskCreator(a *adapter.Adapter, compressor Compressor, artifactID string, opts ...CreatorOption) *Creator {
	c := &Creator{adapter: a, compressor: compressor, artifactID: artifactID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TaskName returns the name of the task created for label.
func (c *Creator) TaskName(v host.Variant, label string) string {
	suffix := []string{variant.Capitalize(label)}
	if name := c.compressor.Name(); name != "" {
		suffix = append(suffix, "With", name)
	}
	return c.adapter.TaskName(v, "compress", suffix...)
}

// CreateCompressionTask implements TaskCreator.
func (c *Creator) CreateCompressionTask(v host.Variant, results *Results, label string, candidates iter.Seq[string], ignores IgnoreSet, upstream *graph.Provider) (*graph.Provider, error) {
	project := c.adapter.Project(v)
	name := c.TaskName(v, label)
	logger := project.Logger.With("variant", v.Name(), "task", name)
	inputs := Filter(candidates, ignores)

	prov, err := project.Tasks.Register(name, func(t *graph.Task) {
		t.SetDescription(fmt.Sprintf("Compresses %s of %s", label, v.Name()))
		t.DependsOn(upstream)
		t.Inputs(func() ([]string, error) { return slices.Collect(inputs), nil })
		t.DoLast(func(ctx context.Context, t *graph.Task) error {
			files, err := t.ResolveInputs()
			if err != nil {
				return err
			}
			logger.Info("compressing", "files", len(files))
			return Run(ctx, c.compressor, files, results, RunOptions{
				Workers:    c.workers,
				Progress:   c.progress,
				Label:      name,
				ArtifactID: c.artifactID,
				Metrics:    c.metrics,
				Logger:     logger,
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}

	for _, consumer := range c.consumers(v, upstream) {
		consumer.Configure(func(t *graph.Task) { t.DependsOn(prov) })
	}
	return prov, nil
}

// consumers returns the lifecycle tasks that read upstream's outputs.
func (c *Creator) consumers(v host.Variant, upstream *graph.Provider) []*graph.Provider {
	assemble := c.adapter.TaskHandle(v, variant.RoleAssemble)
	var out []*graph.Provider
	if upstream == c.adapter.TaskHandle(v, variant.RoleMergeResources) {
		out = append(out, c.adapter.TaskHandle(v, variant.RoleProcessResources))
	}
	if upstream != assemble {
		out = append(out, assemble)
	}
	return out
}
