package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dosanma1/forge-booster/internal/compression"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/observability"
	"github.com/dosanma1/forge-booster/internal/processor"
	"github.com/dosanma1/forge-booster/internal/ui"
	"github.com/dosanma1/forge-booster/internal/variant"
)

// buildOptions are the flags shared by build and watch.
type buildOptions struct {
	workers     int
	metricsFile string
	properties  []string
	processors  []string
	noProgress  bool
}

func (o *buildOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.workers, "workers", "w", 0, "Files compressed in parallel (default: workers from booster.yaml, else one per CPU)")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus text metrics to this file")
	cmd.Flags().StringArrayVarP(&o.properties, "property", "P", nil, "Override a project property (key=value, repeatable)")
	cmd.Flags().StringSliceVar(&o.processors, "processor", nil, "Processors to run (default: all registered)")
	cmd.Flags().BoolVar(&o.noProgress, "no-progress", false, "Disable per-file progress bars")
}

var buildOpts buildOptions

var buildCmd = &cobra.Command{
	Use:   "build [variant...]",
	Short: "Configure post-processors and assemble variants",
	Long: `Configure every post-processor on the selected variants and run the
assemble task of each variant, with all the tasks it depends on.

Tasks whose inputs, outputs and configuration did not change since the last
build are skipped as up-to-date.

Examples:
  booster build                            # Build every variant
  booster build debug                      # Build one variant
  booster build -P cwebp.quality=60        # Override a property
  booster build --processor cwebp          # Only recompress PNGs
  booster build --metrics-file build.prom  # Export metrics`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildOpts.register(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	manifest, err := findManifest(".")
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), verbose)

	res, err := build(cmd.Context(), manifest, args, buildOpts, cmd.OutOrStdout(), progressWriter(buildOpts, cmd.ErrOrStderr()), logger)
	if err != nil {
		return err
	}
	return res.Err()
}

func progressWriter(o buildOptions, w io.Writer) io.Writer {
	if o.noProgress {
		return nil
	}
	return w
}

// build configures the variants, executes their assemble tasks and prints a
// summary to out.
func build(ctx context.Context, manifest string, names []string, o buildOptions, out, progress io.Writer, logger *slog.Logger) (*graph.Result, error) {
	start := time.Now()

	s, err := openSession(manifest, names, o.properties, logger)
	if err != nil {
		return nil, err
	}
	workers := s.resolver.ResolveWorkers(o.workers)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := metrics.Shutdown(context.Background()); err != nil {
			logger.Warn("failed to shut down metrics", "error", err)
		}
	}()

	env := processor.Env{
		Adapter:  s.adapter,
		Reporter: compression.NewFileReporter(s.adapter),
		Metrics:  metrics,
		Logger:   s.project.Logger,
		Progress: progress,
		Workers:  workers,
	}
	if err := processor.ProcessAll(env, s.variants, s.resolver.ResolveProcessors(o.processors)...); err != nil {
		return nil, err
	}

	state, err := graph.OpenState(s.statePath())
	if err != nil {
		// fall back to a full build
		logger.Warn("ignoring task state", "error", err)
		state = nil
	}
	opts := []graph.Option{
		graph.WithWorkers(workers),
		graph.WithObserver(metrics),
		graph.WithLogger(s.project.Logger),
	}
	if state != nil {
		opts = append(opts, graph.WithState(state))
	}

	targets := make([]string, 0, len(s.variants))
	for _, v := range s.variants {
		targets = append(targets, s.adapter.TaskHandle(v, variant.RoleAssemble).Name())
	}

	fmt.Fprintf(out, "%s Building %d variant(s) of %s\n", ui.IconTool, len(s.variants), s.config.Project.Name)
	res, err := graph.NewExecutor(s.project.Tasks, opts...).Execute(ctx, targets...)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(out, ui.RenderResult(res, time.Since(start), verbose))

	if path := s.resolver.ResolveMetricsFile(o.metricsFile); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			return nil, fmt.Errorf("failed to write metrics: %w", err)
		}
		logger.Debug("metrics written", "path", path)
	}

	return res, nil
}
