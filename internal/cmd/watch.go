package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dosanma1/forge-booster/internal/config"
	"github.com/dosanma1/forge-booster/internal/ui"
	"github.com/dosanma1/forge-booster/internal/watch"
)

var watchOpts buildOptions

var watchCmd = &cobra.Command{
	Use:   "watch [variant...]",
	Short: "Rebuild variants when sources change",
	Long: `Build the selected variants, then watch the project directory and the
manifest and build again after every burst of changes.

Build output directories and VCS metadata are ignored. Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchOpts.register(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	manifest, err := findManifest(".")
	if err != nil {
		return err
	}
	cfg, err := config.Load(manifest)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), verbose)
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rebuild := func() {
		res, err := build(ctx, manifest, args, watchOpts, out, progressWriter(watchOpts, cmd.ErrOrStderr()), logger)
		if err != nil {
			logger.Error("build failed", "error", err)
			return
		}
		if err := res.Err(); err != nil {
			logger.Debug("build finished with failures", "error", err)
		}
	}
	rebuild()

	w, err := watch.NewWatcher(watch.DefaultConfig(cfg.ProjectDir(), manifest))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Fprintf(out, "%s Watching %s for changes (Ctrl+C to stop)\n", ui.IconWatch, cfg.ProjectDir())
	return watchLoop(ctx, w.Batches(), w.Errors(), rebuild, logger)
}

// watchLoop calls rebuild once per batch until ctx is done.
func watchLoop(ctx context.Context, batches <-chan []watch.Event, errs <-chan error, rebuild func(), logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-batches:
			for _, e := range batch {
				logger.Debug("change detected", "path", e.Path, "type", e.Type)
			}
			logger.Info("rebuilding", "changes", len(batch))
			rebuild()
		case err := <-errs:
			logger.Warn("watch error", "error", err)
		}
	}
}
