package compression

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Compressor compresses single files. Implementations must publish outputs
// atomically so that an abandoned compression leaves no partial file.
type Compressor interface {
	// Name is appended to task names, e.g. "Cwebp". It may be empty.
	Name() string
	Compress(ctx context.Context, input string) (Record, error)
}

// Metrics receives per-file compression outcomes.
type Metrics interface {
	RecordCompression(ctx context.Context, artifactID string, before, after int64)
}

// RunOptions tunes Run.
type RunOptions struct {
	// Workers bounds concurrent compressions; zero means runtime.NumCPU().
	Workers int
	// Progress receives a progress bar when non-nil.
	Progress   io.Writer
	Label      string
	ArtifactID string
	Metrics    Metrics
	Logger     *slog.Logger
}

// Run compresses files concurrently and records each success into results.
// A failing file does not stop the others; the joined per-file errors are
// returned. On cancellation pending files are abandoned and the context error
// is returned.
func Run(ctx context.Context, c Compressor, files []string, results *Results, opts RunOptions) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil && len(files) > 0 {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription(opts.Label),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(workers)
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rec, err := c.Compress(ctx, f)
			if err != nil {
				logger.Warn("compression failed", "file", f, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", f, err))
				mu.Unlock()
			} else {
				results.Record(rec.Input, rec.Output, rec.Before, rec.After)
				if opts.Metrics != nil {
					opts.Metrics.RecordCompression(ctx, opts.ArtifactID, rec.Before, rec.After)
				}
				logger.Debug("compressed", "file", f, "before", rec.Before, "after", rec.After)
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errors.Join(errs...)
}
