// Package processedres repacks the linked resource packages of each variant
// with maximum deflate compression.
package processedres

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/dosanma1/forge-booster/internal/compression"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/internal/processor"
	"github.com/dosanma1/forge-booster/internal/variant"
	"github.com/dosanma1/forge-booster/pkg/xos"
)

// ArtifactID identifies this processor in reports, metrics and properties.
const ArtifactID = "processed-res"

// PropertyIgnores lists wildcards of packages left untouched.
var PropertyIgnores = strings.ReplaceAll(ArtifactID, "-", ".") + ".ignores"

// stored lists extensions that are already compressed or must stay
// uncompressed for the platform to map them.
var stored = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".arsc": true,
}

func init() {
	processor.Register(ArtifactID, func(env processor.Env) processor.VariantProcessor {
		return New(env)
	})
}

// Processor adds compress<Variant>ProcessedRes between process-resources and
// assemble.
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

	packages := a.ProcessedRes(v)
	if len(packages) == 0 {
		logger.Debug("no processed resources")
		return nil
	}
	raw, _ := project.FindProperty(PropertyIgnores)
	ignores, err := compression.ParseIgnores(raw)
	if err != nil {
		return fmt.Errorf("property %s: %w", PropertyIgnores, err)
	}

	results := compression.NewResults()
	creator := compression.NewTaskCreator(a, Repacker{}, ArtifactID, p.env.CreatorOptions()...)
	candidates := compression.Search(packages, func(name string) bool { return strings.HasSuffix(name, ".ap_") })
	prov, err := creator.CreateCompressionTask(v, results, "processedRes", candidates, ignores, a.TaskHandle(v, variant.RoleProcessResources))
	if err != nil {
		return err
	}
	prov.Configure(func(t *graph.Task) {
		t.DoLast(func(context.Context, *graph.Task) error {
			results.Finalize()
			if p.env.Reporter == nil {
				return nil
			}
			report, err := p.env.Reporter.Report(results, v, ArtifactID)
			if err != nil {
				return err
			}
			logger.Info("📊 report written", "path", report, "files", results.Len())
			return nil
		})
	})
	return nil
}

// Repacker rewrites a zip archive in place at the best deflate level.
type Repacker struct{}

// Name implements compression.Compressor. Repacked tasks carry no tool suffix.
func (Repacker) Name() string { return "" }

// Compress implements compression.Compressor. The archive is only replaced
// when the repacked one is smaller.
func (Repacker) Compress(ctx context.Context, input string) (compression.Record, error) {
	zr, err := zip.OpenReader(input)
	if err != nil {
		return compression.Record{}, err
	}
	defer zr.Close()
	info, err := os.Stat(input)
	if err != nil {
		return compression.Record{}, err
	}
	before := info.Size()

	pending, err := xos.NewPendingFile(input)
	if err != nil {
		return compression.Record{}, err
	}
	defer pending.Cleanup()

	out := &countingWriter{w: pending}
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return compression.Record{}, err
		}
		if err := repack(zw, f); err != nil {
			return compression.Record{}, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return compression.Record{}, err
	}

	if out.n >= before {
		return compression.Record{Input: input, Output: input, Before: before, After: before}, nil
	}
	if err := pending.Chmod(info.Mode().Perm()); err != nil {
		return compression.Record{}, err
	}
	if err := pending.CloseAtomically(); err != nil {
		return compression.Record{}, err
	}
	return compression.Record{Input: input, Output: input, Before: before, After: out.n}, nil
}

func repack(zw *zip.Writer, f *zip.File) error {
	if stored[strings.ToLower(path.Ext(f.Name))] || f.FileInfo().IsDir() {
		return zw.Copy(f)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	hdr := f.FileHeader
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(&hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
