package compression

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dosanma1/forge-booster/internal/adapter"
	"github.com/dosanma1/forge-booster/internal/host"
	"github.com/dosanma1/forge-booster/pkg/xos"
)

// Reporter turns finalized results into a report on disk.
type Reporter interface {
	Report(results *Results, v host.Variant, artifactID string) (string, error)
}

// FileReporter writes build/reports/<artifact>/<variant>/report.txt.
type FileReporter struct {
	adapter *adapter.Adapter
}

// NewFileReporter creates a FileReporter.
func NewFileReporter(a *adapter.Adapter) *FileReporter {
	return &FileReporter{adapter: a}
}

// ReportPath returns where the report of v is written.
func (r *FileReporter) ReportPath(v host.Variant, artifactID string) string {
	p := r.adapter.Project(v)
	return filepath.Join(p.BuildDir, "reports", artifactID, v.Name(), "report.txt")
}

// Report implements Reporter.
func (r *FileReporter) Report(results *Results, v host.Variant, artifactID string) (string, error) {
	if !results.Finalized() {
		return "", fmt.Errorf("results of %s for %s are not finalized", artifactID, v.Name())
	}
	var b strings.Builder
	if err := WriteReport(&b, results.Snapshot(), r.adapter.Project(v).BuildDir); err != nil {
		return "", err
	}
	path := r.ReportPath(v, artifactID)
	if err := xos.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// WriteReport renders records one per line followed by a total. Paths under
// base are shown relative to it.
func WriteReport(w io.Writer, records []Record, base string) error {
	var before, after int64
	for _, rec := range records {
		before += rec.Before
		after += rec.After
		if _, err := fmt.Fprintf(w, "%7s %10d %10d %10d  %s\n",
			percent(rec.Before, rec.After), rec.Saved(), rec.Before, rec.After, describe(rec, base)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%7s %10d %10d %10d  TOTAL (%d files)\n", percent(before, after), before-after, before, after, len(records))
	return err
}

func percent(before, after int64) string {
	if before <= 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(before-after)*100/float64(before))
}

func describe(rec Record, base string) string {
	in := relative(rec.Input, base)
	if rec.Output == rec.Input || rec.Output == "" {
		return in
	}
	return in + " -> " + relative(rec.Output, base)
}

func relative(p, base string) string {
	if base == "" {
		return p
	}
	if rel, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}
