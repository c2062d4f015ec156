package processedres_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/dosanma1/forge-booster/internal/adapter"
	_ "github.com/dosanma1/forge-booster/internal/adapter/v70"
	"github.com/dosanma1/forge-booster/internal/artifact"
	"github.com/dosanma1/forge-booster/internal/compression"
	"github.com/dosanma1/forge-booster/internal/compression/processedres"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	_ "github.com/dosanma1/forge-booster/internal/host/v70"
	"github.com/dosanma1/forge-booster/internal/processor"
	"github.com/dosanma1/forge-booster/internal/variant"
)

var manifest = strings.Repeat("<uses-permission android:name=\"android.permission.INTERNET\"/>\n", 200)

func writeStoredArchive(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"AndroidManifest.xml":   manifest,
		"res/drawable/icon.png": strings.Repeat("P", 512),
		"resources.arsc":        strings.Repeat("A", 256),
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRepackerDeflatesTextEntries(t *testing.T) {
	t.Parallel()
	ap := filepath.Join(t.TempDir(), "resources-debug.ap_")
	writeStoredArchive(t, ap)

	rec, err := processedres.Repacker{}.Compress(context.Background(), ap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.After >= rec.Before || rec.Output != ap {
		t.Fatalf("expected a smaller archive in place, got %+v", rec)
	}
	info, err := os.Stat(ap)
	if err != nil || info.Size() != rec.After {
		t.Fatalf("expected on-disk size %d, got %v (err %v)", rec.After, info, err)
	}

	zr, err := zip.OpenReader(ap)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	methods := map[string]uint16{}
	for _, f := range zr.File {
		methods[f.Name] = f.Method
		if f.Name != "AndroidManifest.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil || !bytes.Equal(body, []byte(manifest)) {
			t.Fatalf("manifest content changed (err %v)", err)
		}
	}
	want := map[string]uint16{
		"AndroidManifest.xml":   zip.Deflate,
		"res/drawable/icon.png": zip.Store,
		"resources.arsc":        zip.Store,
	}
	for name, m := range want {
		if methods[name] != m {
			t.Errorf("%s: expected method %d, got %d", name, m, methods[name])
		}
	}
}

func TestRepackerKeepsArchiveThatDoesNotShrink(t *testing.T) {
	t.Parallel()
	ap := filepath.Join(t.TempDir(), "resources-debug.ap_")
	f, err := os.Create(ap)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.CreateHeader(&zip.FileHeader{Name: "res/raw/noise.webp", Method: zip.Store})
	_, _ = w.Write([]byte("RIFFWEBP"))
	_ = zw.Close()
	_ = f.Close()
	before, _ := os.ReadFile(ap)

	rec, err := processedres.Repacker{}.Compress(context.Background(), ap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.After != rec.Before {
		t.Errorf("expected no saving, got %+v", rec)
	}
	after, _ := os.ReadFile(ap)
	if !bytes.Equal(before, after) {
		t.Error("expected the archive to be left untouched")
	}
}

func TestRepackerRejectsCorruptArchive(t *testing.T) {
	t.Parallel()
	ap := filepath.Join(t.TempDir(), "broken.ap_")
	if err := os.WriteFile(ap, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (processedres.Repacker{}).Compress(context.Background(), ap); err == nil {
		t.Fatal("expected an error for a corrupt archive")
	}
}

func newVariant(t *testing.T, kind variant.Kind) (*adapter.Adapter, *host.Project, host.Variant) {
	t.Helper()
	dir := t.TempDir()
	res := filepath.Join(dir, "src", "main", "res")
	for name, body := range map[string]string{
		"values/strings.xml": strings.Repeat("<string name=\"s\">text</string>\n", 100),
		"layout/main.xml":    strings.Repeat("<LinearLayout/>\n", 100),
	} {
		p := filepath.Join(res, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p := host.NewProject("app", dir, "7.0.4", nil, nil)
	line, err := host.ForVersion(p.HostVersion)
	if err != nil {
		t.Fatal(err)
	}
	v, err := line.NewVariant(p, host.VariantSpec{
		BuildType:     "debug",
		Kind:          kind,
		MinSdk:        21,
		TargetSdk:     31,
		ApplicationID: "com.example.app",
		ResDirs:       []string{res},
	})
	if err != nil {
		t.Fatal(err)
	}
	a, err := adapter.New(p.HostVersion)
	if err != nil {
		t.Fatal(err)
	}
	return a, p, v
}

func TestProcessSchedulesBeforeAssemble(t *testing.T) {
	t.Parallel()
	a, p, v := newVariant(t, variant.KindApplication)
	env := processor.Env{Adapter: a, Reporter: compression.NewFileReporter(a)}
	if err := processedres.New(env).Process(v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exec := graph.NewExecutor(p.Tasks)
	plan, err := exec.Plan("assembleDebug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	process := slices.Index(plan, "processDebugResources")
	compress := slices.Index(plan, "compressDebugProcessedRes")
	assemble := slices.Index(plan, "assembleDebug")
	if process < 0 || compress < 0 || !(process < compress && compress < assemble) {
		t.Fatalf("expected process < compress < assemble, got %v", plan)
	}

	res, err := exec.Execute(context.Background(), "assembleDebug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := res.Err(); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	data, err := os.ReadFile(compression.NewFileReporter(a).ReportPath(v, processedres.ArtifactID))
	if err != nil {
		t.Fatalf("expected report: %v", err)
	}
	if !strings.Contains(string(data), "resources-debug.ap_") || !strings.Contains(string(data), "TOTAL (1 files)") {
		t.Errorf("unexpected report:\n%s", data)
	}
}

func TestProcessSkipsLibraries(t *testing.T) {
	t.Parallel()
	a, p, v := newVariant(t, variant.KindLibrary)
	if err := processedres.New(processor.Env{Adapter: a}).Process(v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.Tasks.Named("compressDebugProcessedRes"); ok {
		t.Fatal("expected no task for a variant without processed resources")
	}
}

// withoutProcessedRes is a host on which the variant linked no resource package.
type withoutProcessedRes struct {
	adapter.Host
}

func (h withoutProcessedRes) FilesFor(v host.Variant, t artifact.Type) []string {
	if t == artifact.ProcessedRes {
		return nil
	}
	return h.Host.FilesFor(v, t)
}

func TestProcessWithoutProcessedResIsNoOp(t *testing.T) {
	t.Parallel()
	a, p, v := newVariant(t, variant.KindApplication)
	env := processor.Env{Adapter: &adapter.Adapter{Host: withoutProcessedRes{a.Host}}}
	before := p.Tasks.Names()

	proc := processedres.New(env)
	for i := range 2 {
		if err := proc.Process(v); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
	}
	if got := p.Tasks.Names(); !slices.Equal(got, before) {
		t.Errorf("expected tasks %v to be unchanged, got %v", before, got)
	}
}
