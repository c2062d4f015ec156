package cwebp_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/dosanma1/forge-booster/internal/adapter"
	_ "github.com/dosanma1/forge-booster/internal/adapter/v41"
	"github.com/dosanma1/forge-booster/internal/artifact"
	"github.com/dosanma1/forge-booster/internal/compression"
	"github.com/dosanma1/forge-booster/internal/compression/cwebp"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	_ "github.com/dosanma1/forge-booster/internal/host/v41"
	"github.com/dosanma1/forge-booster/internal/processor"
	"github.com/dosanma1/forge-booster/internal/variant"
)

const webpStub = "RIFF\x08\x00\x00\x00WEBPVP8 "

var stubs struct {
	small, large, failing string
}

// TestMain writes the cwebp stand-ins once; executables written while other
// tests fork can fail to start with ETXTBSY.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cwebp-stubs")
	if err != nil {
		panic(err)
	}
	write := func(name, script string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
			panic(err)
		}
		return path
	}
	stubs.small = write("small", "printf '"+webpStub+"'")
	stubs.large = write("large", "head -c 65536 /dev/zero")
	stubs.failing = write("failing", "echo 'unsupported color type' >&2; exit 3")

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("cwebp stand-ins need a POSIX shell")
	}
}

func writePNG(t *testing.T, path string, alpha bool) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			a := uint8(255)
			if alpha && x == 0 {
				a = 0
			}
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: a})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestModeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		minSdk int
		want   cwebp.Mode
	}{
		{9, cwebp.ModeUnsupported},
		{13, cwebp.ModeUnsupported},
		{14, cwebp.ModeOpaque},
		{17, cwebp.ModeOpaque},
		{18, cwebp.ModeFull},
		{30, cwebp.ModeFull},
	}
	for _, tt := range tests {
		if got := cwebp.ModeFor(tt.minSdk); got != tt.want {
			t.Errorf("ModeFor(%d) = %s, want %s", tt.minSdk, got, tt.want)
		}
	}
}

func TestOutput(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"res/drawable/a.png":              "res/drawable/a.webp",
		"merged/drawable_a.png.flat":      "merged/drawable_a.webp.flat",
		"merged/drawable_a.b.png":         "merged/drawable_a.b.webp",
		"merged/drawable-hdpi_x.png.flat": "merged/drawable-hdpi_x.webp.flat",
	}
	for in, want := range tests {
		if got := cwebp.Output(in); got != want {
			t.Errorf("Output(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToolReplacesInput(t *testing.T) {
	t.Parallel()
	requireShell(t)
	in := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, in, false)
	tool := &cwebp.Tool{Path: stubs.small, Quality: 80, Mode: cwebp.ModeFull}

	rec, err := tool.Compress(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Output != cwebp.Output(in) || rec.After != int64(len(webpStub)) || rec.Before <= rec.After {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := os.Stat(in); !os.IsNotExist(err) {
		t.Errorf("expected input to be replaced, stat err %v", err)
	}
	data, err := os.ReadFile(rec.Output)
	if err != nil || string(data) != webpStub {
		t.Errorf("unexpected output %q (err %v)", data, err)
	}
}

func TestToolDiscardsLargerOutput(t *testing.T) {
	t.Parallel()
	requireShell(t)
	in := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, in, false)
	tool := &cwebp.Tool{Path: stubs.large, Quality: 80, Mode: cwebp.ModeFull}

	rec, err := tool.Compress(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Output != in || rec.After != rec.Before {
		t.Fatalf("expected the input to be kept, got %+v", rec)
	}
	if _, err := os.Stat(cwebp.Output(in)); !os.IsNotExist(err) {
		t.Errorf("expected no webp output, stat err %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(in))
	if len(entries) != 1 {
		t.Errorf("expected only the input to remain, got %d entries", len(entries))
	}
}

func TestToolOpaqueModeSkipsAlpha(t *testing.T) {
	t.Parallel()
	requireShell(t)
	dir := t.TempDir()
	opaque := filepath.Join(dir, "opaque.png")
	alpha := filepath.Join(dir, "alpha.png")
	writePNG(t, opaque, false)
	writePNG(t, alpha, true)
	tool := &cwebp.Tool{Path: stubs.small, Quality: 75, Mode: cwebp.ModeOpaque}

	rec, err := tool.Compress(context.Background(), alpha)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Output != alpha || rec.After != rec.Before {
		t.Errorf("expected translucent image to be kept, got %+v", rec)
	}
	rec, err = tool.Compress(context.Background(), opaque)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Output != cwebp.Output(opaque) {
		t.Errorf("expected opaque image to be converted, got %+v", rec)
	}
}

// writeColorKeyPNG writes an image without an alpha channel whose tRNS chunk
// marks one color transparent.
func writeColorKeyPNG(t *testing.T, path string, img image.Image, key []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	const ihdrEnd = 8 + 8 + 13 + 4

	chunk := binary.BigEndian.AppendUint32(nil, uint32(len(key)))
	body := append([]byte("tRNS"), key...)
	chunk = append(chunk, body...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(body))

	out := append(append(append([]byte(nil), data[:ihdrEnd]...), chunk...), data[ihdrEnd:]...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestToolOpaqueModeSkipsColorKeyTransparency(t *testing.T) {
	t.Parallel()
	requireShell(t)
	gray := image.NewGray(image.Rect(0, 0, 8, 8))
	rgb := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			gray.SetGray(x, y, color.Gray{Y: uint8(x * 32)})
			rgb.SetRGBA(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 64, A: 255})
		}
	}
	tests := []struct {
		name string
		img  image.Image
		key  []byte
	}{
		{"gray", gray, []byte{0, 0}},
		{"truecolor", rgb, []byte{0, 0, 0, 0, 0, 64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			keyed := filepath.Join(dir, "keyed.png")
			writeColorKeyPNG(t, keyed, tt.img, tt.key)
			plain := filepath.Join(dir, "plain.png")
			f, err := os.Create(plain)
			if err != nil {
				t.Fatal(err)
			}
			if err := png.Encode(f, tt.img); err != nil {
				t.Fatal(err)
			}
			f.Close()
			tool := &cwebp.Tool{Path: stubs.small, Quality: 75, Mode: cwebp.ModeOpaque}

			rec, err := tool.Compress(context.Background(), keyed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Output != keyed || rec.After != rec.Before {
				t.Errorf("expected color-keyed image to be kept, got %+v", rec)
			}
			rec, err = tool.Compress(context.Background(), plain)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Output != cwebp.Output(plain) {
				t.Errorf("expected image without tRNS to be converted, got %+v", rec)
			}
		})
	}
}

func TestToolFailureLeavesInput(t *testing.T) {
	t.Parallel()
	requireShell(t)
	in := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, in, false)
	tool := &cwebp.Tool{Path: stubs.failing, Quality: 80, Mode: cwebp.ModeFull}

	_, err := tool.Compress(context.Background(), in)
	if err == nil || !strings.Contains(err.Error(), "unsupported color type") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if _, err := os.Stat(in); err != nil {
		t.Errorf("expected input to survive: %v", err)
	}
	if _, err := os.Stat(cwebp.Output(in)); !os.IsNotExist(err) {
		t.Errorf("expected no partial output, stat err %v", err)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	if _, err := cwebp.Lookup(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, cwebp.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := cwebp.Lookup(t.TempDir()); !errors.Is(err, cwebp.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a directory, got %v", err)
	}
}

type fixture struct {
	adapter *adapter.Adapter
	project *host.Project
	variant host.Variant
	env     processor.Env
}

func newFixture(t *testing.T, minSdk int, props map[string]string) fixture {
	t.Helper()
	dir := t.TempDir()
	res := filepath.Join(dir, "src", "main", "res")
	writePNG(t, filepath.Join(res, "drawable", "opaque.png"), false)
	writePNG(t, filepath.Join(res, "drawable", "alpha.png"), true)
	writePNG(t, filepath.Join(res, "drawable", "frame.9.png"), false)
	writePNG(t, filepath.Join(res, "raw", "keep.png"), false)

	p := host.NewProject("app", dir, "4.1.3", props, nil)
	line, err := host.ForVersion(p.HostVersion)
	if err != nil {
		t.Fatal(err)
	}
	v, err := line.NewVariant(p, host.VariantSpec{
		BuildType:     "release",
		Kind:          variant.KindApplication,
		MinSdk:        minSdk,
		TargetSdk:     30,
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
	return fixture{
		adapter: a,
		project: p,
		variant: v,
		env:     processor.Env{Adapter: a, Reporter: compression.NewFileReporter(a), Workers: 2},
	}
}

func (f fixture) build(t *testing.T) *graph.Result {
	t.Helper()
	res, err := graph.NewExecutor(f.project.Tasks).Execute(context.Background(), f.adapter.TaskHandle(f.variant, variant.RoleAssemble).Name())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := res.Err(); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return res
}

func mergedFiles(t *testing.T, f fixture) []string {
	t.Helper()
	var names []string
	for _, root := range f.adapter.MergedRes(f.variant) {
		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestProcessFullMode(t *testing.T) {
	t.Parallel()
	requireShell(t)
	f := newFixture(t, 21, nil)
	f.project.Properties[cwebp.PropertyPath] = stubs.small

	if err := cwebp.New(f.env).Process(f.variant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := f.build(t)
	if o, _ := res.Outcome("compressReleaseResourcesWithCwebp"); o != graph.OutcomeExecuted {
		t.Fatalf("expected compression to execute, got %s", o)
	}

	got := strings.Join(mergedFiles(t, f), ",")
	want := "drawable_alpha.webp.flat,drawable_frame.9.png.flat,drawable_opaque.webp.flat,raw_keep.png.flat"
	if got != want {
		t.Fatalf("expected merged files %s, got %s", want, got)
	}

	report := compression.NewFileReporter(f.adapter).ReportPath(f.variant, cwebp.ArtifactID)
	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("expected report: %v", err)
	}
	if !strings.Contains(string(data), "TOTAL (2 files)") {
		t.Errorf("unexpected report:\n%s", data)
	}

	ap := f.adapter.ProcessedRes(f.variant)[0]
	zr, err := zip.OpenReader(ap)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var found bool
	for _, e := range zr.File {
		found = found || e.Name == "res/drawable/opaque.webp"
	}
	if !found {
		t.Error("expected the converted resource to be packaged")
	}
}

func TestProcessOpaqueMode(t *testing.T) {
	t.Parallel()
	requireShell(t)
	f := newFixture(t, 16, nil)
	f.project.Properties[cwebp.PropertyPath] = stubs.small

	if err := cwebp.New(f.env).Process(f.variant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.build(t)
	got := strings.Join(mergedFiles(t, f), ",")
	want := "drawable_alpha.png.flat,drawable_frame.9.png.flat,drawable_opaque.webp.flat,raw_keep.png.flat"
	if got != want {
		t.Fatalf("expected merged files %s, got %s", want, got)
	}
}

// withoutMergedRes is a host on which the variant produced no merged resources.
type withoutMergedRes struct {
	adapter.Host
}

func (h withoutMergedRes) FilesFor(v host.Variant, t artifact.Type) []string {
	if t == artifact.MergedRes {
		return nil
	}
	return h.Host.FilesFor(v, t)
}

func TestProcessWithoutMergedResIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 21, nil)
	f.project.Properties[cwebp.PropertyPath] = stubs.small
	f.env.Adapter = &adapter.Adapter{Host: withoutMergedRes{f.adapter.Host}}
	before := f.project.Tasks.Names()

	p := cwebp.New(f.env)
	for i := range 2 {
		if err := p.Process(f.variant); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
	}
	if got := f.project.Tasks.Names(); !slices.Equal(got, before) {
		t.Errorf("expected tasks %v to be unchanged, got %v", before, got)
	}
}

func TestProcessSkipsOldPlatforms(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 10, nil)
	f.project.Properties[cwebp.PropertyPath] = stubs.small

	if err := cwebp.New(f.env).Process(f.variant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.project.Tasks.Named("compressReleaseResourcesWithCwebp"); ok {
		t.Fatal("expected no compression task below minSdk 14")
	}
}

func TestProcessHonoursIgnoresAndLayout(t *testing.T) {
	t.Parallel()
	requireShell(t)
	f := newFixture(t, 21, nil)
	f.project.Properties[cwebp.PropertyPath] = stubs.small
	f.project.Properties[cwebp.PropertyIgnores] = "drawable/alpha.png"

	if err := cwebp.New(f.env).Process(f.variant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.build(t)
	got := strings.Join(mergedFiles(t, f), ",")
	want := "drawable_alpha.png.flat,drawable_frame.9.png.flat,drawable_opaque.webp.flat,raw_keep.png.flat"
	if got != want {
		t.Fatalf("expected merged files %s, got %s", want, got)
	}

	g := newFixture(t, 21, nil)
	g.project.Properties[cwebp.PropertyPath] = stubs.small
	g.project.Properties[cwebp.PropertyLayout] = "raw"
	if err := cwebp.New(g.env).Process(g.variant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := g.build(t)
	if o, _ := res.Outcome("compressReleaseResourcesWithCwebp"); o != graph.OutcomeNoSource {
		t.Errorf("expected raw layout over flat files to find nothing, got %s", o)
	}
}

func TestProcessConfigurationErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		props map[string]string
	}{
		{"explicit path missing", map[string]string{cwebp.PropertyPath: "/nonexistent/cwebp"}},
		{"bad quality", map[string]string{cwebp.PropertyQuality: "high"}},
		{"quality out of range", map[string]string{cwebp.PropertyQuality: "101"}},
		{"bad layout", map[string]string{cwebp.PropertyLayout: "nested"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, 21, nil)
			if _, ok := tt.props[cwebp.PropertyPath]; !ok {
				f.project.Properties[cwebp.PropertyPath] = stubs.small
			}
			for k, v := range tt.props {
				f.project.Properties[k] = v
			}
			if err := cwebp.New(f.env).Process(f.variant); err == nil {
				t.Fatal("expected a configuration error")
			}
		})
	}
}

func TestRegisteredAsProcessor(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 21, nil)
	p, err := processor.New(cwebp.ArtifactID, f.env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != cwebp.ArtifactID {
		t.Errorf("unexpected processor %s", p.Name())
	}
}
