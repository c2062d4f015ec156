package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/dosanma1/forge-booster/internal/artifact"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/variant"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestProject(t *testing.T, props map[string]string) *Project {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "main", "res", "drawable", "icon.png"), "png")
	writeFile(t, filepath.Join(dir, "src", "main", "res", "values", "strings.xml"), "<resources/>")
	writeFile(t, filepath.Join(dir, "src", "main", "assets", "data.json"), "{}")
	return NewProject("app", dir, "4.1.3", props, nil)
}

func appSpec(p *Project) VariantSpec {
	return VariantSpec{
		BuildType:     "debug",
		Kind:          variant.KindApplication,
		MinSdk:        21,
		TargetSdk:     30,
		ApplicationID: "com.example.app",
		ResDirs:       []string{filepath.Join(p.Dir, "src", "main", "res")},
		AssetDirs:     []string{filepath.Join(p.Dir, "src", "main", "assets")},
	}
}

func TestProjectProperties(t *testing.T) {
	t.Parallel()
	p := NewProject("app", t.TempDir(), "7.0.0", map[string]string{
		"flag":    "true",
		"broken":  "maybe",
		"quality": "75",
	}, nil)

	if !p.BoolProperty("flag", false) {
		t.Error("expected flag=true")
	}
	if !p.BoolProperty("broken", true) {
		t.Error("expected malformed boolean to fall back to default")
	}
	if q, err := p.IntProperty("quality", 80); err != nil || q != 75 {
		t.Errorf("expected quality 75, got %d (err %v)", q, err)
	}
	if q, err := p.IntProperty("missing", 80); err != nil || q != 80 {
		t.Errorf("expected default 80, got %d (err %v)", q, err)
	}
	if _, ok := p.FindProperty("missing"); ok {
		t.Error("expected missing property to be absent")
	}
}

func TestRegisterLifecycleNamesTasks(t *testing.T) {
	t.Parallel()
	p := newTestProject(t, nil)
	spec := appSpec(p)
	spec.Flavors = []string{"free"}

	lc, out, err := RegisterLifecycle(p, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[*graph.Provider]string{
		lc.PreBuild:         "preFreeDebugBuild",
		lc.Compile:          "compileFreeDebugJavaWithJavac",
		lc.MergeResources:   "mergeFreeDebugResources",
		lc.MergeAssets:      "mergeFreeDebugAssets",
		lc.ProcessResources: "processFreeDebugResources",
		lc.Assemble:         "assembleFreeDebug",
	}
	for prov, name := range want {
		if prov.Name() != name {
			t.Errorf("expected task %s, got %s", name, prov.Name())
		}
	}
	if _, ok := out[artifact.ProcessedRes.Name]; !ok {
		t.Error("expected application to produce processed resources")
	}
	if _, ok := out[artifact.LibraryAssets.Name]; ok {
		t.Error("expected application not to produce library assets")
	}

	if _, _, err := RegisterLifecycle(p, spec); !errors.Is(err, graph.ErrTaskCollision) {
		t.Fatalf("expected collision on second registration, got %v", err)
	}
}

func TestLibraryLayout(t *testing.T) {
	t.Parallel()
	p := newTestProject(t, nil)
	spec := appSpec(p)
	spec.Kind = variant.KindLibrary

	_, out, err := RegisterLifecycle(p, spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{artifact.LibraryAssets.Name, artifact.CompileSymbolList.Name, artifact.AAR.Name} {
		if len(out[name]) != 1 {
			t.Errorf("expected library to produce %s", name)
		}
	}
	if _, ok := out[artifact.ProcessedRes.Name]; ok {
		t.Error("expected library not to produce processed resources")
	}
}

func TestAssembleOptimizedResources(t *testing.T) {
	t.Parallel()
	p := newTestProject(t, nil)
	lc, out, err := RegisterLifecycle(p, appSpec(p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := graph.NewExecutor(p.Tasks).Execute(context.Background(), lc.Assemble.Name())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := res.Err(); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	merged := out[artifact.MergedRes.Name][0]
	if _, err := os.Stat(filepath.Join(merged, "drawable_icon.png.flat")); err != nil {
		t.Errorf("expected flattened resource: %v", err)
	}

	r, err := zip.OpenReader(out[artifact.ProcessedRes.Name][0])
	if err != nil {
		t.Fatalf("open processed resources: %v", err)
	}
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"AndroidManifest.xml", "res/drawable/icon.png", "res/values/strings.xml"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %s in processed resources, got %v", want, names)
		}
	}

	rtxt, err := os.ReadFile(out[artifact.RuntimeSymbolList.Name][0])
	if err != nil {
		t.Fatalf("read symbol list: %v", err)
	}
	if !strings.Contains(string(rtxt), "int drawable icon") {
		t.Errorf("expected drawable symbol, got %q", rtxt)
	}

	apk, err := zip.OpenReader(out[artifact.APK.Name][0])
	if err != nil {
		t.Fatalf("open apk: %v", err)
	}
	defer apk.Close()
	found := false
	for _, f := range apk.File {
		if f.Name == "assets/data.json" {
			found = true
		}
	}
	if !found {
		t.Error("expected assets in apk")
	}
}

func TestMergeWithoutOptimizedResources(t *testing.T) {
	t.Parallel()
	p := newTestProject(t, map[string]string{PropertyAapt2: "false"})
	lc, out, err := RegisterLifecycle(p, appSpec(p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := graph.NewExecutor(p.Tasks).Execute(context.Background(), lc.MergeResources.Name())
	if err != nil || res.Err() != nil {
		t.Fatalf("merge failed: %v %v", err, res.Err())
	}
	if _, err := os.Stat(filepath.Join(out[artifact.MergedRes.Name][0], "drawable", "icon.png")); err != nil {
		t.Errorf("expected unflattened resource: %v", err)
	}
}

func TestResourceEntry(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path, entry, typ, name string
	}{
		{"/m/drawable_icon.png.flat", "res/drawable/icon.png", "drawable", "icon"},
		{"/m/drawable-hdpi_bg_top.9.png.flat", "res/drawable-hdpi/bg_top.9.png", "drawable", "bg_top"},
		{"/m/values/strings.xml", "res/values/strings.xml", "values", "strings"},
	}
	for _, tt := range tests {
		entry, typ, name, err := resourceEntry("/m", tt.path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry != tt.entry || typ != tt.typ || name != tt.name {
			t.Errorf("resourceEntry(%q) = %q %q %q, want %q %q %q", tt.path, entry, typ, name, tt.entry, tt.typ, tt.name)
		}
	}
}

type fakeLine struct{ name, min, max string }

func (l fakeLine) Name() string                 { return l.name }
func (l fakeLine) Supports(version string) bool { return InRange(version, l.min, l.max) }
func (l fakeLine) NewVariant(*Project, VariantSpec) (Variant, error) {
	return nil, errors.New("not implemented")
}

func TestVersionHelpers(t *testing.T) {
	t.Parallel()
	if got := Canonical("4.1.3"); got != "v4.1.3" {
		t.Errorf("expected v4.1.3, got %q", got)
	}
	if !InRange("4.2.1", "4.1.0", "4.3.0") {
		t.Error("expected 4.2.1 in [4.1.0, 4.3.0)")
	}
	if InRange("4.3.0", "4.1.0", "4.3.0") {
		t.Error("expected upper bound to be exclusive")
	}
	if InRange("not-a-version", "4.1.0", "4.3.0") {
		t.Error("expected invalid version to be out of range")
	}
	if !(fakeLine{min: "1.0.0", max: "2.0.0"}).Supports("1.5.0") {
		t.Error("expected fake line to support 1.5.0")
	}
}
