package host

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/dosanma1/forge-booster/internal/artifact"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/variant"
	"github.com/dosanma1/forge-booster/pkg/xos"
)

// Lifecycle holds the host's standard tasks of one variant.
type Lifecycle struct {
	PreBuild         *graph.Provider
	Compile          *graph.Provider
	MergeResources   *graph.Provider
	MergeAssets      *graph.Provider
	ProcessResources *graph.Provider
	Assemble         *graph.Provider
}

// Outputs maps artifact type names to the locations the host produces for them.
type Outputs map[string][]string

// RegisterLifecycle registers the standard tasks of spec and returns them
// together with the artifact locations they produce.
func RegisterLifecycle(p *Project, spec VariantSpec) (Lifecycle, Outputs, error) {
	if err := spec.Validate(); err != nil {
		return Lifecycle{}, nil, err
	}
	name := spec.Name()
	optimized := p.BoolProperty(PropertyAapt2, true)
	out := layout(p, spec)

	var lc Lifecycle
	var err error
	register := func(prefix, suffix string, configure func(*graph.Task)) *graph.Provider {
		if err != nil {
			return nil
		}
		var prov *graph.Provider
		prov, err = p.Tasks.Register(TaskName(name, prefix, suffix), configure)
		return prov
	}

	lc.PreBuild = register("pre", "Build", func(t *graph.Task) {
		t.SetDescription("Prepares the build directories of " + name)
		t.DoLast(func(context.Context, *graph.Task) error {
			return os.MkdirAll(filepath.Join(p.BuildDir, "intermediates"), 0o755)
		})
	})

	lc.Compile = register("compile", "JavaWithJavac", func(t *graph.Task) {
		t.SetDescription("Compiles the sources of " + name)
		t.DependsOn(lc.PreBuild)
		classes := out.first(artifact.Javac.Name)
		t.Outputs(classes)
		t.DoLast(func(context.Context, *graph.Task) error {
			body := fmt.Sprintf("APPLICATION_ID=%s\nBUILD_TYPE=%s\nMIN_SDK=%d\n", spec.ApplicationID, spec.BuildType, spec.MinSdk)
			return xos.WriteFile(filepath.Join(classes, "BuildConfig.txt"), []byte(body), 0o644)
		})
	})

	mergedRes := out.first(artifact.MergedRes.Name)
	lc.MergeResources = register("merge", "Resources", func(t *graph.Task) {
		t.SetDescription("Merges the resources of " + name)
		t.DependsOn(lc.PreBuild)
		t.Inputs(func() ([]string, error) { return walkFiles(spec.ResDirs...) })
		t.Outputs(mergedRes)
		t.DoLast(func(context.Context, *graph.Task) error {
			return mergeResources(spec.ResDirs, mergedRes, optimized)
		})
	})

	assets := out.first(artifact.MergedAssets.Name)
	if spec.Kind == variant.KindLibrary {
		assets = out.first(artifact.LibraryAssets.Name)
	}
	lc.MergeAssets = register("merge", "Assets", func(t *graph.Task) {
		t.SetDescription("Merges the assets of " + name)
		t.DependsOn(lc.PreBuild)
		t.Outputs(assets)
		t.DoLast(func(context.Context, *graph.Task) error {
			if err := os.RemoveAll(assets); err != nil {
				return err
			}
			if err := os.MkdirAll(assets, 0o755); err != nil {
				return err
			}
			for _, dir := range spec.AssetDirs {
				if err := copyTree(dir, assets); err != nil {
					return fmt.Errorf("failed to merge assets from %s: %w", dir, err)
				}
			}
			return nil
		})
	})

	lc.ProcessResources = register("process", "Resources", func(t *graph.Task) {
		t.SetDescription("Links the merged resources of " + name)
		t.DependsOn(lc.MergeResources)
		for _, outputs := range [][]string{
			out[artifact.ProcessedRes.Name],
			out[artifact.RuntimeSymbolList.Name],
			out[artifact.CompileSymbolList.Name],
			out[artifact.MergedManifest.Name],
		} {
			t.Outputs(outputs...)
		}
		t.DoLast(func(context.Context, *graph.Task) error {
			return processResources(spec, mergedRes, out)
		})
	})

	lc.Assemble = register("assemble", "", func(t *graph.Task) {
		t.SetDescription("Assembles the outputs of " + name)
		t.DependsOn(lc.Compile, lc.MergeAssets, lc.ProcessResources)
		for _, pkg := range append(out[artifact.APK.Name], out[artifact.AAR.Name]...) {
			t.Outputs(pkg)
			t.DoLast(func(context.Context, *graph.Task) error {
				return assemble(pkg, out, assets)
			})
		}
	})

	if err != nil {
		return Lifecycle{}, nil, fmt.Errorf("variant %s: %w", name, err)
	}
	return lc, out, nil
}

func (o Outputs) first(name string) string {
	if files := o[name]; len(files) > 0 {
		return files[0]
	}
	return ""
}

// layout computes where the host puts each artifact of spec.
func layout(p *Project, spec VariantSpec) Outputs {
	name := spec.Name()
	classes := filepath.Join(p.Intermediates("javac", name), "classes")
	out := Outputs{
		artifact.MergedRes.Name:                 {p.Intermediates("merged_res", name)},
		artifact.Javac.Name:                     {classes},
		artifact.AllClasses.Name:                {classes},
		artifact.MergedManifest.Name:            {filepath.Join(p.Intermediates("merged_manifests", name), "AndroidManifest.xml")},
		artifact.SymbolListWithPackageName.Name: {filepath.Join(p.Intermediates("symbol_list_with_package_name", name), "package-aware-r.txt")},
	}

	switch spec.Kind {
	case variant.KindLibrary:
		out[artifact.LibraryAssets.Name] = []string{filepath.Join(p.Intermediates("library_assets", name), "out")}
		out[artifact.CompileSymbolList.Name] = []string{filepath.Join(p.Intermediates("compile_symbol_list", name), "R.txt")}
		out[artifact.AAR.Name] = []string{filepath.Join(p.BuildDir, "outputs", "aar", fmt.Sprintf("%s-%s.aar", p.Name, name))}
	default:
		out[artifact.MergedAssets.Name] = []string{filepath.Join(p.Intermediates("merged_assets", name), "out")}
		out[artifact.RuntimeSymbolList.Name] = []string{filepath.Join(p.Intermediates("runtime_symbol_list", name), "R.txt")}
		out[artifact.ProcessedRes.Name] = []string{filepath.Join(p.Intermediates("processed_res", name), "resources-"+name+".ap_")}
		out[artifact.APK.Name] = []string{filepath.Join(p.BuildDir, "outputs", "apk", name, fmt.Sprintf("%s-%s.apk", p.Name, name))}
	}
	return out
}

func walkFiles(roots ...string) ([]string, error) {
	var files []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// mergeResources copies every resource into dst. In optimized mode each file
// is flattened to <type>_<name>.flat at the top of dst.
func mergeResources(srcDirs []string, dst string, optimized bool) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, dir := range srcDirs {
		files, err := walkFiles(dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			rel, err := filepath.Rel(dir, f)
			if err != nil {
				return err
			}
			target := filepath.Join(dst, rel)
			if optimized {
				target = filepath.Join(dst, strings.ReplaceAll(filepath.ToSlash(rel), "/", "_")+".flat")
			}
			if err := xos.CopyFile(f, target, 0o644); err != nil {
				return fmt.Errorf("failed to merge %s: %w", rel, err)
			}
		}
	}
	return nil
}

// resourceEntry maps a merged file back to its res/<type>/<name> entry.
func resourceEntry(mergedRes, path string) (entry, resType, resName string, err error) {
	rel, err := filepath.Rel(mergedRes, path)
	if err != nil {
		return "", "", "", err
	}
	rel = filepath.ToSlash(rel)
	if flat, ok := strings.CutSuffix(rel, ".flat"); ok {
		if typ, file, found := strings.Cut(flat, "_"); found {
			rel = typ + "/" + file
		}
	}
	resType, file, _ := strings.Cut(rel, "/")
	if i := strings.IndexByte(resType, '-'); i > 0 {
		resType = resType[:i]
	}
	resName = file
	if i := strings.IndexByte(file, '.'); i > 0 {
		resName = file[:i]
	}
	return "res/" + rel, resType, resName, nil
}

func processResources(spec VariantSpec, mergedRes string, out Outputs) error {
	files, err := walkFiles(mergedRes)
	if err != nil {
		return err
	}

	manifest := fmt.Sprintf("<manifest package=%q>\n  <uses-sdk android:minSdkVersion=\"%d\" android:targetSdkVersion=\"%d\"/>\n</manifest>\n",
		spec.ApplicationID, spec.MinSdk, spec.TargetSdk)
	if err := xos.WriteFile(out.first(artifact.MergedManifest.Name), []byte(manifest), 0o644); err != nil {
		return err
	}

	symbols := map[string]struct{}{}
	entries := map[string]string{}
	for _, f := range files {
		entry, typ, name, err := resourceEntry(mergedRes, f)
		if err != nil {
			return err
		}
		entries[entry] = f
		symbols["int "+typ+" "+name] = struct{}{}
	}
	lines := make([]string, 0, len(symbols))
	for s := range symbols {
		lines = append(lines, s)
	}
	sort.Strings(lines)
	var rtxt strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&rtxt, "%s 0x7f%06x\n", l, i+1)
	}

	symbolList := out.first(artifact.RuntimeSymbolList.Name)
	if symbolList == "" {
		symbolList = out.first(artifact.CompileSymbolList.Name)
	}
	if err := xos.WriteFile(symbolList, []byte(rtxt.String()), 0o644); err != nil {
		return err
	}
	aware := spec.ApplicationID + "\n" + rtxt.String()
	if err := xos.WriteFile(out.first(artifact.SymbolListWithPackageName.Name), []byte(aware), 0o644); err != nil {
		return err
	}

	ap := out.first(artifact.ProcessedRes.Name)
	if ap == "" {
		return nil
	}
	entries["AndroidManifest.xml"] = out.first(artifact.MergedManifest.Name)
	return writeArchive(ap, entries)
}

func assemble(pkg string, out Outputs, assets string) error {
	entries := map[string]string{}
	if ap := out.first(artifact.ProcessedRes.Name); ap != "" {
		r, err := zip.OpenReader(ap)
		if err != nil {
			return fmt.Errorf("failed to open processed resources: %w", err)
		}
		defer r.Close()
		return writeArchiveFrom(pkg, r.File, assets)
	}

	mergedRes := out.first(artifact.MergedRes.Name)
	files, err := walkFiles(mergedRes)
	if err != nil {
		return err
	}
	for _, f := range files {
		entry, _, _, err := resourceEntry(mergedRes, f)
		if err != nil {
			return err
		}
		entries[entry] = f
	}
	entries["AndroidManifest.xml"] = out.first(artifact.MergedManifest.Name)
	entries["R.txt"] = out.first(artifact.CompileSymbolList.Name)
	if err := addTree(entries, assets, "assets"); err != nil {
		return err
	}
	return writeArchive(pkg, entries)
}

func addTree(entries map[string]string, dir, prefix string) error {
	files, err := walkFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		rel, err := filepath.Rel(dir, f)
		if err != nil {
			return err
		}
		entries[prefix+"/"+filepath.ToSlash(rel)] = f
	}
	return nil
}

// writeArchive packs entries (archive name -> source file) into dst atomically.
func writeArchive(dst string, entries map[string]string) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	pending, err := xos.NewPendingFile(dst)
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	zw := zip.NewWriter(pending)
	for _, name := range names {
		if err := addFile(zw, name, entries[name]); err != nil {
			return fmt.Errorf("failed to pack %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return pending.CloseAtomically()
}

// writeArchiveFrom copies existing archive entries into dst and appends assets.
func writeArchiveFrom(dst string, files []*zip.File, assets string) error {
	pending, err := xos.NewPendingFile(dst)
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	zw := zip.NewWriter(pending)
	for _, f := range files {
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}
	extra := map[string]string{}
	if err := addTree(extra, assets, "assets"); err != nil {
		return err
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := addFile(zw, name, extra[name]); err != nil {
			return fmt.Errorf("failed to pack %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return pending.CloseAtomically()
}

func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func copyTree(src, dst string) error {
	files, err := walkFiles(src)
	if err != nil {
		return err
	}
	for _, f := range files {
		rel, err := filepath.Rel(src, f)
		if err != nil {
			return err
		}
		if err := xos.CopyFile(f, filepath.Join(dst, rel), 0o644); err != nil {
			return err
		}
	}
	return nil
}
