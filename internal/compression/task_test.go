package compression_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/dosanma1/forge-booster/internal/adapter"
	_ "github.com/dosanma1/forge-booster/internal/adapter/v41"
	"github.com/dosanma1/forge-booster/internal/compression"
	"github.com/dosanma1/forge-booster/internal/graph"
	"github.com/dosanma1/forge-booster/internal/host"
	_ "github.com/dosanma1/forge-booster/internal/host/v41"
	"github.com/dosanma1/forge-booster/internal/variant"
)

type halving struct{}

func (halving) Name() string { return "Half" }

func (halving) Compress(_ context.Context, input string) (compression.Record, error) {
	info, err := os.Stat(input)
	if err != nil {
		return compression.Record{}, err
	}
	return compression.Record{Input: input, Output: input, Before: info.Size(), After: info.Size() / 2}, nil
}

func setup(t *testing.T) (*adapter.Adapter, *host.Project, host.Variant) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "c.9.png"} {
		p := filepath.Join(dir, "res", "drawable", name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, make([]byte, 64), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p := host.NewProject("app", dir, "4.1.3", nil, nil)
	line, err := host.ForVersion(p.HostVersion)
	if err != nil {
		t.Fatal(err)
	}
	v, err := line.NewVariant(p, host.VariantSpec{
		BuildType: "debug",
		Kind:      variant.KindApplication,
		MinSdk:    21,
		ResDirs:   []string{filepath.Join(dir, "res")},
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

func TestCreateCompressionTask(t *testing.T) {
	t.Parallel()
	a, p, v := setup(t)
	creator := compression.NewTaskCreator(a, halving{}, "test")
	results := compression.NewResults()
	ignores, _ := compression.ParseIgnores("b.*")
	candidates := compression.Search(a.MergedRes(v), compression.CandidatePredicate(a.OptimizedResources(v)))

	prov, err := creator.CreateCompressionTask(v, results, "resources", candidates, ignores, a.TaskHandle(v, variant.RoleMergeResources))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prov.Name() != "compressDebugResourcesWithHalf" {
		t.Fatalf("unexpected task name %s", prov.Name())
	}
	prov.Configure(func(t *graph.Task) {
		t.DoLast(func(context.Context, *graph.Task) error {
			results.Finalize()
			return nil
		})
	})

	exec := graph.NewExecutor(p.Tasks)
	plan, err := exec.Plan(a.TaskHandle(v, variant.RoleAssemble).Name())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	merge := slices.Index(plan, "mergeDebugResources")
	compress := slices.Index(plan, prov.Name())
	process := slices.Index(plan, "processDebugResources")
	if merge < 0 || compress < 0 || process < 0 || !(merge < compress && compress < process) {
		t.Fatalf("expected merge < compress < process, got %v", plan)
	}

	res, err := exec.Execute(context.Background(), "assembleDebug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := res.Err(); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if !results.Finalized() {
		t.Fatal("expected results to be finalized by the completion action")
	}
	snap := results.Snapshot()
	if len(snap) != 1 || !strings.HasSuffix(snap[0].Input, "drawable_a.png.flat") || snap[0].After != 32 {
		t.Fatalf("unexpected records %+v", snap)
	}

	if _, err := creator.CreateCompressionTask(v, results, "resources", candidates, ignores, a.TaskHandle(v, variant.RoleMergeResources)); !errors.Is(err, graph.ErrTaskCollision) {
		t.Fatalf("expected collision on second creation, got %v", err)
	}
}

func TestCompressionTaskWithoutCandidatesIsNoSource(t *testing.T) {
	t.Parallel()
	a, p, v := setup(t)
	creator := compression.NewTaskCreator(a, halving{}, "test")
	ignores, _ := compression.ParseIgnores("*.png.flat")
	candidates := compression.Search(a.MergedRes(v), compression.IsFlatPngExceptRaw)

	prov, err := creator.CreateCompressionTask(v, compression.NewResults(), "resources", candidates, ignores, a.TaskHandle(v, variant.RoleMergeResources))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := graph.NewExecutor(p.Tasks).Execute(context.Background(), "assembleDebug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o, _ := res.Outcome(prov.Name()); o != graph.OutcomeNoSource {
		t.Fatalf("expected no-source, got %s", o)
	}
	if o, _ := res.Outcome("assembleDebug"); o != graph.OutcomeExecuted {
		t.Fatalf("expected assemble to run after a no-source compression, got %s", o)
	}
}
