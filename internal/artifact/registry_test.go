package artifact

import (
	"errors"
	"sort"
	"testing"
)

func TestDefaultResolvesEveryCategoryMember(t *testing.T) {
	t.Parallel()
	r := Default()
	for _, c := range Categories() {
		for _, member := range c.Members {
			got, ok := r.Resolve(member.Name)
			if !ok {
				t.Fatalf("expected %q to resolve", member.Name)
			}
			if got.Category != c.Name {
				t.Errorf("%s: expected category %q, got %q", member.Name, c.Name, got.Category)
			}
			if got.Cardinality != member.Cardinality {
				t.Errorf("%s: expected cardinality %s, got %s", member.Name, member.Cardinality, got.Cardinality)
			}
		}
	}
}

func TestResolveUnknownName(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "merged_res", "NOT_A_TYPE", "MERGED_RES "} {
		if _, ok := Resolve(name); ok {
			t.Errorf("expected %q to be unknown", name)
		}
	}
}

func TestNamesAreSortedAndStable(t *testing.T) {
	t.Parallel()
	first, err := Build(Categories()...)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	second, err := Build(Categories()...)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	a, b := first.Names(), second.Names()
	if !sort.StringsAreSorted(a) {
		t.Fatalf("names not sorted: %v", a)
	}
	if len(a) != len(b) {
		t.Fatalf("expected equal length, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order differs at %d: %q vs %q", i, a[i], b[i])
		}
	}

	all := first.All()
	for i, typ := range all {
		if typ.Name != a[i] {
			t.Fatalf("All()[%d] = %q, want %q", i, typ.Name, a[i])
		}
	}
}

func TestBuildRejectsCollisionAcrossCategories(t *testing.T) {
	t.Parallel()
	_, err := Build(
		Category{Name: "public", Members: []Type{{Name: "APK", Cardinality: Single}}},
		Category{Name: "internal", Members: []Type{{Name: "APK", Cardinality: Single}}},
	)
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}
	var collision *CollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("expected *CollisionError, got %T", err)
	}
	if collision.Name != "APK" || collision.First != "public" || collision.Second != "internal" {
		t.Errorf("unexpected collision detail: %+v", collision)
	}
}

func TestNamesReturnsCopy(t *testing.T) {
	t.Parallel()
	names := Default().Names()
	names[0] = "mutated"
	if Default().Names()[0] == "mutated" {
		t.Fatal("Names must not expose internal state")
	}
}
