package compression

import (
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
)

// Predicate selects candidate files by path.
type Predicate func(path string) bool

// IsPngExceptRaw matches unflattened PNGs outside raw resource directories.
// Nine-patch images are excluded.
func IsPngExceptRaw(p string) bool {
	name := filepath.Base(p)
	if !strings.HasSuffix(name, ".png") || strings.HasSuffix(name, ".9.png") {
		return false
	}
	parent := filepath.Base(filepath.Dir(p))
	return parent != "raw" && !strings.HasPrefix(parent, "raw-")
}

// IsFlatPngExceptRaw matches flattened PNGs (<type>_<name>.png.flat) whose
// resource type is not raw. Nine-patch images are excluded.
func IsFlatPngExceptRaw(p string) bool {
	name := filepath.Base(p)
	if !strings.HasSuffix(name, ".png.flat") || strings.HasSuffix(name, ".9.png.flat") {
		return false
	}
	return !strings.HasPrefix(name, "raw_") && !strings.HasPrefix(name, "raw-")
}

// CandidatePredicate picks the predicate for the host's resource layout.
func CandidatePredicate(optimized bool) Predicate {
	if optimized {
		return IsFlatPngExceptRaw
	}
	return IsPngExceptRaw
}

// Search lazily yields the regular files under roots accepted by pred, in
// lexical order per root. Each iteration walks the tree again, so the
// sequence is restartable and reflects the tree at the time it is ranged over.
// Missing or unreadable entries are skipped.
func Search(roots []string, pred Predicate) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, root := range roots {
			stopped := false
			_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					if d != nil && d.IsDir() {
						return fs.SkipDir
					}
					return nil
				}
				if d.IsDir() || !pred(p) {
					return nil
				}
				if !yield(p) {
					stopped = true
					return fs.SkipAll
				}
				return nil
			})
			if stopped {
				return
			}
		}
	}
}

// Filter drops files matched by ignores.
func Filter(files iter.Seq[string], ignores IgnoreSet) iter.Seq[string] {
	return func(yield func(string) bool) {
		for f := range files {
			if ignores.Matches(f) {
				continue
			}
			if !yield(f) {
				return
			}
		}
	}
}
