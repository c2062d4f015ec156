// Package compression holds the shared machinery of the compression
// post-processors: result aggregation, candidate search, ignore patterns,
// the per-variant compression task and its report.
package compression

import (
	"sort"
	"sync"
)

// Record is the outcome of compressing one file. When compression did not
// pay off, Output equals Input and After equals Before.
type Record struct {
	Input  string
	Output string
	Before int64
	After  int64
}

// Saved returns the number of bytes saved.
func (r Record) Saved() int64 { return r.Before - r.After }

// Results aggregates records of one compression task run. Record is safe for
// concurrent use.
type Results struct {
	mu        sync.Mutex
	records   []Record
	finalized bool
}

// NewResults creates an empty result set.
func NewResults() *Results {
	return &Results{}
}

// Record adds the outcome for one file. Recording into finalized results panics.
func (r *Results) Record(input, output string, before, after int64) {
	rec := Record{Input: input, Output: output, Before: before, After: after}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		panic("compression: record after finalize: " + input)
	}
	r.records = append(r.records, rec)
}

// Snapshot returns the records sorted by input path.
func (r *Results) Snapshot() []Record {
	r.mu.Lock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Input < out[j].Input })
	return out
}

// Finalize marks the run complete. Only a successful run finalizes.
func (r *Results) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true
}

// Finalized reports whether Finalize was called.
func (r *Results) Finalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}

// Len returns the number of records.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Totals sums sizes across all records.
func (r *Results) Totals() (before, after int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		before += rec.Before
		after += rec.After
	}
	return before, after
}
