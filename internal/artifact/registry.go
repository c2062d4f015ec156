package artifact

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrCollision is returned when two categories define the same artifact name.
var ErrCollision = errors.New("artifact name collision")

// CollisionError names the ambiguous artifact and both categories defining it.
type CollisionError struct {
	Name   string
	First  string
	Second string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %q defined by both %q and %q", ErrCollision, e.Name, e.First, e.Second)
}

func (e *CollisionError) Unwrap() error { return ErrCollision }

// Registry maps artifact names to their descriptors.
//
// A Registry is immutable after Build and safe for concurrent reads.
type Registry struct {
	types map[string]Type
	names []string // sorted
}

// Build collects every member of the given categories into a registry.
func Build(categories ...Category) (*Registry, error) {
	types := make(map[string]Type)
	for _, c := range categories {
		for _, t := range c.Members {
			if t.Name == "" {
				return nil, fmt.Errorf("category %q: artifact name is required", c.Name)
			}
			if existing, ok := types[t.Name]; ok {
				return nil, &CollisionError{Name: t.Name, First: existing.Category, Second: c.Name}
			}
			if t.Category == "" {
				t.Category = c.Name
			}
			types[t.Name] = t
		}
	}

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{types: types, names: names}, nil
}

// Resolve looks up an artifact type by name.
func (r *Registry) Resolve(name string) (Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns all registered types sorted by name.
func (r *Registry) All() []Type {
	out := make([]Type, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.types[name])
	}
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.names)
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry built from Categories.
// It panics if the built-in categories collide.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Build(Categories()...)
		if err != nil {
			panic(fmt.Sprintf("artifact: building registry: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Resolve looks up an artifact type in the default registry.
func Resolve(name string) (Type, bool) {
	return Default().Resolve(name)
}
