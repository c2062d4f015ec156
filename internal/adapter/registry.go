package adapter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnsupportedHost = errors.New("unsupported host version")
	ErrAlreadyActive   = errors.New("adapter already activated for another host version")
)

// Factory creates the Host for one release line.
type Factory struct {
	Name     string
	Supports func(version string) bool
	New      func(version string) (Host, error)
}

var (
	mu        sync.Mutex
	factories = map[string]Factory{}

	active *Adapter
)

// Register adds a factory. Adapter packages register from init.
func Register(f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[f.Name]; dup {
		panic(fmt.Sprintf("adapter: factory %s registered twice", f.Name))
	}
	factories[f.Name] = f
}

// Factories returns the registered line names, sorted.
func Factories() []string {
	mu.Lock()
	defer mu.Unlock()
	return factoryNames()
}

func factoryNames() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the single factory supporting version.
func Select(version string) (Factory, error) {
	mu.Lock()
	defer mu.Unlock()
	var matches []Factory
	for _, name := range factoryNames() {
		if f := factories[name]; f.Supports(version) {
			matches = append(matches, f)
		}
	}
	switch len(matches) {
	case 0:
		return Factory{}, fmt.Errorf("%w: %s (supported lines: %s)", ErrUnsupportedHost, version, strings.Join(factoryNames(), ", "))
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return Factory{}, fmt.Errorf("host version %s matches several adapters: %s", version, strings.Join(names, ", "))
	}
}

// New selects and constructs the adapter for version.
func New(version string) (*Adapter, error) {
	f, err := Select(version)
	if err != nil {
		return nil, err
	}
	h, err := f.New(version)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: %w", f.Name, err)
	}
	return &Adapter{Host: h}, nil
}

// Activate fixes the process-wide adapter. Activating again with the same
// version returns the existing adapter.
func Activate(version string) (*Adapter, error) {
	mu.Lock()
	if active != nil {
		a := active
		mu.Unlock()
		if a.HostVersion() != version {
			return nil, fmt.Errorf("%w: active %s, requested %s", ErrAlreadyActive, a.HostVersion(), version)
		}
		return a, nil
	}
	mu.Unlock()

	a, err := New(version)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	if active != nil {
		if active.HostVersion() != version {
			return nil, fmt.Errorf("%w: active %s, requested %s", ErrAlreadyActive, active.HostVersion(), version)
		}
		return active, nil
	}
	active = a
	return a, nil
}

// Current returns the activated adapter.
func Current() (*Adapter, bool) {
	mu.Lock()
	defer mu.Unlock()
	return active, active != nil
}
