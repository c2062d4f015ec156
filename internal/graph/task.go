// Package graph provides the host's lazily configured task graph and its executor.
//
// Configuration (Register, Configure, DependsOn) is single-threaded, as in the
// host's configuration phase. Execution runs realized tasks on a worker pool.
package graph

import (
	"context"
	"sort"
	"sync"
)

// Action is one unit of work attached to a task.
type Action func(ctx context.Context, t *Task) error

// InputsFunc lazily resolves a task's declared input files.
type InputsFunc func() ([]string, error)

// Task is a realized node of the graph.
type Task struct {
	name        string
	description string
	dependsOn   []*Provider
	actions     []Action
	inputs      InputsFunc
	outputs     []string
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Description returns the human-readable description.
func (t *Task) Description() string { return t.description }

// SetDescription sets the human-readable description.
func (t *Task) SetDescription(d string) { t.description = d }

// DependsOn adds explicit dependency edges from t to each provider.
func (t *Task) DependsOn(providers ...*Provider) {
	for _, p := range providers {
		if p == nil {
			continue
		}
		dup := false
		for _, existing := range t.dependsOn {
			if existing == p {
				dup = true
				break
			}
		}
		if !dup {
			t.dependsOn = append(t.dependsOn, p)
		}
	}
}

// Dependencies returns the providers t depends on, sorted by name.
func (t *Task) Dependencies() []*Provider {
	out := make([]*Provider, len(t.dependsOn))
	copy(out, t.dependsOn)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// DoFirst prepends an action.
func (t *Task) DoFirst(a Action) {
	t.actions = append([]Action{a}, t.actions...)
}

// DoLast appends an action. It only runs if every earlier action succeeded.
func (t *Task) DoLast(a Action) {
	t.actions = append(t.actions, a)
}

// Inputs declares the task's input files. A task with declared inputs takes
// part in up-to-date checking; an empty input set skips its actions.
func (t *Task) Inputs(fn InputsFunc) {
	t.inputs = fn
}

// HasInputs reports whether inputs were declared.
func (t *Task) HasInputs() bool { return t.inputs != nil }

// ResolveInputs evaluates the declared inputs.
func (t *Task) ResolveInputs() ([]string, error) {
	if t.inputs == nil {
		return nil, nil
	}
	return t.inputs()
}

// Outputs declares output locations.
func (t *Task) Outputs(paths ...string) {
	t.outputs = append(t.outputs, paths...)
}

// DeclaredOutputs returns the declared output locations.
func (t *Task) DeclaredOutputs() []string {
	out := make([]string, len(t.outputs))
	copy(out, t.outputs)
	return out
}

// Provider is a deferred handle to a task. It is cheap to pass around and
// realizes the task only when Get is called.
type Provider struct {
	name      string
	mu        sync.Mutex
	task      *Task
	configure []func(*Task)
}

// Name returns the name of the task this provider resolves to.
func (p *Provider) Name() string { return p.name }

// Configure registers fn to run against the task when it is realized,
// or immediately if it already is.
func (p *Provider) Configure(fn func(*Task)) {
	p.mu.Lock()
	if p.task == nil {
		p.configure = append(p.configure, fn)
		p.mu.Unlock()
		return
	}
	t := p.task
	p.mu.Unlock()
	fn(t)
}

// Get realizes the task, applying pending configuration in registration order.
func (p *Provider) Get() *Task {
	p.mu.Lock()
	if p.task != nil {
		t := p.task
		p.mu.Unlock()
		return t
	}
	t := &Task{name: p.name}
	p.task = t
	pending := p.configure
	p.configure = nil
	p.mu.Unlock()

	for _, fn := range pending {
		fn(t)
	}
	return t
}

// Realized reports whether Get has been called.
func (p *Provider) Realized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.task != nil
}

// Container holds every registered task of a project.
type Container struct {
	mu        sync.Mutex
	providers map[string]*Provider
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{providers: make(map[string]*Provider)}
}

// Register adds a lazily created task. Registering a name twice fails.
func (c *Container) Register(name string, configure ...func(*Task)) (*Provider, error) {
	if name == "" {
		return nil, invalidf("task name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.providers[name]; exists {
		return nil, &CollisionError{Name: name}
	}
	p := &Provider{name: name, configure: append([]func(*Task){}, configure...)}
	c.providers[name] = p
	return p, nil
}

// Named returns the provider registered under name.
func (c *Container) Named(name string) (*Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.providers[name]
	return p, ok
}

// Names returns all registered task names, sorted.
func (c *Container) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.providers))
	for name := range c.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
