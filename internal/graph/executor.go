package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"
)

// Outcome is the terminal state of one task in an execution.
type Outcome int

const (
	OutcomeExecuted Outcome = iota + 1
	OutcomeUpToDate
	OutcomeNoSource
	OutcomeFailed
	OutcomeCancelled
	OutcomeBlocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExecuted:
		return "executed"
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeNoSource:
		return "no-source"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Succeeded reports whether dependents may run after this outcome.
func (o Outcome) Succeeded() bool {
	return o == OutcomeExecuted || o == OutcomeUpToDate || o == OutcomeNoSource
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	Name     string
	Outcome  Outcome
	Duration time.Duration
	Err      error
}

// Result collects every task outcome of an execution, in completion order.
type Result struct {
	Tasks []TaskResult
}

// Outcome returns the outcome of the named task.
func (r *Result) Outcome(name string) (Outcome, bool) {
	for _, tr := range r.Tasks {
		if tr.Name == name {
			return tr.Outcome, true
		}
	}
	return 0, false
}

// Count returns how many tasks ended with outcome o.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, tr := range r.Tasks {
		if tr.Outcome == o {
			n++
		}
	}
	return n
}

// Err joins the errors of failed tasks.
func (r *Result) Err() error {
	var errs []error
	for _, tr := range r.Tasks {
		if tr.Outcome == OutcomeFailed && tr.Err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", tr.Name, tr.Err))
		}
	}
	return errors.Join(errs...)
}

// TaskObserver is notified when a task reaches its terminal state.
type TaskObserver interface {
	TaskFinished(name string, outcome Outcome, d time.Duration)
}

// Executor runs realized tasks in dependency order.
type Executor struct {
	container *Container
	workers   int
	state     *StateStore
	observer  TaskObserver
	logger    *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers bounds the number of tasks running at once.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithState enables up-to-date checks backed by s.
func WithState(s *StateStore) Option {
	return func(e *Executor) { e.state = s }
}

// WithObserver registers a task observer.
func WithObserver(o TaskObserver) Option {
	return func(e *Executor) { e.observer = o }
}

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor over c.
func NewExecutor(c *Container, opts ...Option) *Executor {
	e := &Executor{
		container: c,
		workers:   runtime.NumCPU(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type node struct {
	task  *Task
	deps  []string
	depth int
}

// Plan realizes the closure of targets and returns the task names in execution order.
func (e *Executor) Plan(targets ...string) ([]string, error) {
	nodes, err := e.closure(targets)
	if err != nil {
		return nil, err
	}
	return ordered(nodes, nil), nil
}

// Execute runs targets and everything they depend on. The returned error is
// non-nil only when the graph itself is invalid; task failures are reported
// through Result.Err.
func (e *Executor) Execute(ctx context.Context, targets ...string) (*Result, error) {
	nodes, err := e.closure(targets)
	if err != nil {
		return nil, err
	}

	type completion struct {
		res TaskResult
		fp  *Fingerprint
	}

	result := &Result{}
	outcomes := make(map[string]Outcome, len(nodes))
	running := make(map[string]bool)
	done := make(chan completion)

	finish := func(tr TaskResult) {
		outcomes[tr.Name] = tr.Outcome
		result.Tasks = append(result.Tasks, tr)
		if e.observer != nil {
			e.observer.TaskFinished(tr.Name, tr.Outcome, tr.Duration)
		}
		switch tr.Outcome {
		case OutcomeFailed:
			e.logger.Error("task failed", "task", tr.Name, "error", tr.Err)
		default:
			e.logger.Debug("task finished", "task", tr.Name, "outcome", tr.Outcome.String(), "duration", tr.Duration)
		}
	}

	for len(outcomes) < len(nodes) {
		// Settle tasks whose dependencies can no longer succeed.
		for _, name := range ordered(nodes, nil) {
			if _, ok := outcomes[name]; ok || running[name] {
				continue
			}
			if ctx.Err() != nil {
				finish(TaskResult{Name: name, Outcome: OutcomeCancelled, Err: ctx.Err()})
				continue
			}
			for _, dep := range nodes[name].deps {
				if o, ok := outcomes[dep]; ok && !o.Succeeded() {
					finish(TaskResult{Name: name, Outcome: OutcomeBlocked, Err: fmt.Errorf("dependency %s %s", dep, o)})
					break
				}
			}
		}

		for _, name := range ordered(nodes, func(name string) bool {
			if _, ok := outcomes[name]; ok || running[name] {
				return false
			}
			for _, dep := range nodes[name].deps {
				if o, ok := outcomes[dep]; !ok || !o.Succeeded() {
					return false
				}
			}
			return true
		}) {
			if len(running) >= e.workers {
				break
			}
			running[name] = true
			t := nodes[name].task
			go func() {
				tr, fp := e.run(ctx, t)
				done <- completion{res: tr, fp: fp}
			}()
		}

		if len(running) == 0 {
			break
		}
		c := <-done
		delete(running, c.res.Name)
		if c.fp != nil && e.state != nil {
			e.state.Put(c.res.Name, *c.fp)
		}
		if c.res.Outcome == OutcomeFailed && e.state != nil {
			e.state.Forget(c.res.Name)
		}
		finish(c.res)
	}

	if e.state != nil {
		if err := e.state.Save(); err != nil {
			e.logger.Warn("failed to save task state", "error", err)
		}
	}
	return result, nil
}

func (e *Executor) run(ctx context.Context, t *Task) (TaskResult, *Fingerprint) {
	start := time.Now()
	tr := TaskResult{Name: t.name}
	if err := ctx.Err(); err != nil {
		tr.Outcome, tr.Err = OutcomeCancelled, err
		return tr, nil
	}

	var inputs []string
	if t.HasInputs() {
		var err error
		inputs, err = t.ResolveInputs()
		if err != nil {
			tr.Outcome, tr.Err, tr.Duration = OutcomeFailed, fmt.Errorf("failed to resolve inputs: %w", err), time.Since(start)
			return tr, nil
		}
		if len(inputs) == 0 {
			tr.Outcome, tr.Duration = OutcomeNoSource, time.Since(start)
			return tr, nil
		}
		if e.state != nil {
			if prev, ok := e.state.Get(t.name); ok {
				if fp, err := fingerprint(t, inputs); err == nil && fp == prev {
					tr.Outcome, tr.Duration = OutcomeUpToDate, time.Since(start)
					return tr, nil
				}
			}
		}
	}

	for _, action := range t.actions {
		if err := action(ctx, t); err != nil {
			tr.Duration, tr.Err = time.Since(start), err
			tr.Outcome = OutcomeFailed
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				tr.Outcome = OutcomeCancelled
			}
			return tr, nil
		}
	}
	tr.Outcome, tr.Duration = OutcomeExecuted, time.Since(start)

	if !t.HasInputs() || e.state == nil {
		return tr, nil
	}
	// Actions may consume their inputs, so the next build compares against
	// the input set as it stands now.
	inputs, err := t.ResolveInputs()
	if err != nil {
		e.logger.Warn("failed to resolve inputs after run", "task", t.name, "error", err)
		return tr, nil
	}
	fp, err := fingerprint(t, inputs)
	if err != nil {
		e.logger.Warn("failed to fingerprint task", "task", t.name, "error", err)
		return tr, nil
	}
	return tr, &fp
}

// closure realizes every task reachable from targets and validates the result.
func (e *Executor) closure(targets []string) (map[string]*node, error) {
	if len(targets) == 0 {
		return nil, invalidf("no target tasks")
	}
	nodes := make(map[string]*node)
	queue := make([]*Provider, 0, len(targets))
	for _, name := range targets {
		p, ok := e.container.Named(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
		}
		queue = append(queue, p)
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, seen := nodes[p.name]; seen {
			continue
		}
		if registered, ok := e.container.Named(p.name); !ok || registered != p {
			return nil, invalidf("task %q depends on a provider from another container", p.name)
		}
		t := p.Get()
		n := &node{task: t}
		for _, dep := range t.Dependencies() {
			n.deps = append(n.deps, dep.name)
			queue = append(queue, dep)
		}
		nodes[p.name] = n
	}

	if err := validateAcyclic(nodes); err != nil {
		return nil, err
	}
	computeDepths(nodes)
	return nodes, nil
}

func validateAcyclic(nodes map[string]*node) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var stack []string

	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var visit func(string) error
	visit = func(name string) error {
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range nodes[name].deps {
			switch color[dep] {
			case gray:
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				path := append(append([]string(nil), stack[start:]...), dep)
				return cycleError(path)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for _, name := range names {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// computeDepths assigns each node the length of its longest dependency chain.
func computeDepths(nodes map[string]*node) {
	memo := make(map[string]int, len(nodes))
	var depth func(string) int
	depth = func(name string) int {
		if d, ok := memo[name]; ok {
			return d
		}
		d := 0
		for _, dep := range nodes[name].deps {
			if dd := depth(dep) + 1; dd > d {
				d = dd
			}
		}
		memo[name] = d
		return d
	}
	for name, n := range nodes {
		n.depth = depth(name)
	}
}

// ordered returns node names sorted by (depth, name), optionally filtered.
func ordered(nodes map[string]*node, keep func(string) bool) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		if keep == nil || keep(name) {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		di, dj := nodes[names[i]].depth, nodes[names[j]].depth
		if di != dj {
			return di < dj
		}
		return names[i] < names[j]
	})
	return names
}
