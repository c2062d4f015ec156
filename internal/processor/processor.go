// Package processor is the plugin boundary of the post-processors. A
// processor registers itself by name at init time and is asked to configure
// each variant once, before any task executes.
package processor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/dosanma1/forge-booster/internal/adapter"
	"github.com/dosanma1/forge-booster/internal/compression"
	"github.com/dosanma1/forge-booster/internal/host"
)

// ErrUnknownProcessor is returned by New for unregistered names.
var ErrUnknownProcessor = errors.New("unknown processor")

// VariantProcessor adds tasks to a variant's graph.
type VariantProcessor interface {
	Name() string
	Process(v host.Variant) error
}

// Env is what a processor is built from.
type Env struct {
	Adapter  *adapter.Adapter
	Reporter compression.Reporter
	Metrics  compression.Metrics
	Logger   *slog.Logger
	// Progress receives per-file progress bars; nil disables them.
	Progress io.Writer
	// Workers bounds per-file concurrency; zero means runtime.NumCPU().
	Workers int
}

// CreatorOptions returns the compression.Creator options matching env.
func (env Env) CreatorOptions() []compression.CreatorOption {
	opts := []compression.CreatorOption{compression.WithWorkers(env.Workers)}
	if env.Progress != nil {
		opts = append(opts, compression.WithProgress(env.Progress))
	}
	if env.Metrics != nil {
		opts = append(opts, compression.WithMetrics(env.Metrics))
	}
	return opts
}

// Factory builds a processor.
type Factory func(env Env) VariantProcessor

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a processor available by name. It panics on duplicates.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("processor %q already registered", name))
	}
	factories[name] = f
}

// Names returns the registered processor names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the processor registered under name.
func New(name string, env Env) (VariantProcessor, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownProcessor, name, Names())
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	return f(env), nil
}

// ProcessAll runs the named processors, or all of them when names is empty,
// over every variant. Processors run in the given order, name order by
// default, and variants in the given order; the first error aborts
// configuration.
func ProcessAll(env Env, variants []host.Variant, names ...string) error {
	if len(names) == 0 {
		names = Names()
	}
	procs := make([]VariantProcessor, 0, len(names))
	for _, name := range names {
		p, err := New(name, env)
		if err != nil {
			return err
		}
		procs = append(procs, p)
	}
	for _, p := range procs {
		for _, v := range variants {
			if err := p.Process(v); err != nil {
				return fmt.Errorf("processor %s: variant %s: %w", p.Name(), v.Name(), err)
			}
		}
	}
	return nil
}
