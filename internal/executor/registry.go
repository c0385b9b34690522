package executor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gantryhq/gantry/internal/errors"
)

// Registry resolves the executor names referenced by task specs.
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// DefaultRegistry creates a registry with the builtin executors registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registering builtins into a fresh registry cannot collide.
	_ = r.Register(NoopName, Noop{})
	_ = r.Register(ShellName, NewShell())
	return r
}

// Register adds an executor under a name. Names are the stable references
// used by TaskSpec.Executor; re-registering one fails with ErrExecutorExists.
func (r *Registry) Register(name string, exec Executor) error {
	if name == "" {
		return errors.NewValidationError("executor name is empty")
	}
	if exec == nil {
		return errors.NewValidationError("executor is nil").WithField(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.executors[name]; ok {
		return fmt.Errorf("%w: %s", errors.ErrExecutorExists, name)
	}
	r.executors[name] = exec
	return nil
}

// Get resolves a name to its executor.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownExecutor, name)
	}
	return exec, nil
}

// Has reports whether a name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[name]
	return ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
