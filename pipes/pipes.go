// Package pipes holds the postprocessing registry: named functions a
// route chains after query execution to reshape results before
// conversion.
package pipes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/query"
	"github.com/c360/semserve/routeconfig"
)

// Func is one postprocessing step. It receives the current result and
// the parameters declared on the route, and returns the reshaped result.
type Func func(res *query.Result, params []any) (*query.Result, error)

// Registry maps pipe names to functions. Registration happens at
// startup; Apply is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	pipes map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pipes: make(map[string]Func)}
}

// Register adds a named pipe. Registering the same name twice is a
// configuration bug and fails.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("pipe name is empty"), "pipes", "Register",
			"cannot register a pipe without a name")
	}
	if fn == nil {
		return errors.WrapInvalid(
			fmt.Errorf("pipe %q has a nil function", name), "pipes", "Register",
			"cannot register a nil pipe")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pipes[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("pipe %q is already registered", name), "pipes", "Register",
			"duplicate pipe registration")
	}
	r.pipes[name] = fn
	return nil
}

// Lookup returns the pipe registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.pipes[name]
	return fn, ok
}

// Names returns the registered pipe names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pipes))
	for name := range r.pipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply folds the result through the declared pipe calls in order. An
// unknown pipe name or a failing pipe aborts the chain.
func (r *Registry) Apply(res *query.Result, calls []routeconfig.PipeCall) (*query.Result, error) {
	for _, call := range calls {
		fn, ok := r.Lookup(call.Pipe)
		if !ok {
			return nil, errors.WrapPipe(
				fmt.Errorf("%w: %s", errors.ErrUnknownPipe, call.Pipe),
				"pipes", "Apply",
				fmt.Sprintf("no pipe registered under %q", call.Pipe))
		}

		out, err := fn(res, call.Parameters)
		if err != nil {
			return nil, errors.WrapPipe(err, "pipes", "Apply",
				fmt.Sprintf("pipe %q failed", call.Pipe))
		}
		if out == nil {
			return nil, errors.WrapPipe(
				fmt.Errorf("pipe %q returned no result", call.Pipe),
				"pipes", "Apply",
				fmt.Sprintf("pipe %q returned no result", call.Pipe))
		}
		res = out
	}
	return res, nil
}
