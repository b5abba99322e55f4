package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/biomap-cli/internal/model"
)

// Action is one step implementation. Run may mutate ec; it is the only
// holder of ec while it runs.
type Action interface {
	// Params declares the parameters the action accepts.
	Params() Schema
	// Run executes the action.
	Run(ctx context.Context, params Params, ec *Context) (model.ActionResult, error)
}

// Describer is implemented by actions that provide a one-line description.
type Describer interface {
	Description() string
}

// Validator is implemented by actions whose params need checks beyond
// their schema. The executor calls it before any step runs.
type Validator interface {
	Validate(params Params) error
}

// Factory creates a fresh Action instance for a step.
type Factory func() Action

// Registry maps action type names to factories. It is built once at
// process start and passed to the executor.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. A duplicate name is a configuration error.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return &ValidationError{Step: -1, Err: eris.New("registry: empty action name or nil factory")}
	}
	if _, dup := r.factories[name]; dup {
		return &ValidationError{Step: -1, Action: name, Err: eris.Errorf("registry: action %q already registered", name)}
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for process init; it panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Get returns the factory for name.
func (r *Registry) Get(name string) (Factory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &ValidationError{Step: -1, Action: name, Err: eris.Errorf("registry: unknown action %q", name)}
	}
	return f, nil
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Describe returns the description of an action, if it provides one.
func (r *Registry) Describe(name string) string {
	f, ok := r.factories[name]
	if !ok {
		return ""
	}
	if d, ok := f().(Describer); ok {
		return d.Description()
	}
	return ""
}
