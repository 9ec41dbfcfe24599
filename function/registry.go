package function

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry maps (source, name) pairs to functions. The empty source is the
// default namespace used by tasks without a source. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]map[string]Function
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]map[string]Function)}
}

// NormalizeSource maps path-like sources ("vision/quality") and dotted ones
// ("vision.quality") to the same namespace.
func NormalizeSource(source string) string {
	return strings.Trim(strings.ReplaceAll(strings.TrimSpace(source), "/", "."), ".")
}

// Register adds fns under source. Registering a name twice in the same
// source is an error.
func (r *Registry) Register(source string, fns ...Function) error {
	source = NormalizeSource(source)

	r.mu.Lock()
	defer r.mu.Unlock()

	ns, ok := r.funcs[source]
	if !ok {
		ns = make(map[string]Function, len(fns))
		r.funcs[source] = ns
	}
	for _, fn := range fns {
		if _, exists := ns[fn.Name()]; exists {
			return fmt.Errorf("function %q already registered in source %q", fn.Name(), source)
		}
		ns[fn.Name()] = fn
	}
	return nil
}

// MustRegister is Register that panics on error, for startup wiring.
func (r *Registry) MustRegister(source string, fns ...Function) {
	if err := r.Register(source, fns...); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered as name under source.
func (r *Registry) Lookup(source, name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[NormalizeSource(source)][name]
	return fn, ok
}

// Names returns "source.name" (or "name" for the default source) of every
// registered function, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for source, ns := range r.funcs {
		for name := range ns {
			if source == "" {
				names = append(names, name)
				continue
			}
			names = append(names, source+"."+name)
		}
	}
	slices.Sort(names)
	return names
}
