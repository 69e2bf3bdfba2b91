package source

import "github.com/rotisserie/eris"

// Factory builds a worker from its dependencies.
type Factory func(deps Deps) Source

// Registry maps source names to their factories. It replaces runtime
// plugin lookup with an explicit table populated at startup, so an
// unknown source is a config error, not an import failure mid-run.
type Registry struct {
	factories map[string]Factory
	order     []string // registration order for deterministic listing
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Re-registering a name replaces the
// factory but keeps its original position.
func (r *Registry) Register(name string, f Factory) {
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = f
}

// New constructs the named worker.
func (r *Registry) New(name string, deps Deps) (Source, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, eris.Errorf("source: unknown source %q (known: %v)", name, r.Names())
	}
	return f(deps), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Builtin returns a registry with every worker this binary ships.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("electronpribor", func(d Deps) Source { return NewElectronpribor(d) })
	r.Register("flukeshop", func(d Deps) Source { return NewFlukeshop(d) })
	r.Register("prist", func(d Deps) Source { return NewPrist(d) })
	r.Register("keysight", func(d Deps) Source { return NewKeysight(d) })
	r.Register("mprofit", func(d Deps) Source { return NewMprofit(d) })
	r.Register("zenit", func(d Deps) Source { return NewZenit(d) })
	return r
}
