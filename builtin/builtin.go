// Package builtin implements the Builtins -> core contract (spec §6): a
// fixed, arity-checked set of statically-registered native functions the
// host (cmd/ember) binds into the global environment before the driver
// starts stepping. The registry shape — a name-keyed map of handler structs built
// once at startup and handed out as first-class values — is grounded on the
// teacher's stdlib.StandardLibrary/BuiltinFunction pair (stdlib/stdlib.go),
// generalized from PHP's function table down to Ember's single
// values.BuiltinFunc shape.
package builtin

import (
	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/symbol"
	"github.com/emberlang/ember/values"
)

// Registry holds every builtin a host may bind by name. Builtins
// that touch the heap (dereferencing a String argument, allocating a
// result string) close over h directly; this package never allocates its
// own heap.
type Registry struct {
	byName map[string]*values.BuiltinFunc
	store  *store
}

// Options selects which optional builtin groups New wires in.
type Options struct {
	// EnableStore registers store-open/store-get/store-put, a
	// modernc.org/sqlite-backed key/value builtin trio. The database file
	// itself is only opened lazily, the first time a program actually
	// calls store-open, so leaving this on costs nothing for programs
	// that never touch the store.
	EnableStore bool
}

// DefaultOptions enables every builtin group.
func DefaultOptions() Options {
	return Options{EnableStore: true}
}

// New builds the registry against h, the heap every heap-touching builtin
// allocates into and dereferences from.
func New(h *heap.Heap, opts Options) *Registry {
	r := &Registry{byName: make(map[string]*values.BuiltinFunc)}

	r.register(printBuiltin(h))
	r.register(clockBuiltin())
	r.register(strftimeBuiltin(h))

	if opts.EnableStore {
		r.store = &store{}
		r.register(storeOpenBuiltin(h, r.store))
		r.register(storeGetBuiltin(h, r.store))
		r.register(storePutBuiltin(h, r.store))
	}

	return r
}

func (r *Registry) register(fn *values.BuiltinFunc) {
	r.byName[fn.Name] = fn
}

// Lookup returns the named builtin wrapped as a first-class Value, for a
// host that binds builtins individually rather than all at once via Bind.
func (r *Registry) Lookup(name string) (values.Value, bool) {
	fn, ok := r.byName[name]
	if !ok {
		return values.Value{}, false
	}
	return values.NewBuiltin(fn), true
}

// Bind creates every registered builtin as a binding in the environment
// reached by create, keyed by its interned name. create is typically a
// thin wrapper around env.Environment.Create, kept as a callback here so
// this package never needs to import env (which itself imports values,
// risking a cycle back through any future builtin/env coupling).
func (r *Registry) Bind(interner *symbol.Interner, create func(symbol.Symbol, values.Value)) {
	for name, fn := range r.byName {
		create(interner.Intern(name), values.NewBuiltin(fn))
	}
}

// Close releases the store's database handle, if one was ever opened.
func (r *Registry) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.close()
}
