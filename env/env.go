// Package env implements Ember's lexical Environment chain (spec §4.3): a
// heap-resident sequence of (symbol, value) bindings with a parent link,
// plus the create/resolve/update operations the VM's ENTER_SCOPE,
// EXIT_SCOPE, and name-resolution opcodes rely on. Environments are
// heap-managed rather than Go-GC'd on their own because a closure can
// outlive the call frame that created it, and the engine's own collector
// must be able to trace that reachability.
package env

import (
	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/symbol"
	"github.com/emberlang/ember/values"
)

// binding is one (symbol, value) pair in an environment's local frame.
// Bindings are kept in an ordered slice, not a map, matching the original
// VM's linear scan over a small per-scope binding list (spec §4.3 and
// original_source/src/vm.cc's Environment representation): most scopes
// hold a handful of names, so linear scan beats map overhead, and
// insertion order is preserved for debug dumps.
type binding struct {
	name  symbol.Symbol
	value values.Value
}

// Environment is one link in the lexical scope chain. NoParent is the
// sentinel used by the top-level (file-scope) environment, which has no
// parent.
type Environment struct {
	bindings []binding
	parent   heap.Handle
	hasParent bool
}

// NoParent is the zero Handle; an Environment with hasParent == false
// never dereferences it.
const NoParent heap.Handle = 0

// New constructs a fresh, empty environment. If hasParent is true, the new
// environment's chain continues through it; otherwise it is a root scope.
func New(parent heap.Handle, hasParent bool) *Environment {
	return &Environment{parent: parent, hasParent: hasParent}
}

// Children reports the parent environment, if any, followed by the heap
// handle of every bound value that carries one, so the collector keeps
// both the enclosing chain and the bound values alive.
func (e *Environment) Children() []heap.Handle {
	out := make([]heap.Handle, 0, len(e.bindings)+1)
	if e.hasParent {
		out = append(out, e.parent)
	}
	for _, b := range e.bindings {
		if h, ok := b.value.HeapHandle(); ok {
			out = append(out, h)
		}
	}
	return out
}

// Parent reports this environment's parent handle and whether it has one.
func (e *Environment) Parent() (heap.Handle, bool) {
	return e.parent, e.hasParent
}

// Create binds name to value in this environment's local frame (spec
// §4.3's "create_binding"). It reports false, without modifying the
// frame, if name is already bound here — redeclaring an existing binding
// within a single node is a Name error the caller must raise (spec §7).
func (e *Environment) Create(name symbol.Symbol, value values.Value) bool {
	if e.lookupLocal(name) >= 0 {
		return false
	}
	e.bindings = append(e.bindings, binding{name: name, value: value})
	return true
}

// lookupLocal scans this environment's own bindings only, most recent
// first, and reports the index of a match or -1.
func (e *Environment) lookupLocal(name symbol.Symbol) int {
	for i := len(e.bindings) - 1; i >= 0; i-- {
		if e.bindings[i].name == name {
			return i
		}
	}
	return -1
}

// Resolver looks up bindings across an Environment chain, applying the
// engine's two-stage global-fallback rule (spec §4.3, §9 Design Notes):
// first walk the current environment's parent chain; if that search
// fails, retry the same walk starting from the call stack's frame-0
// environment. This mirrors the original VM's resolve_binding, which
// falls back to call_stack[0]'s chain rather than giving every
// environment an implicit link to a single global scope.
type Resolver struct {
	Heap *heap.Heap
}

func (r *Resolver) deref(h heap.Handle) *Environment {
	obj := r.Heap.Get(h)
	if obj == nil {
		return nil
	}
	env, _ := obj.(*Environment)
	return env
}

// walk searches starting environment start's chain (start's own bindings,
// then its parent, and so on) and reports the value of the first match and
// whether one was found.
func (r *Resolver) walk(start heap.Handle, name symbol.Symbol) (values.Value, bool) {
	cur := start
	for {
		env := r.deref(cur)
		if env == nil {
			return values.Value{}, false
		}
		if i := env.lookupLocal(name); i >= 0 {
			return env.bindings[i].value, true
		}
		parent, ok := env.Parent()
		if !ok {
			return values.Value{}, false
		}
		cur = parent
	}
}

// Resolve implements the two-stage lookup: the current chain first, then
// (only if that fails) globalFrame's chain. Passing the same handle for
// both arguments when current already is the top-level environment is
// harmless — the second walk repeats the first and still reports "not
// found" if the first did.
func (r *Resolver) Resolve(current, globalFrame heap.Handle, name symbol.Symbol) (values.Value, bool) {
	if v, ok := r.walk(current, name); ok {
		return v, true
	}
	return r.walk(globalFrame, name)
}

// Update mutates the nearest existing binding of name reachable from
// start's chain, in place, and reports whether a binding was found. It
// does not fall back to the global frame: spec §4.3 scopes UPDATE to the
// chain actually in scope, matching the original's update_binding, which
// is called only with the frame a name was already resolved through.
func (r *Resolver) Update(start heap.Handle, name symbol.Symbol, value values.Value) bool {
	cur := start
	for {
		env := r.deref(cur)
		if env == nil {
			return false
		}
		if i := env.lookupLocal(name); i >= 0 {
			env.bindings[i].value = value
			return true
		}
		parent, ok := env.Parent()
		if !ok {
			return false
		}
		cur = parent
	}
}
