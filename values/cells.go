package values

import (
	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/symbol"
)

// StringCell is the heap-resident body of a String value. Strings are
// heap-managed (rather than held directly in a Value) so that equality by
// handle and GC accounting are uniform across every aggregate kind.
type StringCell struct {
	Bytes string
}

// Children reports no references: a string holds no other heap handles.
func (*StringCell) Children() []heap.Handle { return nil }

// FunctionCell is the heap-resident body of a Function value: a compiled
// block reference, its formal parameters, and the environment it closes
// over. Closure is a heap.Handle rather than a direct environment pointer
// so that this package never has to import the env package that defines
// the environment's concrete type, which would create an import cycle
// (env must itself import values, for binding payloads).
type FunctionCell struct {
	Name    symbol.Symbol
	Params  []symbol.Symbol
	Block   int
	Closure heap.Handle
}

// Children reports the closed-over environment as the sole reachable
// reference, so the collector keeps a function's captured bindings alive
// for as long as the function itself is reachable.
func (f *FunctionCell) Children() []heap.Handle {
	return []heap.Handle{f.Closure}
}

// ConstructorCell is the heap-resident body of a Constructor value: a
// record type's name and its ordered field names. Constructors hold no
// heap references of their own; they only describe how to build an
// ObjectCell.
type ConstructorCell struct {
	Name   symbol.Symbol
	Fields []symbol.Symbol
}

// Children reports no references.
func (*ConstructorCell) Children() []heap.Handle { return nil }

// ObjectCell is the heap-resident body of an Object value: an instance of
// some Constructor, holding one Value per field in the constructor's field
// order.
type ObjectCell struct {
	Constructor heap.Handle
	FieldValues []Value
}

// Children reports the constructor cell plus every heap-kinded field value,
// so the collector traces through record instances into whatever they
// reference.
func (o *ObjectCell) Children() []heap.Handle {
	out := make([]heap.Handle, 0, len(o.FieldValues)+1)
	out = append(out, o.Constructor)
	for _, v := range o.FieldValues {
		if h, ok := v.HeapHandle(); ok {
			out = append(out, h)
		}
	}
	return out
}

// FieldIndex returns the index of field in cons.Fields, or -1 if cons has
// no such field. Used by RESOLVE_FIELD / UPDATE_FIELD dispatch (spec §4.5).
func (c *ConstructorCell) FieldIndex(field symbol.Symbol) int {
	for i, f := range c.Fields {
		if f == field {
			return i
		}
	}
	return -1
}
