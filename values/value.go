// Package values implements Ember's tagged value model: a sum of primitive
// variants and handles to heap-allocated cells, plus the arithmetic,
// comparison, logical, and truthiness operations spec.md §4.2 assigns to
// it. The representation itself — a Kind tag paired with an interface{}
// payload — is adapted from the teacher interpreter's own Value type
// (values/value.go in the wudi/hey tree), which uses the identical
// Type+Data shape for a much larger variant set.
package values

import (
	"fmt"

	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/symbol"
)

// Kind identifies which variant a Value holds.
type Kind byte

const (
	Nothing Kind = iota
	Integer
	Boolean
	SymbolKind
	String
	Function
	Builtin
	Constructor
	Object
)

func (k Kind) String() string {
	switch k {
	case Nothing:
		return "nothing"
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	case SymbolKind:
		return "symbol"
	case String:
		return "string"
	case Function:
		return "function"
	case Builtin:
		return "builtin"
	case Constructor:
		return "constructor"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the tagged union every operand stack slot, binding, and field
// holds. The zero Value is Nothing.
type Value struct {
	Kind Kind
	Data interface{}
}

// NewNothing returns the unit/null value.
func NewNothing() Value { return Value{Kind: Nothing} }

// NewInteger wraps a signed machine integer.
func NewInteger(i int64) Value { return Value{Kind: Integer, Data: i} }

// NewBoolean wraps a native boolean.
func NewBoolean(b bool) Value { return Value{Kind: Boolean, Data: b} }

// NewSymbol lifts an interned identifier into a first-class value.
func NewSymbol(s symbol.Symbol) Value { return Value{Kind: SymbolKind, Data: s} }

// NewString wraps a handle to a heap-allocated String cell.
func NewString(h heap.Handle) Value { return Value{Kind: String, Data: h} }

// NewFunction wraps a handle to a heap-allocated Function cell.
func NewFunction(h heap.Handle) Value { return Value{Kind: Function, Data: h} }

// NewBuiltin wraps a pointer to a statically registered native function.
// Builtins are not heap-managed: they are created once at startup and live
// for the process lifetime, so they need no handle or mark bit.
func NewBuiltin(b *BuiltinFunc) Value { return Value{Kind: Builtin, Data: b} }

// NewConstructor wraps a handle to a heap-allocated Constructor cell.
func NewConstructor(h heap.Handle) Value { return Value{Kind: Constructor, Data: h} }

// NewObject wraps a handle to a heap-allocated Object cell.
func NewObject(h heap.Handle) Value { return Value{Kind: Object, Data: h} }

// BuiltinFunc is a statically-registered native function: a fixed name,
// arity, and Go implementation. The VM checks Arity against the passed
// argument count before invoking Impl (spec §4.5, "Call dispatch").
type BuiltinFunc struct {
	Name  string
	Arity int
	Impl  func(args []Value) (Value, error)
}

// IsHeapKind reports whether k denotes a value backed by a heap.Handle.
func (k Kind) IsHeapKind() bool {
	switch k {
	case String, Function, Constructor, Object:
		return true
	default:
		return false
	}
}

// HeapHandle returns the handle a heap-kinded Value wraps, and whether v
// actually is heap-kinded. Used by root/child enumeration during GC marking.
func (v Value) HeapHandle() (heap.Handle, bool) {
	if !v.Kind.IsHeapKind() {
		return 0, false
	}
	h, ok := v.Data.(heap.Handle)
	return h, ok
}

// AsInteger panics with a type-error message unless v is an Integer. This
// is AssertIs(Integer) specialised for the hottest call sites.
func (v Value) AsInteger() int64 {
	if v.Kind != Integer {
		panic(TypeError{Expected: Integer, Got: v.Kind})
	}
	return v.Data.(int64)
}

// AsSymbol panics unless v is a Symbol.
func (v Value) AsSymbol() symbol.Symbol {
	if v.Kind != SymbolKind {
		panic(TypeError{Expected: SymbolKind, Got: v.Kind})
	}
	return v.Data.(symbol.Symbol)
}

// AssertIs panics fatally (spec §4.2, "assert_is") unless v.Kind == want.
func (v Value) AssertIs(want Kind) {
	if v.Kind != want {
		panic(TypeError{Expected: want, Got: v.Kind})
	}
}

// TypeError names the expected and actual kind of a failed type assertion.
// It is always fatal to the VM — there is no recovery path (spec §7).
type TypeError struct {
	Expected Kind
	Got      Kind
	Context  string
}

func (e TypeError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("type error in %s: expected %s, got %s", e.Context, e.Expected, e.Got)
	}
	return fmt.Sprintf("type error: expected %s, got %s", e.Expected, e.Got)
}

// Truthy implements spec §4.2's truthiness rule: Nothing and Boolean(false)
// are falsey, everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Nothing:
		return false
	case Boolean:
		return v.Data.(bool)
	default:
		return true
	}
}

// RaiseBool lifts a native bool into a Boolean value.
func RaiseBool(b bool) Value { return NewBoolean(b) }

// Identical implements reference/identity equality for heap aggregates and
// value equality for primitives of the same kind. It backs both EQ and the
// "same primitive kind" branch of spec §4.2's Equality rule.
func Identical(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Nothing:
		return true
	case Integer:
		return a.Data.(int64) == b.Data.(int64)
	case Boolean:
		return a.Data.(bool) == b.Data.(bool)
	case SymbolKind:
		return a.Data.(symbol.Symbol) == b.Data.(symbol.Symbol)
	case String:
		// String equality here is handle identity, matching heap aggregate
		// semantics; byte-content comparison of string cells is exposed
		// separately where needed (e.g. by builtins), not by EQ.
		ha, _ := a.HeapHandle()
		hb, _ := b.HeapHandle()
		return ha == hb
	case Function, Builtin, Constructor, Object:
		return sameReference(a, b)
	default:
		return false
	}
}

func sameReference(a, b Value) bool {
	if a.Kind == Builtin {
		ba, oka := a.Data.(*BuiltinFunc)
		bb, okb := b.Data.(*BuiltinFunc)
		return oka && okb && ba == bb
	}
	ha, oka := a.HeapHandle()
	hb, okb := b.HeapHandle()
	return oka && okb && ha == hb
}

// Equal implements spec §4.2's Equality operation: permitted for any two
// values of the same primitive kind (Nothing, Integer, Boolean, Symbol,
// String); mixed kinds compare unequal; heap aggregates compare by handle
// identity.
func Equal(a, b Value) (Value, error) {
	if a.Kind != b.Kind {
		return NewBoolean(false), nil
	}
	return NewBoolean(Identical(a, b)), nil
}

// NotEqual is the complement of Equal.
func NotEqual(a, b Value) (Value, error) {
	eq, err := Equal(a, b)
	if err != nil {
		return Value{}, err
	}
	return NewBoolean(!eq.Truthy()), nil
}

func bothInteger(a, b Value, op string) (int64, int64, error) {
	if a.Kind != Integer || b.Kind != Integer {
		return 0, 0, TypeError{Expected: Integer, Got: mismatchKind(a, b), Context: op}
	}
	return a.Data.(int64), b.Data.(int64), nil
}

func mismatchKind(a, b Value) Kind {
	if a.Kind != Integer {
		return a.Kind
	}
	return b.Kind
}

// Add implements ADD: both operands must be Integer.
func Add(a, b Value) (Value, error) {
	x, y, err := bothInteger(a, b, "add")
	if err != nil {
		return Value{}, err
	}
	return NewInteger(x + y), nil
}

// Subtract implements SUB.
func Subtract(a, b Value) (Value, error) {
	x, y, err := bothInteger(a, b, "subtract")
	if err != nil {
		return Value{}, err
	}
	return NewInteger(x - y), nil
}

// Multiply implements MUL.
func Multiply(a, b Value) (Value, error) {
	x, y, err := bothInteger(a, b, "multiply")
	if err != nil {
		return Value{}, err
	}
	return NewInteger(x * y), nil
}

// ErrDivideByZero is fatal per spec §4.2 ("divide-by-zero is fatal").
var ErrDivideByZero = fmt.Errorf("division by zero")

// Divide implements DIV.
func Divide(a, b Value) (Value, error) {
	x, y, err := bothInteger(a, b, "divide")
	if err != nil {
		return Value{}, err
	}
	if y == 0 {
		return Value{}, ErrDivideByZero
	}
	return NewInteger(x / y), nil
}

// compareIntegers implements the Ordering operation family: both operands
// must be Integer.
func compareIntegers(a, b Value, op string) (int, error) {
	x, y, err := bothInteger(a, b, op)
	if err != nil {
		return 0, err
	}
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	default:
		return 0, nil
	}
}

// Less implements LT.
func Less(a, b Value) (Value, error) {
	c, err := compareIntegers(a, b, "less-than")
	if err != nil {
		return Value{}, err
	}
	return NewBoolean(c < 0), nil
}

// LessOrEqual implements LE.
func LessOrEqual(a, b Value) (Value, error) {
	c, err := compareIntegers(a, b, "less-or-equal")
	if err != nil {
		return Value{}, err
	}
	return NewBoolean(c <= 0), nil
}

// Greater implements GT.
func Greater(a, b Value) (Value, error) {
	c, err := compareIntegers(a, b, "greater-than")
	if err != nil {
		return Value{}, err
	}
	return NewBoolean(c > 0), nil
}

// GreaterOrEqual implements GE.
func GreaterOrEqual(a, b Value) (Value, error) {
	c, err := compareIntegers(a, b, "greater-or-equal")
	if err != nil {
		return Value{}, err
	}
	return NewBoolean(c >= 0), nil
}

// And implements AND: truthiness-coerced logical conjunction.
func And(a, b Value) Value { return NewBoolean(a.Truthy() && b.Truthy()) }

// Or implements OR: truthiness-coerced logical disjunction.
func Or(a, b Value) Value { return NewBoolean(a.Truthy() || b.Truthy()) }

// Not implements NOT: truthiness-coerced negation.
func Not(a Value) Value { return NewBoolean(!a.Truthy()) }
