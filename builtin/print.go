package builtin

import (
	"fmt"

	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/values"
)

// printBuiltin exposes a single-argument, side-effecting sink to stdout,
// the minimal "talk to the host" builtin every REPL session depends on to
// show a value. It returns its argument unchanged so `print(x)` composes
// in an expression position.
func printBuiltin(h *heap.Heap) *values.BuiltinFunc {
	return &values.BuiltinFunc{
		Name:  "print",
		Arity: 1,
		Impl: func(args []values.Value) (values.Value, error) {
			fmt.Println(Render(h, args[0]))
			return args[0], nil
		},
	}
}

// Render renders v for display, dereferencing a String's backing cell
// through h when needed. Aggregate kinds (Function, Constructor, Object)
// print as their kind tag plus handle, matching the original VM's debug
// dump rather than attempting structural pretty-printing. Exported so a
// host (cmd/ember's REPL) can render an expression's result the same way
// print() does.
func Render(h *heap.Heap, v values.Value) string {
	switch v.Kind {
	case values.Nothing:
		return "nothing"
	case values.Integer:
		return fmt.Sprintf("%d", v.AsInteger())
	case values.Boolean:
		return fmt.Sprintf("%t", v.Data.(bool))
	case values.String:
		return stringValue(h, v)
	default:
		handle, _ := v.HeapHandle()
		return fmt.Sprintf("<%s #%d>", v.Kind, handle)
	}
}

// stringValue dereferences a String Value's backing cell. It panics if v
// is not actually a live String, which only happens under heap corruption
// the collector itself would already consider a bug.
func stringValue(h *heap.Heap, v values.Value) string {
	handle, _ := v.HeapHandle()
	cell := h.Get(handle).(*values.StringCell)
	return cell.Bytes
}

// newStringValue allocates s onto h as a fresh String value.
func newStringValue(h *heap.Heap, s string) values.Value {
	return values.NewString(h.Alloc(&values.StringCell{Bytes: s}))
}
