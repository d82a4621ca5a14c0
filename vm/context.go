package vm

import (
	"github.com/emberlang/ember/block"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/opcodes"
	"github.com/emberlang/ember/values"
)

// CallFrame is the runtime descriptor of one active invocation (spec
// §4.5/Data Model's "Call Frame" tuple): the Function that produced it
// (absent for the top-level frame), a fresh environment whose parent is
// the callee's captured closure, a block reference, a program counter, and
// a cached view of that block's instructions.
type CallFrame struct {
	Origin      values.Value
	HasOrigin   bool
	Env         heap.Handle
	Block       block.Reference
	PC          int
	Instructions []opcodes.Instruction
}

// Children reports this frame's environment and (if present) its
// originating function as roots — satisfying heap.Object so the VM can
// also keep call frames themselves on the heap if desired. The VM in this
// package keeps frames in a plain Go slice instead (they never need to
// outlive the VM, unlike environments and functions, which closures can
// capture), but the method is provided so a frame can be marked uniformly
// alongside heap-resident roots.
func (f *CallFrame) Children() []heap.Handle {
	out := make([]heap.Handle, 0, 2)
	out = append(out, f.Env)
	if f.HasOrigin {
		if h, ok := f.Origin.HeapHandle(); ok {
			out = append(out, h)
		}
	}
	return out
}

// newFrame allocates the environment for a new call frame, parented on
// closure (the callee's captured environment, or no parent at all for a
// frame with no closure — i.e. the top-level frame), and returns the
// assembled CallFrame ready to run from pc 0.
func newFrame(h *heap.Heap, blocks *block.Store, blockRef block.Reference, origin values.Value, hasOrigin bool, closure heap.Handle, hasClosure bool) *CallFrame {
	e := env.New(closure, hasClosure)
	envHandle := h.Alloc(e)
	return &CallFrame{
		Origin:       origin,
		HasOrigin:    hasOrigin,
		Env:          envHandle,
		Block:        blockRef,
		PC:           0,
		Instructions: blocks.Get(blockRef),
	}
}
