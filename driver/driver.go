// Package driver implements the Driver component (spec §4.6): it owns a
// stack of cooperating VM instances, runs the step loop against the
// topmost one, and triggers a heap GC cycle after each step unless the
// watermark throttle inhibits it. Modelled on the teacher's vmfactory
// package, which centralizes the "create a VM, wire its callbacks, run it"
// sequence that would otherwise be duplicated across cmd/hey's batch, REPL,
// and include-file paths.
package driver

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/emberlang/ember/block"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/symbol"
	"github.com/emberlang/ember/values"
	"github.com/emberlang/ember/vm"
)

// Options configures a Driver's ambient policy.
type Options struct {
	// VM is forwarded to every VM instance the driver constructs.
	VM vm.Options
	// ReleaseWatermark gates collection behind heap.PastWatermark, mirroring
	// original_source/src/vm.cc's `#if RELEASE` collection loop. Off by
	// default: every step collects, which keeps test runs deterministic.
	ReleaseWatermark bool
}

// DefaultOptions matches the engine's default posture: tail calls
// eliminated, collection run unconditionally after every step.
func DefaultOptions() Options {
	return Options{VM: vm.DefaultOptions(), ReleaseWatermark: false}
}

// Driver owns a stack of cooperating VM instances (spec §4.6, §5): the
// topmost is stepped; HALTED pops it; SWITCH pushes a freshly constructed
// one against the requested block. A single Heap, Block Store, and Resolver
// are shared across the whole stack, since every VM cooperates within one
// process and one collector.
type Driver struct {
	Heap     *heap.Heap
	Blocks   *block.Store
	Resolver *env.Resolver
	Opts     Options

	// ID correlates one driver run's diagnostics and --trace output, so
	// logs from cooperating runs (e.g. a test harness spinning up several
	// drivers) can be told apart.
	ID string

	vms []*vm.VM
}

// New constructs a Driver and pushes its initial VM against the primary
// compilation unit's top-level block, matching VM::init's bootstrap.
func New(h *heap.Heap, blocks *block.Store, resolver *env.Resolver, opts Options) *Driver {
	d := &Driver{
		Heap:     h,
		Blocks:   blocks,
		Resolver: resolver,
		Opts:     opts,
		ID:       uuid.NewString(),
	}
	d.Push(block.TopLevel)
	return d
}

// BindGlobal installs a binding directly into the topmost VM's global
// environment, for a host that needs its builtins visible before the
// first instruction of a freshly loaded program runs.
func (d *Driver) BindGlobal(sym symbol.Symbol, v values.Value) error {
	return d.top().BindGlobal(sym, v)
}

// Push constructs a new VM against blockRef and makes it the topmost —
// the core's SWITCH response (spec §4.6), exposed here for a future
// compiler to drive even though no instruction in this engine's own
// instruction set currently emits it (spec §9 Open Questions).
func (d *Driver) Push(blockRef block.Reference) {
	d.vms = append(d.vms, vm.New(d.Heap, d.Blocks, d.Resolver, blockRef, d.Opts.VM))
}

// Done reports whether every cooperating VM has halted and been popped.
func (d *Driver) Done() bool {
	return len(d.vms) == 0
}

// top returns the currently scheduled VM.
func (d *Driver) top() *vm.VM {
	return d.vms[len(d.vms)-1]
}

// TopStack exposes the topmost VM's operand stack as it stands right now,
// for a caller (such as a REPL loop) that wants to read back an expression's
// result between Tick calls rather than only after Run drains every VM.
// Returns nil once the driver is Done, since by then every VM — and its
// stack — has already been popped.
func (d *Driver) TopStack() []values.Value {
	if d.Done() {
		return nil
	}
	return d.top().Stack
}

// Tick runs exactly one step of the topmost VM, then — unless the
// watermark throttle inhibits it — runs one GC cycle across every
// cooperating VM's roots (spec §4.6's "After each step... runs one GC
// cycle unless past_watermark inhibits it"). It reports whether any VM
// remains scheduled afterward.
func (d *Driver) Tick() (bool, error) {
	if d.Done() {
		return false, nil
	}

	current := d.top()
	resp, err := current.Step()
	if err != nil {
		return false, fmt.Errorf("driver %s: %w", d.ID, err)
	}
	if resp == vm.Halted {
		d.vms = d.vms[:len(d.vms)-1]
	}

	if !d.Opts.ReleaseWatermark || !d.Heap.PastWatermark() {
		d.collect()
	}

	return !d.Done(), nil
}

// collect runs one unmark/mark/sweep cycle, asking every still-scheduled
// VM to contribute its roots — "during marking, all VMs in the stack
// contribute roots; an object referenced only from a suspended VM is still
// live" (spec §4.6).
func (d *Driver) collect() {
	d.Heap.UnmarkAll()
	for _, m := range d.vms {
		m.MarkRoots()
	}
	d.Heap.Sweep()
}

// Run ticks the driver to completion.
func (d *Driver) Run() error {
	for {
		more, err := d.Tick()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// DebugDump renders a summary of the driver's live state to w: for every
// cooperating VM its operand stack (the kind of each slot) and the number
// of call frames, followed by the heap's counters. Environment bindings and
// per-frame details are not printed. It is the Go-native analogue of
// original_source/src/vm.cc's VM::print_debug_info(), which the original
// calls after every step when compiled with DEBUG defined.
func (d *Driver) DebugDump(w io.Writer) {
	fmt.Fprintf(w, "driver %s: %d VM(s) scheduled\n", d.ID, len(d.vms))
	for i, m := range d.vms {
		fmt.Fprintf(w, "  vm[%d]: stack=%d call-frames=%d\n", i, len(m.Stack), len(m.CallStack))
		for j := len(m.Stack) - 1; j >= 0; j-- {
			fmt.Fprintf(w, "    stack[%d]: %s\n", j, m.Stack[j].Kind)
		}
	}
	stats := d.Heap.Stats()
	fmt.Fprintf(w, "  heap: live=%s total_allocs=%s total_frees=%s since_sweep=%s\n",
		humanize.Comma(int64(stats.Live)), humanize.Comma(int64(stats.TotalAllocs)),
		humanize.Comma(int64(stats.TotalFrees)), humanize.Comma(int64(stats.SinceLastSweep)))
}
