// Package block implements the Block Store (spec §4.4): an append-only
// table of compiled instruction sequences addressed by a dense integer
// block_reference. Block 0 is always the top-level (file-scope) block.
// There is no delete operation — matching original_source/src/vm.cc's
// Blocks, which never frees a block before process exit.
package block

import "github.com/emberlang/ember/opcodes"

// Reference is an index into a Store. TopLevel is always block 0.
type Reference int

// TopLevel names the file-scope block every compiled program starts in.
const TopLevel Reference = 0

// Store owns every compiled block for one compilation unit. It only ever
// grows.
type Store struct {
	blocks [][]opcodes.Instruction
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add appends a new block and returns its reference.
func (s *Store) Add(instructions []opcodes.Instruction) Reference {
	s.blocks = append(s.blocks, instructions)
	return Reference(len(s.blocks) - 1)
}

// Set replaces the instruction sequence already stored at ref. It exists
// for the compiler's benefit: block 0 must be the top-level block, but the
// top-level's own instruction stream can only be finished after every
// nested function body it contains has been compiled and Added (so their
// block references are known), and those additions would otherwise claim
// index 0 first. The compiler reserves index 0 with a placeholder Add
// before compiling anything else, then backfills it with Set once the
// top-level stream is complete. This does not reintroduce deletion: no
// block reference is ever invalidated, only its content replaced before
// any VM has run against it.
func (s *Store) Set(ref Reference, instructions []opcodes.Instruction) {
	if int(ref) < 0 || int(ref) >= len(s.blocks) {
		panic("block: invalid reference")
	}
	s.blocks[ref] = instructions
}

// Get returns the instruction sequence for ref. It panics on an invalid
// reference, which can only indicate a compiler bug: the compiler is the
// only producer of Reference values, and it never hands out one it hasn't
// also Added.
func (s *Store) Get(ref Reference) []opcodes.Instruction {
	if int(ref) < 0 || int(ref) >= len(s.blocks) {
		panic("block: invalid reference")
	}
	return s.blocks[ref]
}

// Len reports how many blocks the store holds.
func (s *Store) Len() int {
	return len(s.blocks)
}
