package compiler

import (
	"github.com/emberlang/ember/ast"
	"github.com/emberlang/ember/block"
	"github.com/emberlang/ember/symbol"
)

// Session compiles a sequence of program fragments against one shared
// block.Store and type table, so a record type or a closure declared by an
// earlier fragment remains valid when a later one references it. Compile
// itself always starts a fresh Store and reserves block 0 for a single
// whole program; Session exists for a REPL, which has neither — each line
// is its own fragment, appended as a new block onto a Store (and global
// environment) that outlives any single line.
type Session struct {
	c *compiler
}

// NewSession constructs a Session that appends into store using interner
// for every fragment it compiles.
func NewSession(store *block.Store, interner *symbol.Interner) *Session {
	return &Session{c: &compiler{
		interner: interner,
		blocks:   store,
		types:    make(map[string][]symbol.Symbol),
	}}
}

// CompileLine compiles one fragment's statements into a newly appended
// block and returns its reference, ready to be run by a VM resuming in the
// session's persistent global environment.
func (s *Session) CompileLine(fragment *ast.Block) (block.Reference, error) {
	e := &emitter{}
	if err := s.c.compileSequence(e, fragment.Exprs, false); err != nil {
		return 0, err
	}
	return s.c.blocks.Add(e.instrs), nil
}
