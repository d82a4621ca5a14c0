package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/block"
	"github.com/emberlang/ember/env"
	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/parser"
	"github.com/emberlang/ember/symbol"
	"github.com/emberlang/ember/values"
	"github.com/emberlang/ember/vm"
)

// runLine compiles src as one Session fragment and runs it to completion
// against globalEnvHandle, returning the value it produced.
func runLine(t *testing.T, h *heap.Heap, blocks *block.Store, resolver *env.Resolver, sess *Session, globalEnvHandle heap.Handle, src string) values.Value {
	t.Helper()
	program, err := parser.ParseProgram(src)
	require.NoError(t, err)

	ref, err := sess.CompileLine(program)
	require.NoError(t, err)

	m := vm.NewWithEnv(h, blocks, resolver, ref, globalEnvHandle, vm.DefaultOptions())
	var final []values.Value
	for i := 0; i < 10_000 && !m.Halted(); i++ {
		final = append([]values.Value(nil), m.Stack...)
		_, err := m.Step()
		require.NoError(t, err)
	}
	require.True(t, m.Halted())
	require.Len(t, final, 1)
	return final[0]
}

func TestSessionPersistsBindingsAcrossLines(t *testing.T) {
	interner := symbol.New()
	h := heap.New(0)
	blocks := block.NewStore()
	resolver := &env.Resolver{Heap: h}
	globalEnv := env.New(env.NoParent, false)
	globalEnvHandle := h.Alloc(globalEnv)
	sess := NewSession(blocks, interner)

	runLine(t, h, blocks, resolver, sess, globalEnvHandle, "let x = 40")
	v := runLine(t, h, blocks, resolver, sess, globalEnvHandle, "x + 2")
	assert.Equal(t, int64(42), v.AsInteger())
}

func TestSessionPersistsTypeDeclarationsAcrossLines(t *testing.T) {
	interner := symbol.New()
	h := heap.New(0)
	blocks := block.NewStore()
	resolver := &env.Resolver{Heap: h}
	globalEnv := env.New(env.NoParent, false)
	globalEnvHandle := h.Alloc(globalEnv)
	sess := NewSession(blocks, interner)

	runLine(t, h, blocks, resolver, sess, globalEnvHandle, "type Point { x, y }")
	runLine(t, h, blocks, resolver, sess, globalEnvHandle, "let p = Point{x: 3, y: 4}")
	v := runLine(t, h, blocks, resolver, sess, globalEnvHandle, "p.x + p.y")
	assert.Equal(t, int64(7), v.AsInteger())
}

func TestSessionPersistsClosuresAcrossLines(t *testing.T) {
	interner := symbol.New()
	h := heap.New(0)
	blocks := block.NewStore()
	resolver := &env.Resolver{Heap: h}
	globalEnv := env.New(env.NoParent, false)
	globalEnvHandle := h.Alloc(globalEnv)
	sess := NewSession(blocks, interner)

	runLine(t, h, blocks, resolver, sess, globalEnvHandle, "let mk = fn(n) => fn() => n * 2")
	runLine(t, h, blocks, resolver, sess, globalEnvHandle, "let f = mk(21)")
	v := runLine(t, h, blocks, resolver, sess, globalEnvHandle, "f()")
	assert.Equal(t, int64(42), v.AsInteger())
}
