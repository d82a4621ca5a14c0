package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/symbol"
	"github.com/emberlang/ember/values"
)

func TestCreateAndResolveLocal(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()
	x := interner.Intern("x")

	root := New(0, false)
	rootHandle := h.Alloc(root)
	root.Create(x, values.NewInteger(42))

	r := &Resolver{Heap: h}
	v, ok := r.Resolve(rootHandle, rootHandle, x)
	require.True(t, ok)
	assert.Equal(t, int64(42), v.AsInteger())
}

func TestResolveThroughParentChain(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()
	x := interner.Intern("x")

	parent := New(0, false)
	parentHandle := h.Alloc(parent)
	parent.Create(x, values.NewInteger(7))

	child := New(parentHandle, true)
	childHandle := h.Alloc(child)

	r := &Resolver{Heap: h}
	v, ok := r.Resolve(childHandle, parentHandle, x)
	require.True(t, ok)
	assert.Equal(t, int64(7), v.AsInteger())
}

func TestResolveFallsBackToGlobalFrame(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()
	g := interner.Intern("g")

	global := New(0, false)
	globalHandle := h.Alloc(global)
	global.Create(g, values.NewInteger(99))

	// An unrelated local chain with no parent link to global at all.
	local := New(0, false)
	localHandle := h.Alloc(local)

	r := &Resolver{Heap: h}
	_, ok := r.walk(localHandle, g)
	assert.False(t, ok, "sanity: g is not reachable via local's own chain")

	v, ok := r.Resolve(localHandle, globalHandle, g)
	require.True(t, ok, "global fallback must find g via frame-0's chain")
	assert.Equal(t, int64(99), v.AsInteger())
}

func TestResolveUnknownNameFails(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()

	root := New(0, false)
	rootHandle := h.Alloc(root)

	r := &Resolver{Heap: h}
	_, ok := r.Resolve(rootHandle, rootHandle, interner.Intern("nope"))
	assert.False(t, ok)
}

func TestUpdateMutatesNearestBinding(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()
	x := interner.Intern("x")

	parent := New(0, false)
	parentHandle := h.Alloc(parent)
	parent.Create(x, values.NewInteger(1))

	child := New(parentHandle, true)
	childHandle := h.Alloc(child)

	r := &Resolver{Heap: h}
	ok := r.Update(childHandle, x, values.NewInteger(2))
	require.True(t, ok)

	v, ok := r.Resolve(childHandle, childHandle, x)
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInteger())
}

func TestUpdateUnknownNameFails(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()

	root := New(0, false)
	rootHandle := h.Alloc(root)

	r := &Resolver{Heap: h}
	ok := r.Update(rootHandle, interner.Intern("nope"), values.NewInteger(0))
	assert.False(t, ok)
}

func TestCreateRejectsRedeclarationInSameNode(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()
	x := interner.Intern("x")

	root := New(0, false)
	rootHandle := h.Alloc(root)
	require.True(t, root.Create(x, values.NewInteger(1)))
	assert.False(t, root.Create(x, values.NewInteger(2)), "redeclaring x in the same node must fail")

	r := &Resolver{Heap: h}
	v, ok := r.Resolve(rootHandle, rootHandle, x)
	require.True(t, ok)
	assert.Equal(t, int64(1), v.AsInteger(), "the rejected Create must not overwrite the original binding")
}

func TestCreateAllowsSameNameInChildEnvironment(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()
	x := interner.Intern("x")

	parent := New(0, false)
	parentHandle := h.Alloc(parent)
	require.True(t, parent.Create(x, values.NewInteger(1)))

	child := New(parentHandle, true)
	require.True(t, child.Create(x, values.NewInteger(2)), "a new node may bind a name already bound in an ancestor")
}

func TestChildrenIncludesParentAndHeapKindedBindings(t *testing.T) {
	h := heap.New(0)
	interner := symbol.New()
	s := interner.Intern("s")

	parent := New(0, false)
	parentHandle := h.Alloc(parent)

	child := New(parentHandle, true)
	strHandle := h.Alloc(&values.StringCell{Bytes: "hi"})
	child.Create(s, values.NewString(strHandle))

	children := child.Children()
	assert.Contains(t, children, parentHandle)
	assert.Contains(t, children, strHandle)
}
