package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node is a minimal heap.Object used only by this package's tests.
type node struct {
	refs []Handle
}

func (n *node) Children() []Handle { return n.refs }

func TestAllocAndGet(t *testing.T) {
	h := New(0)
	handle := h.Alloc(&node{})
	require.NotNil(t, h.Get(handle))
}

func TestGetOutOfRangeReturnsNil(t *testing.T) {
	h := New(0)
	assert.Nil(t, h.Get(Handle(999)))
}

func TestSweepReclaimsUnmarkedCells(t *testing.T) {
	h := New(0)
	a := h.Alloc(&node{})
	b := h.Alloc(&node{})

	h.UnmarkAll()
	h.MarkReachable(a)
	freed := h.Sweep()

	assert.Equal(t, 1, freed)
	assert.NotNil(t, h.Get(a))
	assert.Nil(t, h.Get(b))
}

func TestMarkReachableFollowsCyclicGraph(t *testing.T) {
	h := New(0)
	aHandle := h.Alloc(&node{})
	bHandle := h.Alloc(&node{})

	// Make a and b reference each other, forming a cycle.
	h.Get(aHandle).(*node).refs = []Handle{bHandle}
	h.Get(bHandle).(*node).refs = []Handle{aHandle}

	h.UnmarkAll()
	h.MarkReachable(aHandle)

	assert.True(t, h.IsMarked(aHandle))
	assert.True(t, h.IsMarked(bHandle))

	freed := h.Sweep()
	assert.Equal(t, 0, freed, "cyclic pair reachable from a root must survive the sweep")
}

func TestUnreachableCycleIsCollected(t *testing.T) {
	h := New(0)
	root := h.Alloc(&node{})
	aHandle := h.Alloc(&node{})
	bHandle := h.Alloc(&node{})
	h.Get(aHandle).(*node).refs = []Handle{bHandle}
	h.Get(bHandle).(*node).refs = []Handle{aHandle}

	h.UnmarkAll()
	h.MarkReachable(root)
	freed := h.Sweep()

	assert.Equal(t, 2, freed)
	assert.Nil(t, h.Get(aHandle))
	assert.Nil(t, h.Get(bHandle))
}

func TestAllocRecyclesFreedHandles(t *testing.T) {
	h := New(0)
	a := h.Alloc(&node{})
	h.UnmarkAll()
	h.Sweep() // a is unmarked, gets freed

	b := h.Alloc(&node{})
	assert.Equal(t, a, b, "freed handle should be recycled by the next Alloc")
}

func TestPastWatermark(t *testing.T) {
	h := New(3)
	assert.True(t, h.PastWatermark(), "no allocations yet means well below watermark")
	h.Alloc(&node{})
	h.Alloc(&node{})
	assert.True(t, h.PastWatermark(), "below watermark means collection should be throttled")
	h.Alloc(&node{})
	h.Alloc(&node{})
	assert.False(t, h.PastWatermark())
}

func TestPastWatermarkDisabledWhenZero(t *testing.T) {
	h := New(0)
	h.Alloc(&node{})
	assert.False(t, h.PastWatermark())
}

func TestStats(t *testing.T) {
	h := New(0)
	a := h.Alloc(&node{})
	h.Alloc(&node{})

	h.UnmarkAll()
	h.MarkReachable(a)
	h.Sweep()

	stats := h.Stats()
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 2, stats.TotalAllocs)
	assert.Equal(t, 1, stats.TotalFrees)
}
