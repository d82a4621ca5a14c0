package builtin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/symbol"
	"github.com/emberlang/ember/values"
)

func TestLookupFindsRegisteredBuiltins(t *testing.T) {
	h := heap.New(0)
	r := New(h, DefaultOptions())

	for _, name := range []string{"print", "clock", "strftime", "store-open", "store-get", "store-put"} {
		v, ok := r.Lookup(name)
		require.True(t, ok, "expected %s to be registered", name)
		assert.Equal(t, values.Builtin, v.Kind)
	}

	_, ok := r.Lookup("no-such-builtin")
	assert.False(t, ok)
}

func TestLookupOmitsStoreWhenDisabled(t *testing.T) {
	h := heap.New(0)
	r := New(h, Options{EnableStore: false})

	_, ok := r.Lookup("store-get")
	assert.False(t, ok)
}

func TestBindCreatesOneBindingPerBuiltin(t *testing.T) {
	h := heap.New(0)
	r := New(h, DefaultOptions())
	interner := symbol.New()

	bound := make(map[symbol.Symbol]values.Value)
	r.Bind(interner, func(s symbol.Symbol, v values.Value) {
		bound[s] = v
	})

	assert.Len(t, bound, len(r.byName))
	clockSym := interner.Intern("clock")
	v, ok := bound[clockSym]
	require.True(t, ok)
	assert.Equal(t, values.Builtin, v.Kind)
}

func TestClockReturnsAPositiveUnixTimestamp(t *testing.T) {
	h := heap.New(0)
	r := New(h, DefaultOptions())
	clock, _ := r.Lookup("clock")

	result, err := clock.Data.(*values.BuiltinFunc).Impl(nil)
	require.NoError(t, err)
	assert.Equal(t, values.Integer, result.Kind)
	assert.Greater(t, result.AsInteger(), int64(0))
}

func TestStoreRoundTripsThroughSQLite(t *testing.T) {
	h := heap.New(0)
	r := New(h, DefaultOptions())

	open, _ := r.Lookup("store-open")
	get, _ := r.Lookup("store-get")
	put, _ := r.Lookup("store-put")

	dbPath := filepath.Join(t.TempDir(), "ember.db")
	pathValue := newStringValue(h, dbPath)

	_, err := open.Data.(*values.BuiltinFunc).Impl([]values.Value{pathValue})
	require.NoError(t, err)

	keyValue := newStringValue(h, "greeting")
	valueValue := newStringValue(h, "hello")

	_, err = put.Data.(*values.BuiltinFunc).Impl([]values.Value{keyValue, valueValue})
	require.NoError(t, err)

	result, err := get.Data.(*values.BuiltinFunc).Impl([]values.Value{keyValue})
	require.NoError(t, err)
	assert.Equal(t, values.String, result.Kind)
	assert.Equal(t, "hello", stringValue(h, result))

	require.NoError(t, r.Close())
}

func TestStoreGetOnMissingKeyReturnsNothing(t *testing.T) {
	h := heap.New(0)
	r := New(h, DefaultOptions())

	open, _ := r.Lookup("store-open")
	get, _ := r.Lookup("store-get")

	dbPath := filepath.Join(t.TempDir(), "ember.db")
	_, err := open.Data.(*values.BuiltinFunc).Impl([]values.Value{newStringValue(h, dbPath)})
	require.NoError(t, err)

	result, err := get.Data.(*values.BuiltinFunc).Impl([]values.Value{newStringValue(h, "absent")})
	require.NoError(t, err)
	assert.Equal(t, values.Nothing, result.Kind)
}
