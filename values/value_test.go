package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/symbol"
)

func TestTruthy(t *testing.T) {
	assert.False(t, NewNothing().Truthy())
	assert.False(t, NewBoolean(false).Truthy())
	assert.True(t, NewBoolean(true).Truthy())
	assert.True(t, NewInteger(0).Truthy())
	assert.True(t, NewInteger(-1).Truthy())
}

func TestArithmetic(t *testing.T) {
	a, b := NewInteger(7), NewInteger(3)

	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.AsInteger())

	diff, err := Subtract(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(4), diff.AsInteger())

	prod, err := Multiply(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(21), prod.AsInteger())

	quot, err := Divide(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), quot.AsInteger())

	_, err = Divide(a, NewInteger(0))
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestArithmeticTypeError(t *testing.T) {
	_, err := Add(NewInteger(1), NewBoolean(true))
	var typeErr TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, Integer, typeErr.Expected)
	assert.Equal(t, Boolean, typeErr.Got)
}

func TestOrdering(t *testing.T) {
	lt, err := Less(NewInteger(1), NewInteger(2))
	require.NoError(t, err)
	assert.True(t, lt.Truthy())

	ge, err := GreaterOrEqual(NewInteger(2), NewInteger(2))
	require.NoError(t, err)
	assert.True(t, ge.Truthy())
}

func TestEqualitySameKind(t *testing.T) {
	eq, err := Equal(NewInteger(5), NewInteger(5))
	require.NoError(t, err)
	assert.True(t, eq.Truthy())

	neq, err := NotEqual(NewInteger(5), NewInteger(6))
	require.NoError(t, err)
	assert.True(t, neq.Truthy())
}

func TestEqualityMixedKindIsFalseNotError(t *testing.T) {
	eq, err := Equal(NewInteger(5), NewBoolean(true))
	require.NoError(t, err)
	assert.False(t, eq.Truthy())
}

func TestHeapValueIdentity(t *testing.T) {
	h := heap.New(0)
	ha := h.Alloc(&StringCell{Bytes: "hi"})
	hb := h.Alloc(&StringCell{Bytes: "hi"})

	sa1 := NewString(ha)
	sa2 := NewString(ha)
	sb := NewString(hb)

	assert.True(t, Identical(sa1, sa2), "same handle must compare identical")
	assert.False(t, Identical(sa1, sb), "distinct handles with equal contents are not identical")
}

func TestLogical(t *testing.T) {
	assert.True(t, And(NewBoolean(true), NewInteger(1)).Truthy())
	assert.False(t, And(NewBoolean(true), NewBoolean(false)).Truthy())
	assert.True(t, Or(NewBoolean(false), NewInteger(1)).Truthy())
	assert.True(t, Not(NewBoolean(false)).Truthy())
}

func TestAssertIsPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewBoolean(true).AssertIs(Integer)
	})
}

func TestFunctionCellChildrenIncludesClosure(t *testing.T) {
	interner := symbol.New()
	h := heap.New(0)
	envHandle := h.Alloc(&StringCell{Bytes: "stand-in-env"})
	fn := &FunctionCell{
		Name:    interner.Intern("f"),
		Params:  []symbol.Symbol{interner.Intern("x")},
		Block:   3,
		Closure: envHandle,
	}
	assert.Equal(t, []heap.Handle{envHandle}, fn.Children())
}

func TestObjectCellChildrenIncludesConstructorAndFields(t *testing.T) {
	interner := symbol.New()
	h := heap.New(0)
	consHandle := h.Alloc(&ConstructorCell{
		Name:   interner.Intern("Point"),
		Fields: []symbol.Symbol{interner.Intern("x"), interner.Intern("y")},
	})
	strHandle := h.Alloc(&StringCell{Bytes: "label"})

	obj := &ObjectCell{
		Constructor: consHandle,
		FieldValues: []Value{NewInteger(1), NewString(strHandle)},
	}

	children := obj.Children()
	assert.Contains(t, children, consHandle)
	assert.Contains(t, children, strHandle)
	assert.Len(t, children, 2)
}

func TestConstructorFieldIndex(t *testing.T) {
	interner := symbol.New()
	x := interner.Intern("x")
	y := interner.Intern("y")
	cons := &ConstructorCell{Name: interner.Intern("Point"), Fields: []symbol.Symbol{x, y}}

	assert.Equal(t, 0, cons.FieldIndex(x))
	assert.Equal(t, 1, cons.FieldIndex(y))
	assert.Equal(t, -1, cons.FieldIndex(interner.Intern("z")))
}
