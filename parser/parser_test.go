package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/ast"
)

func TestParsesLetAndArithmetic(t *testing.T) {
	prog, err := ParseProgram("let x = 1 + 2 * 3; x")
	require.NoError(t, err)
	require.Len(t, prog.Exprs, 2)

	let, ok := prog.Exprs[0].(*ast.Let)
	require.True(t, ok)
	assert.Equal(t, "x", let.Name)

	add, ok := let.Value.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)
	mul, ok := add.R.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)

	ident, ok := prog.Exprs[1].(*ast.Ident)
	require.True(t, ok)
	assert.Equal(t, "x", ident.Name)
}

func TestParsesIfElse(t *testing.T) {
	prog, err := ParseProgram("if x < 1 then 0 else 1")
	require.NoError(t, err)
	require.Len(t, prog.Exprs, 1)

	ifExpr, ok := prog.Exprs[0].(*ast.If)
	require.True(t, ok)
	cond, ok := ifExpr.Cond.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "<", cond.Op)
}

func TestParsesNamedRecursiveFunctionAndCall(t *testing.T) {
	prog, err := ParseProgram("fn fact(n) => if n == 0 then 1 else n * fact(n - 1)")
	require.NoError(t, err)
	require.Len(t, prog.Exprs, 1)

	fn, ok := prog.Exprs[0].(*ast.FnLit)
	require.True(t, ok)
	assert.Equal(t, "fact", fn.Name)
	assert.Equal(t, []string{"n"}, fn.Params)

	ifExpr, ok := fn.Body.(*ast.If)
	require.True(t, ok)
	mul, ok := ifExpr.Else.(*ast.Binary)
	require.True(t, ok)
	call, ok := mul.R.(*ast.Call)
	require.True(t, ok)
	callee, ok := call.Callee.(*ast.Ident)
	require.True(t, ok)
	assert.Equal(t, "fact", callee.Name)
}

func TestParsesTypeDeclAndConstruct(t *testing.T) {
	prog, err := ParseProgram("type Point { x, y }; Point{x: 1, y: 2}")
	require.NoError(t, err)
	require.Len(t, prog.Exprs, 2)

	decl, ok := prog.Exprs[0].(*ast.TypeDecl)
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, decl.Fields)

	construct, ok := prog.Exprs[1].(*ast.Construct)
	require.True(t, ok)
	assert.Equal(t, "Point", construct.Type)
	assert.Equal(t, []string{"x", "y"}, construct.Fields)
}

func TestParsesFieldAccessAndAssignment(t *testing.T) {
	prog, err := ParseProgram("p.x = p.x + 1")
	require.NoError(t, err)
	require.Len(t, prog.Exprs, 1)

	assign, ok := prog.Exprs[0].(*ast.Assign)
	require.True(t, ok)
	target, ok := assign.Target.(*ast.FieldAccess)
	require.True(t, ok)
	assert.Equal(t, "x", target.Field)
}

func TestParsesBraceBlockExpression(t *testing.T) {
	prog, err := ParseProgram("{ let x = 1; let y = 2; x + y }")
	require.NoError(t, err)
	require.Len(t, prog.Exprs, 1)

	block, ok := prog.Exprs[0].(*ast.Block)
	require.True(t, ok)
	require.Len(t, block.Exprs, 3)
}

func TestUnexpectedTokenIsSyntaxError(t *testing.T) {
	_, err := ParseProgram("let = 1")
	assert.Error(t, err)
}
