// Package ast defines Ember's abstract syntax tree: the parser's output and
// the compiler's input. Like the lexer and parser, it is an external
// collaborator the core never touches (spec §1) — shaped around what the
// compiler needs to walk, not around any core data structure.
package ast

// Node is implemented by every AST expression. There is no statement/
// expression split: Ember is expression-oriented, so every construct
//(including `let` and assignment, which the compiler treats as producing
// no value) is a Node.
type Node interface {
	node()
}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
}

// BoolLit is a `true`/`false` literal.
type BoolLit struct {
	Value bool
}

// NothingLit is the `nothing` literal.
type NothingLit struct{}

// Ident references a bound name.
type Ident struct {
	Name string
}

// ThisFunction is the `__function__` keyword, referencing the innermost
// enclosing function's own Function value.
type ThisFunction struct{}

// Unary is a prefix operator: `not x`, `-x`.
type Unary struct {
	Op string
	X  Node
}

// Binary is an infix operator: arithmetic, comparison, or logical.
type Binary struct {
	Op   string
	L, R Node
}

// If is `if Cond then Then else Else`; Else is mandatory since every
// expression must produce a value.
type If struct {
	Cond, Then, Else Node
}

// Let declares a new binding in the enclosing scope, compiling to zero
// pushed values.
type Let struct {
	Name  string
	Value Node
}

// FnLit is a function literal. A non-empty Name makes it self-referencing
// (visible to its own body for recursion) and also binds Name as a side
// effect in the enclosing scope, the same way a named function expression
// does in other expression-oriented languages.
type FnLit struct {
	Name   string
	Params []string
	Body   Node
}

// Call applies Callee to Args, in source order.
type Call struct {
	Callee Node
	Args   []Node
}

// FieldAccess reads Object's Field.
type FieldAccess struct {
	Object Node
	Field  string
}

// Assign writes Value into Target, a mutable place: an Ident (variable
// update) or a FieldAccess (field update). It produces no value.
type Assign struct {
	Target Node
	Value  Node
}

// TypeDecl declares a record type's name and its fields, in declaration
// order. It produces no value.
type TypeDecl struct {
	Name   string
	Fields []string
}

// Construct builds a record instance. Entries may name fields in any
// order; the compiler reorders them to match the declared TypeDecl.
type Construct struct {
	Type   string
	Fields []string
	Values []Node
}

// Block is a `{ ... }`-bracketed sequence of expressions, or the implicit
// top-level program. Only its last element's value survives; every
// element is still evaluated in source order.
type Block struct {
	Exprs []Node
}

func (*IntLit) node()       {}
func (*BoolLit) node()      {}
func (*NothingLit) node()   {}
func (*Ident) node()        {}
func (*ThisFunction) node() {}
func (*Unary) node()        {}
func (*Binary) node()       {}
func (*If) node()           {}
func (*Let) node()          {}
func (*FnLit) node()        {}
func (*Call) node()         {}
func (*FieldAccess) node()  {}
func (*Assign) node()       {}
func (*TypeDecl) node()     {}
func (*Construct) node()    {}
func (*Block) node()        {}
