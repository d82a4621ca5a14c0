// Package compiler turns an ast.Node tree into bytecode: opcodes.
// Instruction streams appended to a block.Store, matching the
// Compiler -> core contract spec §6 describes (leaf functions compiled and
// appended first, block 0 is the top-level, every symbol operand drawn
// from one shared interner). Like the lexer, ast, and parser packages, the
// compiler is an external collaborator the execution engine never imports
// (spec §1) — this file is the one place in the repository that knows both
// the surface language and the bytecode it must produce.
package compiler

import (
	"github.com/emberlang/ember/ast"
	"github.com/emberlang/ember/block"
	"github.com/emberlang/ember/opcodes"
	"github.com/emberlang/ember/symbol"
	"github.com/emberlang/ember/values"
)

// Compile compiles an entire parsed program into a fresh block.Store whose
// block 0 is the top-level's instruction stream.
func Compile(program *ast.Block, interner *symbol.Interner) (*block.Store, error) {
	c := &compiler{
		interner: interner,
		blocks:   block.NewStore(),
		types:    make(map[string][]symbol.Symbol),
	}

	// Reserve index 0 for the top-level block before compiling anything
	// else, since nested function bodies discovered while walking the
	// top-level sequence get appended (and so claim the next free index)
	// before the top-level's own stream is complete.
	topRef := c.blocks.Add(nil)

	e := &emitter{}
	if err := c.compileSequence(e, program.Exprs, false); err != nil {
		return nil, err
	}
	c.blocks.Set(topRef, e.instrs)

	return c.blocks, nil
}

// compiler carries the state threaded through one Compile call: the
// shared symbol interner, the block store every function body gets
// appended to, and the field order of every record type declared so far.
type compiler struct {
	interner *symbol.Interner
	blocks   *block.Store
	types    map[string][]symbol.Symbol
}

// emitter accumulates one block's instruction stream. Every compile*
// method appends directly to the same emitter for the block it belongs
// to, so a forward jump is emitted with a placeholder target and
// backpatched by patchTarget with an absolute position once the code it
// jumps over has been emitted.
type emitter struct {
	instrs []opcodes.Instruction
}

func (e *emitter) emit(op opcodes.Opcode, arg interface{}) int {
	idx := len(e.instrs)
	e.instrs = append(e.instrs, opcodes.Instruction{Op: op, Arg: arg})
	return idx
}

func (e *emitter) pos() int { return len(e.instrs) }

func (e *emitter) patchTarget(idx, target int) {
	e.instrs[idx].Arg = target
}

// compileSequence compiles stmts in order, discarding every non-final
// value so the net stack effect of the whole sequence is exactly one
// value, per the implicit-return invariant every block must uphold. When
// scoped, the sequence's local `let`s live in a fresh environment node
// that's torn down (ExitScope) once the sequence finishes; the top-level
// program is compiled unscoped, so its bindings land directly in frame 0's
// environment for other frames' global-fallback resolution to see.
func (c *compiler) compileSequence(e *emitter, stmts []ast.Node, scoped bool) error {
	if scoped {
		e.emit(opcodes.EnterScope, nil)
	}

	if len(stmts) == 0 {
		e.emit(opcodes.LoadConst, values.NewNothing())
	}
	for i, stmt := range stmts {
		if err := c.compileExpr(e, stmt); err != nil {
			return err
		}
		last := i == len(stmts)-1
		switch {
		case last && !producesValue(stmt):
			e.emit(opcodes.LoadConst, values.NewNothing())
		case !last && producesValue(stmt):
			e.emit(opcodes.PopAndDiscard, nil)
		}
	}

	if scoped {
		e.emit(opcodes.ExitScope, nil)
	}
	return nil
}

// producesValue reports whether node leaves exactly one value on the
// operand stack when compiled. Let, Assign, and TypeDecl compile straight
// to a binding-table mutation opcode (CREATE_BINDING, UPDATE_BINDING,
// UPDATE_FIELD) that consumes its operands without pushing a result.
func producesValue(node ast.Node) bool {
	switch node.(type) {
	case *ast.Let, *ast.Assign, *ast.TypeDecl:
		return false
	default:
		return true
	}
}

func (c *compiler) compileExpr(e *emitter, node ast.Node) error {
	switch n := node.(type) {
	case *ast.IntLit:
		e.emit(opcodes.LoadConst, values.NewInteger(n.Value))
	case *ast.BoolLit:
		e.emit(opcodes.LoadConst, values.NewBoolean(n.Value))
	case *ast.NothingLit:
		e.emit(opcodes.LoadConst, values.NewNothing())
	case *ast.ThisFunction:
		e.emit(opcodes.ThisFunction, nil)
	case *ast.Ident:
		c.emitSymbol(e, n.Name)
		e.emit(opcodes.ResolveBinding, nil)
	case *ast.Unary:
		return c.compileUnary(e, n)
	case *ast.Binary:
		return c.compileBinary(e, n)
	case *ast.If:
		return c.compileIf(e, n)
	case *ast.Let:
		if err := c.compileExpr(e, n.Value); err != nil {
			return err
		}
		c.emitSymbol(e, n.Name)
		e.emit(opcodes.CreateBinding, nil)
	case *ast.Assign:
		return c.compileAssign(e, n)
	case *ast.FieldAccess:
		if err := c.compileExpr(e, n.Object); err != nil {
			return err
		}
		c.emitSymbol(e, n.Field)
		e.emit(opcodes.ResolveField, nil)
	case *ast.Call:
		return c.compileCall(e, n)
	case *ast.FnLit:
		return c.compileFnLit(e, n)
	case *ast.TypeDecl:
		return c.compileTypeDecl(e, n)
	case *ast.Construct:
		return c.compileConstruct(e, n)
	case *ast.Block:
		return c.compileSequence(e, n.Exprs, true)
	default:
		return errorf("compiler: unhandled node type %T", node)
	}
	return nil
}

func (c *compiler) emitSymbol(e *emitter, name string) {
	e.emit(opcodes.LoadConst, values.NewSymbol(c.interner.Intern(name)))
}

func (c *compiler) compileUnary(e *emitter, n *ast.Unary) error {
	switch n.Op {
	case "-":
		e.emit(opcodes.LoadConst, values.NewInteger(0))
		if err := c.compileExpr(e, n.X); err != nil {
			return err
		}
		e.emit(opcodes.Sub, nil)
	case "not":
		if err := c.compileExpr(e, n.X); err != nil {
			return err
		}
		e.emit(opcodes.Not, nil)
	default:
		return errorf("compiler: unknown unary operator %q", n.Op)
	}
	return nil
}

var binaryOps = map[string]opcodes.Opcode{
	"+": opcodes.Add, "-": opcodes.Sub, "*": opcodes.Mul, "/": opcodes.Div,
	"==": opcodes.Eq, "!=": opcodes.Neq,
	"<": opcodes.Lt, "<=": opcodes.Le, ">": opcodes.Gt, ">=": opcodes.Ge,
	"and": opcodes.And, "or": opcodes.Or,
}

func (c *compiler) compileBinary(e *emitter, n *ast.Binary) error {
	op, ok := binaryOps[n.Op]
	if !ok {
		return errorf("compiler: unknown binary operator %q", n.Op)
	}
	if err := c.compileExpr(e, n.L); err != nil {
		return err
	}
	if err := c.compileExpr(e, n.R); err != nil {
		return err
	}
	e.emit(op, nil)
	return nil
}

// compileIf implements `if cond then A else B` on top of POP_JUMP's
// "jump iff not Nothing" primitive (spec §4.5). Since none of Ember's
// comparison or logical opcodes ever produce Nothing for a false result,
// the boolean cond is routed through a private sentinel builtin that maps
// true -> Nothing (fall through to A) and false -> a non-Nothing value
// (jump to B), the same translation original_source's compiler performs
// implicitly by choosing what constant to push.
func (c *compiler) compileIf(e *emitter, n *ast.If) error {
	if err := c.compileExpr(e, n.Cond); err != nil {
		return err
	}
	e.emit(opcodes.LoadConst, values.NewInteger(1))
	e.emit(opcodes.LoadConst, sentinelValue)
	e.emit(opcodes.PopAndCallFunction, nil)

	popJumpIdx := e.emit(opcodes.PopJump, 0)
	if err := c.compileExpr(e, n.Then); err != nil {
		return err
	}
	jumpIdx := e.emit(opcodes.Jump, 0)
	e.patchTarget(popJumpIdx, e.pos())
	if err := c.compileExpr(e, n.Else); err != nil {
		return err
	}
	e.patchTarget(jumpIdx, e.pos())
	return nil
}

func (c *compiler) compileAssign(e *emitter, n *ast.Assign) error {
	switch target := n.Target.(type) {
	case *ast.Ident:
		if err := c.compileExpr(e, n.Value); err != nil {
			return err
		}
		c.emitSymbol(e, target.Name)
		e.emit(opcodes.UpdateBinding, nil)
	case *ast.FieldAccess:
		if err := c.compileExpr(e, n.Value); err != nil {
			return err
		}
		if err := c.compileExpr(e, target.Object); err != nil {
			return err
		}
		c.emitSymbol(e, target.Field)
		e.emit(opcodes.UpdateField, nil)
	default:
		return errorf("compiler: assignment target %T is not assignable", n.Target)
	}
	return nil
}

// compileCall pushes arguments in reverse source order so that, by the
// time POP_AND_CALL_FUNCTION's handler pops them back off (innermost
// first), argument i lands at index i in both a user Function's parameter
// binding and a Builtin's args slice (spec §4.5 "Call dispatch" pops the
// callee first, then the declared count, then that many values).
func (c *compiler) compileCall(e *emitter, n *ast.Call) error {
	for i := len(n.Args) - 1; i >= 0; i-- {
		if err := c.compileExpr(e, n.Args[i]); err != nil {
			return err
		}
	}
	e.emit(opcodes.LoadConst, values.NewInteger(int64(len(n.Args))))
	if err := c.compileExpr(e, n.Callee); err != nil {
		return err
	}
	e.emit(opcodes.PopAndCallFunction, nil)
	return nil
}

// compileFnLit compiles n's body into its own block and leaves a Function
// value on the stack. A named FnLit additionally binds Name to the
// constructed function before evaluation completes, so recursive calls
// inside the body resolve through the normal environment chain rather
// than through a separate letrec mechanism: CREATE_BINDING reserves the
// slot (holding Nothing) before CONSTRUCT_FUNCTION captures the current
// environment, so the closure already contains Name by the time
// UPDATE_BINDING mutates it in place.
func (c *compiler) compileFnLit(e *emitter, n *ast.FnLit) error {
	paramSyms := make([]symbol.Symbol, len(n.Params))
	for i, p := range n.Params {
		paramSyms[i] = c.interner.Intern(p)
	}

	body := &emitter{}
	if err := c.compileExpr(body, n.Body); err != nil {
		return err
	}
	if !producesValue(n.Body) {
		body.emit(opcodes.LoadConst, values.NewNothing())
	}
	blockRef := c.blocks.Add(body.instrs)

	if n.Name == "" {
		emitConstructFunction(e, paramSyms, blockRef)
		return nil
	}

	nameSym := c.interner.Intern(n.Name)
	e.emit(opcodes.LoadConst, values.NewNothing())
	e.emit(opcodes.LoadConst, values.NewSymbol(nameSym))
	e.emit(opcodes.CreateBinding, nil)

	emitConstructFunction(e, paramSyms, blockRef)

	e.emit(opcodes.LoadConst, values.NewSymbol(nameSym))
	e.emit(opcodes.UpdateBinding, nil)
	e.emit(opcodes.LoadConst, values.NewSymbol(nameSym))
	e.emit(opcodes.ResolveBinding, nil)
	return nil
}

// emitConstructFunction pushes params in declaration order (the opposite
// convention from compileCall's arguments: CONSTRUCT_FUNCTION's handler
// assigns params[count-i-1] to the i-th popped symbol, which recovers
// natural order only when the natural order was pushed first).
func emitConstructFunction(e *emitter, params []symbol.Symbol, blockRef block.Reference) {
	for _, sym := range params {
		e.emit(opcodes.LoadConst, values.NewSymbol(sym))
	}
	e.emit(opcodes.LoadConst, values.NewInteger(int64(len(params))))
	e.emit(opcodes.ConstructFunction, int(blockRef))
}

// compileTypeDecl declares a record type: it builds a Constructor cell
// whose Fields match n.Fields in order, then binds n.Name to it.
// CONSTRUCT_CONSTRUCTOR's handler assigns fields[i] to the i-th popped
// symbol, so fields must be pushed in reverse declaration order to land
// in natural order inside the cell.
func (c *compiler) compileTypeDecl(e *emitter, n *ast.TypeDecl) error {
	fieldSyms := make([]symbol.Symbol, len(n.Fields))
	for i, f := range n.Fields {
		fieldSyms[i] = c.interner.Intern(f)
	}
	for i := len(fieldSyms) - 1; i >= 0; i-- {
		e.emit(opcodes.LoadConst, values.NewSymbol(fieldSyms[i]))
	}
	e.emit(opcodes.LoadConst, values.NewInteger(int64(len(fieldSyms))))
	e.emit(opcodes.ConstructConstructor, nil)

	c.emitSymbol(e, n.Name)
	e.emit(opcodes.CreateBinding, nil)

	c.types[n.Name] = fieldSyms
	return nil
}

// compileConstruct builds an instance of a previously declared record
// type. Field values may be written in any source order; they are
// reordered here to match the constructor's declared field order, then
// pushed in reverse (mirroring the pop order of POP_AND_CALL_FUNCTION's
// Constructor case, identical in shape to CONSTRUCT_CONSTRUCTOR's own
// field-gathering loop) before the
// constructor itself is resolved and called.
func (c *compiler) compileConstruct(e *emitter, n *ast.Construct) error {
	declared, ok := c.types[n.Type]
	if !ok {
		return errorf("compiler: unknown record type %q", n.Type)
	}
	if len(n.Fields) != len(declared) {
		return errorf("compiler: %s expects %d fields, got %d", n.Type, len(declared), len(n.Fields))
	}

	bySymbol := make(map[symbol.Symbol]ast.Node, len(n.Fields))
	for i, name := range n.Fields {
		bySymbol[c.interner.Intern(name)] = n.Values[i]
	}

	for i := len(declared) - 1; i >= 0; i-- {
		value, ok := bySymbol[declared[i]]
		if !ok {
			return errorf("compiler: %s is missing field %q", n.Type, c.interner.Name(declared[i]))
		}
		if err := c.compileExpr(e, value); err != nil {
			return err
		}
	}

	e.emit(opcodes.LoadConst, values.NewInteger(int64(len(declared))))
	c.emitSymbol(e, n.Type)
	e.emit(opcodes.ResolveBinding, nil)
	e.emit(opcodes.PopAndCallFunction, nil)
	return nil
}
