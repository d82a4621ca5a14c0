// Package parser turns a lexer.Token stream into an ast.Node tree. It is a
// conventional recursive-descent parser over a small expression-oriented
// grammar; like the lexer, it is an external collaborator the execution
// engine never imports (spec §1). The descent-by-precedence-level shape
// (each binary tier calling the next-tightest tier) mirrors the teacher's
// own parser package, scaled from PHP's large grammar down to Ember's
// handful of operators.
package parser

import (
	"fmt"

	"github.com/emberlang/ember/ast"
	"github.com/emberlang/ember/lexer"
)

// Error reports a syntax error at a specific position.
type Error struct {
	Pos     lexer.Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Parser holds one token of lookahead over a lexer.Lexer.
type Parser struct {
	l       *lexer.Lexer
	tok     lexer.Token
	lastErr error
}

// New constructs a Parser positioned at src's first token.
func New(src string) (*Parser, error) {
	p := &Parser{l: lexer.New(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) next() error {
	tok, err := p.l.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if p.tok.Type != tt {
		return lexer.Token{}, &Error{Pos: p.tok.Position, Message: fmt.Sprintf("expected %s, got %s", tt, p.tok.Type)}
	}
	tok := p.tok
	if err := p.next(); err != nil {
		return lexer.Token{}, err
	}
	return tok, nil
}

// ParseProgram parses an entire source file as a top-level sequence of
// semicolon-separated expressions, returning it as a single ast.Block.
func ParseProgram(src string) (*ast.Block, error) {
	p, err := New(src)
	if err != nil {
		return nil, err
	}
	exprs, err := p.parseExprSeq(lexer.EOF)
	if err != nil {
		return nil, err
	}
	if p.tok.Type != lexer.EOF {
		return nil, &Error{Pos: p.tok.Position, Message: fmt.Sprintf("unexpected trailing %s", p.tok.Type)}
	}
	return &ast.Block{Exprs: exprs}, nil
}

// parseExprSeq parses expressions separated by ';', with an optional
// trailing ';', until it sees end.
func (p *Parser) parseExprSeq(end lexer.TokenType) ([]ast.Node, error) {
	var exprs []ast.Node
	for p.tok.Type != end {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if p.tok.Type == lexer.Semicolon {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return exprs, nil
}

func (p *Parser) parseExpr() (ast.Node, error) {
	switch p.tok.Type {
	case lexer.KwLet:
		return p.parseLet()
	case lexer.KwFn:
		return p.parseFn()
	case lexer.KwIf:
		return p.parseIf()
	case lexer.KwType:
		return p.parseTypeDecl()
	}
	return p.parseAssignOrLower()
}

func (p *Parser) parseLet() (ast.Node, error) {
	if _, err := p.expect(lexer.KwLet); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Assign); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Let{Name: name.Value, Value: value}, nil
}

func (p *Parser) parseTypeDecl() (ast.Node, error) {
	if _, err := p.expect(lexer.KwType); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	var fields []string
	for p.tok.Type != lexer.RBrace {
		field, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field.Value)
		if p.tok.Type == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return &ast.TypeDecl{Name: name.Value, Fields: fields}, nil
}

func (p *Parser) parseFn() (ast.Node, error) {
	if _, err := p.expect(lexer.KwFn); err != nil {
		return nil, err
	}
	name := ""
	if p.tok.Type == lexer.Ident {
		name = p.tok.Value
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	var params []string
	for p.tok.Type != lexer.RParen {
		param, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		params = append(params, param.Value)
		if p.tok.Type == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Arrow); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.FnLit{Name: name, Params: params, Body: body}, nil
}

func (p *Parser) parseIf() (ast.Node, error) {
	if _, err := p.expect(lexer.KwIf); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KwThen); err != nil {
		return nil, err
	}
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KwElse); err != nil {
		return nil, err
	}
	elseExpr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: then, Else: elseExpr}, nil
}

// parseAssignOrLower parses `lvalue = Expr` when the parsed operand turns
// out to be an assignable place immediately followed by '='; otherwise it
// returns the operand unchanged. Assignment is handled at this single
// lowest-precedence point rather than as a dedicated grammar tier, since
// "is this an lvalue" can only be answered after parsing the operand.
func (p *Parser) parseAssignOrLower() (ast.Node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.Type != lexer.Assign {
		return left, nil
	}
	switch left.(type) {
	case *ast.Ident, *ast.FieldAccess:
	default:
		return nil, &Error{Pos: p.tok.Position, Message: "left-hand side of '=' is not assignable"}
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Assign{Target: left, Value: value}, nil
}

func (p *Parser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.KwOr {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "or", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.KwAnd {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: "and", L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.Eq || p.tok.Type == lexer.Neq {
		op := p.tok.Type
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: opName(op), L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for isRelational(p.tok.Type) {
		op := p.tok.Type
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: opName(op), L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.Plus || p.tok.Type == lexer.Minus {
		op := p.tok.Type
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: opName(op), L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.Star || p.tok.Type == lexer.Slash {
		op := p.tok.Type
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Op: opName(op), L: left, R: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Node, error) {
	switch p.tok.Type {
	case lexer.Minus:
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "-", X: x}, nil
	case lexer.KwNot:
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: "not", X: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Type {
		case lexer.Dot:
			if err := p.next(); err != nil {
				return nil, err
			}
			field, err := p.expect(lexer.Ident)
			if err != nil {
				return nil, err
			}
			node = &ast.FieldAccess{Object: node, Field: field.Value}
		case lexer.LParen:
			if err := p.next(); err != nil {
				return nil, err
			}
			var args []ast.Node
			for p.tok.Type != lexer.RParen {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.tok.Type == lexer.Comma {
					if err := p.next(); err != nil {
						return nil, err
					}
				}
			}
			if _, err := p.expect(lexer.RParen); err != nil {
				return nil, err
			}
			node = &ast.Call{Callee: node, Args: args}
		default:
			return node, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	switch p.tok.Type {
	case lexer.Int:
		return p.parseInt()
	case lexer.KwTrue:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.BoolLit{Value: true}, nil
	case lexer.KwFalse:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.BoolLit{Value: false}, nil
	case lexer.KwNothing:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.NothingLit{}, nil
	case lexer.KwThisFunction:
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.ThisFunction{}, nil
	case lexer.LParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return inner, nil
	case lexer.LBrace:
		return p.parseBraceBlock()
	case lexer.Ident:
		return p.parseIdentOrConstruct()
	}
	return nil, &Error{Pos: p.tok.Position, Message: fmt.Sprintf("unexpected %s", p.tok.Type)}
}

func (p *Parser) parseBraceBlock() (ast.Node, error) {
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	exprs, err := p.parseExprSeq(lexer.RBrace)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return &ast.Block{Exprs: exprs}, nil
}

// parseIdentOrConstruct disambiguates a bare identifier from a record
// construction `Name{field: value, ...}` by peeking for '{' right after
// the identifier.
func (p *Parser) parseIdentOrConstruct() (ast.Node, error) {
	name, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	if p.tok.Type != lexer.LBrace {
		return &ast.Ident{Name: name.Value}, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	var fields []string
	var values []ast.Node
	for p.tok.Type != lexer.RBrace {
		field, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field.Value)
		values = append(values, value)
		if p.tok.Type == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(lexer.RBrace); err != nil {
		return nil, err
	}
	return &ast.Construct{Type: name.Value, Fields: fields, Values: values}, nil
}

func (p *Parser) parseInt() (ast.Node, error) {
	tok := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	var v int64
	for _, ch := range tok.Value {
		v = v*10 + int64(ch-'0')
	}
	return &ast.IntLit{Value: v}, nil
}

func isRelational(tt lexer.TokenType) bool {
	switch tt {
	case lexer.Lt, lexer.Le, lexer.Gt, lexer.Ge:
		return true
	default:
		return false
	}
}

func opName(tt lexer.TokenType) string {
	switch tt {
	case lexer.Eq:
		return "=="
	case lexer.Neq:
		return "!="
	case lexer.Lt:
		return "<"
	case lexer.Le:
		return "<="
	case lexer.Gt:
		return ">"
	case lexer.Ge:
		return ">="
	case lexer.Plus:
		return "+"
	case lexer.Minus:
		return "-"
	case lexer.Star:
		return "*"
	case lexer.Slash:
		return "/"
	default:
		return tt.String()
	}
}
