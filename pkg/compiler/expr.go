package compiler

import (
	"strconv"

	"github.com/kristofer/ember/pkg/lexer"
	"github.com/kristofer/ember/pkg/object"
)

// precedence levels, lowest to highest, per spec §4.3's ladder:
// |>  is  .. ..=  or  and  == !=  < <= > >=  + -  * / %  unary  call/index/.
const (
	precNone = iota
	precPipe
	precIs
	precRange
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
)

func precedenceOf(tt lexer.TokenType) int {
	switch tt {
	case lexer.TokenPipeGt:
		return precPipe
	case lexer.TokenIs:
		return precIs
	case lexer.TokenDotDot, lexer.TokenRangeEq:
		return precRange
	case lexer.TokenOr:
		return precOr
	case lexer.TokenAnd:
		return precAnd
	case lexer.TokenEqEq, lexer.TokenNotEq:
		return precEquality
	case lexer.TokenLt, lexer.TokenLe, lexer.TokenGt, lexer.TokenGe:
		return precComparison
	case lexer.TokenPlus, lexer.TokenMinus:
		return precTerm
	case lexer.TokenStar, lexer.TokenSlash, lexer.TokenPercent:
		return precFactor
	case lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenDot:
		return precCall
	default:
		return precNone
	}
}

// expression parses a full Pratt expression at minPrec or above, leaving
// exactly one value on the stack.
func (c *Compiler) expression(minPrec int) {
	c.unary()
	for precedenceOf(c.cur.Type) >= minPrec && precedenceOf(c.cur.Type) > precNone {
		c.infix()
	}
}

func (c *Compiler) unary() {
	switch c.cur.Type {
	case lexer.TokenMinus:
		c.advance()
		c.expressionAt(precUnary)
		c.emit(object.OpNegate, 0)
	case lexer.TokenNot:
		c.advance()
		c.expressionAt(precUnary)
		c.emit(object.OpNot, 0)
	default:
		c.callOrPostfix()
	}
}

// expressionAt parses one operand at the given minimum precedence,
// climbing further infix operators bound at least as tightly.
func (c *Compiler) expressionAt(minPrec int) {
	c.unary()
	for precedenceOf(c.cur.Type) >= minPrec && precedenceOf(c.cur.Type) > precNone {
		c.infix()
	}
}

func (c *Compiler) infix() {
	switch c.cur.Type {
	case lexer.TokenPipeGt:
		c.advance()
		c.expressionAt(precPipe + 1)
		c.emit(object.OpSwap2, 0)
		c.emit(object.OpCall, 1)
	case lexer.TokenIs:
		c.advance()
		c.expressionAt(precIs + 1)
		c.emit(object.OpClassIs, 0)
	case lexer.TokenDotDot:
		c.advance()
		c.expressionAt(precRange + 1)
		c.emit(object.OpMakeRange, 0)
	case lexer.TokenRangeEq:
		c.advance()
		c.expressionAt(precRange + 1)
		c.emit(object.OpMakeRangeClosed, 0)
	// `or`/`and` short-circuit and preserve the left value (spec §4.3).
	// JumpIfTrue/JumpIfFalse pop the value they test, so the left operand
	// is Duped first: the jump consumes the dup and leaves the original
	// in place on the taken branch; on the fallthrough branch the
	// original is popped explicitly before evaluating the right operand.
	case lexer.TokenOr:
		c.advance()
		c.emit(object.OpDup, 0)
		jump := c.emit(object.OpJumpIfTrue, 0)
		c.emit(object.OpPop, 0)
		c.expressionAt(precOr + 1)
		c.patchJumpHere(jump)
	case lexer.TokenAnd:
		c.advance()
		c.emit(object.OpDup, 0)
		jump := c.emit(object.OpJumpIfFalse, 0)
		c.emit(object.OpPop, 0)
		c.expressionAt(precAnd + 1)
		c.patchJumpHere(jump)
	case lexer.TokenEqEq:
		c.advance()
		c.expressionAt(precEquality + 1)
		c.emit(object.OpEq, 0)
	case lexer.TokenNotEq:
		c.advance()
		c.expressionAt(precEquality + 1)
		c.emit(object.OpNe, 0)
	case lexer.TokenLt:
		c.advance()
		c.expressionAt(precComparison + 1)
		c.emit(object.OpLt, 0)
	case lexer.TokenLe:
		c.advance()
		c.expressionAt(precComparison + 1)
		c.emit(object.OpLe, 0)
	case lexer.TokenGt:
		c.advance()
		c.expressionAt(precComparison + 1)
		c.emit(object.OpGt, 0)
	case lexer.TokenGe:
		c.advance()
		c.expressionAt(precComparison + 1)
		c.emit(object.OpGe, 0)
	case lexer.TokenPlus:
		c.advance()
		c.expressionAt(precTerm + 1)
		c.emit(object.OpAdd, 0)
	case lexer.TokenMinus:
		c.advance()
		c.expressionAt(precTerm + 1)
		c.emit(object.OpSub, 0)
	case lexer.TokenStar:
		c.advance()
		c.expressionAt(precFactor + 1)
		c.emit(object.OpMul, 0)
	case lexer.TokenSlash:
		c.advance()
		c.expressionAt(precFactor + 1)
		c.emit(object.OpDiv, 0)
	case lexer.TokenPercent:
		c.advance()
		c.expressionAt(precFactor + 1)
		c.emit(object.OpMod, 0)
	default:
		c.errorf("unexpected token %s in expression", c.cur.Type)
		c.advance()
	}
}

// callOrPostfix parses a primary expression followed by any chain of
// `(args)`, `[index]` and `.field` postfixes (spec §4.3's call/index/.
// precedence level), recording enough information in c.lastTarget for a
// trailing `=` to undo the final getter and emit a setter instead.
func (c *Compiler) callOrPostfix() {
	c.primary()
	for {
		switch c.cur.Type {
		case lexer.TokenLParen:
			c.advance()
			argc := c.argumentList(lexer.TokenRParen)
			// A `?` directly after the argument list marks this call
			// protected (spec §4.4/§4.7's TryCall): the call's frame
			// unwinds to here on any raised error, replacing the result
			// with an Error value instead of propagating.
			if c.accept(lexer.TokenQuestion) {
				c.emit(object.OpTryCall, argc)
			} else {
				c.emit(object.OpCall, argc)
			}
			c.lastTarget = assignTarget{}
		case lexer.TokenLBracket:
			c.advance()
			c.expression(precNone + 1)
			c.expect(lexer.TokenRBracket, "to close index expression")
			before := len(c.fs.chunk.Instructions)
			c.emit(object.OpGetCollection, 0)
			c.lastTarget = assignTarget{kind: targetIndex, instr: before}
		case lexer.TokenDot:
			c.advance()
			name := c.cur.Literal
			c.expect(lexer.TokenIdentifier, "after '.'")
			nameConst := c.constString(name)
			c.emit(object.OpLoad, nameConst)
			before := len(c.fs.chunk.Instructions)
			c.emit(object.OpGetCollection, 1)
			c.lastTarget = assignTarget{kind: targetField, instr: before, constIdx: nameConst}
		default:
			return
		}
	}
}

// targetKind and assignTarget record the most recently emitted assignable
// getter, per spec §4.3's "speculative emit then undo" assignment rule.
type targetKind int

const (
	targetNone targetKind = iota
	targetLocal
	targetGlobal
	targetUpvalue
	targetIndex // SetCollection mode 0, from `[...]`
	targetField // SetCollection mode 1, from `.name`
)

type assignTarget struct {
	kind     targetKind
	slot     int // local slot / upvalue index
	constIdx int // global name constant, or field-name constant
	instr    int // index of the getter instruction to undo
}

func (c *Compiler) argumentList(closing lexer.TokenType) int {
	argc := 0
	if !c.check(closing) {
		c.expression(precNone + 1)
		argc++
		for c.accept(lexer.TokenComma) {
			c.expression(precNone + 1)
			argc++
		}
	}
	c.expect(closing, "to close argument list")
	return argc
}

func (c *Compiler) primary() {
	switch c.cur.Type {
	case lexer.TokenNumber:
		n, _ := strconv.ParseFloat(c.cur.Literal, 64)
		c.advance()
		idx := c.fs.chunk.AddConstant(object.Number(n))
		c.emit(object.OpLoad, idx)
		c.lastTarget = assignTarget{}
	case lexer.TokenString:
		lit := c.cur.Literal
		c.advance()
		idx := c.constString(lit)
		c.emit(object.OpLoad, idx)
		c.lastTarget = assignTarget{}
	case lexer.TokenTrue:
		c.advance()
		c.emit(object.OpLoadTrue, 0)
		c.lastTarget = assignTarget{}
	case lexer.TokenFalse:
		c.advance()
		c.emit(object.OpLoadFalse, 0)
		c.lastTarget = assignTarget{}
	case lexer.TokenNil:
		c.advance()
		c.emit(object.OpPushNil, 0)
		c.lastTarget = assignTarget{}
	case lexer.TokenInterpBegin:
		c.advance()
		c.expression(precNone + 1)
		c.expect(lexer.TokenInterpEnd, "to close interpolation")
		stringFn := c.constString("string")
		c.emit(object.OpGetGlobal, stringFn)
		c.emit(object.OpSwap2, 0)
		c.emit(object.OpCall, 1)
		c.lastTarget = assignTarget{}
	case lexer.TokenLParen:
		c.advance()
		c.expression(precNone + 1)
		c.expect(lexer.TokenRParen, "to close parenthesized expression")
		c.lastTarget = assignTarget{}
	case lexer.TokenLBracket:
		c.arrayLiteral()
	case lexer.TokenLBrace:
		c.dictLiteral()
	case lexer.TokenPipe:
		c.lambdaLiteral()
	case lexer.TokenFunc:
		c.funcLiteralExpr()
	case lexer.TokenSuper:
		c.advance()
		c.expect(lexer.TokenDot, "after 'super'")
		name := c.cur.Literal
		c.expect(lexer.TokenIdentifier, "after 'super.'")
		if !c.fs.hasSuper {
			c.errorf("'super' used outside a subclass method")
		}
		c.emit(object.OpGetThis, 0)
		c.emit(object.OpGetGlobal, c.fs.superConst)
		nameConst := c.constString(name)
		c.emit(object.OpGetSuperMethod, nameConst)
		c.lastTarget = assignTarget{}
	case lexer.TokenIdentifier:
		name := c.cur.Literal
		c.advance()
		c.emitNameGet(name)
	default:
		c.errorf("unexpected token %s", c.cur.Type)
		c.advance()
	}
}

// emitNameGet resolves name and emits the matching getter, recording
// enough in c.lastTarget for the assignment dance to undo it.
func (c *Compiler) emitNameGet(name string) {
	if name == "this" {
		if !c.fs.isMethod {
			c.errorf("'this' used outside a method")
		}
		c.emit(object.OpGetThis, 0)
		c.lastTarget = assignTarget{}
		return
	}
	r := resolveName(c.fs, name)
	switch r.kind {
	case nameLocal:
		before := len(c.fs.chunk.Instructions)
		c.emit(object.OpGetLocal, r.slot)
		c.lastTarget = assignTarget{kind: targetLocal, slot: r.slot, instr: before}
	case nameUpvalue:
		before := len(c.fs.chunk.Instructions)
		c.emit(object.OpGetUpvalue, r.slot)
		c.lastTarget = assignTarget{kind: targetUpvalue, slot: r.slot, instr: before}
	default:
		constIdx := c.constString(name)
		before := len(c.fs.chunk.Instructions)
		c.emit(object.OpGetGlobal, constIdx)
		c.lastTarget = assignTarget{kind: targetGlobal, constIdx: constIdx, instr: before}
	}
}

func (c *Compiler) arrayLiteral() {
	c.advance() // '['
	n := 0
	if !c.check(lexer.TokenRBracket) {
		c.expression(precNone + 1)
		n++
		for c.accept(lexer.TokenComma) {
			if c.check(lexer.TokenRBracket) {
				break
			}
			c.expression(precNone + 1)
			n++
		}
	}
	c.expect(lexer.TokenRBracket, "to close array literal")
	c.emit(object.OpInitArray, n)
	c.lastTarget = assignTarget{}
}

// dictLiteral compiles `{ "k": v, ... }`. Per spec §9's resolved open
// question, InitDict only ever sees string-literal keys; dynamic keys go
// through `dict[expr] = v` at runtime instead.
func (c *Compiler) dictLiteral() {
	c.advance() // '{'
	n := 0
	if !c.check(lexer.TokenRBrace) {
		c.dictEntry()
		n++
		for c.accept(lexer.TokenComma) {
			if c.check(lexer.TokenRBrace) {
				break
			}
			c.dictEntry()
			n++
		}
	}
	c.expect(lexer.TokenRBrace, "to close dictionary literal")
	c.emit(object.OpInitDict, n)
	c.lastTarget = assignTarget{}
}

func (c *Compiler) dictEntry() {
	if !c.check(lexer.TokenString) {
		c.errorf("dictionary literal keys must be string literals")
	}
	key := c.cur.Literal
	c.advance()
	idx := c.constString(key)
	c.emit(object.OpLoad, idx)
	c.expect(lexer.TokenColon, "after dictionary key")
	c.expression(precNone + 1)
}

// lambdaLiteral compiles `|a, b| { ... }` — the anonymous function form
// used for block arguments such as fiber.create's body (spec scenario 3).
func (c *Compiler) lambdaLiteral() {
	c.advance() // '|'
	var params []string
	if !c.check(lexer.TokenPipe) {
		params = append(params, c.identifierName())
		for c.accept(lexer.TokenComma) {
			params = append(params, c.identifierName())
		}
	}
	c.expect(lexer.TokenPipe, "to close lambda parameter list")
	childIdx := c.compileFunctionBody("", params, false, false)
	c.emit(object.OpLoadChunk, childIdx)
	c.lastTarget = assignTarget{}
}

// funcLiteralExpr compiles an anonymous `func (params) { ... }` value.
func (c *Compiler) funcLiteralExpr() {
	c.advance() // 'func'
	params, variadic := c.paramList()
	childIdx := c.compileFunctionBody("", params, variadic, false)
	c.emit(object.OpLoadChunk, childIdx)
	c.lastTarget = assignTarget{}
}

func (c *Compiler) identifierName() string {
	name := c.cur.Literal
	c.expect(lexer.TokenIdentifier, "in parameter list")
	return name
}
