package compiler

import (
	"github.com/kristofer/ember/pkg/lexer"
	"github.com/kristofer/ember/pkg/object"
)

func (c *Compiler) statement() {
	switch c.cur.Type {
	case lexer.TokenVar:
		c.varStatement()
	case lexer.TokenIf:
		c.ifStatement()
	case lexer.TokenWhile:
		c.whileStatement()
	case lexer.TokenFor:
		c.forStatement()
	case lexer.TokenFunc:
		c.funcStatement()
	case lexer.TokenClass:
		c.classStatement()
	case lexer.TokenReturn:
		c.returnStatement()
	case lexer.TokenExcept:
		c.exceptStatement()
	case lexer.TokenBreak:
		c.breakStatement()
	case lexer.TokenContinue:
		c.continueStatement()
	case lexer.TokenLBrace:
		c.block()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	c.expect(lexer.TokenLBrace, "to start block")
	c.fs.pushScope()
	for !c.check(lexer.TokenRBrace) && !c.check(lexer.TokenEOF) {
		c.statement()
	}
	c.expect(lexer.TokenRBrace, "to close block")
	c.fs.popScope()
}

// varStatement declares a binding, either a local in the current function
// or — only at the outermost block of the outermost (module) function —
// an exported global, per spec §4.3.
func (c *Compiler) varStatement() {
	c.advance() // 'var'
	name := c.identifierName()

	if c.accept(lexer.TokenAssign) {
		c.expression(precNone + 1)
	} else {
		c.emit(object.OpPushNil, 0)
	}

	if c.fs.depth == 0 && c.fs.atOutermostBlock() {
		constIdx := c.constString(name)
		c.emit(object.OpSetGlobal, constIdx)
	} else {
		slot := c.fs.declareLocal(name)
		c.emit(object.OpSetLocal, slot)
	}
	c.emit(object.OpPop, 0)
	c.accept(lexer.TokenSemicolon)
}

func (c *Compiler) ifStatement() {
	c.advance() // 'if'
	c.expect(lexer.TokenLParen, "after 'if'")
	c.expression(precNone + 1)
	c.expect(lexer.TokenRParen, "after if condition")

	// JumpIfFalse pops the tested condition (ops.go), so no further Pop is
	// needed here: both the fallthrough-into-block path and the
	// jumped-to-else path already see it gone.
	elseJump := c.emit(object.OpJumpIfFalse, 0)
	c.block()

	if c.accept(lexer.TokenElse) {
		endJump := c.emit(object.OpJump, 0)
		c.patchJumpHere(elseJump)
		if c.check(lexer.TokenIf) {
			c.ifStatement()
		} else {
			c.block()
		}
		c.patchJumpHere(endJump)
	} else {
		c.patchJumpHere(elseJump)
	}
}

func (c *Compiler) whileStatement() {
	c.advance() // 'while'
	loopStart := len(c.fs.chunk.Instructions)
	c.expect(lexer.TokenLParen, "after 'while'")
	c.expression(precNone + 1)
	c.expect(lexer.TokenRParen, "after while condition")

	// JumpIfFalse already pops the tested condition (ops.go); breaks jump
	// here too, and at that point the condition was already consumed on
	// entry to the block, so no extra Pop belongs on either path.
	exitJump := c.emit(object.OpJumpIfFalse, 0)

	lc := &loopContext{continueAt: loopStart}
	c.fs.loops = append(c.fs.loops, lc)
	c.block()
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]

	back := c.emit(object.OpJump, 0)
	c.patchJumpTo(back, loopStart)

	c.patchJumpHere(exitJump)

	for _, idx := range lc.breaks {
		c.patchJumpHere(idx)
	}
	for _, idx := range lc.continueJumps {
		c.patchJumpTo(idx, loopStart)
	}
}

// forStatement lowers `for (var x : expr) { ... }` to Iterator/Next per
// spec §4.3: evaluate expr, Iterator, then loop: Next, JumpIfFalse out,
// SetLocal(x), body, jump back.
func (c *Compiler) forStatement() {
	c.advance() // 'for'
	c.expect(lexer.TokenLParen, "after 'for'")
	c.expect(lexer.TokenVar, "in for-loop header")
	name := c.identifierName()
	c.expect(lexer.TokenColon, "in for-loop header")
	c.expression(precNone + 1)
	c.expect(lexer.TokenRParen, "after for-loop header")

	c.emit(object.OpIterator, 0)

	c.fs.pushScope()
	slot := c.fs.declareLocal(name)

	loopStart := len(c.fs.chunk.Instructions)
	c.emit(object.OpNext, 0)
	exitJump := c.emit(object.OpJumpIfFalse, 0)
	c.emit(object.OpSetLocal, slot)
	c.emit(object.OpPop, 0)

	lc := &loopContext{continueAt: loopStart}
	c.fs.loops = append(c.fs.loops, lc)
	c.block()
	c.fs.loops = c.fs.loops[:len(c.fs.loops)-1]

	back := c.emit(object.OpJump, 0)
	c.patchJumpTo(back, loopStart)

	c.patchJumpHere(exitJump)
	for _, idx := range lc.breaks {
		c.patchJumpHere(idx)
	}
	c.emit(object.OpPop, 0) // drop the iterator value left by Iterator

	for _, idx := range lc.continueJumps {
		c.patchJumpTo(idx, loopStart)
	}
	c.fs.popScope()
}

func (c *Compiler) breakStatement() {
	c.advance()
	lc := c.fs.currentLoop()
	if lc == nil {
		c.errorf("'break' used outside a loop")
	} else {
		idx := c.emit(object.OpJump, 0)
		lc.breaks = append(lc.breaks, idx)
	}
	c.accept(lexer.TokenSemicolon)
}

func (c *Compiler) continueStatement() {
	c.advance()
	lc := c.fs.currentLoop()
	if lc == nil {
		c.errorf("'continue' used outside a loop")
	} else {
		idx := c.emit(object.OpJump, 0)
		lc.continueJumps = append(lc.continueJumps, idx)
	}
	c.accept(lexer.TokenSemicolon)
}

func (c *Compiler) returnStatement() {
	c.advance()
	if c.check(lexer.TokenSemicolon) || c.check(lexer.TokenRBrace) {
		c.emit(object.OpPushNil, 0)
	} else {
		c.expression(precNone + 1)
	}
	c.emit(object.OpReturn, 0)
	c.accept(lexer.TokenSemicolon)
}

// exceptStatement compiles the explicit error-raise form (spec §4.4):
// unwinds like return but the VM wraps the value in an Error dictionary.
func (c *Compiler) exceptStatement() {
	c.advance()
	if c.check(lexer.TokenSemicolon) || c.check(lexer.TokenRBrace) {
		c.emit(object.OpPushNil, 0)
	} else {
		c.expression(precNone + 1)
	}
	c.emit(object.OpExcept, 0)
	c.accept(lexer.TokenSemicolon)
}

// expressionStatement implements the assignment-vs-rvalue dance: parse a
// primary-with-postfixes chain, then check for `=`. If found, undo the
// speculatively emitted getter and emit the matching setter; otherwise
// keep climbing the full Pratt ladder as an ordinary expression.
func (c *Compiler) expressionStatement() {
	c.unary()
	if c.lastTarget.kind != targetNone && c.check(lexer.TokenAssign) {
		target := c.lastTarget
		c.truncateLast()
		c.advance() // '='
		c.expression(precNone + 1)
		switch target.kind {
		case targetLocal:
			c.emit(object.OpSetLocal, target.slot)
		case targetUpvalue:
			c.emit(object.OpSetUpvalue, target.slot)
		case targetGlobal:
			c.emit(object.OpSetGlobal, target.constIdx)
		case targetField:
			c.emit(object.OpSetCollection, 1)
		case targetIndex:
			c.emit(object.OpSetCollection, 0)
		}
	} else {
		for precedenceOf(c.cur.Type) >= precNone+1 && precedenceOf(c.cur.Type) > precNone {
			c.infix()
		}
	}
	c.emit(object.OpPop, 0)
	c.accept(lexer.TokenSemicolon)
}

// paramList parses `(a, b, ...)`, returning the named parameters and
// whether the list ends with a bare `...` marking the function variadic
// (spec scenario 6; surplus arguments are read back via the `va_arg()`
// builtin, not bound to a name).
func (c *Compiler) paramList() ([]string, bool) {
	c.expect(lexer.TokenLParen, "before parameter list")
	var params []string
	variadic := false
	if !c.check(lexer.TokenRParen) {
		for {
			if c.accept(lexer.TokenEllipsis) {
				variadic = true
				break
			}
			params = append(params, c.identifierName())
			if !c.accept(lexer.TokenComma) {
				break
			}
		}
	}
	c.expect(lexer.TokenRParen, "to close parameter list")
	return params, variadic
}

// compileFunctionBody compiles `{ ... }` as a new child chunk of the
// current function, returning its index for a LoadChunk. When
// implicitReturnThis is set (only for a class's __init__), the implicit
// trailing return pushes `this` instead of nil (spec §4.3).
func (c *Compiler) compileFunctionBody(name string, params []string, variadic, implicitReturnThis bool) int {
	child := object.NewChunk(name)
	child.NumParams = len(params)
	child.Variadic = variadic

	parent := c.fs
	fs := newFuncState(parent, child, parent.isMethodContext)
	fs.hasSuper = parent.pendingSuper
	if parent.pendingSuper {
		fs.superConst = child.AddConstant(parent.chunk.Constants[parent.pendingSuperConst])
	}
	c.fs = fs

	for _, p := range params {
		c.fs.declareLocal(p)
	}

	c.expect(lexer.TokenLBrace, "to start function body")
	for !c.check(lexer.TokenRBrace) && !c.check(lexer.TokenEOF) {
		c.statement()
	}
	c.expect(lexer.TokenRBrace, "to close function body")

	if implicitReturnThis {
		c.emit(object.OpGetThis, 0)
	} else {
		c.emit(object.OpPushNil, 0)
	}
	c.emit(object.OpReturn, 0)

	c.fs = parent
	return parent.chunk.AddChild(child)
}

// funcStatement compiles `func name(params) { ... }` as sugar for
// `var name = <the compiled closure>` (spec scenario 1 declares fib this
// way at module scope; the same form works for a local function nested
// inside another body).
func (c *Compiler) funcStatement() {
	c.advance() // 'func'
	name := c.identifierName()
	params, variadic := c.paramList()
	childIdx := c.compileFunctionBody(name, params, variadic, false)
	c.emit(object.OpLoadChunk, childIdx)

	if c.fs.depth == 0 && c.fs.atOutermostBlock() {
		constIdx := c.constString(name)
		c.emit(object.OpSetGlobal, constIdx)
	} else {
		slot := c.fs.declareLocal(name)
		c.emit(object.OpSetLocal, slot)
	}
	c.emit(object.OpPop, 0)
}

// classStatement compiles `class Name[:Super] { func m(...) {...} ... }`
// per spec §4.3's class-compilation recipe.
func (c *Compiler) classStatement() {
	c.advance() // 'class'
	name := c.identifierName()

	nameConst := c.constString(name)
	c.emit(object.OpInitClass, nameConst)

	hasSuper := false
	superConst := 0
	if c.accept(lexer.TokenColon) {
		superName := c.identifierName()
		superConst = c.constString(superName)
		c.emit(object.OpGetGlobal, superConst)
		c.emit(object.OpClassExtend, 0)
		hasSuper = true
	}

	c.expect(lexer.TokenLBrace, "to start class body")
	for !c.check(lexer.TokenRBrace) && !c.check(lexer.TokenEOF) {
		c.expect(lexer.TokenFunc, "in class body")
		methodName := c.identifierName()
		params, variadic := c.paramList()

		methodNameConst := c.constString(methodName)
		c.emit(object.OpLoad, methodNameConst)

		c.fs.isMethodContext = true
		c.fs.pendingSuper = hasSuper
		c.fs.pendingSuperConst = superConst
		childIdx := c.compileFunctionBody(methodName, params, variadic, methodName == "__init__")
		c.fs.isMethodContext = false
		c.fs.pendingSuper = false

		c.emit(object.OpLoadChunk, childIdx)
		c.emit(object.OpAddMethod, 0)
	}
	c.expect(lexer.TokenRBrace, "to close class body")

	if c.fs.depth == 0 && c.fs.atOutermostBlock() {
		c.emit(object.OpSetGlobal, nameConst)
	} else {
		slot := c.fs.declareLocal(name)
		c.emit(object.OpSetLocal, slot)
	}
	c.emit(object.OpPop, 0)
}
