// Package compiler implements the single-pass Pratt parser and bytecode
// emitter described in spec §4.3: tokens go straight to a Chunk, with no
// intermediate syntax tree — name resolution, closure capture and
// constant-pool entries for literals all happen during the one descent.
//
// kristofer-smog splits this concern into pkg/parser (producing an AST)
// and pkg/compiler (lowering the AST to bytecode). This language skips
// the tree entirely, so the two are fused here; the curTok/peekTok
// lookahead and advance() shape nonetheless follows smog's
// pkg/parser/parser.go, and the emit/addConstant helpers follow smog's
// pkg/compiler/compiler.go.
package compiler

import (
	"fmt"

	"github.com/kristofer/ember/pkg/lexer"
	"github.com/kristofer/ember/pkg/object"
	"github.com/kristofer/ember/pkg/strpool"
)

// Compiler drives a single compilation from source text to a top-level
// Chunk. One Compiler is used for exactly one Compile call.
type Compiler struct {
	toks []lexer.Token
	pos  int

	cur  lexer.Token
	peek lexer.Token

	fs   *funcState
	pool *strpool.Pool

	// lastTarget records the most recently emitted assignable getter, so
	// a statement-level assignment can undo it (spec §4.3).
	lastTarget assignTarget

	errs []*CompileError
}

// Compile lexes and compiles source into a top-level Chunk representing
// the module body. Every nested function, method and lambda becomes a
// child chunk reachable through LoadChunk, per spec §4.3. pool must be
// the same string pool the VM interns runtime strings into, so that
// compile-time literal constants and runtime-built strings compare equal
// by handle identity (spec §9's open question on string `==`).
func Compile(source, chunkName string, pool *strpool.Pool) (*object.Chunk, error) {
	l := lexer.New(source)
	c := &Compiler{toks: l.Tokenize(), pool: pool}
	c.cur = c.toks[0]
	if len(c.toks) > 1 {
		c.peek = c.toks[1]
	}

	top := object.NewChunk(chunkName)
	c.fs = newFuncState(nil, top, false)

	// The value of a trailing expression statement is the module's result
	// (what Run returns and the REPL echoes): its closing Pop is dropped.
	// Any other trailing statement leaves nil as the result.
	lastIsExpr := false
	for c.cur.Type != lexer.TokenEOF {
		switch c.cur.Type {
		case lexer.TokenVar, lexer.TokenIf, lexer.TokenWhile, lexer.TokenFor, lexer.TokenFunc, lexer.TokenClass,
			lexer.TokenReturn, lexer.TokenExcept, lexer.TokenBreak, lexer.TokenContinue, lexer.TokenLBrace:
			lastIsExpr = false
		default:
			lastIsExpr = true
		}
		c.statement()
	}
	if n := len(top.Instructions); lastIsExpr && n > 0 && top.Instructions[n-1].Op == object.OpPop {
		c.truncateLast()
	} else {
		top.Emit(object.OpPushNil, 0, 0, c.cur.Row)
	}
	top.Emit(object.OpReturn, 0, 0, c.cur.Row)

	if len(c.errs) > 0 {
		return nil, &Errors{List: c.errs}
	}
	return top, nil
}

func (c *Compiler) advance() {
	c.pos++
	c.cur = c.peek
	if c.pos+1 < len(c.toks) {
		c.peek = c.toks[c.pos+1]
	} else {
		c.peek = lexer.Token{Type: lexer.TokenEOF}
	}
}

func (c *Compiler) check(tt lexer.TokenType) bool { return c.cur.Type == tt }

func (c *Compiler) accept(tt lexer.TokenType) bool {
	if c.check(tt) {
		c.advance()
		return true
	}
	return false
}

// expect consumes the current token if it matches tt, else records an
// error. It always advances — even on mismatch — so a single malformed
// token can never stall the parser in an infinite loop.
func (c *Compiler) expect(tt lexer.TokenType, context string) {
	if !c.check(tt) {
		c.errorf("expected %s %s, got %s", tt, context, c.cur.Type)
	}
	c.advance()
}

func (c *Compiler) errorf(format string, args ...interface{}) {
	c.errs = append(c.errs, &CompileError{Row: c.cur.Row, Col: c.cur.Col, Message: fmt.Sprintf(format, args...)})
}

// emit appends one instruction to the current function's chunk, returning
// its index for later back-patching.
func (c *Compiler) emit(op object.Opcode, a int) int {
	return c.fs.chunk.Emit(op, a, 0, c.cur.Row)
}

func (c *Compiler) emit2(op object.Opcode, a, b int) int {
	return c.fs.chunk.Emit(op, a, b, c.cur.Row)
}

// truncateLast removes the most recently emitted instruction — used by
// the assignment-vs-rvalue dance (spec §4.3) to undo a speculatively
// emitted getter once the parser discovers a trailing `=`.
func (c *Compiler) truncateLast() {
	ch := c.fs.chunk
	ch.Instructions = ch.Instructions[:len(ch.Instructions)-1]
	ch.Lines = ch.Lines[:len(ch.Lines)-1]
}

// patchJumpHere rewrites the operand of the jump instruction at index so
// it lands on the next instruction to be emitted (spec §6: "jump offsets
// are signed and resolved relative to the position of the jump
// instruction itself").
func (c *Compiler) patchJumpHere(index int) {
	target := len(c.fs.chunk.Instructions)
	c.fs.chunk.Patch(index, target-index)
}

func (c *Compiler) patchJumpTo(index, target int) {
	c.fs.chunk.Patch(index, target-index)
}

// constString interns s and adds it as a String constant of the current
// chunk, returning its index. Every chunk keeps its own constant pool, so
// a name referenced from several functions is interned once (handle
// identity survives) but indexed separately per chunk.
func (c *Compiler) constString(s string) int {
	return c.fs.chunk.AddConstant(object.String(c.pool.Intern(s)))
}
