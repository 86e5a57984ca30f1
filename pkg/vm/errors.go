// Package vm implements the fetch-decode-execute loop over object.Chunk
// instructions: call frames, upvalue closing, fiber scheduling, operator
// protocol dispatch and the module loader (spec §4.4-§4.8).
package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one entry of a RuntimeError's captured call stack —
// kristofer-smog's pkg/vm/errors.go StackFrame, generalized from a
// message-send selector to this language's (row, col) line provenance.
type StackFrame struct {
	Name       string
	SourceLine int
	IP         int
}

// RuntimeError is an unrecovered evaluation error surfaced to the host,
// carrying the call stack active when it was raised (spec §7).
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			f := e.StackTrace[i]
			b.WriteString(fmt.Sprintf("\n  at %s", f.Name))
			if f.SourceLine > 0 {
				b.WriteString(fmt.Sprintf(" [line %d]", f.SourceLine))
			}
			b.WriteString(fmt.Sprintf(" [ip %d]", f.IP))
		}
	}
	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}

// captureStack walks the current fiber's frames into StackFrame records,
// innermost first.
func (vm *VM) captureStack() []StackFrame {
	f := vm.current
	stack := make([]StackFrame, 0, len(f.Frames))
	for i := len(f.Frames) - 1; i >= 0; i-- {
		fr := f.Frames[i]
		line := 0
		if fr.PC >= 0 && fr.PC < len(fr.Closure.Chunk.Lines) {
			line = fr.Closure.Chunk.Lines[fr.PC]
		}
		name := fr.Closure.Chunk.Name
		if name == "" {
			name = "<anonymous>"
		}
		stack = append(stack, StackFrame{Name: name, SourceLine: line, IP: fr.PC})
	}
	return stack
}

func (vm *VM) runtimeErrorf(format string, args ...interface{}) error {
	return newRuntimeError(fmt.Sprintf(format, args...), vm.captureStack())
}
