package bytecode

import (
	"strings"
	"testing"

	"github.com/kristofer/ember/pkg/object"
)

func TestDisassembleListsInstructionsAndConstants(t *testing.T) {
	chunk := object.NewChunk("main")
	idx := chunk.AddConstant(object.Number(42))
	chunk.Emit(object.OpLoad, idx, 0, 1)
	chunk.Emit(object.OpReturn, 0, 0, 1)

	out := Disassemble(chunk)
	if !strings.Contains(out, "== main ==") {
		t.Fatalf("expected chunk header, got:\n%s", out)
	}
	if !strings.Contains(out, "LOAD") || !strings.Contains(out, "42") {
		t.Fatalf("expected LOAD of constant 42 in output, got:\n%s", out)
	}
	if !strings.Contains(out, "RETURN") {
		t.Fatalf("expected RETURN in output, got:\n%s", out)
	}
}

func TestDisassembleRecursesIntoChildChunks(t *testing.T) {
	parent := object.NewChunk("main")
	child := object.NewChunk("fn")
	child.Emit(object.OpReturn, 0, 0, 3)
	parent.AddChild(child)
	parent.Emit(object.OpLoadChunk, 0, 0, 2)

	out := Disassemble(parent)
	if !strings.Contains(out, "== fn ==") {
		t.Fatalf("expected nested chunk header, got:\n%s", out)
	}
}
