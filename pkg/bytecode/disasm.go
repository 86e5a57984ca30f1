// Package bytecode formats object.Chunk values for humans: the
// `ember disassemble` CLI subcommand and debugger trace lines.
//
// kristofer-smog keeps this concern in its own pkg/bytecode alongside the
// opcode/instruction definitions; here the definitions themselves moved
// into pkg/object (so Value and Chunk, which reference each other through
// Closure, can live in one package without an import cycle — see
// DESIGN.md), leaving this package purely about presentation, the same
// split smog draws between bytecode.go and format.go.
package bytecode

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/kristofer/ember/pkg/object"
)

// Disassemble renders chunk (and, recursively, every child chunk) as a
// table of line / offset / opcode / operands, using tablewriter the same
// way go-probeum's retrieved dependency list suggests for columnar CLI
// output.
func Disassemble(chunk *object.Chunk) string {
	var b strings.Builder
	disassembleOne(&b, chunk, chunk.Name)
	return b.String()
}

func disassembleOne(b *strings.Builder, chunk *object.Chunk, name string) {
	fmt.Fprintf(b, "== %s ==\n", name)

	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"line", "offset", "op", "operands"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	prevLine := -1
	for i, in := range chunk.Instructions {
		line := chunk.Lines[i]
		lineCol := "|"
		if line != prevLine {
			lineCol = fmt.Sprintf("%d", line)
			prevLine = line
		}
		table.Append([]string{lineCol, fmt.Sprintf("%04d", i), in.Op.String(), operandString(chunk, in)})
	}
	table.Render()

	for i, child := range chunk.Children {
		childName := child.Name
		if childName == "" {
			childName = fmt.Sprintf("%s/child[%d]", name, i)
		}
		fmt.Fprintln(b)
		disassembleOne(b, child, childName)
	}
}

func operandString(chunk *object.Chunk, in object.Instruction) string {
	switch in.Op {
	case object.OpLoad:
		if in.A >= 0 && in.A < len(chunk.Constants) {
			return fmt.Sprintf("%d ; %s", in.A, describeConstant(chunk.Constants[in.A]))
		}
		return fmt.Sprintf("%d", in.A)
	case object.OpLoadChunk:
		return fmt.Sprintf("%d", in.A)
	case object.OpGetLocal, object.OpSetLocal, object.OpGetUpvalue, object.OpSetUpvalue,
		object.OpGetGlobal, object.OpSetGlobal, object.OpJump, object.OpJumpIfFalse,
		object.OpJumpIfTrue, object.OpCall, object.OpTryCall, object.OpGetCollection,
		object.OpSetCollection:
		return fmt.Sprintf("%d", in.A)
	default:
		if in.A == 0 && in.B == 0 {
			return ""
		}
		return fmt.Sprintf("%d %d", in.A, in.B)
	}
}

func describeConstant(v object.Value) string {
	switch v.Kind() {
	case object.KindString:
		return fmt.Sprintf("%q", v.AsString().Text())
	case object.KindNumber:
		return fmt.Sprintf("%g", v.AsNumber())
	default:
		return v.Kind().String()
	}
}
