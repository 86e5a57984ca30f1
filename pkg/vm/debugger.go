package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/kristofer/ember/pkg/bytecode"
	"github.com/kristofer/ember/pkg/object"
)

// Debugger provides interactive breakpoint/step debugging over a VM, the
// same "pause, inspect, continue" shape as kristofer-smog's debugger.go,
// adapted from its stack-machine `ip`/`sp`/`locals`/`globals` fields to
// this VM's fiber/frame model, and from its ad-hoc %v/%T dumps to
// go-spew's structured formatting.
type Debugger struct {
	vm          *VM
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool

	in  *bufio.Scanner
	out io.Writer
}

// NewDebugger creates a debugger attached to vm, reading commands from in
// and writing prompts/output to out.
func NewDebugger(vm *VM, in io.Reader, out io.Writer) *Debugger {
	return &Debugger{
		vm:          vm,
		breakpoints: make(map[int]bool),
		in:          bufio.NewScanner(in),
		out:         out,
	}
}

func (d *Debugger) Enable()                { d.enabled = true }
func (d *Debugger) Disable()               { d.enabled = false }
func (d *Debugger) SetStepMode(on bool)     { d.stepMode = on }
func (d *Debugger) AddBreakpoint(pc int)    { d.breakpoints[pc] = true }
func (d *Debugger) RemoveBreakpoint(pc int) { delete(d.breakpoints, pc) }
func (d *Debugger) ClearBreakpoints()       { d.breakpoints = make(map[int]bool) }

// ShouldPause reports whether execution should stop before the current
// fiber's next instruction: either step mode is on, or its PC lands on a
// breakpoint.
func (d *Debugger) ShouldPause() bool {
	if !d.enabled {
		return false
	}
	if d.stepMode {
		return true
	}
	frame := d.vm.current.CurrentFrame()
	if frame == nil {
		return false
	}
	return d.breakpoints[frame.PC]
}

// Run drives vm one instruction at a time, pausing into an interactive
// prompt whenever ShouldPause is true, until the program finishes.
func (d *Debugger) Run() (object.Value, error) {
	d.enabled = true
	for {
		if len(d.vm.current.Frames) == 0 {
			if d.vm.current.Len() > 0 {
				return d.vm.current.Pop(), nil
			}
			return object.Nil, nil
		}
		if d.ShouldPause() {
			if !d.prompt() {
				return object.Nil, fmt.Errorf("debugger: execution aborted")
			}
		}
		if err := d.vm.step(); err != nil {
			return object.Nil, err
		}
	}
}

func (d *Debugger) showCurrentInstruction() {
	frame := d.vm.current.CurrentFrame()
	if frame == nil {
		fmt.Fprintln(d.out, "no current instruction")
		return
	}
	chunk := frame.Closure.Chunk
	if frame.PC >= len(chunk.Instructions) {
		fmt.Fprintln(d.out, "no current instruction")
		return
	}
	in := chunk.Instructions[frame.PC]
	fmt.Fprintf(d.out, "  %04d: %s %d %d\n", frame.PC, in.Op, in.A, in.B)
}

func (d *Debugger) showStack() {
	fmt.Fprintln(d.out, "stack (top to bottom):")
	fiber := d.vm.current
	if fiber.Len() == 0 {
		fmt.Fprintln(d.out, "  (empty)")
		return
	}
	for i := fiber.Len() - 1; i >= 0; i-- {
		fmt.Fprintf(d.out, "  [%d] %s\n", i, spew.Sdump(fiber.StackAt(i)))
	}
}

func (d *Debugger) showCallStack() {
	fmt.Fprintln(d.out, "call stack (top to bottom):")
	fiber := d.vm.current
	if len(fiber.Frames) == 0 {
		fmt.Fprintln(d.out, "  (empty)")
		return
	}
	for i := len(fiber.Frames) - 1; i >= 0; i-- {
		frame := fiber.Frames[i]
		name := frame.Closure.Chunk.Name
		if name == "" {
			name = "<anonymous>"
		}
		fmt.Fprintf(d.out, "  %s [pc=%d bottom=%d protected=%v]\n", name, frame.PC, frame.Bottom, frame.Protected)
	}
}

func (d *Debugger) showGlobals() {
	fmt.Fprintln(d.out, "globals:")
	g := d.vm.globals()
	if g.Len() == 0 {
		fmt.Fprintln(d.out, "  (none)")
		return
	}
	keys, values := g.Pairs()
	for i, k := range keys {
		fmt.Fprintf(d.out, "  %s = %s\n", k, d.vm.stringify(values[i]))
	}
}

func (d *Debugger) listInstructions() {
	frame := d.vm.current.CurrentFrame()
	if frame == nil {
		return
	}
	fmt.Fprintln(d.out, bytecode.Disassemble(frame.Closure.Chunk))
}

func (d *Debugger) printHelp() {
	fmt.Fprintln(d.out, "debugger commands:")
	fmt.Fprintln(d.out, "  help, h, ?           show this help")
	fmt.Fprintln(d.out, "  continue, c          continue execution")
	fmt.Fprintln(d.out, "  step, s              enable step mode")
	fmt.Fprintln(d.out, "  next, n              execute one instruction")
	fmt.Fprintln(d.out, "  stack, st            show the current fiber's value stack")
	fmt.Fprintln(d.out, "  globals, g           show global bindings")
	fmt.Fprintln(d.out, "  callstack, cs        show the call frame stack")
	fmt.Fprintln(d.out, "  instruction, i       show the current instruction")
	fmt.Fprintln(d.out, "  breakpoint <n>, b    add a breakpoint at instruction n")
	fmt.Fprintln(d.out, "  delete <n>, d        remove a breakpoint at instruction n")
	fmt.Fprintln(d.out, "  list, ls             list the current chunk's instructions")
	fmt.Fprintln(d.out, "  quit, q              abort execution")
}

// prompt shows one pause cycle and processes commands until the user
// resumes execution (continue/step/next) or aborts (quit).
func (d *Debugger) prompt() bool {
	fmt.Fprintln(d.out, "\n=== paused ===")
	d.showCurrentInstruction()

	for {
		fmt.Fprint(d.out, "debug> ")
		if !d.in.Scan() {
			return false
		}
		line := strings.TrimSpace(d.in.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return true
		case "step", "s":
			d.SetStepMode(true)
			return true
		case "next", "n":
			return true
		case "stack", "st":
			d.showStack()
		case "globals", "g":
			d.showGlobals()
		case "callstack", "cs":
			d.showCallStack()
		case "instruction", "i":
			d.showCurrentInstruction()
		case "breakpoint", "b":
			if len(parts) < 2 {
				fmt.Fprintln(d.out, "usage: breakpoint <instruction>")
				continue
			}
			pc, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Fprintln(d.out, "invalid instruction number")
				continue
			}
			d.AddBreakpoint(pc)
			fmt.Fprintf(d.out, "breakpoint added at %d\n", pc)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Fprintln(d.out, "usage: delete <instruction>")
				continue
			}
			pc, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Fprintln(d.out, "invalid instruction number")
				continue
			}
			d.RemoveBreakpoint(pc)
			fmt.Fprintf(d.out, "breakpoint removed at %d\n", pc)
		case "list", "ls":
			d.listInstructions()
		case "quit", "q":
			return false
		default:
			fmt.Fprintf(d.out, "unknown command: %s (type 'help')\n", parts[0])
		}
	}
}
