package vm

import (
	"io"
	"os"

	"github.com/go-stack/stack"

	"github.com/kristofer/ember/pkg/gcheap"
	"github.com/kristofer/ember/pkg/object"
	"github.com/kristofer/ember/pkg/strpool"
)

// VM is the fetch-decode-execute engine described in spec §4.4: a string
// pool, a heap registry, a stack of global namespaces (one per nested
// `import`), and the currently scheduled fiber. Grounded on
// kristofer-smog/pkg/vm/vm.go's single struct owning pool + globals +
// current execution state, generalized from smog's one-global-scope model
// to the namespace stack spec §4.6 needs for module loading.
type VM struct {
	Pool *strpool.Pool
	heap *gcheap.Heap

	nsStack []*object.Dictionary
	fibers  []*object.Fiber
	current *object.Fiber

	fiberChanged bool

	// openUpvalues indexes every still-Open UpvalueObject by (fiber, absolute
	// slot), enforcing spec §3's "at most one live Open upvalue per (fiber,
	// slot)" invariant: a second capture of the same slot reuses the same
	// UpvalueObject instead of allocating a new one.
	openUpvalues map[*object.Fiber]map[int]*object.UpvalueObject

	// fiberErrors remembers the Error value that sent a non-root fiber into
	// FiberError state, for fiber.error()/fiber.check() to report (spec
	// §4.5). The root fiber never enters this map: an uncaught error on it
	// halts the whole VM instead of being soft-landed on a resumer.
	fiberErrors map[*object.Fiber]object.Value

	// moduleCache remembers each import path's resolved Module value so a
	// diamond of imports compiles and executes the source exactly once
	// (spec §4.6).
	moduleCache map[string]object.Value

	Stdout io.Writer
	Stdin  io.Reader

	// CompileSource recompiles a module's source text into a Chunk; wired
	// by cmd/ember so pkg/vm never imports pkg/compiler directly (avoiding
	// an import cycle risk and keeping the loader pluggable for tests).
	CompileSource func(source, name string) (*object.Chunk, error)
	// ReadFile loads the contents of an imported module's source file.
	ReadFile func(path string) (string, error)
}

// New creates a VM with an empty root namespace carrying the prelude and
// standard native modules (spec §6).
func New() *VM {
	vm := &VM{
		Pool:         strpool.New(),
		heap:         gcheap.New(),
		openUpvalues: map[*object.Fiber]map[int]*object.UpvalueObject{},
		fiberErrors:  map[*object.Fiber]object.Value{},
		Stdout:       os.Stdout,
		Stdin:        os.Stdin,
	}
	root := object.NewDictionary()
	vm.nsStack = []*object.Dictionary{root}
	vm.registerPrelude(root)
	vm.registerFiberModule(root)
	vm.registerMathModule(root)
	vm.registerBytesModule(root)
	return vm
}

// LiveFibers and GlobalNamespaces implement gcheap.Roots.
func (vm *VM) LiveFibers() []*object.Fiber            { return vm.fibers }
func (vm *VM) GlobalNamespaces() []*object.Dictionary { return vm.nsStack }

func (vm *VM) globals() *object.Dictionary {
	return vm.nsStack[len(vm.nsStack)-1]
}

func (vm *VM) maybeCollect() {
	if vm.heap.ShouldCollect() {
		vm.heap.Collect(vm)
	}
}

// register adds a heap object to the GC registry and, if collection is
// now due, runs a cycle before the object escapes into a Value the
// caller is about to push — satisfying spec §5's "register before
// storing into any live Value" ordering.
func (vm *VM) register(obj gcheap.Markable) {
	vm.heap.Register(obj)
	vm.maybeCollect()
}

// Run compiles nothing itself: it wraps an already-compiled top-level
// Chunk in a closure, starts a root fiber, and runs to completion.
func (vm *VM) Run(chunk *object.Chunk) (object.Value, error) {
	closure := object.NewClosure(chunk, nil)
	vm.register(closure)

	fiber := object.NewFiber()
	fiber.State = object.FiberRunning
	vm.fibers = append(vm.fibers, fiber)
	vm.current = fiber

	vm.current.Stack = make([]object.Value, chunk.NumLocals)
	vm.current.PushFrame(object.CallFrame{Bottom: 0, Closure: closure})

	return vm.drive()
}

// RunWithDebugger is Run's debugging counterpart (spec §6's CLI `--debug`
// flag): it performs the same root-fiber setup, then hands control to dbg
// instead of the plain drive() loop so execution can pause at
// breakpoints/step mode.
func (vm *VM) RunWithDebugger(chunk *object.Chunk, dbg *Debugger) (object.Value, error) {
	closure := object.NewClosure(chunk, nil)
	vm.register(closure)

	fiber := object.NewFiber()
	fiber.State = object.FiberRunning
	vm.fibers = append(vm.fibers, fiber)
	vm.current = fiber

	vm.current.Stack = make([]object.Value, chunk.NumLocals)
	vm.current.PushFrame(object.CallFrame{Bottom: 0, Closure: closure})

	return dbg.Run()
}

// drive repeatedly steps the dispatch loop until the current fiber's
// frame stack empties with no fiber left to return control to.
func (vm *VM) drive() (object.Value, error) {
	for {
		if len(vm.current.Frames) == 0 {
			if vm.current.Len() > 0 {
				return vm.current.Pop(), nil
			}
			return object.Nil, nil
		}
		if err := vm.step(); err != nil {
			return object.Nil, err
		}
	}
}

// step fetches and executes exactly one instruction of the current
// fiber's top frame, then advances that frame's PC — unless a fiber
// switch occurred this tick, in which case PC bookkeeping was already
// handled explicitly by whichever op performed the switch (spec §4.4,
// §4.5's "fiber_changed suppresses PC advancement").
func (vm *VM) step() (stepErr error) {
	fiber := vm.current
	callerIdx := len(fiber.Frames) - 1
	frame := &fiber.Frames[callerIdx]
	chunk := frame.Closure.Chunk

	if frame.PC >= len(chunk.Instructions) {
		return vm.doReturn(object.Nil)
	}
	in := chunk.Instructions[frame.PC]

	// A Go panic here (index-out-of-range from a malformed chunk, a nil
	// Bound instance, ...) means a spec invariant was violated somewhere
	// upstream. Recover it into an ordinary runtime error, annotated with
	// the Go call stack, instead of taking the whole process down —
	// letting a surrounding TryCall soft-land it like any other error.
	defer func() {
		if r := recover(); r != nil {
			stepErr = vm.raiseRuntime("internal error executing %s: %v\n%v", in.Op, r, stack.Trace().TrimRuntime())
		}
	}()

	vm.fiberChanged = false
	if err := vm.execute(in, fiber, callerIdx); err != nil {
		return err
	}
	if vm.fiberChanged {
		return nil
	}
	if len(fiber.Frames) > callerIdx {
		fiber.Frames[callerIdx].PC++
	}
	return nil
}
