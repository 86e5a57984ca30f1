package vm

import (
	"errors"
	"fmt"

	"github.com/kristofer/ember/pkg/object"
)

// nativeImport implements the `import(path)` native (spec §4.6/DOMAIN
// STACK expansion): read the module's source, compile it with the
// VM-supplied hooks, run its top-level code against a fresh namespace
// pushed onto nsStack, then hand back that namespace as a Module value.
// Grounded on kristofer-smog/pkg/vm/loader.go's "compile then execute
// against its own scope" shape, generalized to this VM's explicit
// namespace stack instead of smog's single global Environment.
func (vm *VM) nativeImport(host object.Host, argc int) (object.Value, error) {
	if argc != 1 {
		return object.Nil, errors.New("import expects exactly one path argument")
	}
	h, err := host.PopString()
	if err != nil {
		return object.Nil, err
	}
	path := h.Text()

	if vm.moduleCache == nil {
		vm.moduleCache = map[string]object.Value{}
	}
	if cached, ok := vm.moduleCache[path]; ok {
		return cached, nil
	}

	if vm.ReadFile == nil || vm.CompileSource == nil {
		return object.Nil, fmt.Errorf("import: no module loader configured")
	}
	source, err := vm.ReadFile(path)
	if err != nil {
		return object.Nil, fmt.Errorf("import %q: %w", path, err)
	}
	chunk, err := vm.CompileSource(source, path)
	if err != nil {
		return object.Nil, fmt.Errorf("import %q: %w", path, err)
	}

	ns := object.NewDictionary()
	vm.nsStack = append(vm.nsStack, ns)
	defer func() { vm.nsStack = vm.nsStack[:len(vm.nsStack)-1] }()

	closure := object.NewClosure(chunk, nil)
	vm.register(closure)

	// loader.Prev is deliberately left nil: finishFiber's ordinary
	// "hand the result to Prev" path would push the module body's return
	// value (not the namespace dictionary built below) and would steal
	// the PC-advance that belongs to the `Call(import)` instruction
	// already being serviced synchronously by doCall's native branch.
	// With Prev nil, finishFiber just deposits the return value onto the
	// loader's own stack, which this function discards in favor of `mod`.
	loader := object.NewFiber()
	loader.State = object.FiberLoader
	loader.Stack = make([]object.Value, chunk.NumLocals)
	loader.PushFrame(object.CallFrame{Bottom: 0, Closure: closure})
	vm.fibers = append(vm.fibers, loader)
	vm.register(loader)

	prevCurrent := vm.current
	prevCurrent.State = object.FiberWaiting
	vm.current = loader
	for len(loader.Frames) > 0 {
		if err := vm.step(); err != nil {
			vm.current = prevCurrent
			prevCurrent.State = object.FiberRunning
			return object.Nil, fmt.Errorf("import %q: %w", path, err)
		}
		if vm.current != loader {
			// A module's top-level code tried to resume/yield/transfer
			// across the fiber that is loading it — not supported, since
			// this loader has no dispatch loop of its own to resume into.
			vm.current = prevCurrent
			prevCurrent.State = object.FiberRunning
			return object.Nil, fmt.Errorf("import %q: fiber operations are not permitted at a module's top level", path)
		}
	}
	vm.current = prevCurrent
	prevCurrent.State = object.FiberRunning

	mod := object.ModuleVal(ns)
	vm.moduleCache[path] = mod
	return mod, nil
}
