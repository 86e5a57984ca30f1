package vm

import (
	"errors"

	"github.com/kristofer/ember/pkg/object"
)

// registerFiberModule installs the `fiber` module's native functions
// (spec §4.5/scenario 3): create, resume, yield, transfer, error, check,
// resumable. Grounded on kristofer-smog/pkg/vm/primitives.go's pattern of
// grouping natives by subsystem into one dictionary per module.
func (vm *VM) registerFiberModule(root *object.Dictionary) {
	mod := object.NewDictionary()
	mod.Set("create", object.NativeFunction(vm.nativeFiberCreate))
	mod.Set("resume", object.NativeFunction(vm.nativeFiberResume))
	mod.Set("yield", object.NativeFunction(vm.nativeFiberYield))
	mod.Set("transfer", object.NativeFunction(vm.nativeFiberTransfer))
	mod.Set("error", object.NativeFunction(vm.nativeFiberError))
	mod.Set("check", object.NativeFunction(vm.nativeFiberCheck))
	mod.Set("resumable", object.NativeFunction(vm.nativeFiberResumable))
	root.Set("fiber", object.ModuleVal(mod))
}

func (vm *VM) nativeFiberCreate(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) == 0 || args[0].Kind() != object.KindClosure {
		return object.Nil, errors.New("fiber.create expects a function as its first argument")
	}
	closure := args[0].AsClosure()
	initArgs := args[1:]

	f := object.NewFiber()
	for i := 0; i < closure.Chunk.NumLocals; i++ {
		if i < closure.Chunk.NumParams && i < len(initArgs) {
			f.Push(initArgs[i])
		} else {
			f.Push(object.Nil)
		}
	}
	f.PushFrame(object.CallFrame{Bottom: 0, Closure: closure})
	vm.fibers = append(vm.fibers, f)
	vm.register(f)
	return object.FiberVal(f), nil
}

// nativeFiberResume implements `fiber.resume(f [, value])`: switches
// execution to f, completing f's own pending Call(yield) instruction
// (if it was previously Paused) with value as its result. The calling
// fiber's own Call(resume) instruction is left pending — it completes
// later, when f yields or finishes, per RaiseFiberSwitch's PC-suppression
// contract (spec §4.5).
func (vm *VM) nativeFiberResume(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) == 0 || args[0].Kind() != object.KindFiber {
		return object.Nil, errors.New("fiber.resume expects a fiber as its first argument")
	}
	f := args[0].AsFiber()
	var value object.Value = object.Nil
	if len(args) > 1 {
		value = args[1]
	}

	switch f.State {
	case object.FiberPaused:
		fFrame := f.CurrentFrame()
		fFrame.PC++
		f.Push(value)
	case object.FiberInitial:
		// first resume: nothing pending to complete.
	default:
		return object.Nil, errors.New("fiber is not resumable")
	}

	cur := vm.current
	cur.State = object.FiberWaiting
	f.Prev = cur
	f.State = object.FiberRunning
	vm.current = f
	host.RaiseFiberSwitch()
	return object.Nil, nil
}

// nativeFiberYield implements `fiber.yield([value])`: suspends the
// current fiber as Paused and hands value to its resumer as the result
// of the resumer's pending Call(resume) instruction.
func (vm *VM) nativeFiberYield(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	var value object.Value = object.Nil
	if len(args) > 0 {
		value = args[0]
	}

	cur := vm.current
	prev := cur.Prev
	if prev == nil {
		return object.Nil, errors.New("fiber.yield: this fiber has no resumer")
	}
	cur.State = object.FiberPaused
	prevFrame := prev.CurrentFrame()
	prevFrame.PC++
	prev.Push(value)
	prev.State = object.FiberRunning
	vm.current = prev
	host.RaiseFiberSwitch()
	return object.Nil, nil
}

// nativeFiberTransfer implements `fiber.transfer(f [, value])`: like
// resume, but never sets f.Prev — f surrenders control back to whatever
// fiber last established itself as f's resumer, not necessarily the
// transferring fiber (spec §4.5's explicit carve-out for this primitive).
func (vm *VM) nativeFiberTransfer(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) == 0 || args[0].Kind() != object.KindFiber {
		return object.Nil, errors.New("fiber.transfer expects a fiber as its first argument")
	}
	f := args[0].AsFiber()
	var value object.Value = object.Nil
	if len(args) > 1 {
		value = args[1]
	}

	switch f.State {
	case object.FiberPaused:
		fFrame := f.CurrentFrame()
		fFrame.PC++
		f.Push(value)
	case object.FiberInitial:
	default:
		return object.Nil, errors.New("fiber is not resumable")
	}

	vm.current.State = object.FiberWaiting
	f.State = object.FiberRunning
	vm.current = f
	host.RaiseFiberSwitch()
	return object.Nil, nil
}

func (vm *VM) nativeFiberError(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) == 0 || args[0].Kind() != object.KindFiber {
		return object.Nil, errors.New("fiber.error expects a fiber")
	}
	if v, ok := vm.fiberErrors[args[0].AsFiber()]; ok {
		return v, nil
	}
	return object.Nil, nil
}

func (vm *VM) nativeFiberCheck(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) == 0 || args[0].Kind() != object.KindFiber {
		return object.Nil, errors.New("fiber.check expects a fiber")
	}
	return object.String(vm.Pool.Intern(args[0].AsFiber().State.String())), nil
}

func (vm *VM) nativeFiberResumable(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) == 0 || args[0].Kind() != object.KindFiber {
		return object.Nil, errors.New("fiber.resumable expects a fiber")
	}
	state := args[0].AsFiber().State
	return object.Bool(state == object.FiberInitial || state == object.FiberPaused), nil
}
