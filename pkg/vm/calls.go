package vm

import (
	"fmt"

	"github.com/kristofer/ember/pkg/object"
)

// removeStackSlot deletes the value at absolute position pos from fiber's
// stack, shifting everything above it down by one — used to drop the
// callee value out of the argument window so the first argument lands
// exactly at the new frame's Bottom (spec §4.4's calling convention).
func removeStackSlot(fiber *object.Fiber, pos int) {
	for i := pos; i < fiber.Len()-1; i++ {
		fiber.SetStackAt(i, fiber.StackAt(i+1))
	}
	fiber.TruncateTo(fiber.Len() - 1)
}

// doCall implements both Call and TryCall (spec §4.4/§4.7): the stack
// holds [..., target, arg1...argn]; callee is resolved by kind and the
// calling convention shifts target out so arguments become contiguous
// locals starting at the new frame's Bottom.
func (vm *VM) doCall(argc int, protected bool) error {
	fiber := vm.current
	targetPos := fiber.Len() - 1 - argc
	target := fiber.StackAt(targetPos)

	switch target.Kind() {
	case object.KindNativeFunction:
		removeStackSlot(fiber, targetPos)
		result, err := target.AsNative()(vm, argc)
		if vm.fiberChanged {
			return nil
		}
		if err != nil {
			if protected {
				fiber.Push(vm.makeErrorValue(err.Error()))
				return nil
			}
			return vm.raiseRuntime("%s", err.Error())
		}
		fiber.Push(result)
		return nil

	case object.KindClosure:
		return vm.enterClosure(target.AsClosure(), targetPos, argc, protected)

	case object.KindClass:
		return vm.construct(target.AsClass(), targetPos, argc, protected)

	default:
		return vm.raiseRuntime("value of kind %s is not callable", target.Kind())
	}
}

// enterClosure pushes a new call frame for closure, binding argc stack
// arguments (already positioned at targetPos+1..) as its first locals.
func (vm *VM) enterClosure(closure *object.Closure, targetPos, argc int, protected bool) error {
	fiber := vm.current
	chunk := closure.Chunk

	removeStackSlot(fiber, targetPos)
	bottom := targetPos

	var varArgs []object.Value
	if chunk.Variadic {
		fixed := chunk.NumParams
		if argc > fixed {
			varArgs = append([]object.Value{}, fiber.Stack[bottom+fixed:bottom+argc]...)
			fiber.TruncateTo(bottom + fixed)
			argc = fixed
		}
	} else if argc > chunk.NumParams {
		fiber.TruncateTo(bottom + chunk.NumParams)
		argc = chunk.NumParams
	}

	// Locals beyond the parameters (e.g. `var total = ...;` in the body)
	// are never pushed by the caller, so the frame must reserve them here:
	// spec §3 requires stack.len() >= bottom + num_locals at every
	// instruction boundary, and GetLocal/SetLocal index blindly into that
	// range without any further bounds check.
	for i := argc; i < chunk.NumLocals; i++ {
		fiber.Push(object.Nil)
	}

	fiber.PushFrame(object.CallFrame{
		Bottom:    bottom,
		Closure:   closure,
		VarArgs:   varArgs,
		Protected: protected,
	})
	return nil
}

// construct implements `ClassName(args...)` as a Call whose target is a
// Class (spec §4.9): allocate an Instance, then — if the class defines
// __init__ — bind and invoke it through the ordinary closure-call path so
// its implicit `this; return` naturally produces the instance.
func (vm *VM) construct(class *object.Class, targetPos, argc int, protected bool) error {
	fiber := vm.current
	instance := object.NewInstance(class)
	vm.register(instance)

	init, ok := class.Lookup("__init__")
	if !ok {
		fiber.TruncateTo(targetPos)
		fiber.Push(object.InstanceVal(instance))
		return nil
	}
	bound := init.BindTo(instance)
	vm.register(bound)
	fiber.SetStackAt(targetPos, object.ClosureVal(bound))
	return vm.enterClosure(bound, targetPos, argc, protected)
}

// doReturn pops the current frame, closes any open upvalues it owns, and
// either continues the caller or finishes the fiber (spec §4.4).
func (vm *VM) doReturn(value object.Value) error {
	fiber := vm.current
	frame := fiber.PopFrame()
	vm.closeUpvaluesFrom(fiber, frame.Bottom)
	fiber.TruncateTo(frame.Bottom)

	if len(fiber.Frames) == 0 {
		return vm.finishFiber(fiber, value)
	}
	if !frame.DiscardReturnValue {
		fiber.Push(value)
	}
	return nil
}

// doExcept implements the `except expr;` statement: wraps expr in an
// Error and unwinds to the nearest TryCall-protected frame, exactly like
// a raised runtime error (spec §7).
func (vm *VM) doExcept(payload object.Value) error {
	d := object.NewDictionary()
	d.Set("info", payload)
	vm.register(d)
	return vm.raise(object.ErrorVal(d))
}

// finishFiber transitions a fiber whose frame stack has emptied: if it
// has a resumer, the resumer's pending Call(resume)/Call(transfer)
// instruction completes now with value as its result (spec §4.5); the
// root fiber instead simply leaves value as the program's result.
func (vm *VM) finishFiber(fiber *object.Fiber, value object.Value) error {
	fiber.State = object.FiberFinished
	prev := fiber.Prev
	if prev == nil {
		fiber.Push(value)
		return nil
	}
	prevFrame := prev.CurrentFrame()
	prevFrame.PC++
	prev.Push(value)
	prev.State = object.FiberRunning
	vm.current = prev
	vm.fiberChanged = true
	return nil
}

// raise unwinds the current fiber's frame stack to the nearest Protected
// frame, replacing that call's result with errValue. If no frame is
// protected and the fiber has a resumer (Prev), the fiber moves to
// FiberError and the resumer continues with errValue as the result of its
// pending call. Otherwise the error is returned as an uncaught runtime
// error (spec §7).
func (vm *VM) raise(errValue object.Value) error {
	fiber := vm.current
	for i := len(fiber.Frames) - 1; i >= 0; i-- {
		if !fiber.Frames[i].Protected {
			continue
		}
		bottom := fiber.Frames[i].Bottom
		vm.closeUpvaluesFrom(fiber, bottom)
		fiber.Frames = fiber.Frames[:i]
		fiber.TruncateTo(bottom)
		fiber.Push(errValue)
		return nil
	}
	if fiber.Prev != nil {
		fiber.State = object.FiberError
		vm.fiberErrors[fiber] = errValue
		prev := fiber.Prev
		prevFrame := prev.CurrentFrame()
		prevFrame.PC++
		prev.Push(errValue)
		prev.State = object.FiberRunning
		vm.current = prev
		vm.fiberChanged = true
		return nil
	}
	return vm.runtimeErrorf("uncaught error: %s", describeErrorValue(errValue))
}

func describeErrorValue(v object.Value) string {
	if v.Kind() != object.KindError {
		return fmt.Sprintf("%v", v.Kind())
	}
	info, ok := v.AsDictionary().Get("info")
	if !ok {
		return "<error>"
	}
	if info.Kind() == object.KindString {
		return info.AsString().Text()
	}
	return fmt.Sprintf("%v", info.Kind())
}

// makeErrorValue builds an Error dictionary carrying message under the
// "info" key, matching what an explicit `except "msg";` produces.
func (vm *VM) makeErrorValue(message string) object.Value {
	d := object.NewDictionary()
	d.Set("info", object.String(vm.Pool.Intern(message)))
	vm.register(d)
	return object.ErrorVal(d)
}

// raiseRuntime is the single entry point every builtin opcode handler
// uses to report a runtime error: it is routed through raise() so a
// surrounding TryCall can recover from it exactly like an explicit
// except (spec §7).
func (vm *VM) raiseRuntime(format string, args ...interface{}) error {
	return vm.raise(vm.makeErrorValue(fmt.Sprintf(format, args...)))
}
