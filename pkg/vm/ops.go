package vm

import "github.com/kristofer/ember/pkg/object"

// execute dispatches a single decoded instruction against fiber's frame
// at callerIdx (spec §4.4's instruction set, §6 for exact opcodes).
// Instructions that call into user code through the operator protocol or
// an ordinary Call/TryCall push a new frame and return; the surrounding
// step()/drive() loop naturally runs it to completion before this frame
// is ever resumed, since both always operate on whichever frame is
// currently on top. The indexing and iterator protocols instead run their
// method to completion inside the handler, through invokeSync.
func (vm *VM) execute(in object.Instruction, fiber *object.Fiber, callerIdx int) error {
	frame := &fiber.Frames[callerIdx]
	chunk := frame.Closure.Chunk

	switch in.Op {
	case object.OpNop:
		return nil

	case object.OpLoad:
		fiber.Push(chunk.Constants[in.A])
		return nil
	case object.OpLoadChunk:
		return vm.execLoadChunk(frame, in.A)
	case object.OpPushNil:
		fiber.Push(object.Nil)
		return nil
	case object.OpLoadTrue:
		fiber.Push(object.Bool(true))
		return nil
	case object.OpLoadFalse:
		fiber.Push(object.Bool(false))
		return nil
	case object.OpPop:
		fiber.Pop()
		return nil
	case object.OpSwap2:
		n := fiber.Len()
		a, b := fiber.StackAt(n-2), fiber.StackAt(n-1)
		fiber.SetStackAt(n-2, b)
		fiber.SetStackAt(n-1, a)
		return nil
	case object.OpDup:
		fiber.Push(fiber.Top())
		return nil

	case object.OpGetLocal:
		fiber.Push(fiber.StackAt(frame.Bottom + in.A))
		return nil
	case object.OpSetLocal:
		fiber.SetStackAt(frame.Bottom+in.A, fiber.Top())
		return nil
	case object.OpGetGlobal:
		name := chunk.Constants[in.A].AsString().Text()
		v, ok := vm.globals().Get(name)
		if !ok {
			return vm.raiseRuntime("undefined global %s", name)
		}
		fiber.Push(v)
		return nil
	case object.OpSetGlobal:
		name := chunk.Constants[in.A].AsString().Text()
		vm.globals().Set(name, fiber.Top())
		return nil
	case object.OpGetUpvalue:
		return vm.execGetUpvalue(frame, in.A)
	case object.OpSetUpvalue:
		return vm.execSetUpvalue(frame, in.A)
	case object.OpGetThis:
		fiber.Push(object.InstanceVal(frame.Closure.Bound))
		return nil
	case object.OpUnpackVA:
		for _, v := range frame.VarArgs {
			fiber.Push(v)
		}
		fiber.Push(object.Number(float64(len(frame.VarArgs))))
		return nil

	case object.OpInitArray:
		return vm.execInitArray(in.A)
	case object.OpInitDict:
		return vm.execInitDict(in.A)
	case object.OpGetCollection:
		return vm.execGetCollection(in.A)
	case object.OpSetCollection:
		return vm.execSetCollection(in.A)

	case object.OpAdd:
		return vm.execAdd()
	case object.OpSub:
		return vm.execSub()
	case object.OpMul:
		return vm.execMul()
	case object.OpDiv:
		return vm.execDiv()
	case object.OpMod:
		return vm.execMod()
	case object.OpNegate:
		return vm.execNegate()
	case object.OpNot:
		return vm.execNot()
	case object.OpAnd:
		b, a := fiber.Pop(), fiber.Pop()
		fiber.Push(object.Bool(a.Truthy() && b.Truthy()))
		return nil
	case object.OpOr:
		b, a := fiber.Pop(), fiber.Pop()
		fiber.Push(object.Bool(a.Truthy() || b.Truthy()))
		return nil
	case object.OpGt:
		return vm.compareOp(object.OpGt, false, false)
	case object.OpLt:
		return vm.compareOp(object.OpLt, true, false)
	case object.OpGe:
		return vm.compareOp(object.OpGe, false, true)
	case object.OpLe:
		return vm.compareOp(object.OpLe, true, true)
	case object.OpEq:
		return vm.execEq(false)
	case object.OpNe:
		return vm.execEq(true)
	case object.OpClassIs:
		return vm.execClassIs()

	case object.OpMakeRange:
		return vm.execMakeRange(false)
	case object.OpMakeRangeClosed:
		return vm.execMakeRange(true)
	case object.OpIterator:
		return vm.execIterator()
	case object.OpNext:
		return vm.execNext()

	case object.OpInitClass:
		return vm.execInitClass(frame, in.A)
	case object.OpAddMethod:
		return vm.execAddMethod()
	case object.OpClassExtend:
		return vm.execClassExtend()
	case object.OpGetSuperMethod:
		return vm.execGetSuperMethod(frame, in.A)

	case object.OpCall:
		return vm.doCall(in.A, false)
	case object.OpTryCall:
		return vm.doCall(in.A, true)
	case object.OpJumpIfFalse:
		if !fiber.Pop().Truthy() {
			frame.PC += in.A - 1 // step() adds 1 unconditionally afterward
		}
		return nil
	case object.OpJumpIfTrue:
		if fiber.Pop().Truthy() {
			frame.PC += in.A - 1
		}
		return nil
	case object.OpJump:
		frame.PC += in.A - 1
		return nil
	case object.OpReturn:
		return vm.doReturn(fiber.Pop())
	case object.OpExcept:
		return vm.doExcept(fiber.Pop())

	default:
		return vm.raiseRuntime("unknown opcode %v", in.Op)
	}
}

// invokeSync runs callee(args...) to completion on the current fiber and
// returns its single result, driving the dispatch loop recursively until
// exactly the frame(s) this call pushed have unwound. Used by indexing
// (__index__, __assign__) and iterator (__iter__, __next__) protocol
// dispatch, where the instruction
// immediately following (e.g. JumpIfFalse after Next) needs the result
// available before it, rather than a tick later.
func (vm *VM) invokeSync(callee object.Value, args []object.Value) (object.Value, error) {
	fiber := vm.current
	fiber.Push(callee)
	for _, a := range args {
		fiber.Push(a)
	}
	depth := len(fiber.Frames)
	if err := vm.doCall(len(args), false); err != nil {
		return object.Nil, err
	}
	if vm.fiberChanged {
		vm.fiberChanged = false
		return object.Nil, vm.raiseRuntime("fiber operations are not permitted inside an operator or iterator protocol method")
	}
	for len(fiber.Frames) > depth {
		if err := vm.step(); err != nil {
			return object.Nil, err
		}
		if vm.fiberChanged {
			vm.fiberChanged = false
			return object.Nil, vm.raiseRuntime("fiber operations are not permitted inside an operator or iterator protocol method")
		}
	}
	return fiber.Pop(), nil
}
