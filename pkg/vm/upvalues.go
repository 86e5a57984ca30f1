package vm

import "github.com/kristofer/ember/pkg/object"

// openUpvalueFor returns the single live Open UpvalueObject for (fiber,
// slot), creating and indexing one if none exists yet — enforcing spec
// §3's "at most one live Open upvalue per (fiber, slot)" invariant.
func (vm *VM) openUpvalueFor(fiber *object.Fiber, slot int) *object.UpvalueObject {
	byFiber, ok := vm.openUpvalues[fiber]
	if !ok {
		byFiber = map[int]*object.UpvalueObject{}
		vm.openUpvalues[fiber] = byFiber
	}
	if u, ok := byFiber[slot]; ok {
		return u
	}
	u := object.NewOpenUpvalue(fiber, slot)
	vm.register(u)
	byFiber[slot] = u
	return u
}

// closeUpvaluesFrom closes (and drops from the open index) every open
// upvalue at or above absolute stack position bottom — called whenever a
// frame whose locals occupy [bottom, ...) unwinds (spec §3/§4.4).
func (vm *VM) closeUpvaluesFrom(fiber *object.Fiber, bottom int) {
	byFiber, ok := vm.openUpvalues[fiber]
	if !ok {
		return
	}
	for slot, u := range byFiber {
		if slot >= bottom {
			u.Close()
			delete(byFiber, slot)
		}
	}
}

// execLoadChunk builds a Closure from child chunk k, resolving each of
// its UpvalueDescriptors against the currently executing frame: a
// FromParentLocal descriptor captures one of the frame's own stack
// slots (opening or reusing an UpvalueObject); otherwise it reuses the
// frame's own closure's already-captured upvalue at the given index.
// This is the LoadChunk-doubles-as-OP_CLOSURE behavior documented in
// DESIGN.md.
func (vm *VM) execLoadChunk(frame *object.CallFrame, k int) error {
	child := frame.Closure.Chunk.Children[k]
	upvalues := make([]*object.UpvalueObject, len(child.Upvalues))
	for i, desc := range child.Upvalues {
		if desc.FromParentLocal {
			upvalues[i] = vm.openUpvalueFor(vm.current, frame.Bottom+desc.Index)
		} else {
			upvalues[i] = frame.Closure.Upvalues[desc.Index]
		}
	}
	closure := object.NewClosure(child, upvalues)
	vm.register(closure)
	vm.current.Push(object.ClosureVal(closure))
	return nil
}

func (vm *VM) execGetUpvalue(frame *object.CallFrame, idx int) error {
	vm.current.Push(frame.Closure.Upvalues[idx].Get())
	return nil
}

func (vm *VM) execSetUpvalue(frame *object.CallFrame, idx int) error {
	frame.Closure.Upvalues[idx].Set(vm.current.Top())
	return nil
}
