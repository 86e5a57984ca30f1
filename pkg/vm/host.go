package vm

import (
	"errors"

	"github.com/kristofer/ember/pkg/gcheap"
	"github.com/kristofer/ember/pkg/object"
	"github.com/kristofer/ember/pkg/strpool"
)

// The Host methods below implement object.Host, the bridge every native
// function is invoked through (spec §4.8). Natives pop exactly their
// declared argc values off the current fiber's stack and push exactly
// one result — or call RaiseFiberSwitch and push nothing, per the fiber
// scheduling primitives in fibers.go.

func (vm *VM) PopValue() (object.Value, error) {
	fiber := vm.current
	if fiber.Len() == 0 {
		return object.Nil, errors.New("native function popped from an empty stack")
	}
	return fiber.Pop(), nil
}

func (vm *VM) PopNumber() (float64, error) {
	v, err := vm.PopValue()
	if err != nil {
		return 0, err
	}
	if v.Kind() != object.KindNumber {
		return 0, errors.New("expected a number argument")
	}
	return v.AsNumber(), nil
}

func (vm *VM) PopString() (strpool.Handle, error) {
	v, err := vm.PopValue()
	if err != nil {
		return strpool.Handle{}, err
	}
	if v.Kind() != object.KindString {
		return strpool.Handle{}, errors.New("expected a string argument")
	}
	return v.AsString(), nil
}

func (vm *VM) PopOpaque() (interface{}, error) {
	v, err := vm.PopValue()
	if err != nil {
		return nil, err
	}
	if v.Kind() != object.KindOpaqueData {
		return nil, errors.New("expected opaque data")
	}
	return v.AsOpaque(), nil
}

func (vm *VM) Push(v object.Value) { vm.current.Push(v) }

func (vm *VM) Intern(s string) strpool.Handle { return vm.Pool.Intern(s) }

// RegisterHeapObject registers a heap object a native allocated (e.g. the
// Array of paths `as_glob` returns) with the GC before it is pushed onto the
// stack, satisfying spec §5's register-before-store ordering.
func (vm *VM) RegisterHeapObject(obj interface{}) {
	if m, ok := obj.(gcheap.Markable); ok {
		vm.register(m)
	}
}

func (vm *VM) RaiseFiberSwitch() { vm.fiberChanged = true }

func (vm *VM) Current() *object.Fiber { return vm.current }

func (vm *VM) RaiseError(message string) error { return errors.New(message) }
