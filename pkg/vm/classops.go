package vm

import "github.com/kristofer/ember/pkg/object"

// execInitClass pushes a fresh, parentless Class named by the chunk's
// string constant nameConst. Methods and an optional superclass are
// attached to it in place by the instructions that follow, until it is
// finally bound to its declared name (spec §4.3's class-compilation
// recipe).
func (vm *VM) execInitClass(frame *object.CallFrame, nameConst int) error {
	name := frame.Closure.Chunk.Constants[nameConst].AsString().Text()
	class := object.NewClass(name)
	vm.register(class)
	vm.current.Push(object.ClassVal(class))
	return nil
}

// execClassExtend pops [class, superClass] and seeds class's method table
// with a copy of superClass's (copy-down inheritance, spec §3/§9), then
// pushes class back.
func (vm *VM) execClassExtend() error {
	fiber := vm.current
	super := fiber.Pop()
	class := fiber.Pop()
	if super.Kind() != object.KindClass {
		return vm.raiseRuntime("superclass must be a class, got %s", super.Kind())
	}
	class.AsClass().Extend(super.AsClass())
	fiber.Push(class)
	return nil
}

// execAddMethod pops [class, name, closure] and installs closure under
// name in class's method table, then pushes class back.
func (vm *VM) execAddMethod() error {
	fiber := vm.current
	closure := fiber.Pop()
	name := fiber.Pop()
	class := fiber.Pop()
	class.AsClass().AddMethod(name.AsString().Text(), closure.AsClosure())
	fiber.Push(class)
	return nil
}

// execGetSuperMethod pops [this, superClass] and pushes a closure bound to
// this, looked up by nameConst in superClass's method table — resolving
// against the lexically enclosing class's superclass rather than the
// runtime instance's class (spec §4.3's note on why this must be staged
// by the compiler).
func (vm *VM) execGetSuperMethod(frame *object.CallFrame, nameConst int) error {
	fiber := vm.current
	super := fiber.Pop()
	this := fiber.Pop()
	name := frame.Closure.Chunk.Constants[nameConst].AsString().Text()
	if super.Kind() != object.KindClass {
		return vm.raiseRuntime("'super' target must be a class")
	}
	m, ok := super.AsClass().Lookup(name)
	if !ok {
		return vm.raiseRuntime("superclass %s has no method %s", super.AsClass().Name, name)
	}
	bound := m.BindTo(this.AsInstance())
	vm.register(bound)
	fiber.Push(object.ClosureVal(bound))
	return nil
}
