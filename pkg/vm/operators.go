package vm

import (
	"github.com/kristofer/ember/pkg/object"
)

// dunderFor maps an arithmetic/comparison opcode to the instance method
// name the operator protocol dispatches to when the left operand is a
// user-defined Instance (spec §4.4's operator protocol).
var dunderFor = map[object.Opcode]string{
	object.OpAdd: "__add__", object.OpSub: "__sub__", object.OpMul: "__mul__",
	object.OpDiv: "__div__", object.OpMod: "__mod__",
	object.OpEq: "__eq__", object.OpNe: "__ne__",
	object.OpLt: "__lt__", object.OpLe: "__le__", object.OpGt: "__gt__", object.OpGe: "__ge__",
}

// dispatchBinary attempts instance operator-protocol dispatch for op on
// (a, b). handled is false when a is not an Instance (or op has no
// dunder), meaning the caller should fall back to its builtin
// numeric/string/array behavior. When a is an Instance whose class lacks
// the dunder, a runtime error is raised and handled is true, so the caller
// does not fall back.
func (vm *VM) dispatchBinary(op object.Opcode, a, b object.Value) (handled bool, err error) {
	if a.Kind() != object.KindInstance {
		return false, nil
	}
	name, ok := dunderFor[op]
	if !ok {
		return false, nil
	}
	method, ok := a.AsInstance().Class.Lookup(name)
	if !ok {
		return true, vm.raiseRuntime("instance of %s has no method %s", a.AsInstance().Class.Name, name)
	}
	bound := method.BindTo(a.AsInstance())
	vm.register(bound)
	vm.current.Push(object.ClosureVal(bound))
	vm.current.Push(b)
	return true, vm.doCall(1, false)
}

func (vm *VM) execAdd() error {
	fiber := vm.current
	b := fiber.Pop()
	a := fiber.Pop()
	if handled, err := vm.dispatchBinary(object.OpAdd, a, b); handled {
		return err
	}
	switch {
	case a.Kind() == object.KindNumber && b.Kind() == object.KindNumber:
		fiber.Push(object.Number(a.AsNumber() + b.AsNumber()))
		return nil
	case a.Kind() == object.KindString && b.Kind() == object.KindString:
		fiber.Push(object.String(vm.Pool.Intern(a.AsString().Text() + b.AsString().Text())))
		return nil
	case a.Kind() == object.KindArray && b.Kind() == object.KindArray:
		out := append(append([]object.Value{}, a.AsArray().Elements...), b.AsArray().Elements...)
		arr := object.NewArray(out)
		vm.register(arr)
		fiber.Push(object.ArrayVal(arr))
		return nil
	default:
		return vm.raiseRuntime("cannot add %s and %s", a.Kind(), b.Kind())
	}
}

func (vm *VM) numericBinary(op object.Opcode, apply func(x, y float64) (float64, error)) error {
	fiber := vm.current
	b := fiber.Pop()
	a := fiber.Pop()
	if handled, err := vm.dispatchBinary(op, a, b); handled {
		return err
	}
	if a.Kind() != object.KindNumber || b.Kind() != object.KindNumber {
		return vm.raiseRuntime("%s requires two numbers, got %s and %s", op, a.Kind(), b.Kind())
	}
	r, err := apply(a.AsNumber(), b.AsNumber())
	if err != nil {
		return vm.raiseRuntime("%s", err.Error())
	}
	fiber.Push(object.Number(r))
	return nil
}

// nearZero is the epsilon used to detect division-by-near-zero (spec
// §4.4: a divisor with absolute value below 1e-5 raises rather than
// dividing), matching the teacher's floating point comparison style
// throughout spec-mandated numeric ops.
const nearZero = 1e-5

func (vm *VM) execSub() error {
	return vm.numericBinary(object.OpSub, func(x, y float64) (float64, error) { return x - y, nil })
}

func (vm *VM) execMul() error {
	return vm.numericBinary(object.OpMul, func(x, y float64) (float64, error) { return x * y, nil })
}

func (vm *VM) execDiv() error {
	return vm.numericBinary(object.OpDiv, func(x, y float64) (float64, error) {
		if y > -nearZero && y < nearZero {
			return 0, divByZeroErr
		}
		return x / y, nil
	})
}

func (vm *VM) execMod() error {
	return vm.numericBinary(object.OpMod, func(x, y float64) (float64, error) {
		if y > -nearZero && y < nearZero {
			return 0, divByZeroErr
		}
		r := float64(int64(x) % int64(y))
		return r, nil
	})
}

type divByZeroError struct{}

func (divByZeroError) Error() string { return "division by zero" }

var divByZeroErr = divByZeroError{}

func (vm *VM) execNegate() error {
	fiber := vm.current
	a := fiber.Pop()
	if a.Kind() != object.KindNumber {
		return vm.raiseRuntime("cannot negate %s", a.Kind())
	}
	fiber.Push(object.Number(-a.AsNumber()))
	return nil
}

func (vm *VM) execNot() error {
	fiber := vm.current
	a := fiber.Pop()
	fiber.Push(object.Bool(!a.Truthy()))
	return nil
}

// valuesEqual implements spec §9's resolved open question: strings compare
// by interned handle identity, heap objects by pointer identity, numbers
// and bools by value.
func valuesEqual(a, b object.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case object.KindNil:
		return true
	case object.KindBool:
		return a.AsBool() == b.AsBool()
	case object.KindNumber:
		return a.AsNumber() == b.AsNumber()
	case object.KindString:
		return a.AsString().Equal(b.AsString())
	case object.KindRange:
		return a.RangeLo() == b.RangeLo() && a.RangeHi() == b.RangeHi()
	default:
		return a.HeapRef() == b.HeapRef()
	}
}

func (vm *VM) execEq(negate bool) error {
	fiber := vm.current
	b := fiber.Pop()
	a := fiber.Pop()
	if handled, err := vm.dispatchBinary(mapEqOp(negate), a, b); handled {
		return err
	}
	eq := valuesEqual(a, b)
	if negate {
		eq = !eq
	}
	fiber.Push(object.Bool(eq))
	return nil
}

func mapEqOp(negate bool) object.Opcode {
	if negate {
		return object.OpNe
	}
	return object.OpEq
}

func (vm *VM) compareOp(op object.Opcode, less, orEqual bool) error {
	fiber := vm.current
	b := fiber.Pop()
	a := fiber.Pop()
	if handled, err := vm.dispatchBinary(op, a, b); handled {
		return err
	}
	var x, y float64
	switch {
	case a.Kind() == object.KindNumber && b.Kind() == object.KindNumber:
		x, y = a.AsNumber(), b.AsNumber()
	case a.Kind() == object.KindString && b.Kind() == object.KindString:
		sa, sb := a.AsString().Text(), b.AsString().Text()
		if sa < sb {
			x, y = 0, 1
		} else if sa > sb {
			x, y = 1, 0
		} else {
			x, y = 0, 0
		}
	default:
		return vm.raiseRuntime("cannot compare %s and %s", a.Kind(), b.Kind())
	}
	var result bool
	switch {
	case less && orEqual:
		result = x <= y
	case less:
		result = x < y
	case orEqual:
		result = x >= y
	default:
		result = x > y
	}
	fiber.Push(object.Bool(result))
	return nil
}

func (vm *VM) execClassIs() error {
	fiber := vm.current
	right := fiber.Pop()
	left := fiber.Pop()
	if right.Kind() != object.KindClass {
		return vm.raiseRuntime("right-hand side of 'is' must be a class")
	}
	target := right.AsClass()
	result := false
	if left.Kind() == object.KindInstance {
		for cur := left.AsInstance().Class; cur != nil; cur = cur.SuperClass {
			if cur == target {
				result = true
				break
			}
		}
	}
	fiber.Push(object.Bool(result))
	return nil
}

func (vm *VM) execMakeRange(closed bool) error {
	fiber := vm.current
	hiV := fiber.Pop()
	loV := fiber.Pop()
	if loV.Kind() != object.KindNumber || hiV.Kind() != object.KindNumber {
		return vm.raiseRuntime("range bounds must be numbers")
	}
	hi := hiV.AsNumber()
	if !closed {
		hi--
	}
	fiber.Push(object.RangeVal(loV.AsNumber(), hi))
	return nil
}
