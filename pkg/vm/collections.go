package vm

import "github.com/kristofer/ember/pkg/object"

func (vm *VM) execInitArray(n int) error {
	fiber := vm.current
	elems := make([]object.Value, n)
	copy(elems, fiber.Stack[fiber.Len()-n:])
	fiber.TruncateTo(fiber.Len() - n)
	arr := object.NewArray(elems)
	vm.register(arr)
	fiber.Push(object.ArrayVal(arr))
	return nil
}

func (vm *VM) execInitDict(n int) error {
	fiber := vm.current
	d := object.NewDictionary()
	base := fiber.Len() - 2*n
	for i := 0; i < n; i++ {
		k := fiber.Stack[base+2*i]
		v := fiber.Stack[base+2*i+1]
		d.Set(k.AsString().Text(), v)
	}
	fiber.TruncateTo(base)
	vm.register(d)
	fiber.Push(object.DictionaryVal(d))
	return nil
}

// execGetCollection implements both `target[key]` (mode 0) and
// `target.name` (mode 1), per spec §4.4's indexing/field protocols.
func (vm *VM) execGetCollection(mode int) error {
	fiber := vm.current
	key := fiber.Pop()
	target := fiber.Pop()

	if mode == 1 {
		return vm.getField(target, key)
	}
	return vm.getIndex(target, key)
}

func (vm *VM) getField(target, key object.Value) error {
	fiber := vm.current
	name := key.AsString().Text()

	switch target.Kind() {
	case object.KindInstance:
		inst := target.AsInstance()
		if v, ok := inst.Fields[name]; ok {
			fiber.Push(v)
			return nil
		}
		if m, ok := inst.Class.Lookup(name); ok {
			bound := m.BindTo(inst)
			vm.register(bound)
			fiber.Push(object.ClosureVal(bound))
			return nil
		}
		return vm.raiseRuntime("instance of %s has no field or method %s", inst.Class.Name, name)
	case object.KindDictionary, object.KindModule, object.KindError:
		v, ok := target.AsDictionary().Get(name)
		if !ok {
			fiber.Push(object.Nil)
			return nil
		}
		fiber.Push(v)
		return nil
	case object.KindClass:
		if m, ok := target.AsClass().Lookup(name); ok {
			fiber.Push(object.ClosureVal(m))
			return nil
		}
		return vm.raiseRuntime("class %s has no method %s", target.AsClass().Name, name)
	default:
		return vm.raiseRuntime("cannot access field %s on %s", name, target.Kind())
	}
}

func (vm *VM) getIndex(target, key object.Value) error {
	fiber := vm.current
	switch target.Kind() {
	case object.KindArray:
		arr := target.AsArray()
		i, err := indexOf(key, len(arr.Elements))
		if err != nil {
			return vm.raiseRuntime("%s", err.Error())
		}
		fiber.Push(arr.Elements[i])
		return nil
	case object.KindString:
		runes := []rune(target.AsString().Text())
		i, err := indexOf(key, len(runes))
		if err != nil {
			return vm.raiseRuntime("%s", err.Error())
		}
		fiber.Push(object.String(vm.Pool.Intern(string(runes[i]))))
		return nil
	case object.KindDictionary:
		if key.Kind() != object.KindString {
			return vm.raiseRuntime("dictionary keys must be strings")
		}
		v, ok := target.AsDictionary().Get(key.AsString().Text())
		if !ok {
			fiber.Push(object.Nil)
			return nil
		}
		fiber.Push(v)
		return nil
	case object.KindInstance:
		inst := target.AsInstance()
		m, ok := inst.Class.Lookup("__index__")
		if !ok {
			return vm.raiseRuntime("instance of %s does not support indexing", inst.Class.Name)
		}
		bound := m.BindTo(inst)
		vm.register(bound)
		result, err := vm.invokeSync(object.ClosureVal(bound), []object.Value{key})
		if err != nil {
			return err
		}
		fiber.Push(result)
		return nil
	default:
		return vm.raiseRuntime("cannot index %s", target.Kind())
	}
}

func indexOf(key object.Value, length int) (int, error) {
	if key.Kind() != object.KindNumber {
		return 0, indexTypeError{}
	}
	i := int(key.AsNumber())
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, indexRangeError{}
	}
	return i, nil
}

type indexTypeError struct{}

func (indexTypeError) Error() string { return "index must be a number" }

type indexRangeError struct{}

func (indexRangeError) Error() string { return "index out of range" }

// execSetCollection implements `target[key] = value` (mode 0) and
// `target.name = value` (mode 1); the assigned value is left on the
// stack, matching SetLocal/SetGlobal's "assignment is an expression"
// convention (spec §4.3).
func (vm *VM) execSetCollection(mode int) error {
	fiber := vm.current
	value := fiber.Pop()
	key := fiber.Pop()
	target := fiber.Pop()

	if mode == 1 {
		if err := vm.setField(target, key, value); err != nil {
			return err
		}
		fiber.Push(value)
		return nil
	}
	if err := vm.setIndex(target, key, value); err != nil {
		return err
	}
	fiber.Push(value)
	return nil
}

func (vm *VM) setField(target, key, value object.Value) error {
	name := key.AsString().Text()
	switch target.Kind() {
	case object.KindInstance:
		target.AsInstance().Fields[name] = value
		return nil
	case object.KindDictionary:
		target.AsDictionary().Set(name, value)
		return nil
	default:
		return vm.raiseRuntime("cannot set field %s on %s", name, target.Kind())
	}
}

func (vm *VM) setIndex(target, key, value object.Value) error {
	switch target.Kind() {
	case object.KindArray:
		arr := target.AsArray()
		i, err := indexOf(key, len(arr.Elements))
		if err != nil {
			return vm.raiseRuntime("%s", err.Error())
		}
		arr.Elements[i] = value
		return nil
	case object.KindDictionary:
		if key.Kind() != object.KindString {
			return vm.raiseRuntime("dictionary keys must be strings")
		}
		target.AsDictionary().Set(key.AsString().Text(), value)
		return nil
	case object.KindInstance:
		inst := target.AsInstance()
		m, ok := inst.Class.Lookup("__assign__")
		if !ok {
			return vm.raiseRuntime("instance of %s does not support index assignment", inst.Class.Name)
		}
		bound := m.BindTo(inst)
		vm.register(bound)
		_, err := vm.invokeSync(object.ClosureVal(bound), []object.Value{key, value})
		return err
	default:
		return vm.raiseRuntime("cannot index-assign %s", target.Kind())
	}
}

// execIterator normalizes the popped value into one of the iterator
// representations execNext understands (spec §4.4): ranges and the
// dedicated *Iter kinds are self-normalizing; dictionaries expand into an
// array of [key, value] pairs; an instance exposing __iter__ is asked to
// produce its own iterator.
func (vm *VM) execIterator() error {
	fiber := vm.current
	v := fiber.Pop()
	switch v.Kind() {
	case object.KindRange, object.KindArrayIter, object.KindStringIter:
		fiber.Push(v)
	case object.KindArray:
		fiber.Push(object.ArrayIter(v.AsArray(), 0))
	case object.KindString:
		fiber.Push(object.StringIter(v.AsString(), 0))
	case object.KindDictionary:
		keys, values := v.AsDictionary().Pairs()
		pairs := make([]object.Value, len(keys))
		for i, k := range keys {
			pair := object.NewArray([]object.Value{object.String(vm.Pool.Intern(k)), values[i]})
			vm.register(pair)
			pairs[i] = object.ArrayVal(pair)
		}
		arr := object.NewArray(pairs)
		vm.register(arr)
		fiber.Push(object.ArrayIter(arr, 0))
	case object.KindInstance:
		m, ok := v.AsInstance().Class.Lookup("__iter__")
		if !ok {
			fiber.Push(v) // assume self-iterating via __next__
			return nil
		}
		bound := m.BindTo(v.AsInstance())
		vm.register(bound)
		result, err := vm.invokeSync(object.ClosureVal(bound), nil)
		if err != nil {
			return err
		}
		fiber.Push(result)
	default:
		return vm.raiseRuntime("%s is not iterable", v.Kind())
	}
	return nil
}

// execNext advances the iterator on top of the stack, replacing it with
// [newIterator, element, hasNext] when an element remains, or
// [newIterator, hasNext=false] when exhausted (spec §4.3's
// Next/JumpIfFalse/SetLocal loop shape).
func (vm *VM) execNext() error {
	fiber := vm.current
	it := fiber.Pop()

	switch it.Kind() {
	case object.KindRange:
		lo, hi := it.RangeLo(), it.RangeHi()
		if lo > hi {
			fiber.Push(it)
			fiber.Push(object.Bool(false))
			return nil
		}
		fiber.Push(object.RangeVal(lo+1, hi))
		fiber.Push(object.Number(lo))
		fiber.Push(object.Bool(true))
		return nil

	case object.KindArrayIter:
		arr := it.AsIterArray()
		idx := it.IterIndex()
		if idx >= len(arr.Elements) {
			fiber.Push(it)
			fiber.Push(object.Bool(false))
			return nil
		}
		fiber.Push(object.ArrayIter(arr, idx+1))
		fiber.Push(arr.Elements[idx])
		fiber.Push(object.Bool(true))
		return nil

	case object.KindStringIter:
		runes := []rune(it.AsString().Text())
		idx := it.IterIndex()
		if idx >= len(runes) {
			fiber.Push(it)
			fiber.Push(object.Bool(false))
			return nil
		}
		fiber.Push(object.StringIter(it.AsString(), idx+1))
		fiber.Push(object.String(vm.Pool.Intern(string(runes[idx]))))
		fiber.Push(object.Bool(true))
		return nil

	case object.KindInstance:
		m, ok := it.AsInstance().Class.Lookup("__next__")
		if !ok {
			return vm.raiseRuntime("instance of %s is not iterable", it.AsInstance().Class.Name)
		}
		bound := m.BindTo(it.AsInstance())
		vm.register(bound)
		result, err := vm.invokeSync(object.ClosureVal(bound), nil)
		if err != nil {
			return err
		}
		fiber.Push(it)
		if result.IsNil() {
			fiber.Push(object.Bool(false))
			return nil
		}
		fiber.Push(result)
		fiber.Push(object.Bool(true))
		return nil

	default:
		return vm.raiseRuntime("%s is not an iterator", it.Kind())
	}
}
