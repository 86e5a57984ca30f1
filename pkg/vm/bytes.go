package vm

import (
	"errors"

	"github.com/kristofer/ember/pkg/object"
)

// byteBuffer is the Go-side payload behind an OpaqueData value produced by
// `bytes.new()` (spec §6's DOMAIN STACK expansion) — a growable byte
// buffer a script can fill and later decode as a string, or vice versa.
type byteBuffer struct {
	data []byte
}

// registerBytesModule installs the `bytes` module: new, from_string,
// to_string, len, get, set, push, slice.
func (vm *VM) registerBytesModule(root *object.Dictionary) {
	mod := object.NewDictionary()
	mod.Set("new", object.NativeFunction(vm.nativeBytesNew))
	mod.Set("from_string", object.NativeFunction(vm.nativeBytesFromString))
	mod.Set("to_string", object.NativeFunction(vm.nativeBytesToString))
	mod.Set("len", object.NativeFunction(vm.nativeBytesLen))
	mod.Set("get", object.NativeFunction(vm.nativeBytesGet))
	mod.Set("set", object.NativeFunction(vm.nativeBytesSet))
	mod.Set("push", object.NativeFunction(vm.nativeBytesPush))
	mod.Set("slice", object.NativeFunction(vm.nativeBytesSlice))
	root.Set("bytes", object.ModuleVal(mod))
}

func asByteBuffer(v object.Value) (*byteBuffer, error) {
	if v.Kind() != object.KindOpaqueData {
		return nil, errors.New("expected a bytes buffer")
	}
	buf, ok := v.AsOpaque().(*byteBuffer)
	if !ok {
		return nil, errors.New("expected a bytes buffer")
	}
	return buf, nil
}

func (vm *VM) nativeBytesNew(host object.Host, argc int) (object.Value, error) {
	n := 0
	if argc == 1 {
		fn, err := host.PopNumber()
		if err != nil {
			return object.Nil, err
		}
		n = int(fn)
	} else if argc != 0 {
		return object.Nil, errors.New("bytes.new expects zero or one argument")
	}
	return object.OpaqueData(&byteBuffer{data: make([]byte, n)}), nil
}

func (vm *VM) nativeBytesFromString(host object.Host, argc int) (object.Value, error) {
	h, err := host.PopString()
	if err != nil {
		return object.Nil, err
	}
	return object.OpaqueData(&byteBuffer{data: []byte(h.Text())}), nil
}

func (vm *VM) nativeBytesToString(host object.Host, argc int) (object.Value, error) {
	v, err := host.PopValue()
	if err != nil {
		return object.Nil, err
	}
	buf, err := asByteBuffer(v)
	if err != nil {
		return object.Nil, err
	}
	return object.String(vm.Pool.Intern(string(buf.data))), nil
}

func (vm *VM) nativeBytesLen(host object.Host, argc int) (object.Value, error) {
	v, err := host.PopValue()
	if err != nil {
		return object.Nil, err
	}
	buf, err := asByteBuffer(v)
	if err != nil {
		return object.Nil, err
	}
	return object.Number(float64(len(buf.data))), nil
}

func (vm *VM) nativeBytesGet(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) != 2 {
		return object.Nil, errors.New("bytes.get expects (buffer, index)")
	}
	buf, err := asByteBuffer(args[0])
	if err != nil {
		return object.Nil, err
	}
	idx := int(args[1].AsNumber())
	if idx < 0 || idx >= len(buf.data) {
		return object.Nil, errors.New("bytes.get: index out of range")
	}
	return object.Number(float64(buf.data[idx])), nil
}

func (vm *VM) nativeBytesSet(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) != 3 {
		return object.Nil, errors.New("bytes.set expects (buffer, index, byteValue)")
	}
	buf, err := asByteBuffer(args[0])
	if err != nil {
		return object.Nil, err
	}
	idx := int(args[1].AsNumber())
	if idx < 0 || idx >= len(buf.data) {
		return object.Nil, errors.New("bytes.set: index out of range")
	}
	buf.data[idx] = byte(int(args[2].AsNumber()))
	return object.Nil, nil
}

func (vm *VM) nativeBytesPush(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) != 2 {
		return object.Nil, errors.New("bytes.push expects (buffer, byteValue)")
	}
	buf, err := asByteBuffer(args[0])
	if err != nil {
		return object.Nil, err
	}
	buf.data = append(buf.data, byte(int(args[1].AsNumber())))
	return object.Nil, nil
}

func (vm *VM) nativeBytesSlice(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) != 3 {
		return object.Nil, errors.New("bytes.slice expects (buffer, start, end)")
	}
	buf, err := asByteBuffer(args[0])
	if err != nil {
		return object.Nil, err
	}
	start, end := int(args[1].AsNumber()), int(args[2].AsNumber())
	if start < 0 || end > len(buf.data) || start > end {
		return object.Nil, errors.New("bytes.slice: range out of bounds")
	}
	sliced := append([]byte{}, buf.data[start:end]...)
	return object.OpaqueData(&byteBuffer{data: sliced}), nil
}
