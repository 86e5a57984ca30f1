package vm

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kristofer/ember/pkg/object"
)

// registerPrelude installs the always-available top-level natives (spec
// §6): print, import, number, string, bool, input, type_string, va_arg,
// ord, chr, as_glob. Grounded on kristofer-smog/pkg/vm/primitives.go's
// "one Go function per native, registered by name" pattern, generalized
// from smog's block-argument primitives to this language's free functions.
func (vm *VM) registerPrelude(root *object.Dictionary) {
	root.Set("print", object.NativeFunction(vm.nativePrint))
	root.Set("import", object.NativeFunction(vm.nativeImport))
	root.Set("number", object.NativeFunction(vm.nativeNumber))
	root.Set("string", object.NativeFunction(vm.nativeString))
	root.Set("bool", object.NativeFunction(vm.nativeBool))
	root.Set("input", object.NativeFunction(vm.nativeInput))
	root.Set("type_string", object.NativeFunction(vm.nativeTypeString))
	root.Set("va_arg", object.NativeFunction(vm.nativeVaArg))
	root.Set("ord", object.NativeFunction(vm.nativeOrd))
	root.Set("chr", object.NativeFunction(vm.nativeChr))
	root.Set("as_glob", object.NativeFunction(vm.nativeAsGlob))
}

func (vm *VM) nativePrint(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = vm.stringify(a)
	}
	fmt.Fprintln(vm.Stdout, strings.Join(parts, " "))
	return object.Nil, nil
}

func (vm *VM) nativeNumber(host object.Host, argc int) (object.Value, error) {
	v, err := host.PopValue()
	if err != nil {
		return object.Nil, err
	}
	switch v.Kind() {
	case object.KindNumber:
		return v, nil
	case object.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.AsString().Text()), 64)
		if err != nil {
			return object.Nil, fmt.Errorf("cannot convert %q to a number", v.AsString().Text())
		}
		return object.Number(f), nil
	case object.KindBool:
		if v.AsBool() {
			return object.Number(1), nil
		}
		return object.Number(0), nil
	default:
		return object.Nil, fmt.Errorf("cannot convert %s to a number", v.Kind())
	}
}

func (vm *VM) nativeString(host object.Host, argc int) (object.Value, error) {
	v, err := host.PopValue()
	if err != nil {
		return object.Nil, err
	}
	return object.String(vm.Pool.Intern(vm.stringify(v))), nil
}

func (vm *VM) nativeBool(host object.Host, argc int) (object.Value, error) {
	v, err := host.PopValue()
	if err != nil {
		return object.Nil, err
	}
	return object.Bool(v.Truthy()), nil
}

func (vm *VM) nativeInput(host object.Host, argc int) (object.Value, error) {
	reader := bufio.NewReader(vm.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return object.Nil, nil
	}
	return object.String(vm.Pool.Intern(strings.TrimRight(line, "\r\n"))), nil
}

func (vm *VM) nativeTypeString(host object.Host, argc int) (object.Value, error) {
	v, err := host.PopValue()
	if err != nil {
		return object.Nil, err
	}
	return object.String(vm.Pool.Intern(v.Kind().String())), nil
}

// nativeVaArg implements `va_arg(i)`: the i-th surplus argument beyond a
// variadic function's named parameters (spec scenario 6), read from the
// currently executing frame's VarArgs.
func (vm *VM) nativeVaArg(host object.Host, argc int) (object.Value, error) {
	i, err := host.PopNumber()
	if err != nil {
		return object.Nil, err
	}
	frame := host.Current().CurrentFrame()
	if frame == nil {
		return object.Nil, errors.New("va_arg used outside a function call")
	}
	idx := int(i)
	if idx < 0 || idx >= len(frame.VarArgs) {
		return object.Nil, nil
	}
	return frame.VarArgs[idx], nil
}

func (vm *VM) nativeOrd(host object.Host, argc int) (object.Value, error) {
	h, err := host.PopString()
	if err != nil {
		return object.Nil, err
	}
	runes := []rune(h.Text())
	if len(runes) == 0 {
		return object.Nil, errors.New("ord() requires a non-empty string")
	}
	return object.Number(float64(runes[0])), nil
}

func (vm *VM) nativeChr(host object.Host, argc int) (object.Value, error) {
	n, err := host.PopNumber()
	if err != nil {
		return object.Nil, err
	}
	return object.String(vm.Pool.Intern(string(rune(int(n))))), nil
}

// nativeAsGlob expands a filesystem glob pattern into an array of
// matching path strings (spec §E.3, generalized from original_source's
// as_glob helper).
func (vm *VM) nativeAsGlob(host object.Host, argc int) (object.Value, error) {
	h, err := host.PopString()
	if err != nil {
		return object.Nil, err
	}
	matches, err := filepath.Glob(h.Text())
	if err != nil {
		return object.Nil, err
	}
	elems := make([]object.Value, len(matches))
	for i, m := range matches {
		elems[i] = object.String(vm.Pool.Intern(m))
	}
	arr := object.NewArray(elems)
	host.RegisterHeapObject(arr)
	return object.ArrayVal(arr), nil
}

// Format renders v the same way `print`/`string()` do, for hosts (the
// REPL, trace output) that need to display a Value outside the VM.
func (vm *VM) Format(v object.Value) string { return vm.stringify(v) }

// stringify renders v for `print`/`string()`/interpolation. Grounded on
// the teacher's debugger dump style (see debugger.go), but plain text
// rather than spew's Go-struct notation.
func (vm *VM) stringify(v object.Value) string {
	switch v.Kind() {
	case object.KindNil:
		return "nil"
	case object.KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case object.KindNumber:
		return strconv.FormatFloat(v.AsNumber(), 'g', -1, 64)
	case object.KindString:
		return v.AsString().Text()
	case object.KindRange:
		return fmt.Sprintf("%s..=%s",
			strconv.FormatFloat(v.RangeLo(), 'g', -1, 64),
			strconv.FormatFloat(v.RangeHi(), 'g', -1, 64))
	case object.KindArray:
		parts := make([]string, len(v.AsArray().Elements))
		for i, e := range v.AsArray().Elements {
			parts[i] = vm.stringify(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case object.KindDictionary:
		keys, values := v.AsDictionary().Pairs()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q: %s", k, vm.stringify(values[i]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case object.KindError:
		info, _ := v.AsDictionary().Get("info")
		return "error: " + vm.stringify(info)
	case object.KindModule:
		return "<module>"
	case object.KindClosure:
		name := v.AsClosure().Chunk.Name
		if name == "" {
			name = "<anonymous>"
		}
		return "<function " + name + ">"
	case object.KindNativeFunction:
		return "<native function>"
	case object.KindFiber:
		return "<fiber " + v.AsFiber().ID.String() + ">"
	case object.KindClass:
		return "<class " + v.AsClass().Name + ">"
	case object.KindInstance:
		return "<" + v.AsInstance().Class.Name + " instance>"
	default:
		return "<" + v.Kind().String() + ">"
	}
}
