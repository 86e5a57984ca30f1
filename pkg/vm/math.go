package vm

import (
	"errors"
	"math"
	"math/rand"

	"github.com/kristofer/ember/pkg/object"
)

// registerMathModule installs the `math` module (spec §6's DOMAIN STACK
// expansion): a thin wrapper over Go's math package, grouped the way
// registerFiberModule groups fiber's natives into one dictionary.
func (vm *VM) registerMathModule(root *object.Dictionary) {
	mod := object.NewDictionary()
	mod.Set("pi", object.Number(math.Pi))
	mod.Set("e", object.Number(math.E))
	mod.Set("sqrt", object.NativeFunction(unary(math.Sqrt)))
	mod.Set("abs", object.NativeFunction(unary(math.Abs)))
	mod.Set("floor", object.NativeFunction(unary(math.Floor)))
	mod.Set("ceil", object.NativeFunction(unary(math.Ceil)))
	mod.Set("round", object.NativeFunction(unary(math.Round)))
	mod.Set("trunc", object.NativeFunction(unary(math.Trunc)))
	mod.Set("sin", object.NativeFunction(unary(math.Sin)))
	mod.Set("cos", object.NativeFunction(unary(math.Cos)))
	mod.Set("tan", object.NativeFunction(unary(math.Tan)))
	mod.Set("log", object.NativeFunction(unary(math.Log)))
	mod.Set("log2", object.NativeFunction(unary(math.Log2)))
	mod.Set("log10", object.NativeFunction(unary(math.Log10)))
	mod.Set("exp", object.NativeFunction(unary(math.Exp)))
	mod.Set("pow", object.NativeFunction(nativeMathPow))
	mod.Set("min", object.NativeFunction(nativeMathMin))
	mod.Set("max", object.NativeFunction(nativeMathMax))
	mod.Set("random", object.NativeFunction(nativeMathRandom))
	root.Set("math", object.ModuleVal(mod))
}

// unary lifts a float64->float64 Go function into a one-argument native.
func unary(fn func(float64) float64) object.NativeFn {
	return func(host object.Host, argc int) (object.Value, error) {
		if argc != 1 {
			return object.Nil, errors.New("expects exactly one numeric argument")
		}
		n, err := host.PopNumber()
		if err != nil {
			return object.Nil, err
		}
		return object.Number(fn(n)), nil
	}
}

func nativeMathPow(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) != 2 {
		return object.Nil, errors.New("math.pow expects (base, exponent)")
	}
	return object.Number(math.Pow(args[0].AsNumber(), args[1].AsNumber())), nil
}

func nativeMathMin(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) == 0 {
		return object.Nil, errors.New("math.min expects at least one argument")
	}
	m := args[0].AsNumber()
	for _, a := range args[1:] {
		m = math.Min(m, a.AsNumber())
	}
	return object.Number(m), nil
}

func nativeMathMax(host object.Host, argc int) (object.Value, error) {
	args, err := popArgs(host, argc)
	if err != nil {
		return object.Nil, err
	}
	if len(args) == 0 {
		return object.Nil, errors.New("math.max expects at least one argument")
	}
	m := args[0].AsNumber()
	for _, a := range args[1:] {
		m = math.Max(m, a.AsNumber())
	}
	return object.Number(m), nil
}

func nativeMathRandom(host object.Host, argc int) (object.Value, error) {
	if argc != 0 {
		return object.Nil, errors.New("math.random takes no arguments")
	}
	return object.Number(rand.Float64()), nil
}
