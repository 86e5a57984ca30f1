package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/object"
	"github.com/kristofer/ember/pkg/vm"
)

func runSource(t *testing.T, source string) (object.Value, *vm.VM) {
	t.Helper()
	v := vm.New()
	chunk, err := compiler.Compile(source, "test", v.Pool)
	require.NoError(t, err)
	result, err := v.Run(chunk)
	require.NoError(t, err)
	return result, v
}

func TestRecursiveFibonacci(t *testing.T) {
	result, _ := runSource(t, `
		func fib(n) {
			if (n < 2) { return n; }
			return fib(n - 1) + fib(n - 2);
		}
		fib(10);
	`)
	assert.Equal(t, object.KindNumber, result.Kind())
	assert.Equal(t, float64(55), result.AsNumber())
}

func TestArrayMutationIsSharedByReference(t *testing.T) {
	result, _ := runSource(t, `
		var a = [1, 2, 3];
		func grow(arr) { arr[0] = 99; }
		grow(a);
		a[0];
	`)
	assert.Equal(t, float64(99), result.AsNumber())
}

func TestClassInheritanceOverridesAndSuperCall(t *testing.T) {
	result, _ := runSource(t, `
		class Animal {
			func speak() { return "..."; }
		}
		class Dog : Animal {
			func speak() { return "woof " + super.speak(); }
		}
		var d = Dog();
		d.speak();
	`)
	require.Equal(t, object.KindString, result.Kind())
	assert.Equal(t, "woof ...", result.AsString().Text())
}

func TestVariadicFunctionReadsSurplusArgsViaVaArg(t *testing.T) {
	result, _ := runSource(t, `
		func sum(first, ...) {
			var total = first;
			var i = 0;
			while (true) {
				var extra = va_arg(i);
				if (extra == nil) { break; }
				total = total + extra;
				i = i + 1;
			}
			return total;
		}
		sum(1, 2, 3, 4);
	`)
	assert.Equal(t, float64(10), result.AsNumber())
}

func TestStringInterpolationCallsStringOnEachPart(t *testing.T) {
	result, _ := runSource(t, `
		var name = "world";
		"hello, ${name}!";
	`)
	require.Equal(t, object.KindString, result.Kind())
	assert.Equal(t, "hello, world!", result.AsString().Text())
}

func TestFiberResumeYieldRoundTrip(t *testing.T) {
	result, _ := runSource(t, `
		func counter() {
			var i = 0;
			while (i < 3) {
				fiber.yield(i);
				i = i + 1;
			}
			return i;
		}
		var f = fiber.create(counter);
		var a = fiber.resume(f);
		var b = fiber.resume(f);
		var c = fiber.resume(f);
		[a, b, c];
	`)
	require.Equal(t, object.KindArray, result.Kind())
	elems := result.AsArray().Elements
	require.Len(t, elems, 3)
	assert.Equal(t, float64(0), elems[0].AsNumber())
	assert.Equal(t, float64(1), elems[1].AsNumber())
	assert.Equal(t, float64(2), elems[2].AsNumber())
}

func TestWhileLoopLocalSurvivesConditionAndBody(t *testing.T) {
	result, _ := runSource(t, `
		func countUp(n) {
			var i = 0;
			var total = 0;
			while (i < n) {
				total = total + i;
				i = i + 1;
			}
			return total;
		}
		countUp(5);
	`)
	assert.Equal(t, float64(0+1+2+3+4), result.AsNumber())
}

func TestAndOrShortCircuitPreserveLeftValue(t *testing.T) {
	result, _ := runSource(t, `[false and 9, 3 and 9, false or 9, 3 or 9];`)
	require.Equal(t, object.KindArray, result.Kind())
	elems := result.AsArray().Elements
	require.Len(t, elems, 4)
	assert.Equal(t, object.Bool(false), elems[0], "false and 9 should short-circuit to the falsy left value")
	assert.Equal(t, float64(9), elems[1].AsNumber(), "3 and 9 should evaluate the right operand")
	assert.Equal(t, float64(9), elems[2].AsNumber(), "false or 9 should evaluate the right operand")
	assert.Equal(t, float64(3), elems[3].AsNumber(), "3 or 9 should short-circuit to the truthy left value")
}

func TestDivisionBelowEpsilonRaises(t *testing.T) {
	result, _ := runSource(t, `
		func div(a, b) { return a / b; }
		var caught = div(1, 0.00000001)?;
		caught;
	`)
	assert.Equal(t, object.KindError, result.Kind(), "dividing by 1e-8 must raise, not silently divide")
}

func TestDivisionAboveEpsilonSucceeds(t *testing.T) {
	result, _ := runSource(t, `10 / 0.001;`)
	assert.Equal(t, object.KindNumber, result.Kind())
	assert.InDelta(t, 10000.0, result.AsNumber(), 0.0001)
}

func TestTryCallRecoversRuntimeError(t *testing.T) {
	result, _ := runSource(t, `
		func boom() { return 1 / 0; }
		var caught = boom()?;
		caught;
	`)
	assert.Equal(t, object.KindError, result.Kind())
}
