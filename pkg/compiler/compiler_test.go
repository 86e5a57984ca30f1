package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/ember/pkg/compiler"
	"github.com/kristofer/ember/pkg/object"
	"github.com/kristofer/ember/pkg/strpool"
)

func TestCompileArrayLiteralEmitsInitArrayWithCount(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`var c = [1,2,3];`, "main", pool)
	require.NoError(t, err)

	found := false
	for _, in := range chunk.Instructions {
		if in.Op == object.OpInitArray {
			assert.Equal(t, 3, in.A)
			found = true
		}
	}
	assert.True(t, found, "expected an InitArray(3) instruction")
}

func TestCompileTopLevelVarIsGlobal(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`var x = 1;`, "main", pool)
	require.NoError(t, err)

	found := false
	for _, in := range chunk.Instructions {
		if in.Op == object.OpSetGlobal {
			found = true
		}
	}
	assert.True(t, found, "expected top-level var to compile to SetGlobal")
	assert.Zero(t, chunk.NumLocals, "top-level var should not allocate a local slot")
}

func TestCompileNestedVarIsLocal(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`if (true) { var x = 1; }`, "main", pool)
	require.NoError(t, err)

	found := false
	for _, in := range chunk.Instructions {
		if in.Op == object.OpSetLocal {
			found = true
		}
	}
	assert.True(t, found, "expected block-scoped var to compile to SetLocal")
	assert.Equal(t, 1, chunk.NumLocals)
}

func TestCompileAssignmentUndoesGetterAndEmitsSetter(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`var x = 1; x = 2;`, "main", pool)
	require.NoError(t, err)

	setGlobals := 0
	getGlobals := 0
	for _, in := range chunk.Instructions {
		switch in.Op {
		case object.OpSetGlobal:
			setGlobals++
		case object.OpGetGlobal:
			getGlobals++
		}
	}
	assert.Equal(t, 2, setGlobals, "declaration + assignment should each emit SetGlobal")
	assert.Zero(t, getGlobals, "a bare `x = 2;` statement should never emit a leftover GetGlobal")
}

func TestCompileFunctionDeclarationAddsChildChunk(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`func fib(n) { if (n==0 or n==1) { return 1; } else { return fib(n-1)+fib(n-2); } }`, "main", pool)
	require.NoError(t, err)

	require.Len(t, chunk.Children, 1)
	fib := chunk.Children[0]
	assert.Equal(t, 1, fib.NumParams)
	assert.False(t, fib.Variadic)
}

func TestCompileShortCircuitAndEmitsJumpIfFalseWithoutNop(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`var x = true and false;`, "main", pool)
	require.NoError(t, err)

	foundJump := false
	for _, in := range chunk.Instructions {
		if in.Op == object.OpJumpIfFalse {
			foundJump = true
		}
		assert.NotEqual(t, object.OpNop, in.Op, "`and` lowers to Dup/JumpIfFalse/Pop and leaves no Nop in the chunk")
	}
	assert.True(t, foundJump)
}

func TestCompileVariadicFunctionSetsChunkFlag(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`func add(...) { var r=0; for (var x: va_arg()) { r=r+x; } return r; }`, "main", pool)
	require.NoError(t, err)

	require.Len(t, chunk.Children, 1)
	assert.True(t, chunk.Children[0].Variadic)
	assert.Equal(t, 0, chunk.Children[0].NumParams)
}

func TestCompileClassWithSuperEmitsClassExtendAndAddMethod(t *testing.T) {
	pool := strpool.New()
	src := `class A{ func __init__(){ this.x=1;} } class B:A{ func __init__(){ super.__init__(); this.x=this.x+1; } }`
	chunk, err := compiler.Compile(src, "main", pool)
	require.NoError(t, err)

	var extends, addMethods, initClasses int
	for _, in := range chunk.Instructions {
		switch in.Op {
		case object.OpClassExtend:
			extends++
		case object.OpAddMethod:
			addMethods++
		case object.OpInitClass:
			initClasses++
		}
	}
	assert.Equal(t, 1, extends)
	assert.Equal(t, 2, addMethods)
	assert.Equal(t, 2, initClasses)
}

func TestCompilePipeOperatorEmitsSwapAndCall(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`var y = 1 |> number;`, "main", pool)
	require.NoError(t, err)

	idx := -1
	for i, in := range chunk.Instructions {
		if in.Op == object.OpSwap2 {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx)
	assert.Equal(t, object.OpCall, chunk.Instructions[idx+1].Op)
	assert.Equal(t, 1, chunk.Instructions[idx+1].A)
}

func TestCompileStringInterpolationWrapsInStringCall(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`var s = "hi ${1+2}";`, "main", pool)
	require.NoError(t, err)

	foundAdd := false
	callCount := 0
	for _, in := range chunk.Instructions {
		if in.Op == object.OpAdd {
			foundAdd = true
		}
		if in.Op == object.OpCall {
			callCount++
		}
	}
	assert.True(t, foundAdd, "expected `1+2` to still compile to Add")
	assert.GreaterOrEqual(t, callCount, 1, "expected the interpolation to call the stringify builtin")
}

func TestCompileRangeOperators(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`for (var x: 1..=3) { print(x); }`, "main", pool)
	require.NoError(t, err)

	found := false
	for _, in := range chunk.Instructions {
		if in.Op == object.OpMakeRangeClosed {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCompileRejectsThisOutsideMethod(t *testing.T) {
	pool := strpool.New()
	_, err := compiler.Compile(`print(this);`, "main", pool)
	require.Error(t, err)
}

func TestCompileReportsSyntaxErrorWithPosition(t *testing.T) {
	pool := strpool.New()
	_, err := compiler.Compile(`var = 1;`, "main", pool)
	require.Error(t, err)
}

func TestCompileChunkPassesValidInvariant(t *testing.T) {
	pool := strpool.New()
	chunk, err := compiler.Compile(`func fib(n){ if (n==0 or n==1) { return 1; } else { return fib(n-1)+fib(n-2); } } print(fib(10));`, "main", pool)
	require.NoError(t, err)
	assert.True(t, chunk.Valid())
	for _, child := range chunk.Children {
		assert.True(t, child.Valid())
	}
}
