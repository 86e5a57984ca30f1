// Package object defines the runtime value representation shared by the
// compiler (constant pools reference Values), the VM (the stack and every
// variable slot holds a Value), and the garbage collector (heap objects
// are reached by walking Values).
//
// kristofer-smog represents every runtime value as a bare Go `interface{}`
// (see its pkg/vm/vm.go doc comment: "Values can be any Go type"). That
// works for smog because it never needs handle identity or a closed mark
// phase. This spec does (spec §3's Value is a tagged sum, and handle
// identity for strings and closures is load-bearing for `==` and for the
// GC's mark phase), so Value here is a small closed struct instead —
// the same "stack holds Values, heap objects are reached indirectly"
// shape the teacher uses, generalized to a real tagged union.
package object

import "github.com/kristofer/ember/pkg/strpool"

// Kind tags which variant of Value is populated.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindRange
	KindString
	KindArray
	KindDictionary
	KindError
	KindModule
	KindClosure
	KindNativeFunction
	KindOpaqueData
	KindFiber
	KindClass
	KindInstance
	KindStringIter
	KindArrayIter
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindRange:
		return "range"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindDictionary:
		return "dictionary"
	case KindError:
		return "error"
	case KindModule:
		return "module"
	case KindClosure:
		return "closure"
	case KindNativeFunction:
		return "native_function"
	case KindOpaqueData:
		return "opaque"
	case KindFiber:
		return "fiber"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	case KindStringIter:
		return "string_iter"
	case KindArrayIter:
		return "array_iter"
	default:
		return "unknown"
	}
}

// NativeFn is the Go-side implementation of a native function, invoked by
// the VM's calling convention (spec §4.8). It is given the owning VM as an
// opaque interface so pkg/object never imports pkg/vm (which would be a
// cycle) — the VM passes itself as host and the native calls back through
// the Host interface.
type NativeFn func(host Host, argCount int) (Value, error)

// Host is the subset of VM behavior a native function needs: stack access
// and heap registration. It is implemented by *vm.VM.
type Host interface {
	PopNumber() (float64, error)
	PopString() (strpool.Handle, error)
	PopValue() (Value, error)
	PopOpaque() (interface{}, error)
	Push(Value)
	Intern(string) strpool.Handle
	RegisterHeapObject(interface{})
	RaiseFiberSwitch()
	Current() *Fiber
	RaiseError(message string) error
}

// Value is the tagged sum described in spec §3. Only the field matching
// Kind is meaningful; the others are zero. This keeps Value a flat,
// copyable, comparable-by-convention struct instead of a pointer-heavy
// interface, so primitive values (Nil, Bool, Number, Range) never touch
// the heap or the GC.
type Value struct {
	kind Kind

	number float64 // Number, and Range.lo
	hi     float64 // Range.hi
	b      bool    // Bool

	str strpool.Handle // String

	ref interface{} // heap pointer for Array/Dictionary/Closure/Fiber/Class/Instance/Error/Module/iterators
	idx int          // StringIter/ArrayIter index

	native NativeFn
	opaque interface{}
}

var Nil = Value{kind: KindNil}

func Bool(b bool) Value   { return Value{kind: KindBool, b: b} }
func Number(f float64) Value { return Value{kind: KindNumber, number: f} }
func RangeVal(lo, hi float64) Value { return Value{kind: KindRange, number: lo, hi: hi} }
func String(h strpool.Handle) Value { return Value{kind: KindString, str: h} }
func NativeFunction(fn NativeFn) Value { return Value{kind: KindNativeFunction, native: fn} }
func OpaqueData(p interface{}) Value   { return Value{kind: KindOpaqueData, opaque: p} }

func ArrayVal(a *Array) Value           { return Value{kind: KindArray, ref: a} }
func DictionaryVal(d *Dictionary) Value { return Value{kind: KindDictionary, ref: d} }
func ErrorVal(d *Dictionary) Value      { return Value{kind: KindError, ref: d} }
func ModuleVal(d *Dictionary) Value     { return Value{kind: KindModule, ref: d} }
func ClosureVal(c *Closure) Value       { return Value{kind: KindClosure, ref: c} }
func FiberVal(f *Fiber) Value           { return Value{kind: KindFiber, ref: f} }
func ClassVal(c *Class) Value           { return Value{kind: KindClass, ref: c} }
func InstanceVal(i *Instance) Value     { return Value{kind: KindInstance, ref: i} }

func StringIter(h strpool.Handle, index int) Value {
	return Value{kind: KindStringIter, str: h, idx: index}
}
func ArrayIter(a *Array, index int) Value {
	return Value{kind: KindArrayIter, ref: a, idx: index}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNil() bool     { return v.kind == KindNil }
func (v Value) AsBool() bool    { return v.b }
func (v Value) AsNumber() float64 { return v.number }
func (v Value) RangeLo() float64  { return v.number }
func (v Value) RangeHi() float64  { return v.hi }
func (v Value) AsString() strpool.Handle { return v.str }
func (v Value) AsNative() NativeFn       { return v.native }
func (v Value) AsOpaque() interface{}    { return v.opaque }
func (v Value) IterIndex() int           { return v.idx }

func (v Value) AsArray() *Array           { a, _ := v.ref.(*Array); return a }
func (v Value) AsDictionary() *Dictionary { d, _ := v.ref.(*Dictionary); return d }
func (v Value) AsClosure() *Closure       { c, _ := v.ref.(*Closure); return c }
func (v Value) AsFiber() *Fiber           { f, _ := v.ref.(*Fiber); return f }
func (v Value) AsClass() *Class           { c, _ := v.ref.(*Class); return c }
func (v Value) AsInstance() *Instance     { i, _ := v.ref.(*Instance); return i }
func (v Value) AsIterArray() *Array       { a, _ := v.ref.(*Array); return a }

// HeapRef returns the underlying heap pointer for GC marking, or nil for
// primitive kinds that do not own one.
func (v Value) HeapRef() interface{} {
	switch v.kind {
	case KindArray, KindDictionary, KindError, KindModule, KindClosure,
		KindFiber, KindClass, KindInstance, KindArrayIter:
		return v.ref
	default:
		return nil
	}
}

// Truthy implements the language's notion of truthiness: everything is
// truthy except nil and the boolean false (spec does not define numeric
// or string falsiness, so 0 and "" are truthy, matching the convention
// used by JumpIfFalse in spec §4.4, which only ever receives an explicit
// boolean from a comparison/logical op or a user predicate).
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}
