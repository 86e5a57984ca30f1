package object

import "github.com/google/uuid"

// FiberState is one of the cooperative-scheduling states from spec §3/§5.
type FiberState int

const (
	FiberInitial FiberState = iota
	FiberRunning
	FiberWaiting
	FiberPaused
	FiberError
	FiberFinished
	FiberLoader
)

func (s FiberState) String() string {
	switch s {
	case FiberInitial:
		return "initial"
	case FiberRunning:
		return "running"
	case FiberWaiting:
		return "waiting"
	case FiberPaused:
		return "paused"
	case FiberError:
		return "error"
	case FiberFinished:
		return "finished"
	case FiberLoader:
		return "loader"
	default:
		return "unknown"
	}
}

// CallFrame is a single activation of a closure on a fiber's stack (spec
// §3).
type CallFrame struct {
	Bottom             int
	Closure            *Closure
	PC                 int
	VarArgs            []Value
	DiscardReturnValue bool

	// Protected marks a frame entered via TryCall: an error raised at or
	// below this frame unwinds only up to here, replacing the call's
	// result with an Error value instead of halting execution (spec §7).
	Protected bool
}

// Fiber is a cooperatively scheduled coroutine: a private value stack, a
// call-frame stack, a state, and a link back to whichever fiber resumed
// it (spec §3/§4.5). The ID exists purely for debugger/trace labels (it
// is never compared for language-level equality, which still uses pointer
// identity on *Fiber).
type Fiber struct {
	ID     uuid.UUID
	Stack  []Value
	Frames []CallFrame
	State  FiberState
	Prev   *Fiber

	marked bool
}

// NewFiber creates a fiber in FiberInitial with an empty stack.
func NewFiber() *Fiber {
	return &Fiber{ID: uuid.New(), State: FiberInitial}
}

// StackAt / SetStackAt give UpvalueObject access to an absolute stack slot
// without exposing the whole stack slice to package vm's callers.
func (f *Fiber) StackAt(slot int) Value     { return f.Stack[slot] }
func (f *Fiber) SetStackAt(slot int, v Value) { f.Stack[slot] = v }

// Push appends a value to the fiber's stack.
func (f *Fiber) Push(v Value) { f.Stack = append(f.Stack, v) }

// Pop removes and returns the top value. Callers must check Len() first;
// this mirrors the teacher's push/pop pair which also assumes a
// pre-checked stack pointer.
func (f *Fiber) Pop() Value {
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v
}

func (f *Fiber) Len() int { return len(f.Stack) }

// Top returns the top value without popping.
func (f *Fiber) Top() Value { return f.Stack[len(f.Stack)-1] }

// TruncateTo shrinks the stack to length n, used when a frame returns.
func (f *Fiber) TruncateTo(n int) { f.Stack = f.Stack[:n] }

// CurrentFrame returns a pointer to the top call frame, or nil if none.
func (f *Fiber) CurrentFrame() *CallFrame {
	if len(f.Frames) == 0 {
		return nil
	}
	return &f.Frames[len(f.Frames)-1]
}

func (f *Fiber) PushFrame(cf CallFrame) { f.Frames = append(f.Frames, cf) }

func (f *Fiber) PopFrame() CallFrame {
	cf := f.Frames[len(f.Frames)-1]
	f.Frames = f.Frames[:len(f.Frames)-1]
	return cf
}

func (f *Fiber) Marked() bool     { return f.marked }
func (f *Fiber) SetMarked(m bool) { f.marked = m }
