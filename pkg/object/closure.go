package object

// UpvalueObject is either Open (aliasing a live slot on some fiber's
// stack) or Closed (owning a copy of the value after its frame unwound).
// Spec §3's invariant — at most one Open UpvalueObject exists per (fiber,
// absolute slot) — is upheld by the VM's openUpvalues index, not by this
// type itself.
type UpvalueObject struct {
	open   bool
	fiber  *Fiber // owning fiber, while open
	slot   int    // absolute stack slot, while open
	closed Value

	marked bool
}

// NewOpenUpvalue creates an upvalue aliasing slot on fiber's stack.
func NewOpenUpvalue(fiber *Fiber, slot int) *UpvalueObject {
	return &UpvalueObject{open: true, fiber: fiber, slot: slot}
}

func (u *UpvalueObject) IsOpen() bool { return u.open }
func (u *UpvalueObject) Slot() int    { return u.slot }
func (u *UpvalueObject) Fiber() *Fiber { return u.fiber }

// Get reads the upvalue's current value: from the aliased stack slot if
// open, or the stored copy if closed.
func (u *UpvalueObject) Get() Value {
	if u.open {
		return u.fiber.StackAt(u.slot)
	}
	return u.closed
}

// Set writes through to the aliased slot if open, or to the stored copy
// if closed.
func (u *UpvalueObject) Set(v Value) {
	if u.open {
		u.fiber.SetStackAt(u.slot, v)
		return
	}
	u.closed = v
}

// Close copies the current value out of the stack and severs the alias.
// Called when the frame owning u.slot unwinds (spec §3/§4.4).
func (u *UpvalueObject) Close() {
	if !u.open {
		return
	}
	u.closed = u.fiber.StackAt(u.slot)
	u.open = false
	u.fiber = nil
}

func (u *UpvalueObject) Marked() bool     { return u.marked }
func (u *UpvalueObject) SetMarked(m bool) { u.marked = m }

// Closure owns a chunk, its captured upvalues, and an optional bound
// instance for method dispatch (spec §3). Two closures are equal iff they
// share a Chunk pointer — enforced by comparing the Chunk field with ==,
// never by deep-comparing instructions.
type Closure struct {
	Chunk    *Chunk
	Upvalues []*UpvalueObject
	Bound    *Instance // non-nil for a bound method

	marked bool
}

func NewClosure(chunk *Chunk, upvalues []*UpvalueObject) *Closure {
	return &Closure{Chunk: chunk, Upvalues: upvalues}
}

// BindTo returns a new closure identical to c but bound to instance — used
// when a method is looked up on an instance (spec §4.9 "method binding").
func (c *Closure) BindTo(instance *Instance) *Closure {
	return &Closure{Chunk: c.Chunk, Upvalues: c.Upvalues, Bound: instance}
}

func (c *Closure) Marked() bool     { return c.marked }
func (c *Closure) SetMarked(m bool) { c.marked = m }
