package compiler

import "github.com/kristofer/ember/pkg/object"

// blockScope holds the locals declared directly inside one `{ }` block.
// Slots are never reclaimed when a block closes (see funcState.nextSlot):
// reusing a slot across sibling blocks would let a closure created in one
// sibling alias a local that a later sibling's declaration silently
// reinitializes, which would violate the "at most one live Open upvalue
// per (fiber, slot)" invariant in spec §3. Spending a few extra stack
// slots per function is the simpler, safe trade.
type blockScope struct {
	names map[string]int
}

// loopContext accumulates the back-patch sites for one loop's `break` and
// `continue` statements, written when the loop closes (spec §4.3).
type loopContext struct {
	breaks        []int
	continueJumps []int
	continueAt    int // set once the continue target is known
}

// funcState is the compiler's per-function-body record: the chunk being
// built, its block-scope stack, its next free local slot, and the loop
// stack for break/continue. One funcState exists per nested function,
// method, or lambda body, chained through parent for upvalue resolution
// (spec §4.3's name-resolution algorithm).
type funcState struct {
	parent   *funcState
	chunk    *object.Chunk
	scopes   []*blockScope
	nextSlot int
	depth    int
	loops    []*loopContext
	isMethod bool

	// hasSuper/superConst let a method body compile `super.m()`: superConst
	// is the index, in *this chunk's* constant pool, of the enclosing
	// class's superclass name, pushed fresh via GetGlobal each time
	// super.m() is compiled (spec §4.3's class compilation; see
	// Compiler.primary's TokenSuper case).
	hasSuper   bool
	superConst int

	// isMethodContext, pendingSuper and pendingSuperConst are staging
	// fields classStatement sets on the *enclosing* funcState immediately
	// before calling compileFunctionBody for one method, so the new
	// funcState it creates for the method body can pick up isMethod/
	// hasSuper/superConst without threading extra parameters through
	// every compileFunctionBody caller (lambdas and plain func statements
	// never set these, so they default to false/0).
	isMethodContext   bool
	pendingSuper      bool
	pendingSuperConst int

	// upvalueCache avoids emitting duplicate UpvalueDescriptors for the
	// same captured name (spec §4.3 step 3: "if n already exists as an
	// upvalue of the current chunk, reuse that index").
	upvalueCache map[string]int
}

func newFuncState(parent *funcState, chunk *object.Chunk, isMethod bool) *funcState {
	depth := 0
	if parent != nil {
		depth = parent.depth + 1
	}
	fs := &funcState{
		parent:       parent,
		chunk:        chunk,
		depth:        depth,
		isMethod:     isMethod,
		upvalueCache: map[string]int{},
	}
	fs.pushScope()
	return fs
}

func (fs *funcState) pushScope() {
	fs.scopes = append(fs.scopes, &blockScope{names: map[string]int{}})
}

func (fs *funcState) popScope() {
	fs.scopes = fs.scopes[:len(fs.scopes)-1]
}

// declareLocal allocates a new stack slot for name in the current block
// scope and returns it.
func (fs *funcState) declareLocal(name string) int {
	slot := fs.nextSlot
	fs.nextSlot++
	if fs.nextSlot > fs.chunk.NumLocals {
		fs.chunk.NumLocals = fs.nextSlot
	}
	fs.scopes[len(fs.scopes)-1].names[name] = slot
	return slot
}

// atOutermostBlock reports whether we are directly inside the function's
// top block (not a nested if/while/for body) — the condition spec §4.3
// uses to decide whether a top-level `var` is a local or, at depth 0, a
// global.
func (fs *funcState) atOutermostBlock() bool {
	return len(fs.scopes) == 1
}

// resolveLocal searches fs's block scopes innermost-to-outermost, so
// shadowing a name in a nested block resolves to the nearer declaration.
func (fs *funcState) resolveLocal(name string) (int, bool) {
	for i := len(fs.scopes) - 1; i >= 0; i-- {
		if slot, ok := fs.scopes[i].names[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (fs *funcState) currentLoop() *loopContext {
	if len(fs.loops) == 0 {
		return nil
	}
	return fs.loops[len(fs.loops)-1]
}

// resolveUpvalue implements spec §4.3 steps 3-4: reuse a cached upvalue
// index, else capture the parent's local, else recurse into the parent's
// own upvalues. Returns ok=false when name isn't found as a local or
// upvalue anywhere in the enclosing chain (the caller then treats it as
// global, legal only at depth 0).
func resolveUpvalue(fs *funcState, name string) (int, bool) {
	if idx, ok := fs.upvalueCache[name]; ok {
		return idx, true
	}
	if fs.parent == nil {
		return 0, false
	}
	if slot, ok := fs.parent.resolveLocal(name); ok {
		idx := len(fs.chunk.Upvalues)
		fs.chunk.Upvalues = append(fs.chunk.Upvalues, object.UpvalueDescriptor{
			FromParentLocal: true, Index: slot, Name: name,
		})
		fs.upvalueCache[name] = idx
		return idx, true
	}
	if outerIdx, ok := resolveUpvalue(fs.parent, name); ok {
		idx := len(fs.chunk.Upvalues)
		fs.chunk.Upvalues = append(fs.chunk.Upvalues, object.UpvalueDescriptor{
			FromParentLocal: false, Index: outerIdx, Name: name,
		})
		fs.upvalueCache[name] = idx
		return idx, true
	}
	return 0, false
}

// nameKind is the outcome of resolving an identifier per spec §4.3.
type nameKind int

const (
	nameLocal nameKind = iota
	nameUpvalue
	nameGlobal
)

type resolved struct {
	kind nameKind
	slot int // local slot or upvalue index
}

// resolveName runs the full algorithm: local in the current function,
// else global if at module depth, else an existing or newly captured
// upvalue.
func resolveName(fs *funcState, name string) resolved {
	if slot, ok := fs.resolveLocal(name); ok {
		return resolved{nameLocal, slot}
	}
	if fs.depth == 0 {
		return resolved{nameGlobal, 0}
	}
	if idx, ok := resolveUpvalue(fs, name); ok {
		return resolved{nameUpvalue, idx}
	}
	return resolved{nameGlobal, 0}
}
