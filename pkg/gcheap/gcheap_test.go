package gcheap

import (
	"testing"

	"github.com/kristofer/ember/pkg/object"
)

type fakeRoots struct {
	fibers []*object.Fiber
	ns     []*object.Dictionary
}

func (r fakeRoots) LiveFibers() []*object.Fiber            { return r.fibers }
func (r fakeRoots) GlobalNamespaces() []*object.Dictionary { return r.ns }

func TestCollectSweepsUnreachableArray(t *testing.T) {
	h := New()
	reachable := object.NewArray([]object.Value{object.Number(1)})
	unreachable := object.NewArray([]object.Value{object.Number(2)})
	h.Register(reachable)
	h.Register(unreachable)

	ns := object.NewDictionary()
	ns.Set("kept", object.ArrayVal(reachable))

	collected := h.Collect(fakeRoots{ns: []*object.Dictionary{ns}})
	if collected != 1 {
		t.Fatalf("expected 1 object collected, got %d", collected)
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 object to remain registered, got %d", h.Len())
	}
}

func TestCollectKeepsCyclicStructureReachableFromRoot(t *testing.T) {
	h := New()
	a := object.NewArray(nil)
	b := object.NewArray(nil)
	a.Elements = []object.Value{object.ArrayVal(b)}
	b.Elements = []object.Value{object.ArrayVal(a)} // cycle
	h.Register(a)
	h.Register(b)

	ns := object.NewDictionary()
	ns.Set("a", object.ArrayVal(a))

	collected := h.Collect(fakeRoots{ns: []*object.Dictionary{ns}})
	if collected != 0 {
		t.Fatalf("expected cyclic pair reachable from root to survive, got %d collected", collected)
	}
}

func TestCollectReclaimsUnreachableCycle(t *testing.T) {
	h := New()
	a := object.NewArray(nil)
	b := object.NewArray(nil)
	a.Elements = []object.Value{object.ArrayVal(b)}
	b.Elements = []object.Value{object.ArrayVal(a)}
	h.Register(a)
	h.Register(b)

	collected := h.Collect(fakeRoots{})
	if collected != 2 {
		t.Fatalf("expected both cyclic objects collected once unreachable, got %d", collected)
	}
}

func TestShouldCollectRespectsFloorThreshold(t *testing.T) {
	h := New()
	for i := 0; i < 128; i++ {
		h.Register(object.NewArray(nil))
	}
	if h.ShouldCollect() {
		t.Fatalf("expected no collection at the 128-object floor")
	}
	h.Register(object.NewArray(nil))
	if !h.ShouldCollect() {
		t.Fatalf("expected collection to trigger once past the floor")
	}
}
