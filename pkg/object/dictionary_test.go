package object_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kristofer/ember/pkg/object"
)

func valueNumbers(values []object.Value) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.AsNumber()
	}
	return out
}

func TestDictionaryPairsPreserveInsertionOrder(t *testing.T) {
	d := object.NewDictionary()
	d.Set("z", object.Number(1))
	d.Set("a", object.Number(2))
	d.Set("m", object.Number(3))

	keys, values := d.Pairs()
	if diff := cmp.Diff([]string{"z", "a", "m"}, keys); diff != "" {
		t.Errorf("Pairs() keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 2, 3}, valueNumbers(values)); diff != "" {
		t.Errorf("Pairs() values mismatch (-want +got):\n%s", diff)
	}
}

func TestDictionarySetOverwritesWithoutReordering(t *testing.T) {
	d := object.NewDictionary()
	d.Set("a", object.Number(1))
	d.Set("b", object.Number(2))
	d.Set("a", object.Number(99))

	keys, values := d.Pairs()
	if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
		t.Errorf("Pairs() keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{99, 2}, valueNumbers(values)); diff != "" {
		t.Errorf("Pairs() values mismatch (-want +got):\n%s", diff)
	}
}

func TestDictionaryDeleteCompactsKeysAndReindexes(t *testing.T) {
	d := object.NewDictionary()
	d.Set("a", object.Number(1))
	d.Set("b", object.Number(2))
	d.Set("c", object.Number(3))
	d.Delete("b")

	keys, values := d.Pairs()
	if diff := cmp.Diff([]string{"a", "c"}, keys); diff != "" {
		t.Errorf("Pairs() keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 3}, valueNumbers(values)); diff != "" {
		t.Errorf("Pairs() values mismatch (-want +got):\n%s", diff)
	}

	if _, ok := d.Get("b"); ok {
		t.Error("Get(\"b\") should report absent after Delete")
	}
}
