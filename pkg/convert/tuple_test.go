package convert

import "testing"

func TestToTupleSlice(t *testing.T) {
	t.Run("interface slice of correct arity", func(t *testing.T) {
		vals, ok := ToTupleSlice([]interface{}{1, 2.5}, 2)
		if !ok {
			t.Fatalf("expected ok")
		}
		if vals[0] != 1 || vals[1] != 2.5 {
			t.Errorf("unexpected values: %v", vals)
		}
	})

	t.Run("wrong arity fails", func(t *testing.T) {
		if _, ok := ToTupleSlice([]interface{}{1}, 2); ok {
			t.Errorf("expected failure for wrong length")
		}
	})

	t.Run("non-numeric element fails", func(t *testing.T) {
		if _, ok := ToTupleSlice([]interface{}{1, "x"}, 2); ok {
			t.Errorf("expected failure for non-numeric element")
		}
	})

	t.Run("float64 slice passthrough", func(t *testing.T) {
		vals, ok := ToTupleSlice([]float64{1, 2, 3}, 3)
		if !ok || len(vals) != 3 {
			t.Fatalf("expected passthrough of length 3, got %v ok=%v", vals, ok)
		}
	})

	t.Run("unsupported type fails", func(t *testing.T) {
		if _, ok := ToTupleSlice("not a slice", 2); ok {
			t.Errorf("expected failure for non-slice input")
		}
	})
}
