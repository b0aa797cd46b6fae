package model

import "testing"

func TestTupleAccessors(t *testing.T) {
	tup := NewTuple(1, 2, 3, 4)
	if tup.X() != 1 || tup.Y() != 2 || tup.Z() != 3 || tup.U() != 4 {
		t.Errorf("unexpected accessors: %v", tup)
	}
	if tup.T() != tup.U() {
		t.Errorf("expected T to alias U, got T=%v U=%v", tup.T(), tup.U())
	}
}

func TestTupleEqual(t *testing.T) {
	a := NewTuple(1, 2)
	b := NewTuple(1, 2)
	c := NewTuple(1, 3)

	if !a.Equal(b) {
		t.Errorf("expected equal tuples to compare equal")
	}
	if a.Equal(c) {
		t.Errorf("expected differing tuples to compare unequal")
	}
}

func TestTupleJSONRoundTrip(t *testing.T) {
	tup := NewTuple(1.5, -2.25, 3)
	data, err := tup.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var out Tuple
	if err := out.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !tup.Equal(out) {
		t.Errorf("expected round-tripped tuple to equal original, got %v vs %v", out, tup)
	}
}
