package model

import "fmt"

// Tuple is a small fixed-length numeric vector, the stored form of a
// Pair/Trio/Quartet/Quintet/Sextet attribute. Components are addressed
// both positionally (At) and through the conventional x/y/z/u/v/w names;
// T is an alias for the fourth component, the same as U - a quartet's
// fourth slot is "the time component" in some models and "u" in others,
// and callers shouldn't have to care which convention a given attribute
// follows.
type Tuple struct {
	values []float64
}

// NewTuple builds a Tuple from its components.
func NewTuple(values ...float64) Tuple {
	out := make([]float64, len(values))
	copy(out, values)
	return Tuple{values: out}
}

// Len returns the tuple's arity.
func (t Tuple) Len() int { return len(t.values) }

// At returns the i'th component, or (0, false) if i is out of range.
func (t Tuple) At(i int) (float64, bool) {
	if i < 0 || i >= len(t.values) {
		return 0, false
	}
	return t.values[i], true
}

// X returns component 0.
func (t Tuple) X() float64 { v, _ := t.At(0); return v }

// Y returns component 1.
func (t Tuple) Y() float64 { v, _ := t.At(1); return v }

// Z returns component 2.
func (t Tuple) Z() float64 { v, _ := t.At(2); return v }

// U returns component 3.
func (t Tuple) U() float64 { v, _ := t.At(3); return v }

// T returns component 3, the same as U.
func (t Tuple) T() float64 { return t.U() }

// V returns component 4.
func (t Tuple) V() float64 { v, _ := t.At(4); return v }

// W returns component 5.
func (t Tuple) W() float64 { v, _ := t.At(5); return v }

// Slice returns a copy of the tuple's components.
func (t Tuple) Slice() []float64 {
	out := make([]float64, len(t.values))
	copy(out, t.values)
	return out
}

// Equal reports whether t and other have the same arity and components.
func (t Tuple) Equal(other Tuple) bool {
	if len(t.values) != len(other.values) {
		return false
	}
	for i, v := range t.values {
		if other.values[i] != v {
			return false
		}
	}
	return true
}

func (t Tuple) String() string {
	return fmt.Sprintf("%v", t.values)
}

// MarshalJSON renders the tuple as a plain JSON array of its components,
// so it round-trips through a persisted heap layer (see package
// badgerstore) the same way it's stored in memory.
func (t Tuple) MarshalJSON() ([]byte, error) {
	return marshalFloatSlice(t.values)
}

// UnmarshalJSON populates the tuple from a JSON array of numbers.
func (t *Tuple) UnmarshalJSON(data []byte) error {
	values, err := unmarshalFloatSlice(data)
	if err != nil {
		return err
	}
	t.values = values
	return nil
}
