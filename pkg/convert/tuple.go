package convert

// ToTupleSlice coerces a value into a fixed-arity []float64 of length n,
// for use by model attribute types whose wire/stored form is a tuple
// (pair, trio, quartet, ...). Returns (nil, false) if v cannot be
// interpreted as a sequence of exactly n numeric components.
//
// Supported inputs:
//   - []interface{} of length n (each element converted via ToFloat64)
//   - []float64 of length n (returned as a copy with the same values)
//
// Example:
//
//	vals, ok := ToTupleSlice([]interface{}{1, 2.5}, 2)  // Returns ([1.0, 2.5], true)
//	vals, ok := ToTupleSlice([]interface{}{1}, 2)       // Returns (nil, false)
//
// ELI12:
//
// This checks that a list has exactly the number of numbers you expect
// (like 2 for a pair, 3 for a trio) and converts each one to a decimal
// number. If the list is the wrong length or has something that isn't a
// number in it, it tells you by returning false.
func ToTupleSlice(v interface{}, n int) ([]float64, bool) {
	switch val := v.(type) {
	case []float64:
		if len(val) != n {
			return nil, false
		}
		out := make([]float64, n)
		copy(out, val)
		return out, true
	case []interface{}:
		if len(val) != n {
			return nil, false
		}
		out := make([]float64, n)
		for i, item := range val {
			f, ok := ToFloat64(item)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
