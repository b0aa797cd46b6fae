// Package convert provides the numeric coercion helpers pkg/model's
// attribute layer uses to turn a raw instruction argument - an int, a
// float, a numeric string, a JSON-decoded float64 - into the Go type an
// attribute's Kind expects.
//
// Every conversion function returns a success boolean rather than an
// error, so AttrDescriptor.coerce can try a conversion and fall through
// to a different handling path on failure without unwrapping an error
// each time.
package convert

import (
	"strconv"
)

// ToFloat64 converts various numeric types to float64.
// Returns (value, true) on success, (0, false) on failure.
//
// Supported types:
//   - float64 (returned as-is)
//   - float32, int, int32, int64, uint, uint32, uint64 (converted)
//   - string (parsed as decimal, supports scientific notation and the
//     special values "NaN", "Inf", "-Inf")
//
// Example:
//
//	f, ok := ToFloat64(42)       // Returns (42.0, true)
//	f, ok := ToFloat64("1.5e-3") // Returns (0.0015, true)
//	f, ok := ToFloat64("nope")   // Returns (0, false)
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// ToInt64 converts various numeric types to int64.
// Returns (value, true) on success, (0, false) on failure.
//
// Floats truncate toward zero. A numeric string is parsed as an integer
// first and, failing that, as a float that is then truncated - so
// ToInt64("3.7") succeeds as 3 rather than failing outright.
//
// Example:
//
//	i, ok := ToInt64(3.7)   // Returns (3, true)
//	i, ok := ToInt64("123") // Returns (123, true)
func ToInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case string:
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}
