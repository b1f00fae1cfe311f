package wdltest

import (
	"math"

	"github.com/spf13/cast"
)

// Equal reports WDL-level equality of an actual value against an
// expected value: exact string and boolean equality, numeric equality
// across integer and float representations, collections equal iff they
// have the same size and are pairwise (arrays) or key-wise (maps,
// structs, Pairs) equal. A non-zero tolerance relaxes numeric comparison
// to |actual-expect| <= tolerance; it applies only when the expected
// side declares it, so Int-typed outputs stay exact by default.
func Equal(actual, expect Value, tolerance float64) bool {
	switch t := expect.(type) {
	case nil:
		return actual == nil
	case bool:
		a, ok := actual.(bool)
		return ok && a == t
	case string:
		a, ok := actual.(string)
		return ok && a == t
	case []Value:
		return equalArray(actual, t, tolerance)
	case []interface{}:
		arr := make([]Value, len(t))
		for i, v := range t {
			arr[i] = v
		}
		return equalArray(actual, arr, tolerance)
	case Values:
		return equalMap(actual, t, tolerance)
	case map[string]interface{}:
		vt := Values{}
		for k, v := range t {
			vt[k] = v
		}
		return equalMap(actual, vt, tolerance)
	}
	if isNumber(expect) {
		if !isNumber(actual) {
			return false
		}
		ef := cast.ToFloat64(expect)
		af := cast.ToFloat64(actual)
		if tolerance > 0 {
			return math.Abs(af-ef) <= tolerance
		}
		return af == ef
	}
	return false
}

// EqualValues compares two output binding sets key-wise.
func EqualValues(actual, expect Values, tolerance float64) bool {
	return equalMap(actual, expect, tolerance)
}

func equalArray(actual Value, expect []Value, tolerance float64) bool {
	var alist []Value
	switch a := actual.(type) {
	case []Value:
		alist = a
	case []interface{}:
		alist = make([]Value, len(a))
		for i, v := range a {
			alist[i] = v
		}
	default:
		return false
	}
	if len(alist) != len(expect) {
		return false
	}
	for i, val := range expect {
		if !Equal(alist[i], val, tolerance) {
			return false
		}
	}
	return true
}

func equalMap(actual Value, expect Values, tolerance float64) bool {
	var amap Values
	switch a := actual.(type) {
	case Values:
		amap = a
	case map[string]interface{}:
		amap = Values{}
		for k, v := range a {
			amap[k] = v
		}
	default:
		return false
	}
	if len(amap) != len(expect) {
		return false
	}
	for key, val := range expect {
		aval, got := amap[key]
		if !got || !Equal(aval, val, tolerance) {
			return false
		}
	}
	return true
}

func isNumber(v Value) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
