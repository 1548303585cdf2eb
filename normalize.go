package mkey

import (
	"encoding"
	"math"
	"reflect"
	"strconv"
)

// ScalarOf converts a native Go value into a subscript:
//
//   - any integer type becomes Int (unsigned values above MaxInt64 overflow);
//   - floats are truncated toward zero; NaN and infinities are rejected;
//   - a string holding a canonical integer literal ("42", "-7", but not "007"
//     or "+1") becomes Int, any other string becomes Text;
//   - []byte and encoding.TextMarshaler values become Text;
//   - nil becomes empty Text;
//   - a Scalar is returned as is; a Key is rejected with ErrNestedKey.
func ScalarOf(v any) (Scalar, error) {
	switch v := v.(type) {
	case nil:
		return Text(""), nil
	case Scalar:
		if !v.IsValid() {
			return Scalar{}, valueErrf(v, ErrUnsupportedType, "invalid Scalar")
		}
		return v, nil
	case Key, *Key:
		return Scalar{}, valueErrf(v, ErrNestedKey, "")
	case string:
		return scalarFromString(v), nil
	case []byte:
		return Text(string(v)), nil
	case int:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case int32:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case float64:
		return scalarFromFloat(v, v)
	case float32:
		return scalarFromFloat(v, float64(v))
	case encoding.TextMarshaler:
		raw, err := v.MarshalText()
		if err != nil {
			return Scalar{}, &ValueError{v, err, "MarshalText"}
		}
		return Text(string(raw)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Scalar{}, valueErrf(v, ErrOverflow, "%d does not fit into int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return scalarFromFloat(v, rv.Float())
	case reflect.String:
		return scalarFromString(rv.String()), nil
	default:
		return Scalar{}, valueErrf(v, ErrUnsupportedType, "cannot convert %T to a subscript", v)
	}
}

// MustScalar is ScalarOf that panics on error.
func MustScalar(v any) Scalar {
	sc, err := ScalarOf(v)
	if err != nil {
		panic(err)
	}
	return sc
}

func scalarFromString(s string) Scalar {
	if n, ok := parseCanonicalInt(s); ok {
		return Int(n)
	}
	return Text(s)
}

func scalarFromFloat(orig any, f float64) (Scalar, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Scalar{}, valueErrf(orig, ErrNotFinite, "%v", f)
	}
	t := math.Trunc(f)
	// float64(MaxInt64) rounds up to 2^63, which is already out of range.
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return Scalar{}, valueErrf(orig, ErrOverflow, "%v does not fit into int64", f)
	}
	return Int(int64(t)), nil
}

// parseCanonicalInt accepts exactly the strings strconv.FormatInt produces.
func parseCanonicalInt(s string) (int64, bool) {
	if s == "" || len(s) > 20 {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(n, 10) != s {
		return 0, false
	}
	return n, true
}
