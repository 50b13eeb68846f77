package values

import (
	"errors"
	"strconv"
)

// ErrNotInteger is returned when INCR/DECR family commands are applied to
// a string that is not a valid base-10 integer representation.
var ErrNotInteger = errors.New("value is not an integer or out of range")

// ErrNotFloat is returned when INCRBYFLOAT is applied to a string that is
// not a valid floating point representation.
var ErrNotFloat = errors.New("value is not a valid float")

// ParseStringInt parses b as the base-10 integer the string commands
// operate on. Leading/trailing whitespace is not accepted, matching the
// strict integer-encoding rule in §3.1.
func ParseStringInt(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}

// FormatStringInt renders n the way a string-typed integer is stored.
func FormatStringInt(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

// IncrInt parses cur as an integer, adds delta, and returns the new
// encoded value along with the new integer, or ErrNotInteger /
// a range-overflow error.
func IncrInt(cur []byte, delta int64) ([]byte, int64, error) {
	var n int64
	if len(cur) > 0 {
		var err error
		n, err = ParseStringInt(cur)
		if err != nil {
			return nil, 0, err
		}
	}
	result := n + delta
	if (delta > 0 && result < n) || (delta < 0 && result > n) {
		return nil, 0, ErrNotInteger
	}
	return FormatStringInt(result), result, nil
}

// IncrFloat parses cur as a float, adds delta, and returns the new
// encoded value formatted without scientific notation or trailing
// zeros, matching the reference float formatting contract.
func IncrFloat(cur []byte, delta float64) ([]byte, float64, error) {
	var f float64
	if len(cur) > 0 {
		var err error
		f, err = strconv.ParseFloat(string(cur), 64)
		if err != nil {
			return nil, 0, ErrNotFloat
		}
	}
	result := f + delta
	return FormatFloat(result), result, nil
}

// FormatFloat renders a float the way ZSCORE/INCRBYFLOAT replies do:
// shortest round-trippable decimal, no trailing zeros, no exponent for
// magnitudes within the normal scoring range.
func FormatFloat(f float64) []byte {
	return []byte(strconv.FormatFloat(f, 'f', -1, 64))
}

// GetRange extracts the [start, end] inclusive byte range from b,
// applying Python-style negative indexing and clamping, per GETRANGE.
func GetRange(b []byte, start, end int) []byte {
	n := len(b)
	if n == 0 {
		return []byte{}
	}
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if start > end || start >= n {
		return []byte{}
	}
	if end >= n {
		end = n - 1
	}
	out := make([]byte, end-start+1)
	copy(out, b[start:end+1])
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		i = n + i
		if i < 0 {
			i = 0
		}
	}
	return i
}

// SetRange overwrites b starting at offset with value, zero-padding any
// gap, and returns the resulting string, or an error for a negative
// offset or an oversize result.
func SetRange(b []byte, offset int, value []byte) ([]byte, error) {
	if offset < 0 {
		return nil, errors.New("offset is out of range")
	}
	needed := offset + len(value)
	if needed > MaxStringLen {
		return nil, errors.New("string exceeds maximum allowed size")
	}
	if needed <= len(b) && len(value) == 0 {
		return b, nil
	}
	out := make([]byte, max(needed, len(b)))
	copy(out, b)
	copy(out[offset:], value)
	return out, nil
}
