// Package buf holds the overflow-checked size arithmetic shared by the
// allocator and its raw memory sources.
package buf

import "math"

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// MulOverflowSafe multiplies two non-negative sizes, returning ok = false when
// the product would overflow int or either operand is negative.
// Used for blockSize * blockCount before a chunk buffer is requested.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// CeilDiv returns ceil(n / d) for n >= 0 and d > 0.
//
// Example:
//
//	CeilDiv(10, 4) = 3
//	CeilDiv(12, 4) = 3
//	CeilDiv(0, 4)  = 0
func CeilDiv(n, d int) int {
	if n == 0 {
		return 0
	}
	return (n-1)/d + 1
}

// Clamp limits v to the closed range [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Contains reports whether addr lies in [base, base+length).
// Written as a difference so base+length never has to be representable.
func Contains(base, addr uintptr, length int) bool {
	return addr >= base && addr-base < uintptr(length)
}
