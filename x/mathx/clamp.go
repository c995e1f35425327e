// Package mathx holds the small numeric helpers shared by the control code.
package mathx

import "golang.org/x/exp/constraints"

// Clamp saturates v into [lo, hi]. Reversed bounds are treated as [hi, lo].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// Between reports whether v lies in the closed range spanned by lo and hi.
func Between[T constraints.Ordered](v, lo, hi T) bool {
	return Clamp(v, lo, hi) == v
}
