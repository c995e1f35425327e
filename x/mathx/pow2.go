package mathx

import "math/bits"

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool { return n > 0 && n&(n-1) == 0 }

// Log2 returns floor(log2(n)) for n > 0, and 0 otherwise.
// For powers of two this is the exact shift that divides by n.
func Log2(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(bits.Len(uint(n)) - 1)
}
