package conv

import "math"

var pow10 = [...]int64{1, 10, 100, 1000, 10000}

// AppendFixed appends v rounded to decimals (0..4) places, e.g. 12.34 with
// decimals=1 gives "12.3". Rounding is half away from zero.
func AppendFixed(dst []byte, v float64, decimals int) []byte {
	if decimals < 0 {
		decimals = 0
	}
	if decimals >= len(pow10) {
		decimals = len(pow10) - 1
	}
	scale := pow10[decimals]
	n := int64(math.Round(v * float64(scale)))
	if n < 0 {
		dst = append(dst, '-')
		n = -n
	}
	dst = AppendUint(dst, uint64(n/scale))
	if decimals == 0 {
		return dst
	}
	dst = append(dst, '.')
	frac := n % scale
	for d := scale / 10; d > 0; d /= 10 {
		dst = append(dst, byte('0'+frac/d))
		frac %= d
	}
	return dst
}

// AppendPadded appends s right-aligned in width with leading spaces.
// s is never truncated.
func AppendPadded(dst, s []byte, width int) []byte {
	for i := len(s); i < width; i++ {
		dst = append(dst, ' ')
	}
	return append(dst, s...)
}
