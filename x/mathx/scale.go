package mathx

// ScaleU16 maps a 0..65535 value onto 0..top, rounding to nearest.
func ScaleU16(v uint16, top uint32) uint32 {
	return uint32((uint64(v)*uint64(top) + 65535/2) / 65535)
}
