package state

// HistoryLen is the number of snapshots retained.
const HistoryLen = 5

// History is a fixed-capacity ring of the most recent measurements.
// The zero value is empty and ready to use.
type History struct {
	buf  [HistoryLen]Measurement
	head int // index of the oldest entry
	n    int
}

// Push appends m, evicting the oldest entry when full.
func (h *History) Push(m Measurement) {
	if h.n < HistoryLen {
		h.buf[(h.head+h.n)%HistoryLen] = m
		h.n++
		return
	}
	h.buf[h.head] = m
	h.head = (h.head + 1) % HistoryLen
}

func (h *History) Len() int { return h.n }

// At returns entry i in chronological order (0 = oldest).
func (h *History) At(i int) Measurement {
	if i < 0 || i >= h.n {
		panic("state: history index out of range")
	}
	return h.buf[(h.head+i)%HistoryLen]
}

// Latest returns the newest entry.
func (h *History) Latest() (Measurement, bool) {
	if h.n == 0 {
		return Measurement{}, false
	}
	return h.At(h.n - 1), true
}

// AppendTo appends the entries oldest-first to dst.
func (h *History) AppendTo(dst []Measurement) []Measurement {
	for i := 0; i < h.n; i++ {
		dst = append(dst, h.At(i))
	}
	return dst
}
