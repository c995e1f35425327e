package ramp

import "time"

// Step applies one level and reports whether to continue.
type Step func(level uint16) bool

// Tick waits for d and reports whether to continue (false => cancelled).
type Tick func(d time.Duration) bool

// Stepped walks from..to inclusive in increments of step, calling set for
// each level and tick(delay) after it. The last level is the largest one not
// past to; from > to walks nothing. step==0 applies 'to' once. It returns false if set or tick stopped
// the walk early.
func Stepped(from, to, step uint16, delay time.Duration, tick Tick, set Step) bool {
	if step == 0 {
		return set(to) && tick(delay)
	}
	for lvl := uint32(from); lvl <= uint32(to); lvl += uint32(step) {
		if !set(uint16(lvl)) {
			return false
		}
		if !tick(delay) {
			return false
		}
	}
	return true
}
