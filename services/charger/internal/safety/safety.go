// Package safety tracks consecutive over-limit readings and derives the
// three-level safety status.
package safety

import (
	"solarcharger-go/services/charger/internal/state"
	"solarcharger-go/services/config"
)

type Monitor struct {
	currentLimit float64
	voltageLimit float64
	threshold    uint32
	latch        bool
}

func New(cfg config.Safety) *Monitor {
	return &Monitor{
		currentLimit: cfg.CurrentLimit,
		voltageLimit: cfg.VoltageLimit,
		threshold:    cfg.Threshold,
		latch:        cfg.LatchShutdown,
	}
}

// Evaluate updates the violation counters from m and recomputes the status.
// A single in-limit reading resets the corresponding counter.
//
// Without latching, Shutdown clears as soon as the violating counter resets.
func (mon *Monitor) Evaluate(s *state.Safety, m state.Measurement) {
	if m.PanelCurrent > mon.currentLimit {
		s.OvercurrentCount++
	} else {
		s.OvercurrentCount = 0
	}
	if m.BatteryVoltage > mon.voltageLimit {
		s.OvervoltageCount++
	} else {
		s.OvervoltageCount = 0
	}

	s.Status = Classify(s.OvercurrentCount, s.OvervoltageCount, mon.threshold)
	if mon.latch {
		if s.Status == state.Shutdown {
			s.Latched = true
		}
		if s.Latched {
			s.Status = state.Shutdown
		}
	}
}

// Reset clears a latched shutdown; the status falls back to what the
// counters alone imply.
func (mon *Monitor) Reset(s *state.Safety) {
	s.Latched = false
	s.Status = Classify(s.OvercurrentCount, s.OvervoltageCount, mon.threshold)
}

// Classify maps the counters to a status: Shutdown once either reaches
// threshold, Warning while either is non-zero, Normal otherwise.
func Classify(overcurrent, overvoltage, threshold uint32) state.Status {
	switch {
	case overcurrent >= threshold || overvoltage >= threshold:
		return state.Shutdown
	case overcurrent > 0 || overvoltage > 0:
		return state.Warning
	default:
		return state.Normal
	}
}
