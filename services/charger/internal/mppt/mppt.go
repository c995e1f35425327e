// Package mppt implements perturb-and-observe maximum power point tracking.
package mppt

import (
	"solarcharger-go/services/charger/internal/state"
	"solarcharger-go/x/mathx"
)

type Config struct {
	Step    uint16
	MinDuty uint16
	MaxDuty uint16
}

// Controller proposes the next duty from one prior power sample and a
// direction bit.
type Controller struct {
	Config
}

func New(cfg Config) *Controller {
	return &Controller{Config: cfg}
}

// Step runs one hill-climbing iteration. It is a no-op during Shutdown.
// Power equal to the previous sample counts as a decrease and flips the
// direction.
func (c *Controller) Step(s *state.Mppt, m state.Measurement, status state.Status) {
	if status == state.Shutdown {
		return
	}
	if s.Direction != state.Down {
		s.Direction = state.Up
	}
	power := m.PanelPower
	if power <= s.LastPower {
		s.Direction = -s.Direction
	}
	next := int32(s.Duty) + int32(c.Config.Step)*int32(s.Direction)
	s.Duty = uint16(mathx.Clamp(next, int32(c.MinDuty), int32(c.MaxDuty)))
	s.LastPower = power
}

// Preset forces the proposed duty ahead of the main loop. The value may sit
// outside [MinDuty, MaxDuty]; the next Step pulls it back into range.
func (c *Controller) Preset(s *state.Mppt, duty uint16) {
	s.Duty = duty
}
