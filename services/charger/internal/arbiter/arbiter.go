// Package arbiter reconciles the MPPT proposal with the safety status and
// drives the PWM output.
package arbiter

import (
	"solarcharger-go/errcode"
	"solarcharger-go/services/charger/internal/hw"
	"solarcharger-go/services/charger/internal/state"
	"solarcharger-go/x/mathx"
)

type Arbiter struct {
	minDuty uint16
	maxDuty uint16
}

func New(minDuty, maxDuty uint16) *Arbiter {
	return &Arbiter{minDuty: minDuty, maxDuty: maxDuty}
}

// Target resolves the duty to apply, in precedence order:
//
//  1. Shutdown forces 0, below the MIN floor.
//  2. Warning never lets the output rise above what is already applied.
//  3. Everything else is clamped to [min, max].
//
// The Warning ceiling also wins over the MIN floor, so a Warning that follows
// a Shutdown keeps the output at 0 until the status returns to Normal.
func (a *Arbiter) Target(proposed uint16, status state.Status, applied uint16) uint16 {
	return a.target(proposed, status, applied, a.minDuty)
}

func (a *Arbiter) target(proposed uint16, status state.Status, applied, floor uint16) uint16 {
	if status == state.Shutdown {
		return 0
	}
	target := mathx.Clamp(proposed, floor, a.maxDuty)
	if status == state.Warning && target > applied {
		target = applied
	}
	return target
}

// Apply writes the arbitrated duty and records it. On a write failure the
// recorded duty is left unchanged and a PWMFault is returned.
func (a *Arbiter) Apply(p *state.PWM, proposed uint16, status state.Status, out hw.PWMOutput) error {
	return a.write(p, a.Target(proposed, status, p.AppliedDuty), out)
}

// ApplyRamp is Apply with the MIN floor lifted. The soft-start ramp uses it
// to walk the output up from 0; Shutdown and Warning still take precedence.
func (a *Arbiter) ApplyRamp(p *state.PWM, duty uint16, status state.Status, out hw.PWMOutput) error {
	return a.write(p, a.target(duty, status, p.AppliedDuty, 0), out)
}

// ForceOff drives the output to 0 regardless of status.
func (a *Arbiter) ForceOff(p *state.PWM, out hw.PWMOutput) error {
	return a.write(p, 0, out)
}

func (a *Arbiter) write(p *state.PWM, duty uint16, out hw.PWMOutput) error {
	if err := out.SetDuty(duty); err != nil {
		return &errcode.E{C: errcode.PWMFault, Op: "set_duty", Err: err}
	}
	p.AppliedDuty = duty
	return nil
}
