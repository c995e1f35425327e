package mppt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"solarcharger-go/services/charger/internal/state"
)

const (
	minDuty = 13107
	maxDuty = 55704
)

func newController() *Controller {
	return New(Config{Step: 200, MinDuty: minDuty, MaxDuty: maxDuty})
}

func power(p float64) state.Measurement { return state.Measurement{PanelPower: p} }

func TestRisingPowerKeepsDirection(t *testing.T) {
	c := newController()
	s := state.Mppt{Duty: 20000, Direction: state.Up, LastPower: 10}

	c.Step(&s, power(11), state.Normal)
	assert.Equal(t, uint16(20200), s.Duty)
	assert.Equal(t, state.Up, s.Direction)
	assert.Equal(t, 11.0, s.LastPower)
}

func TestFallingOrEqualPowerFlipsDirection(t *testing.T) {
	for _, p := range []float64{9, 10} {
		c := newController()
		s := state.Mppt{Duty: 20000, Direction: state.Up, LastPower: 10}
		c.Step(&s, power(p), state.Normal)
		assert.Equal(t, state.Down, s.Direction, "power %v", p)
		assert.Equal(t, uint16(19800), s.Duty, "power %v", p)
	}
}

func TestWarningStillSteps(t *testing.T) {
	c := newController()
	s := state.Mppt{Duty: 20000, Direction: state.Down, LastPower: 10}
	c.Step(&s, power(20), state.Warning)
	assert.Equal(t, uint16(19800), s.Duty)
}

func TestShutdownSuspendsTracking(t *testing.T) {
	c := newController()
	s := state.Mppt{Duty: 30000, Direction: state.Up, LastPower: 5}
	before := s
	c.Step(&s, power(1), state.Shutdown)
	assert.Equal(t, before, s)
}

func TestDutyAlwaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	c := newController()
	s := state.Mppt{Duty: 0, Direction: state.Up}
	for i := 0; i < 5000; i++ {
		c.Step(&s, power(rng.Float64()*500), state.Normal)
		if s.Duty < minDuty || s.Duty > maxDuty {
			t.Fatalf("step %d: duty %d out of bounds", i, s.Duty)
		}
	}
}

func TestSaturatesAtMax(t *testing.T) {
	c := newController()
	s := state.Mppt{Duty: maxDuty - 50, Direction: state.Up}
	for p := 1.0; p < 5; p++ {
		c.Step(&s, power(p), state.Normal)
		assert.Equal(t, uint16(maxDuty), s.Duty)
	}
}

func TestSaturatesAtMinInsteadOfWrapping(t *testing.T) {
	c := newController()
	s := state.Mppt{Duty: minDuty, Direction: state.Up, LastPower: 50}
	c.Step(&s, power(40), state.Normal)
	assert.Equal(t, state.Down, s.Direction)
	assert.Equal(t, uint16(minDuty), s.Duty)
}

func TestPresetBypassesBoundsUntilNextStep(t *testing.T) {
	c := newController()
	s := state.Mppt{Direction: state.Up}
	c.Preset(&s, 0)
	assert.Zero(t, s.Duty)

	c.Step(&s, power(1), state.Normal)
	assert.Equal(t, uint16(minDuty), s.Duty)
}
