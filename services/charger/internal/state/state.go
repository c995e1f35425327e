// Package state defines the charger's shared cycle state. Each sub-state has a
// single writer, enforced by which pointer a component receives:
//
//	Measurements  acquire
//	Safety        safety
//	Mppt          mppt (startup may preset Duty before the loop)
//	PWM           arbiter
package state

// Status is the three-level safety classification.
type Status uint8

const (
	Normal Status = iota
	Warning
	Shutdown
)

func (s Status) String() string {
	switch s {
	case Normal:
		return "normal"
	case Warning:
		return "warning"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Measurement is one filtered snapshot in physical units.
type Measurement struct {
	PanelVoltage   float64 // V
	PanelCurrent   float64 // A, never negative
	BatteryVoltage float64 // V
	PanelPower     float64 // W, PanelVoltage*PanelCurrent
}

// Measurements is the live measurement plus its recent history.
type Measurements struct {
	Measurement
	History History
}

// Record stores m as the live value and appends it to the history.
func (ms *Measurements) Record(m Measurement) {
	ms.Measurement = m
	ms.History.Push(m)
}

type Safety struct {
	Status           Status
	OvercurrentCount uint32
	OvervoltageCount uint32
	Latched          bool // only set when shutdown latching is enabled
}

// Direction of the hill-climbing perturbation.
type Direction int8

const (
	Down Direction = -1
	Up   Direction = 1
)

type Mppt struct {
	Duty      uint16
	Direction Direction
	LastPower float64
}

type PWM struct {
	AppliedDuty uint16 // last value actually written to hardware
}

// System aggregates every sub-state. It is built once by New and mutated in
// place by the control loop.
type System struct {
	Meas   Measurements
	Safety Safety
	Mppt   Mppt
	PWM    PWM
}

// New returns a zeroed system with the MPPT search heading upward.
func New() *System {
	return &System{Mppt: Mppt{Direction: Up}}
}
