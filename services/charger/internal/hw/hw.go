// Package hw declares the capabilities the control core needs from hardware.
// Platform adapters and test fakes implement them.
package hw

// Sampler is one analog input channel. ReadU16 blocks for a single raw
// conversion scaled to 0..65535.
type Sampler interface {
	ReadU16() (uint16, error)
}

// PWMOutput is the single power-stage PWM channel. SetDuty clamps values
// outside 0..65535 by construction of its argument type.
type PWMOutput interface {
	SetDuty(duty uint16) error
	SetFrequency(hz uint64) error
}

// Display shows two short text lines. Implementations own their own failure
// handling and must not block the caller for long.
type Display interface {
	Show(line0, line1 string)
}

// Channels groups the three acquisition inputs.
type Channels struct {
	PanelVoltage Sampler
	PanelCurrent Sampler
	Battery      Sampler
}
