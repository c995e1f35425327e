// Package platform binds the charger to a concrete board. rp2040/rp2350
// builds drive the real ADC, PWM, I2C and UART peripherals; host builds run
// over a scripted signal source so the firmware entry point can be exercised
// off-target.
package platform

import (
	"io"

	"solarcharger-go/services/charger"
)

// Board is everything the firmware entry point needs from the platform.
type Board struct {
	Hardware charger.Hardware
	// Telemetry receives newline-delimited JSON; nil disables it.
	Telemetry io.Writer
}
