//go:build !(rp2040 || rp2350)

package platform

import (
	"os"

	"solarcharger-go/services/charger"
	"solarcharger-go/services/config"
)

// Open builds a simulated board: a steady 20 V / 2 A panel on a 12.6 V
// battery, a recording PWM output, no display, telemetry on stdout.
func Open(cfg config.Charger) (*Board, error) {
	script := NewScript(Frame{
		PanelVoltage: cfg.RawFor(cfg.PanelVoltage, 20),
		PanelCurrent: cfg.RawFor(cfg.PanelCurrent, 2),
		Battery:      cfg.RawFor(cfg.Battery, 12.6),
	})
	println("[platform] host simulation board")
	return &Board{
		Hardware: charger.Hardware{
			Channels: script.Channels(),
			PWM:      &RecordingPWM{},
		},
		Telemetry: os.Stdout,
	}, nil
}
