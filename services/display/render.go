package display

import (
	"solarcharger-go/types"
	"solarcharger-go/x/conv"
)

// Width is the number of characters per display line.
const Width = 16

// Fixed screens.
const (
	BootLine0      = "System Booting.."
	BootLine1      = "Init Sensors"
	FaultOverVolt  = "ERR:OVERVOLT"
	FaultSensor    = "ERR:SENSOR"
	FaultPWM       = "ERR:PWM"
	statusWarnTag  = "WARN "
	statusStopTag  = "STOP "
	statusKeepTail = Width - len(statusWarnTag)
)

// Render formats the running screen:
//
//	P: 18.2V I: 2.1A
//	B: 12.9V D:27107
//
// Warning and Shutdown replace the head of line 1 with WARN/STOP, keeping
// its last 11 characters.
func Render(t types.ChargerTelemetry) (line0, line1 string) {
	var b [Width * 2]byte
	l0 := append(b[:0], "P:"...)
	l0 = appendFixed1(l0, t.PanelVoltage, 5)
	l0 = append(l0, "V I:"...)
	l0 = appendFixed1(l0, t.PanelCurrent, 4)
	l0 = append(l0, 'A')
	line0 = clip(string(l0))

	l1 := append(b[:0], "B:"...)
	l1 = appendFixed1(l1, t.BatteryVoltage, 5)
	l1 = append(l1, "V D:"...)
	l1 = appendUint(l1, uint64(t.Duty), 5)
	line1 = string(l1)

	switch t.Status {
	case "warning":
		line1 = statusWarnTag + tail(line1, statusKeepTail)
	case "shutdown":
		line1 = statusStopTag + tail(line1, statusKeepTail)
	}
	return line0, clip(line1)
}

// RenderFault formats the screen shown when startup aborts.
func RenderFault(batteryVoltage float64, reason string) (line0, line1 string) {
	var b [Width]byte
	l0 := append(b[:0], "B:"...)
	l0 = appendFixed1(l0, batteryVoltage, 4)
	l0 = append(l0, 'V')
	return clip(string(l0)), clip(reason)
}

func clip(s string) string {
	if len(s) > Width {
		return s[:Width]
	}
	return s
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// appendFixed1 appends v with one decimal, right-aligned in width.
func appendFixed1(dst []byte, v float64, width int) []byte {
	var b [24]byte
	return conv.AppendPadded(dst, conv.AppendFixed(b[:0], v, 1), width)
}

func appendUint(dst []byte, v uint64, width int) []byte {
	var b [20]byte
	return conv.AppendPadded(dst, conv.AppendUint(b[:0], v), width)
}
