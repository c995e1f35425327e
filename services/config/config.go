// Package config holds the charger's tunable constants and resolves them from
// per-device embedded JSON layered over built-in defaults.
package config

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"solarcharger-go/errcode"
	"solarcharger-go/x/mathx"
)

// DefaultDevice is the board the firmware targets when none is named.
const DefaultDevice = "pico"

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// SamplePlan describes one trimmed-mean acquisition: Count raw reads, sorted,
// DropLow smallest and DropHigh largest discarded. The retained count must be
// a power of two so the average is an exact right shift.
type SamplePlan struct {
	Count    int `json:"count"`
	DropLow  int `json:"drop_low"`
	DropHigh int `json:"drop_high"`
}

// Retained is the number of samples that contribute to the mean.
func (p SamplePlan) Retained() int { return p.Count - p.DropLow - p.DropHigh }

// Shift is the right shift equivalent to dividing by Retained.
func (p SamplePlan) Shift() uint { return mathx.Log2(p.Retained()) }

// Channel is one analog input: where it is wired, how it is sampled and how a
// raw code maps to physical units.
type Channel struct {
	Pin    int        `json:"pin"`
	Plan   SamplePlan `json:"plan"`
	Ratio  float64    `json:"ratio"`  // divider or current-sense ratio
	Offset float64    `json:"offset"` // current channel only, subtracted after scaling
}

type Safety struct {
	CurrentLimit     float64 `json:"current_limit"` // A, panel current
	VoltageLimit     float64 `json:"voltage_limit"` // V, battery voltage
	Threshold        uint32  `json:"threshold"`     // consecutive violations for shutdown
	LatchShutdown    bool    `json:"latch_shutdown"`
	SensorFaultLimit int     `json:"sensor_fault_limit"`
}

type MPPT struct {
	Step     uint16  `json:"step"`
	MinRatio float64 `json:"min_ratio"`
	MaxRatio float64 `json:"max_ratio"`
}

type PWM struct {
	Pin    int    `json:"pin"`
	FreqHz uint64 `json:"freq_hz"`
	Top    uint16 `json:"top"`
}

type Display struct {
	Enabled bool   `json:"enabled"`
	Bus     int    `json:"bus"`
	SDA     int    `json:"sda"`
	SCL     int    `json:"scl"`
	Addr    uint16 `json:"addr"`
	FreqHz  uint32 `json:"freq_hz"`
	RetryMs uint32 `json:"retry_ms"`
}

type Telemetry struct {
	Enabled bool   `json:"enabled"`
	UART    int    `json:"uart"`
	TX      int    `json:"tx"`
	RX      int    `json:"rx"`
	Baud    uint32 `json:"baud"`
}

// RampStage walks duty From..To inclusive in Step increments, pausing DelayMs
// after each step.
type RampStage struct {
	From    uint16 `json:"from"`
	To      uint16 `json:"to"`
	Step    uint16 `json:"step"`
	DelayMs uint32 `json:"delay_ms"`
}

type Startup struct {
	Stages   []RampStage `json:"stages"`
	SettleMs uint32      `json:"settle_ms"`
}

// Charger is the complete configuration consumed by the control core and its
// collaborators.
type Charger struct {
	RefVolts     float64 `json:"ref_volts"`
	FullScale    uint16  `json:"full_scale"`
	PanelVoltage Channel `json:"panel_voltage"`
	PanelCurrent Channel `json:"panel_current"`
	Battery      Channel `json:"battery"`

	Safety    Safety    `json:"safety"`
	MPPT      MPPT      `json:"mppt"`
	PWM       PWM       `json:"pwm"`
	Display   Display   `json:"display"`
	Telemetry Telemetry `json:"telemetry"`
	Startup   Startup   `json:"startup"`

	CycleMs uint32 `json:"cycle_ms"`
	IdleMs  uint32 `json:"idle_ms"`
}

// Default returns the reference hardware configuration.
func Default() Charger {
	return Charger{
		RefVolts:  3.3,
		FullScale: 65535,
		PanelVoltage: Channel{
			Pin:   27,
			Plan:  SamplePlan{Count: 26, DropLow: 5, DropHigh: 5},
			Ratio: 25,
		},
		PanelCurrent: Channel{
			Pin:   28,
			Plan:  SamplePlan{Count: 84, DropLow: 10, DropHigh: 10},
			Ratio: 5,
		},
		Battery: Channel{
			Pin:   26,
			Plan:  SamplePlan{Count: 26, DropLow: 5, DropHigh: 5},
			Ratio: 25,
		},
		Safety: Safety{
			CurrentLimit:     100,
			VoltageLimit:     15,
			Threshold:        3,
			SensorFaultLimit: 3,
		},
		MPPT: MPPT{Step: 200, MinRatio: 0.2, MaxRatio: 0.85},
		PWM:  PWM{Pin: 21, FreqHz: 30000, Top: 65535},
		Display: Display{
			Enabled: true,
			Bus:     0,
			SDA:     0,
			SCL:     1,
			Addr:    0x3C,
			FreqHz:  200_000,
			RetryMs: 5000,
		},
		Telemetry: Telemetry{UART: 0, TX: 16, RX: 17, Baud: 115200},
		Startup: Startup{
			Stages: []RampStage{
				{From: 0, To: 5000, Step: 500, DelayMs: 60},
				{From: 5000, To: 10000, Step: 500, DelayMs: 100},
				{From: 10000, To: 13000, Step: 200, DelayMs: 90},
			},
			SettleMs: 100,
		},
		CycleMs: 300,
		IdleMs:  100,
	}
}

// DutyBounds returns the MPPT search window in PWM counts.
func (c Charger) DutyBounds() (lo, hi uint16) {
	top := float64(c.PWM.Top)
	return uint16(top * c.MPPT.MinRatio), uint16(top * c.MPPT.MaxRatio)
}

func (c Charger) CycleInterval() time.Duration { return time.Duration(c.CycleMs) * time.Millisecond }
func (c Charger) IdleInterval() time.Duration  { return time.Duration(c.IdleMs) * time.Millisecond }

// RawFor inverts the channel scaling: the raw code that reads back as value
// (volts or amps), saturated to [0, FullScale].
func (c Charger) RawFor(ch Channel, value float64) uint16 {
	code := math.Round((value + ch.Offset) * float64(c.FullScale) / (c.RefVolts * ch.Ratio))
	return uint16(mathx.Clamp(code, 0, float64(c.FullScale)))
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func invalid(msg string) error {
	return &errcode.E{C: errcode.InvalidConfig, Op: "config", Msg: msg}
}

func (p SamplePlan) validate(name string) error {
	switch {
	case p.Count <= 0:
		return invalid(name + ": count must be > 0")
	case p.DropLow < 0 || p.DropHigh < 0:
		return invalid(name + ": negative drop")
	case p.Retained() <= 0:
		return invalid(name + ": drops consume all samples")
	case !mathx.IsPow2(p.Retained()):
		return invalid(name + ": retained count " + strconv.Itoa(p.Retained()) + " is not a power of two")
	case p.Count > 1024:
		return invalid(name + ": count exceeds 1024")
	}
	return nil
}

// Validate checks invariants the control core relies on.
func (c Charger) Validate() error {
	if c.RefVolts <= 0 || c.FullScale == 0 {
		return invalid("reference volts and full scale must be positive")
	}
	chans := []struct {
		name string
		ch   Channel
	}{
		{"panel_voltage", c.PanelVoltage},
		{"panel_current", c.PanelCurrent},
		{"battery", c.Battery},
	}
	for _, x := range chans {
		if err := x.ch.Plan.validate(x.name); err != nil {
			return err
		}
		if x.ch.Ratio <= 0 {
			return invalid(x.name + ": ratio must be > 0")
		}
		if x.ch.Offset != 0 && x.name != "panel_current" {
			return invalid(x.name + ": offset is only supported on panel_current")
		}
	}
	if c.Safety.Threshold == 0 {
		return invalid("safety.threshold must be > 0")
	}
	if c.Safety.SensorFaultLimit <= 0 {
		return invalid("safety.sensor_fault_limit must be > 0")
	}
	if c.MPPT.Step == 0 {
		return invalid("mppt.step must be > 0")
	}
	if !mathx.Between(c.MPPT.MinRatio, 0, 1) || !mathx.Between(c.MPPT.MaxRatio, 0, 1) ||
		c.MPPT.MinRatio >= c.MPPT.MaxRatio {
		return invalid("mppt ratios must satisfy 0 <= min < max <= 1")
	}
	if c.PWM.Top == 0 || c.PWM.FreqHz == 0 {
		return invalid("pwm.top and pwm.freq_hz must be > 0")
	}
	for i, s := range c.Startup.Stages {
		if s.Step == 0 || s.To < s.From {
			return invalid("startup.stages[" + strconv.Itoa(i) + "] is malformed")
		}
	}
	if c.CycleMs == 0 || c.IdleMs == 0 {
		return invalid("cycle_ms and idle_ms must be > 0")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Loading
// -----------------------------------------------------------------------------

// Decode overlays raw JSON on the defaults and validates the result.
func Decode(raw []byte) (Charger, error) {
	cfg := Default()
	if len(raw) != 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Charger{}, errcode.Wrap(errcode.InvalidConfig, "config", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Charger{}, err
	}
	return cfg, nil
}

// Load resolves the embedded configuration for device.
func Load(device string) (Charger, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok {
		return Charger{}, invalid("no embedded config for device: " + device)
	}
	return Decode(raw)
}
