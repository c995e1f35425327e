package main

import (
	"encoding/json"
	"os"

	"solarcharger-go/errcode"
	"solarcharger-go/platform"
	"solarcharger-go/services/config"
)

// Step is one or more identical cycles in physical units.
type Step struct {
	PanelVolts   float64 `json:"panel_v"`
	PanelAmps    float64 `json:"panel_a"`
	BatteryVolts float64 `json:"battery_v"`
	Repeat       int     `json:"repeat,omitempty"` // default 1
	Spikes       int     `json:"spikes,omitempty"`
	SpikeRaw     uint16  `json:"spike_raw,omitempty"`
	Fault        string  `json:"fault,omitempty"`
}

type Scenario struct {
	Name    string `json:"name"`
	Startup bool   `json:"startup"` // run the soft start before replaying
	Steps   []Step `json:"steps"`
}

func loadScenario(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	return parseScenario(raw)
}

func parseScenario(raw []byte) (Scenario, error) {
	var sc Scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return Scenario{}, errcode.Wrap(errcode.InvalidPayload, "scenario", err)
	}
	if len(sc.Steps) == 0 {
		return Scenario{}, &errcode.E{C: errcode.InvalidPayload, Op: "scenario", Msg: "no steps"}
	}
	for _, st := range sc.Steps {
		switch st.Fault {
		case "", platform.ChanPanelVoltage, platform.ChanPanelCurrent, platform.ChanBattery:
		default:
			return Scenario{}, &errcode.E{C: errcode.InvalidPayload, Op: "scenario", Msg: "unknown fault channel " + st.Fault}
		}
	}
	return sc, nil
}

// Frames expands the steps into raw per-cycle frames using cfg's scaling.
func (sc Scenario) Frames(cfg config.Charger) []platform.Frame {
	var out []platform.Frame
	for _, st := range sc.Steps {
		f := platform.Frame{
			PanelVoltage: cfg.RawFor(cfg.PanelVoltage, st.PanelVolts),
			PanelCurrent: cfg.RawFor(cfg.PanelCurrent, st.PanelAmps),
			Battery:      cfg.RawFor(cfg.Battery, st.BatteryVolts),
			Spike:        st.SpikeRaw,
			Spikes:       st.Spikes,
			Fault:        st.Fault,
		}
		for range max(st.Repeat, 1) {
			out = append(out, f)
		}
	}
	return out
}
