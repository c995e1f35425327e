// Package acquire samples the analog inputs, rejects outliers with a trimmed
// mean and converts the result to physical units.
package acquire

import (
	"slices"

	"solarcharger-go/errcode"
	"solarcharger-go/services/charger/internal/hw"
	"solarcharger-go/services/charger/internal/state"
	"solarcharger-go/services/config"
)

type channel struct {
	plan   config.SamplePlan
	shift  uint
	factor float64 // volts or amps per raw count
	offset float64
}

func newChannel(c config.Channel, ref float64, fullScale uint16) channel {
	return channel{
		plan:   c.Plan,
		shift:  c.Plan.Shift(),
		factor: ref * c.Ratio / float64(fullScale),
		offset: c.Offset,
	}
}

// Acquirer owns the sample buffers so a cycle performs no allocation.
type Acquirer struct {
	pv, pi, bv channel
	buf        []uint16
}

// New builds an Acquirer. cfg must already be validated.
func New(cfg config.Charger) *Acquirer {
	a := &Acquirer{
		pv: newChannel(cfg.PanelVoltage, cfg.RefVolts, cfg.FullScale),
		pi: newChannel(cfg.PanelCurrent, cfg.RefVolts, cfg.FullScale),
		bv: newChannel(cfg.Battery, cfg.RefVolts, cfg.FullScale),
	}
	n := max(a.pv.plan.Count, a.pi.plan.Count, a.bv.plan.Count)
	a.buf = make([]uint16, n)
	return a
}

// Acquire reads all three channels and records a new measurement.
// On a read failure nothing is recorded and the error carries
// errcode.SensorFault; the previous measurement stays live.
func (a *Acquirer) Acquire(ms *state.Measurements, ch hw.Channels) error {
	pvRaw, err := a.sample(ch.PanelVoltage, a.pv, "panel_voltage")
	if err != nil {
		return err
	}
	piRaw, err := a.sample(ch.PanelCurrent, a.pi, "panel_current")
	if err != nil {
		return err
	}
	bvRaw, err := a.sample(ch.Battery, a.bv, "battery")
	if err != nil {
		return err
	}

	var m state.Measurement
	m.PanelVoltage = float64(pvRaw) * a.pv.factor
	m.PanelCurrent = float64(piRaw)*a.pi.factor - a.pi.offset
	if m.PanelCurrent < 0 {
		m.PanelCurrent = 0
	}
	m.BatteryVoltage = float64(bvRaw) * a.bv.factor
	m.PanelPower = m.PanelVoltage * m.PanelCurrent

	ms.Record(m)
	return nil
}

func (a *Acquirer) sample(s hw.Sampler, c channel, name string) (uint32, error) {
	buf := a.buf[:c.plan.Count]
	for i := range buf {
		v, err := s.ReadU16()
		if err != nil {
			return 0, &errcode.E{C: errcode.SensorFault, Op: "acquire", Msg: name, Err: err}
		}
		buf[i] = v
	}
	return TrimmedMean(buf, c.plan.DropLow, c.plan.DropHigh, c.shift), nil
}

// TrimmedMean sorts buf in place, discards dropLow smallest and dropHigh
// largest values and divides the sum of the rest by 1<<shift. The result is
// exact only when the retained count equals 1<<shift.
func TrimmedMean(buf []uint16, dropLow, dropHigh int, shift uint) uint32 {
	slices.Sort(buf)
	var sum uint32
	for _, v := range buf[dropLow : len(buf)-dropHigh] {
		sum += uint32(v)
	}
	return sum >> shift
}
