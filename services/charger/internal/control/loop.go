// Package control sequences the charger cycle:
//
//	acquire -> safety -> mppt -> arbiter -> display -> publish
//
// A Loop owns the System state and hands each stage only the sub-state it
// writes. Everything runs on the caller's goroutine.
package control

import (
	"context"
	"errors"
	"time"

	"solarcharger-go/bus"
	"solarcharger-go/errcode"
	"solarcharger-go/services/charger/internal/acquire"
	"solarcharger-go/services/charger/internal/arbiter"
	"solarcharger-go/services/charger/internal/hw"
	"solarcharger-go/services/charger/internal/mppt"
	"solarcharger-go/services/charger/internal/safety"
	"solarcharger-go/services/charger/internal/state"
	"solarcharger-go/services/config"
	"solarcharger-go/services/display"
	"solarcharger-go/types"
	"solarcharger-go/x/timex"
)

// Hardware is the set of capabilities the loop drives. Display may be nil.
type Hardware struct {
	Channels hw.Channels
	PWM      hw.PWMOutput
	Display  hw.Display
}

// Options carries optional collaborators. Zero values take defaults.
type Options struct {
	Conn  *bus.Connection // nil disables publishing
	Sleep timex.SleepFunc // default timex.Sleep
	Now   func() int64    // unix ms, default timex.NowMs
}

type Loop struct {
	cfg config.Charger
	sys *state.System
	hw  Hardware

	acq *acquire.Acquirer
	mon *safety.Monitor
	ctl *mppt.Controller
	arb *arbiter.Arbiter

	conn  *bus.Connection
	sleep timex.SleepFunc
	now   func() int64

	telemetryTopic bus.Topic
	eventTopic     bus.Topic
	stateTopic     bus.Topic
	cmdTopic       bus.Topic

	cycles       uint64
	sensorFaults uint32
	pwmFaulted   bool
}

// New wires a Loop over sys. cfg must already be validated.
func New(cfg config.Charger, sys *state.System, h Hardware, opts Options) *Loop {
	if opts.Sleep == nil {
		opts.Sleep = timex.Sleep
	}
	if opts.Now == nil {
		opts.Now = timex.NowMs
	}
	lo, hi := cfg.DutyBounds()
	return &Loop{
		cfg:            cfg,
		sys:            sys,
		hw:             h,
		acq:            acquire.New(cfg),
		mon:            safety.New(cfg.Safety),
		ctl:            mppt.New(mppt.Config{Step: cfg.MPPT.Step, MinDuty: lo, MaxDuty: hi}),
		arb:            arbiter.New(lo, hi),
		conn:           opts.Conn,
		sleep:          opts.Sleep,
		now:            opts.Now,
		telemetryTopic: bus.T(types.TopicRoot, types.TopicTelemetry),
		eventTopic:     bus.T(types.TopicRoot, types.TopicSafety, types.TopicEvent),
		stateTopic:     bus.T(types.TopicRoot, types.TopicState),
		cmdTopic:       bus.T(types.TopicRoot, types.TopicCmd),
	}
}

// System exposes the live state for read-only inspection.
func (l *Loop) System() *state.System { return l.sys }

// Status is the current safety status.
func (l *Loop) Status() state.Status { return l.sys.Safety.Status }

// SensorFaults is the number of consecutive failed acquisitions.
func (l *Loop) SensorFaults() uint32 { return l.sensorFaults }

// Sleep waits using the configured sleep function.
func (l *Loop) Sleep(ctx context.Context, d time.Duration) bool { return l.sleep(ctx, d) }

// Acquire samples all channels. Failures are counted; the first of a run
// and the recovery are logged.
func (l *Loop) Acquire() error {
	if err := l.acq.Acquire(&l.sys.Meas, l.hw.Channels); err != nil {
		l.sensorFaults++
		if l.sensorFaults == 1 {
			println("[charger] sensor fault:", err.Error())
		}
		return err
	}
	if l.sensorFaults > 0 {
		println("[charger] sensors recovered after", l.sensorFaults, "faulted cycles")
		l.sensorFaults = 0
	}
	return nil
}

// Evaluate runs the safety monitor and reports a status change on the bus.
func (l *Loop) Evaluate() {
	prev := l.sys.Safety.Status
	l.mon.Evaluate(&l.sys.Safety, l.sys.Meas.Measurement)
	if next := l.sys.Safety.Status; next != prev {
		println("[charger] safety", prev.String(), "->", next.String())
		l.publish(l.eventTopic, types.SafetyEvent{
			From:             prev.String(),
			To:               next.String(),
			PanelCurrent:     l.sys.Meas.PanelCurrent,
			BatteryVoltage:   l.sys.Meas.BatteryVoltage,
			OvercurrentCount: l.sys.Safety.OvercurrentCount,
			OvervoltageCount: l.sys.Safety.OvervoltageCount,
			TS:               l.now(),
		}, false)
	}
}

// ResetLatch clears a latched shutdown.
func (l *Loop) ResetLatch() {
	l.mon.Reset(&l.sys.Safety)
}

// Step runs one MPPT iteration.
func (l *Loop) Step() {
	l.ctl.Step(&l.sys.Mppt, l.sys.Meas.Measurement, l.sys.Safety.Status)
}

// Preset forces the proposed duty ahead of the main loop.
func (l *Loop) Preset(duty uint16) {
	l.ctl.Preset(&l.sys.Mppt, duty)
}

// Apply arbitrates the proposed duty against the safety status and writes it.
func (l *Loop) Apply() error {
	return l.pwmResult(l.arb.Apply(&l.sys.PWM, l.sys.Mppt.Duty, l.sys.Safety.Status, l.hw.PWM))
}

// ApplyRamp writes the proposed duty without the MIN floor.
func (l *Loop) ApplyRamp() error {
	return l.pwmResult(l.arb.ApplyRamp(&l.sys.PWM, l.sys.Mppt.Duty, l.sys.Safety.Status, l.hw.PWM))
}

// ForceOff drives the output to 0.
func (l *Loop) ForceOff() error {
	return l.pwmResult(l.arb.ForceOff(&l.sys.PWM, l.hw.PWM))
}

func (l *Loop) pwmResult(err error) error {
	if err != nil {
		if !l.pwmFaulted {
			println("[charger] pwm write failed:", err.Error())
		}
		l.pwmFaulted = true
		return err
	}
	if l.pwmFaulted {
		println("[charger] pwm writes recovered")
		l.pwmFaulted = false
	}
	return nil
}

// Cycle runs one full control iteration.
//
// A failed acquisition skips safety and MPPT and holds the last output.
// Once the consecutive failure count reaches the configured limit the
// output is forced off until a clean acquisition.
func (l *Loop) Cycle() error {
	l.cycles++
	if aerr := l.Acquire(); aerr != nil {
		var perr error
		if int(l.sensorFaults) >= l.cfg.Safety.SensorFaultLimit {
			perr = l.ForceOff()
		} else {
			perr = l.Apply()
		}
		l.Refresh()
		l.Publish()
		return errors.Join(aerr, perr)
	}
	l.Evaluate()
	l.Step()
	err := l.Apply()
	l.Refresh()
	l.Publish()
	return err
}

// Snapshot captures the state as telemetry.
func (l *Loop) Snapshot() types.ChargerTelemetry {
	s := l.sys
	return types.ChargerTelemetry{
		Cycle:            l.cycles,
		PanelVoltage:     s.Meas.PanelVoltage,
		PanelCurrent:     s.Meas.PanelCurrent,
		BatteryVoltage:   s.Meas.BatteryVoltage,
		PanelPower:       s.Meas.PanelPower,
		Duty:             s.Mppt.Duty,
		AppliedDuty:      s.PWM.AppliedDuty,
		Direction:        int8(s.Mppt.Direction),
		Status:           s.Safety.Status.String(),
		OvercurrentCount: s.Safety.OvercurrentCount,
		OvervoltageCount: s.Safety.OvervoltageCount,
		SensorFaults:     l.sensorFaults,
		TS:               l.now(),
	}
}

// Publish posts the retained telemetry snapshot.
func (l *Loop) Publish() {
	l.publish(l.telemetryTopic, l.Snapshot(), true)
}

// SetLevel posts the retained run level.
func (l *Loop) SetLevel(level, reason string) {
	l.publish(l.stateTopic, types.ChargerState{Level: level, Status: reason, TS: l.now()}, true)
}

func (l *Loop) publish(topic bus.Topic, payload any, retained bool) {
	if l.conn == nil {
		return
	}
	l.conn.Publish(l.conn.NewMessage(topic, payload, retained))
}

// Refresh redraws the running screen.
func (l *Loop) Refresh() {
	if l.hw.Display == nil {
		return
	}
	l.hw.Display.Show(display.Render(l.Snapshot()))
}

// ShowBanner draws the boot screen.
func (l *Loop) ShowBanner() {
	if l.hw.Display == nil {
		return
	}
	l.hw.Display.Show(display.BootLine0, display.BootLine1)
}

// ShowFault draws the startup fault screen for err.
func (l *Loop) ShowFault(err error) {
	if l.hw.Display == nil {
		return
	}
	l.hw.Display.Show(display.RenderFault(l.sys.Meas.BatteryVoltage, FaultReason(err)))
}

// FaultReason maps an abort cause to its display text.
func FaultReason(err error) string {
	switch {
	case errors.Is(err, errcode.SensorFault):
		return display.FaultSensor
	case errors.Is(err, errcode.PWMFault):
		return display.FaultPWM
	default:
		return display.FaultOverVolt
	}
}

// Run executes cycles at the configured cadence until ctx is done.
// Per-cycle errors are handled inside the cycle and do not stop the loop.
// Commands on mppt/cmd are applied between cycles.
func (l *Loop) Run(ctx context.Context) error {
	var cmds *bus.Subscription
	if l.conn != nil {
		cmds = l.conn.Subscribe(l.cmdTopic)
		defer cmds.Unsubscribe()
	}
	l.SetLevel(types.LevelRunning, "")
	every := l.cfg.CycleInterval()
	for {
		_ = l.Cycle()
		l.drain(cmds)
		if !l.sleep(ctx, every) {
			l.SetLevel(types.LevelStopped, "")
			return ctx.Err()
		}
	}
}

// RunIdle is the degraded loop after a failed startup: it keeps the PWM
// output and the fault screen alive at the idle cadence and never runs
// acquisition or MPPT. The output stays off: a Shutdown status drives it
// through the arbiter, any other abort cause forces it.
func (l *Loop) RunIdle(ctx context.Context, cause error) error {
	l.SetLevel(types.LevelIdle, string(errcode.Of(cause)))
	every := l.cfg.IdleInterval()
	for {
		if l.sys.Safety.Status == state.Shutdown {
			_ = l.Apply()
		} else {
			_ = l.ForceOff()
		}
		l.ShowFault(cause)
		if !l.sleep(ctx, every) {
			l.SetLevel(types.LevelStopped, "")
			return ctx.Err()
		}
	}
}

func (l *Loop) drain(sub *bus.Subscription) {
	if sub == nil {
		return
	}
	for {
		select {
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			l.handle(msg)
		default:
			return
		}
	}
}

func (l *Loop) handle(msg *bus.Message) {
	cmd, ok := msg.Payload.(types.ChargerCommand)
	if !ok {
		println("[charger] ignoring malformed command")
		return
	}
	switch cmd.Op {
	case types.CmdResetLatch:
		l.ResetLatch()
		println("[charger] latch reset, status", l.sys.Safety.Status.String())
	default:
		println("[charger] unknown command:", cmd.Op)
	}
}
