// Package charger is the MPPT charger service: soft start followed by the
// closed control loop, or the idle loop when the soft start aborts.
package charger

import (
	"context"
	"errors"

	"solarcharger-go/bus"
	"solarcharger-go/errcode"
	"solarcharger-go/services/charger/internal/control"
	"solarcharger-go/services/charger/internal/hw"
	"solarcharger-go/services/charger/internal/startup"
	"solarcharger-go/services/charger/internal/state"
	"solarcharger-go/services/config"
	"solarcharger-go/types"
	"solarcharger-go/x/timex"
)

// Hardware capabilities, re-exported for platform adapters.
type (
	Sampler   = hw.Sampler
	PWMOutput = hw.PWMOutput
	Display   = hw.Display
	Channels  = hw.Channels
	Hardware  = control.Hardware
)

// Options carries optional collaborators. Zero values take defaults.
type Options struct {
	Conn  *bus.Connection
	Sleep timex.SleepFunc
	Now   func() int64
}

type Service struct {
	cfg  config.Charger
	loop *control.Loop
}

// New validates cfg, programs the PWM frequency and builds the loop over
// a fresh System.
func New(cfg config.Charger, h Hardware, opts Options) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if h.PWM == nil || h.Channels.PanelVoltage == nil || h.Channels.PanelCurrent == nil || h.Channels.Battery == nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "charger", Msg: "missing hardware capability"}
	}
	if err := h.PWM.SetFrequency(cfg.PWM.FreqHz); err != nil {
		return nil, errcode.Wrap(errcode.PWMFault, "set_frequency", err)
	}
	loop := control.New(cfg, state.New(), h, control.Options{
		Conn:  opts.Conn,
		Sleep: opts.Sleep,
		Now:   opts.Now,
	})
	return &Service{cfg: cfg, loop: loop}, nil
}

// Run performs the soft start and then blocks in the control loop until
// ctx is done. If the soft start aborts it blocks in the idle loop instead.
func (s *Service) Run(ctx context.Context) error {
	err := s.Startup(ctx)
	switch {
	case err == nil:
		return s.loop.Run(ctx)
	case errors.Is(err, errcode.StartupAborted):
		return s.loop.RunIdle(ctx, err)
	default:
		return err
	}
}

// Startup runs only the soft start.
func (s *Service) Startup(ctx context.Context) error {
	return startup.Run(ctx, s.loop, s.cfg.Startup)
}

// Cycle runs one control iteration on the caller's goroutine.
func (s *Service) Cycle() error { return s.loop.Cycle() }

// Snapshot returns the current state as telemetry.
func (s *Service) Snapshot() types.ChargerTelemetry { return s.loop.Snapshot() }

// ResetLatch clears a latched shutdown. Only call it from the goroutine
// driving the loop; other goroutines publish types.CmdResetLatch instead.
func (s *Service) ResetLatch() { s.loop.ResetLatch() }
