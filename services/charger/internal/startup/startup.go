// Package startup runs the one-shot soft start before the control loop:
// banner, an initial safety check, then a staged duty ramp with a safety
// check after every step.
package startup

import (
	"context"
	"time"

	"solarcharger-go/errcode"
	"solarcharger-go/services/charger/internal/control"
	"solarcharger-go/services/charger/internal/state"
	"solarcharger-go/services/config"
	"solarcharger-go/types"
	"solarcharger-go/x/ramp"
)

// Run executes the sequence on l. It returns nil when the ramp completes,
// an errcode.StartupAborted error when a Shutdown status or a hardware
// fault stops it (the fault screen is already shown), or ctx.Err().
func Run(ctx context.Context, l *control.Loop, cfg config.Startup) error {
	l.SetLevel(types.LevelStarting, "")
	l.ShowBanner()

	if err := l.Acquire(); err != nil {
		return abort(l, "initial acquire", err)
	}
	l.Evaluate()
	if l.Status() == state.Shutdown {
		return abort(l, "initial check", nil)
	}

	l.Preset(0)
	if err := l.ApplyRamp(); err != nil {
		return abort(l, "preset", err)
	}

	tick := func(d time.Duration) bool { return l.Sleep(ctx, d) }
	var failed error
	var failedOp string
	set := func(duty uint16) bool {
		l.Preset(duty)
		if err := l.ApplyRamp(); err != nil {
			failed, failedOp = err, "ramp"
			return false
		}
		if err := l.Acquire(); err != nil {
			failed, failedOp = err, "ramp acquire"
			return false
		}
		l.Evaluate()
		if l.Status() == state.Shutdown {
			failedOp = "ramp check"
			return false
		}
		l.Refresh()
		return true
	}

	for _, st := range cfg.Stages {
		delay := time.Duration(st.DelayMs) * time.Millisecond
		if ramp.Stepped(st.From, st.To, st.Step, delay, tick, set) {
			continue
		}
		if failedOp != "" {
			return abort(l, failedOp, failed)
		}
		return ctx.Err()
	}

	if !l.Sleep(ctx, time.Duration(cfg.SettleMs)*time.Millisecond) {
		return ctx.Err()
	}
	println("[startup] ramp complete, duty", l.System().PWM.AppliedDuty)
	return nil
}

// abort shows the fault screen and wraps cause. A nil cause means the
// safety monitor reported Shutdown.
func abort(l *control.Loop, op string, cause error) error {
	err := &errcode.E{C: errcode.StartupAborted, Op: "startup", Msg: op, Err: cause}
	if cause == nil {
		err.Msg = op + ": " + l.Status().String()
	}
	println("[startup] aborted:", err.Error())
	l.ShowFault(err)
	return err
}
