package charger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solarcharger-go/bus"
	"solarcharger-go/errcode"
	"solarcharger-go/services/config"
	"solarcharger-go/types"
)

type constChannel uint16

func (c constChannel) ReadU16() (uint16, error) { return uint16(c), nil }

type fakePWM struct {
	freq    uint64
	last    uint16
	freqErr error
}

func (f *fakePWM) SetDuty(d uint16) error { f.last = d; return nil }
func (f *fakePWM) SetFrequency(hz uint64) error {
	f.freq = hz
	return f.freqErr
}

// 20 V panel, ~2 A, battery set by bv.
func hardware(pwm *fakePWM, bv uint16) Hardware {
	return Hardware{
		Channels: Channels{PanelVoltage: constChannel(15887), PanelCurrent: constChannel(8000), Battery: constChannel(bv)},
		PWM:      pwm,
	}
}

func stopAfter(n int, cancel context.CancelFunc) func(context.Context, time.Duration) bool {
	calls := 0
	return func(ctx context.Context, d time.Duration) bool {
		calls++
		if calls >= n {
			cancel()
		}
		return ctx.Err() == nil
	}
}

func TestNewProgramsFrequency(t *testing.T) {
	pwm := &fakePWM{}
	_, err := New(config.Default(), hardware(pwm, 9532), Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(30000), pwm.freq)
}

func TestNewRejectsBadInput(t *testing.T) {
	cfg := config.Default()
	cfg.MPPT.Step = 0
	_, err := New(cfg, hardware(&fakePWM{}, 9532), Options{})
	assert.Equal(t, errcode.InvalidConfig, errcode.Of(err))

	_, err = New(config.Default(), Hardware{PWM: &fakePWM{}}, Options{})
	assert.Equal(t, errcode.InvalidConfig, errcode.Of(err))

	_, err = New(config.Default(), hardware(&fakePWM{freqErr: errors.New("no slice")}, 9532), Options{})
	assert.Equal(t, errcode.PWMFault, errcode.Of(err))
}

func TestRunStartsThenControls(t *testing.T) {
	b := bus.NewBus(64)
	levels := b.NewConnection("obs").Subscribe(bus.T(types.TopicRoot, types.TopicState))
	ctx, cancel := context.WithCancel(context.Background())
	pwm := &fakePWM{}

	// 38 ramp delays + settle, then two loop sleeps.
	svc, err := New(config.Default(), hardware(pwm, 9532), Options{Conn: b.NewConnection("charger"), Sleep: stopAfter(41, cancel)})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)

	var got []string
	for len(levels.Channel()) > 0 {
		got = append(got, (<-levels.Channel()).Payload.(types.ChargerState).Level)
	}
	assert.Equal(t, []string{types.LevelStarting, types.LevelRunning, types.LevelStopped}, got)
	tel := svc.Snapshot()
	assert.EqualValues(t, 2, tel.Cycle)
	assert.Equal(t, "normal", tel.Status)
	assert.GreaterOrEqual(t, pwm.last, uint16(13107))
}

func TestRunFallsBackToIdle(t *testing.T) {
	cfg := config.Default()
	cfg.Safety.Threshold = 1
	b := bus.NewBus(64)
	levels := b.NewConnection("obs").Subscribe(bus.T(types.TopicRoot, types.TopicState))
	ctx, cancel := context.WithCancel(context.Background())
	pwm := &fakePWM{last: 999}

	// 16 V battery trips the single-violation threshold on the first check.
	svc, err := New(cfg, hardware(pwm, 12710), Options{Conn: b.NewConnection("charger"), Sleep: stopAfter(3, cancel)})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Run(ctx), context.Canceled)

	var got []types.ChargerState
	for len(levels.Channel()) > 0 {
		got = append(got, (<-levels.Channel()).Payload.(types.ChargerState))
	}
	require.Len(t, got, 3)
	assert.Equal(t, types.LevelIdle, got[1].Level)
	assert.Equal(t, string(errcode.StartupAborted), got[1].Status)
	assert.Zero(t, pwm.last)
	assert.Zero(t, svc.Snapshot().Cycle, "idle loop never cycles the controller")
}
