//go:build rp2040 || rp2350

package platform

import (
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"solarcharger-go/drivers/so1602a"
	"solarcharger-go/errcode"
	"solarcharger-go/services/charger"
	"solarcharger-go/services/config"
	"solarcharger-go/services/display"
	"solarcharger-go/x/mathx"
	"solarcharger-go/x/timex"
)

// Open configures the peripherals named by cfg.
func Open(cfg config.Charger) (*Board, error) {
	machine.InitADC()
	b := &Board{}
	b.Hardware.Channels = charger.Channels{
		PanelVoltage: newADC(cfg.PanelVoltage.Pin),
		PanelCurrent: newADC(cfg.PanelCurrent.Pin),
		Battery:      newADC(cfg.Battery.Pin),
	}

	pwm, err := newPWM(cfg.PWM.Pin)
	if err != nil {
		return nil, err
	}
	b.Hardware.PWM = pwm

	if cfg.Display.Enabled {
		b.Hardware.Display = openDisplay(cfg.Display)
	}
	if cfg.Telemetry.Enabled {
		u, err := openUART(cfg.Telemetry)
		if err != nil {
			return nil, err
		}
		b.Telemetry = u
	}
	return b, nil
}

// -----------------------------------------------------------------------------
// ADC
// -----------------------------------------------------------------------------

type adcChannel struct{ adc machine.ADC }

func newADC(pin int) *adcChannel {
	a := machine.ADC{Pin: machine.Pin(pin)}
	a.Configure(machine.ADCConfig{})
	return &adcChannel{adc: a}
}

// ReadU16 returns the conversion left-justified to 16 bits.
func (c *adcChannel) ReadU16() (uint16, error) { return c.adc.Get(), nil }

// -----------------------------------------------------------------------------
// PWM
// -----------------------------------------------------------------------------

// Local interface to avoid depending on an unexported concrete type in machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

// rp2PWM drives one channel; duty is logical 0..65535 scaled to the slice top.
type rp2PWM struct {
	pin   machine.Pin
	ctrl  pwmCtrl
	ch    uint8
	hwTop uint32
}

func newPWM(pin int) (*rp2PWM, error) {
	p := machine.Pin(pin)
	slice, err := machine.PWMPeripheral(p)
	if err != nil {
		return nil, errcode.Wrap(errcode.Unsupported, "pwm_pin", err)
	}
	return &rp2PWM{pin: p, ctrl: pwmGroupBySlice(slice)}, nil
}

func (p *rp2PWM) SetFrequency(hz uint64) error {
	if err := p.ctrl.Configure(machine.PWMConfig{Period: timex.PeriodFromHz(hz)}); err != nil {
		return err
	}
	ch, err := p.ctrl.Channel(p.pin)
	if err != nil {
		return err
	}
	p.ch = ch
	p.hwTop = p.ctrl.Top()
	p.ctrl.Set(p.ch, 0)
	return nil
}

func (p *rp2PWM) SetDuty(d uint16) error {
	if p.hwTop == 0 {
		return errcode.Unsupported
	}
	p.ctrl.Set(p.ch, mathx.ScaleU16(d, p.hwTop))
	return nil
}

// -----------------------------------------------------------------------------
// Display (SO1602A on I2C)
// -----------------------------------------------------------------------------

func openDisplay(c config.Display) *display.Manager {
	bus := machine.I2C0
	if c.Bus == 1 {
		bus = machine.I2C1
	}
	sda, scl := machine.Pin(c.SDA), machine.Pin(c.SCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := bus.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: c.FreqHz}); err != nil {
		println("[platform] i2c configure failed:", err.Error())
	}
	open := func() (display.Panel, error) {
		dev := so1602a.New(bus)
		if err := dev.Configure(so1602a.Config{Address: c.Addr}); err != nil {
			return nil, errcode.Wrap(errcode.DisplayAbsent, dev.String(), err)
		}
		return &dev, nil
	}
	return display.NewManager(open, display.Options{
		RetryEvery: time.Duration(c.RetryMs) * time.Millisecond,
	})
}

// -----------------------------------------------------------------------------
// Telemetry UART
// -----------------------------------------------------------------------------

func openUART(c config.Telemetry) (*uartx.UART, error) {
	var u *uartx.UART
	switch c.UART {
	case 0:
		u = uartx.UART0
	case 1:
		u = uartx.UART1
	default:
		return nil, errcode.Wrap(errcode.InvalidConfig, "telemetry_uart", errcode.Unsupported)
	}
	// Defaults inside uartx apply if zero.
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: c.Baud,
		TX:       machine.Pin(c.TX),
		RX:       machine.Pin(c.RX),
	})
	return u, nil
}
