// Package so1602a drives the SO1602A 16x2 character OLED over I2C.
//
// Every transfer is a single write: a control byte (command or data)
// followed by payload bytes. A line write sends the DDRAM address command
// and then the 16 padded characters in one data transfer.
package so1602a

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"solarcharger-go/x/conv"
)

// Default I2C address (SA0 low).
const Address = 0x3C

// Columns per line.
const Columns = 16

const (
	ctrlCommand = 0x00
	ctrlData    = 0x40

	cmdClear     = 0x01
	cmdHome      = 0x02
	cmdDisplayOn = 0x0C
	cmdLine0     = 0x80
	cmdLine1     = 0xA0
)

// Errors returned by the driver.
var (
	ErrLine = errors.New("so1602a: line out of range")
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x3C if zero.
	Address uint16
	// Sleep is used for command settle delays. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Device wraps an I2C connection to an SO1602A module.
type Device struct {
	bus     drivers.I2C
	Address uint16

	sleep func(time.Duration)
	buf   [Columns + 1]byte
}

// New creates a Device. The I2C bus must already be configured.
// It does not touch the device.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address, sleep: time.Sleep}
}

// Configure applies cfg and brings the display up: clear, home, on.
func (d *Device) Configure(cfg Config) error {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	if cfg.Sleep != nil {
		d.sleep = cfg.Sleep
	}
	if err := d.Clear(); err != nil {
		return err
	}
	if err := d.command(cmdHome, time.Millisecond); err != nil {
		return err
	}
	return d.command(cmdDisplayOn, time.Millisecond)
}

// Clear blanks both lines.
func (d *Device) Clear() error {
	return d.command(cmdClear, 10*time.Millisecond)
}

// WriteLine writes s to line 0 or 1, padded or cut to 16 columns.
func (d *Device) WriteLine(line int, s string) error {
	var addr byte
	switch line {
	case 0:
		addr = cmdLine0
	case 1:
		addr = cmdLine1
	default:
		return ErrLine
	}
	if err := d.command(addr, time.Millisecond); err != nil {
		return err
	}
	d.buf[0] = ctrlData
	n := Encode(d.buf[1:], s)
	for i := 1 + n; i < len(d.buf); i++ {
		d.buf[i] = ' '
	}
	return d.bus.Tx(d.Address, d.buf[:], nil)
}

// String identifies the device for logs, e.g. "so1602a@0000003C".
func (d *Device) String() string {
	return string(conv.AppendHex32([]byte("so1602a@"), uint32(d.Address)))
}

func (d *Device) command(c byte, settle time.Duration) error {
	if err := d.bus.Tx(d.Address, []byte{ctrlCommand, c}, nil); err != nil {
		return err
	}
	d.sleep(settle)
	return nil
}

// Encode maps s into the module's character ROM codes and returns the
// number of bytes written. Printable ASCII maps to itself; a few symbols
// map to their ROM positions; anything else becomes '?'.
func Encode(dst []byte, s string) int {
	n := 0
	for _, r := range s {
		if n >= len(dst) {
			break
		}
		dst[n] = romCode(r)
		n++
	}
	return n
}

func romCode(r rune) byte {
	if r >= 0x20 && r <= 0x7D {
		return byte(r)
	}
	switch r {
	case '°':
		return 0xF2
	case '×':
		return 0xF7
	case '÷':
		return 0xF8
	case 'Ω':
		return 0x1E
	case 'α':
		return 0x1F
	}
	return '?'
}
