package so1602a

import (
	"errors"
	"testing"
	"time"
)

type txRec struct {
	addr uint16
	w    []byte
}

type fakeI2C struct {
	txs  []txRec
	fail error
}


func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	if f.fail != nil {
		return f.fail
	}
	f.txs = append(f.txs, txRec{addr: addr, w: append([]byte(nil), w...)})
	return nil
}

func newDev(t *testing.T, bus *fakeI2C) (*Device, *time.Duration) {
	t.Helper()
	var slept time.Duration
	d := New(bus)
	if err := d.Configure(Config{Sleep: func(x time.Duration) { slept += x }}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return &d, &slept
}

func TestConfigureSequence(t *testing.T) {
	bus := &fakeI2C{}
	_, slept := newDev(t, bus)
	want := [][]byte{{0x00, 0x01}, {0x00, 0x02}, {0x00, 0x0C}}
	if len(bus.txs) != len(want) {
		t.Fatalf("tx count = %d, want %d", len(bus.txs), len(want))
	}
	for i, w := range want {
		if bus.txs[i].addr != Address {
			t.Fatalf("tx %d addr = %#x", i, bus.txs[i].addr)
		}
		if string(bus.txs[i].w) != string(w) {
			t.Fatalf("tx %d = % x, want % x", i, bus.txs[i].w, w)
		}
	}
	if *slept != 12*time.Millisecond {
		t.Fatalf("settle = %v", *slept)
	}
}

func TestWriteLinePads(t *testing.T) {
	bus := &fakeI2C{}
	d, _ := newDev(t, bus)
	bus.txs = nil

	if err := d.WriteLine(1, "B: 12.9V"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(bus.txs) != 2 {
		t.Fatalf("tx count = %d", len(bus.txs))
	}
	if got := bus.txs[0].w; got[0] != 0x00 || got[1] != 0xA0 {
		t.Fatalf("address cmd = % x", got)
	}
	data := bus.txs[1].w
	if data[0] != 0x40 || len(data) != 17 {
		t.Fatalf("data frame = % x", data)
	}
	if got := string(data[1:]); got != "B: 12.9V        " {
		t.Fatalf("payload = %q", got)
	}
}

func TestWriteLineCuts(t *testing.T) {
	bus := &fakeI2C{}
	d, _ := newDev(t, bus)
	bus.txs = nil
	if err := d.WriteLine(0, "0123456789ABCDEFGHIJ"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := string(bus.txs[1].w[1:]); got != "0123456789ABCDEF" {
		t.Fatalf("payload = %q", got)
	}
}

func TestWriteLineRange(t *testing.T) {
	bus := &fakeI2C{}
	d, _ := newDev(t, bus)
	if err := d.WriteLine(2, "x"); !errors.Is(err, ErrLine) {
		t.Fatalf("err = %v", err)
	}
}

func TestBusErrorPropagates(t *testing.T) {
	bus := &fakeI2C{fail: errors.New("nack")}
	d := New(bus)
	if err := d.Configure(Config{Sleep: func(time.Duration) {}}); err == nil {
		t.Fatal("expected configure error")
	}
}

func TestEncode(t *testing.T) {
	var b [8]byte
	n := Encode(b[:], "25°C~é")
	if n != 6 {
		t.Fatalf("n = %d", n)
	}
	want := []byte{'2', '5', 0xF2, 'C', '?', '?'}
	if string(b[:n]) != string(want) {
		t.Fatalf("encoded = % x", b[:n])
	}
}

func TestString(t *testing.T) {
	d := New(&fakeI2C{})
	if got := d.String(); got != "so1602a@0000003C" {
		t.Fatalf("String() = %q", got)
	}
}
