package errcode

import (
	"errors"
	"testing"
)

func TestOf(t *testing.T) {
	cause := errors.New("adc timeout")
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{SensorFault, SensorFault},
		{&E{C: PWMFault, Op: "set_duty"}, PWMFault},
		{Wrap(InvalidConfig, "validate", cause), InvalidConfig},
		{cause, Error},
	}
	for _, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Fatalf("Of(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("nack")
	err := Wrap(SensorFault, "acquire", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped error lost its cause: %v", err)
	}
	if got, want := err.Error(), "acquire: sensor_fault: nack"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if Wrap(SensorFault, "acquire", nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
}

func TestCodeFoundThroughChain(t *testing.T) {
	inner := &E{C: SensorFault, Op: "acquire", Msg: "battery"}
	outer := &E{C: StartupAborted, Op: "startup", Err: inner}

	if !errors.Is(outer, SensorFault) {
		t.Fatal("errors.Is should match the inner code")
	}
	if !errors.Is(outer, StartupAborted) {
		t.Fatal("errors.Is should match the outer code")
	}
	if errors.Is(outer, PWMFault) {
		t.Fatal("unexpected PWMFault match")
	}
	if got := Of(outer); got != StartupAborted {
		t.Fatalf("Of(outer) = %q", got)
	}
	if got := Of(errors.Join(errors.New("x"), inner)); got != SensorFault {
		t.Fatalf("Of(joined) = %q", got)
	}
}
