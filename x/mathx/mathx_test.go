package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 10, 20); got != 10 {
		t.Fatalf("Clamp below = %d", got)
	}
	if got := Clamp(25, 10, 20); got != 20 {
		t.Fatalf("Clamp above = %d", got)
	}
	if got := Clamp(15, 20, 10); got != 15 {
		t.Fatalf("Clamp swapped bounds = %d", got)
	}
	if got := Clamp(int32(-200), 0, 65535); got != 0 {
		t.Fatalf("Clamp negative = %d", got)
	}
}

func TestPow2(t *testing.T) {
	for n, want := range map[int]uint{1: 0, 2: 1, 16: 4, 64: 6, 1024: 10} {
		if !IsPow2(n) {
			t.Fatalf("IsPow2(%d) = false", n)
		}
		if got := Log2(n); got != want {
			t.Fatalf("Log2(%d) = %d, want %d", n, got, want)
		}
	}
	for _, n := range []int{0, -4, 3, 15, 24, 63} {
		if IsPow2(n) {
			t.Fatalf("IsPow2(%d) = true", n)
		}
	}
}

func TestBetween(t *testing.T) {
	if !Between(0.5, 0, 1) || !Between(1.0, 1, 0) {
		t.Fatalf("Between rejected an in-range value")
	}
	if Between(1.2, 0, 1) || Between(-0.1, 0, 1) {
		t.Fatalf("Between accepted an out-of-range value")
	}
}

func TestScaleU16(t *testing.T) {
	cases := []struct {
		v    uint16
		top  uint32
		want uint32
	}{
		{0, 4166, 0},
		{65535, 4166, 4166},
		{32768, 4166, 2083},
		{13107, 4166, 833},
		{65535, 65535, 65535},
		{1000, 0, 0},
	}
	for _, c := range cases {
		if got := ScaleU16(c.v, c.top); got != c.want {
			t.Fatalf("ScaleU16(%d, %d) = %d, want %d", c.v, c.top, got, c.want)
		}
	}
}
