package money

import (
	"math"
	"testing"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{2.675, 2.68},
		{0.1 + 0.2, 0.3},
		{10, 10},
		{-1.005, -1.01},
		{19.999, 20},
		{0, 0},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Fatalf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRound2IsIdempotent(t *testing.T) {
	for _, x := range []float64{0.125, 3.14159, 1e6 + 0.005, 99.995, -42.4242, 7.0 / 3.0} {
		once := Round2(x)
		if twice := Round2(once); twice != once {
			t.Fatalf("Round2 not idempotent for %v: %v then %v", x, once, twice)
		}
	}
}

func TestSumAvoidsFloatDrift(t *testing.T) {
	if got := Sum(0.1, 0.2, 0.3); got != 0.6 {
		t.Fatalf("expected 0.6, got %v", got)
	}
	if got := Sum(); got != 0 {
		t.Fatalf("expected 0 for empty sum, got %v", got)
	}
}

func TestMulAndDiv(t *testing.T) {
	if got := Mul(3, 0.1); got != 0.3 {
		t.Fatalf("expected 0.3, got %v", got)
	}
	if got := Div(150, 10); got != 15 {
		t.Fatalf("expected 15, got %v", got)
	}
	if got := Div(100, 3); got != 33.33 {
		t.Fatalf("expected 33.33, got %v", got)
	}
}

func TestFinite(t *testing.T) {
	if Finite(math.NaN()) || Finite(math.Inf(1)) || Finite(math.Inf(-1)) {
		t.Fatalf("expected NaN and Inf to be non-finite")
	}
	if !Finite(12.5) {
		t.Fatalf("expected 12.5 to be finite")
	}
}
