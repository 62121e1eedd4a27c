// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "testing"

func TestFixedRoundTrip(t *testing.T) {
	cases := []float64{0, 1, -1, 6.0, 0.5, 123.456, -99.99}
	for _, c := range cases {
		f := ToFixed(c)
		got := float64(f.Float())
		if diff := got - c; diff > 0.01 || diff < -0.01 {
			t.Errorf("ToFixed(%v).Float() = %v, want within 0.01", c, got)
		}
	}
}

func TestFixedMul(t *testing.T) {
	a := ToFixed(2.0)
	b := ToFixed(3.0)
	got := a.Mul(b).Float()
	if got < 5.99 || got > 6.01 {
		t.Errorf("2*3 = %v, want ~6", got)
	}
}

func TestFixedClamp(t *testing.T) {
	lo, hi := ToFixed(-10), ToFixed(10)
	if Clamp(ToFixed(20), lo, hi) != hi {
		t.Error("expected clamp to hi")
	}
	if Clamp(ToFixed(-20), lo, hi) != lo {
		t.Error("expected clamp to lo")
	}
	if Clamp(ToFixed(5), lo, hi) != ToFixed(5) {
		t.Error("expected clamp to be no-op inside range")
	}
}
