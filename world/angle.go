// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Angle is a radian float32, as carried over the wire per spec.md (clients
// may further reduce it to int8). Kept as a float rather than mk48's 2-byte
// fixed representation because combat's cone/ray tests need full precision
// ahead of quantization, which happens only in the snapshot codec.
type Angle float32

const (
	Pi     Angle = 3.14159265358979323846
	HalfPi Angle = Pi / 2
	TwoPi  Angle = Pi * 2
)

// normalize wraps an angle into (-Pi, Pi].
func (a Angle) Normalize() Angle {
	for a > Pi {
		a -= TwoPi
	}
	for a <= -Pi {
		a += TwoPi
	}
	return a
}

// Diff returns the signed shortest angular difference a-o, normalized.
func (a Angle) Diff(o Angle) Angle {
	return (a - o).Normalize()
}

func (a Angle) Abs() float32 {
	return math32.Abs(float32(a))
}

func (a Angle) ClampMagnitude(m Angle) Angle {
	if a < -m {
		return -m
	}
	if a > m {
		return m
	}
	return a
}

// Lerp interpolates from a toward o by factor in [0,1] along the shortest
// angular path.
func (a Angle) Lerp(o Angle, factor float32) Angle {
	diff := o.Diff(a) // shortest signed rotation from a to o
	return (a + Angle(factor)*diff).Normalize()
}

// SinCos returns sin and cos of the angle, used to build direction vectors.
func (a Angle) SinCos() (sin, cos float32) {
	return math32.Sin(float32(a)), math32.Cos(float32(a))
}

func (a Angle) String() string {
	return fmt.Sprintf("%.1f deg", float32(a)*(180/math32.Pi))
}

// InRange reports whether a is within [lo, hi] without wraparound, used to
// validate client-reported pitch which never needs to wrap.
func (a Angle) InRange(lo, hi Angle) bool {
	return a >= lo && a <= hi
}
