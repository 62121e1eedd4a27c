// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "github.com/chewxy/math32"

// Vec2 is a fixed-point 2D vector used for Position and Velocity components.
// Method set mirrors the teacher's float32 Vec2f. Add, Sub and Rot90 stay in
// integer arithmetic; Scale, AddScaled and Lerp compute in floating point and
// round back to Fixed, and Dot, LengthSquared, Length, Distance and Angle
// return float32 results.
type Vec2 struct {
	X, Y Fixed
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

func (v Vec2) AddScaled(o Vec2, factor float32) Vec2 {
	return Vec2{v.X + o.X.Scale(factor), v.Y + o.Y.Scale(factor)}
}

func (v Vec2) Scale(factor float32) Vec2 {
	return Vec2{v.X.Scale(factor), v.Y.Scale(factor)}
}

func (v Vec2) Dot(o Vec2) float32 {
	return v.X.Float()*o.X.Float() + v.Y.Float()*o.Y.Float()
}

func (v Vec2) Rot90() Vec2 {
	return Vec2{-v.Y, v.X}
}

func (v Vec2) Lerp(o Vec2, factor float32) Vec2 {
	return Vec2{FixedLerp(v.X, o.X, factor), FixedLerp(v.Y, o.Y, factor)}
}

func (v Vec2) Float() (float32, float32) {
	return v.X.Float(), v.Y.Float()
}

func (v Vec2) LengthSquared() float32 {
	x, y := v.Float()
	return x*x + y*y
}

func (v Vec2) Length() float32 {
	return math32.Sqrt(v.LengthSquared())
}

func (v Vec2) Distance(o Vec2) float32 {
	return v.Sub(o).Length()
}

func (v Vec2) DistanceSquared(o Vec2) float32 {
	return v.Sub(o).LengthSquared()
}

func (v Vec2) Angle() Angle {
	x, y := v.Float()
	return Angle(math32.Atan2(y, x))
}

// FromPolar builds a Vec2 of the given fixed-point magnitude pointing along angle.
func FromPolar(magnitude Fixed, angle Angle) Vec2 {
	sin, cos := angle.SinCos()
	return Vec2{magnitude.Scale(cos), magnitude.Scale(sin)}
}

func Vec2FromFloat(x, y float64) Vec2 {
	return Vec2{ToFixed(x), ToFixed(y)}
}
