// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "github.com/chewxy/math32"

// Movement tuning constants, per spec.md §4.2.
const (
	BaseSpeed        = 6.0  // m/s
	SprintMultiplier = 1.5
	FrictionDecay    = 0.15 // ~15%/step when idle
	MinSpeed         = 0.01 // m/s, velocities below this are zeroed
	AccelPerSecond   = 4.0  // how fast velocity blends toward target
	SpeedTolerance   = 1.2  // spec.md §4.2 violation tolerance factor
)

// AABB is an axis-aligned world boundary.
type AABB struct {
	MinX, MinY, MaxX, MaxY Fixed
}

func (b AABB) Clamp(p Vec2) Vec2 {
	return Vec2{
		X: Clamp(p.X, b.MinX, b.MaxX),
		Y: Clamp(p.Y, b.MinY, b.MaxY),
	}
}

// MoveResult is the outcome of integrating one entity for one physics call.
type MoveResult struct {
	Position Position
	Velocity Velocity
	Violated bool    // true if the caller's claimed displacement was rejected
	DeltaP   float32 // observed |p1-p0|, for anti-cheat reporting
	MaxAllow float32 // the allowed displacement at the time of the check
}

// Integrate advances an entity's kinematic state by ticks steps of 1/60s
// each, driven by the most recently stored input (spec.md §4.2: "multiple
// elapsed steps since t0 integrate the same stored input, not the latest,
// to avoid speed exploits"). bound is the world AABB that every step's
// position is clamped to.
func Integrate(pos Position, vel Velocity, yaw Angle, in Input, ticks Ticks, bound AABB) (Position, Velocity) {
	dt := float32(1.0) / TickRate
	steps := int(ticks)
	if steps > TickRate { // never integrate more than 1s in one call (loop.go enforces this upstream too)
		steps = TickRate
	}

	p := pos.Vec2()
	v := vel.Vec2()

	for i := 0; i < steps; i++ {
		v = stepVelocity(v, yaw, in, dt)
		p = p.AddScaled(v, dt)
		p = bound.Clamp(p)
	}

	return Position{X: p.X, Y: p.Y, Z: pos.Z, Timestamp: pos.Timestamp + int64(ticks)*int64(TickPeriodNanos)},
		Velocity{X: v.X, Y: v.Y, Z: vel.Z}
}

const TickPeriodNanos = int64(1e9 / TickRate)

func stepVelocity(v Vec2, yaw Angle, in Input, dt float32) Vec2 {
	target := directionFromFlags(in.Flags, yaw)

	speed := Fixed(0)
	if target != (Vec2{}) || in.Flags != 0 {
		s := float64(BaseSpeed)
		if in.Flags&InputSprint != 0 {
			s *= SprintMultiplier
		}
		speed = ToFixed(s)
	}

	var targetVelocity Vec2
	if hasDirection(in.Flags) {
		targetVelocity = target.Scale(speed.Float())
	}

	if targetVelocity == (Vec2{}) && v == (Vec2{}) {
		return v
	}

	if hasDirection(in.Flags) {
		v = v.Lerp(targetVelocity, clamp01(AccelPerSecond*dt))
	} else {
		// Exponential friction decay when idle.
		v = v.Scale(1 - FrictionDecay)
		if v.Length() < MinSpeed {
			v = Vec2{}
		}
	}
	return v
}

func hasDirection(f InputFlags) bool {
	return f&(InputForward|InputBackward|InputLeft|InputRight) != 0
}

// directionFromFlags turns input direction bits into a unit vector rotated
// by yaw. Conflicting bits are expected to already have been dropped by
// input validation (spec.md §4.9); if they slip through, they cancel out.
func directionFromFlags(f InputFlags, yaw Angle) Vec2 {
	var fwd, strafe float32
	if f&InputForward != 0 {
		fwd++
	}
	if f&InputBackward != 0 {
		fwd--
	}
	if f&InputRight != 0 {
		strafe++
	}
	if f&InputLeft != 0 {
		strafe--
	}
	if fwd == 0 && strafe == 0 {
		return Vec2{}
	}
	sin, cos := yaw.SinCos()
	// Rotate the local (fwd, strafe) axis by yaw.
	x := fwd*cos - strafe*sin
	y := fwd*sin + strafe*cos
	length := math32.Hypot(x, y)
	if length == 0 {
		return Vec2{}
	}
	return Vec2{ToFixed(float64(x / length)), ToFixed(float64(y / length))}
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// MaxAllowedDisplacement returns the largest legitimate |Δp| over elapsed
// seconds, used by the violation check in spec.md §4.2.
func MaxAllowedDisplacement(elapsedSeconds float32) float32 {
	return BaseSpeed * SprintMultiplier * elapsedSeconds * SpeedTolerance
}

// SoftCollide pushes two overlapping entities apart along their connecting
// vector by the overlap amount (spec.md §4.2). Returns the displacement to
// apply to a and to b (equal and opposite).
func SoftCollide(posA, posB Vec2, radiusA, radiusB Fixed) (Vec2, Vec2) {
	delta := posA.Sub(posB)
	dist := delta.Length()
	minDist := (radiusA + radiusB).Float()
	if dist >= minDist || dist == 0 {
		if dist == 0 {
			return Vec2{}, Vec2{}
		}
		return Vec2{}, Vec2{}
	}
	overlap := minDist - dist
	nx, ny := delta.Float()
	nx /= dist
	ny /= dist
	push := Vec2{ToFixed(float64(nx) * float64(overlap) / 2), ToFixed(float64(ny) * float64(overlap) / 2)}
	return push, Vec2{-push.X, -push.Y}
}
