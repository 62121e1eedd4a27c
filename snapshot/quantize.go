// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package snapshot implements spec.md §4.7: the quantized, bit-mask delta
// snapshot codec. Grounded on the teacher's jsoniter.go/pooled-Update
// encode-on-write discipline (outbound.go), generalized from JSON text to
// a compact binary variable-length scheme.
package snapshot

import (
	"github.com/boundlessrealms/zoneserver/world"
)

const (
	// PositionQuantum is 1/64 m, per spec.md §4.7.
	PositionQuantum = 1.0 / 64.0
	// RotationQuantum gives roughly 2 degree precision over an int8's range.
	RotationQuantum = float32(2.0 * 3.14159265 / 256.0)
	// VelocityQuantum matches position precision for consistency.
	VelocityQuantum = 1.0 / 64.0

	// PositionChangeTolerance is ~6cm: quantization noise below this never
	// drives traffic (spec.md §4.7 "Equality for delta inclusion").
	PositionChangeTolerance = 0.06
	// RotationChangeTolerance is ~2 degrees in radians.
	RotationChangeTolerance = float32(2.0 * 3.14159265 / 180.0)
)

// QuantizePosition maps a Fixed world coordinate to the wire int16 quantum.
func QuantizePosition(v world.Fixed) int16 {
	f := v.Float()
	q := f / PositionQuantum
	return clampInt16(q)
}

func DequantizePosition(q int16) world.Fixed {
	return world.ToFixed(float64(q) * PositionQuantum)
}

// QuantizeRotation maps an Angle to a single wire byte.
func QuantizeRotation(a world.Angle) int8 {
	n := a.Normalize()
	q := float32(n) / RotationQuantum
	return clampInt8(q)
}

func DequantizeRotation(q int8) world.Angle {
	return world.Angle(float32(q) * RotationQuantum).Normalize()
}

func QuantizeVelocity(v world.Fixed) int16 {
	f := v.Float()
	q := f / VelocityQuantum
	return clampInt16(q)
}

func DequantizeVelocity(q int16) world.Fixed {
	return world.ToFixed(float64(q) * VelocityQuantum)
}

func clampInt16(f float32) int16 {
	if f > 32767 {
		return 32767
	}
	if f < -32768 {
		return -32768
	}
	return int16(f)
}

func clampInt8(f float32) int8 {
	if f > 127 {
		return 127
	}
	if f < -128 {
		return -128
	}
	return int8(f)
}

// PositionChanged reports whether two coordinates differ enough to warrant
// inclusion, per the tolerance rule of spec.md §4.7: the codec quantizes
// before comparing so quantization noise never drives traffic.
func PositionChanged(prev, next world.Fixed) bool {
	diff := float32(int32(QuantizePosition(next))-int32(QuantizePosition(prev))) * PositionQuantum
	if diff < 0 {
		diff = -diff
	}
	return diff >= PositionChangeTolerance
}

func RotationChanged(prev, next world.Angle) bool {
	diff := float32(next.Diff(prev))
	if diff < 0 {
		diff = -diff
	}
	return diff >= RotationChangeTolerance
}
