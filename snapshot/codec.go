// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/boundlessrealms/zoneserver/world"
)

// FieldMask is the 16-bit present_mask of spec.md §4.7.
type FieldMask uint16

const (
	FieldPositionX FieldMask = 1 << iota
	FieldPositionY
	FieldPositionZ
	FieldRotationYaw
	FieldRotationPitch
	FieldVelocityX
	FieldVelocityY
	FieldVelocityZ
	FieldHealth
	FieldAnim
	FieldKind
	FieldTeam
)

// EntityState is the quantizable wire view of an entity at one tick, built
// from the world.Store component pools by the caller (zone/loop.go).
type EntityState struct {
	ID       world.EntityID
	Position world.Vec2
	Altitude world.Fixed
	Yaw      world.Angle
	Pitch    world.Angle
	Velocity world.Vec2
	VelZ     world.Fixed
	Health   uint8
	Anim     uint8
	Kind     world.Kind
	Team     uint32
}

// BuildMask compares curr against an optional baseline (nil means "no
// baseline, include everything": a full snapshot) and returns the set of
// fields that changed beyond the tolerance of spec.md §4.7.
func BuildMask(baseline *EntityState, curr EntityState) FieldMask {
	if baseline == nil {
		return FieldPositionX | FieldPositionY | FieldPositionZ | FieldRotationYaw |
			FieldRotationPitch | FieldVelocityX | FieldVelocityY | FieldVelocityZ |
			FieldHealth | FieldAnim | FieldKind | FieldTeam
	}
	var mask FieldMask
	if PositionChanged(baseline.Position.X, curr.Position.X) {
		mask |= FieldPositionX
	}
	if PositionChanged(baseline.Position.Y, curr.Position.Y) {
		mask |= FieldPositionY
	}
	if PositionChanged(baseline.Altitude, curr.Altitude) {
		mask |= FieldPositionZ
	}
	if RotationChanged(baseline.Yaw, curr.Yaw) {
		mask |= FieldRotationYaw
	}
	if RotationChanged(baseline.Pitch, curr.Pitch) {
		mask |= FieldRotationPitch
	}
	if PositionChanged(baseline.Velocity.X, curr.Velocity.X) {
		mask |= FieldVelocityX
	}
	if PositionChanged(baseline.Velocity.Y, curr.Velocity.Y) {
		mask |= FieldVelocityY
	}
	if PositionChanged(baseline.VelZ, curr.VelZ) {
		mask |= FieldVelocityZ
	}
	if baseline.Health != curr.Health {
		mask |= FieldHealth
	}
	if baseline.Anim != curr.Anim {
		mask |= FieldAnim
	}
	if baseline.Kind != curr.Kind {
		mask |= FieldKind
	}
	if baseline.Team != curr.Team {
		mask |= FieldTeam
	}
	return mask
}

// EncodeEntityDelta writes one entity's delta record: id, present_mask, then
// only the masked fields, quantized: positions as deltas in the
// variable-length scheme of varint.go (against a zero baseline for a full
// snapshot), velocities as absolute big-endian int16 values.
func EncodeEntityDelta(buf *bytes.Buffer, baseline *EntityState, curr EntityState, mask FieldMask) {
	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], uint32(curr.ID))
	buf.Write(idBytes[:])

	var maskBytes [2]byte
	binary.BigEndian.PutUint16(maskBytes[:], uint16(mask))
	buf.Write(maskBytes[:])

	var zero EntityState
	base := &zero
	if baseline != nil {
		base = baseline
	}

	var tmp []byte
	if mask&FieldPositionX != 0 {
		tmp = EncodeDelta(tmp[:0], int32(QuantizePosition(curr.Position.X))-int32(QuantizePosition(base.Position.X)))
		buf.Write(tmp)
	}
	if mask&FieldPositionY != 0 {
		tmp = EncodeDelta(tmp[:0], int32(QuantizePosition(curr.Position.Y))-int32(QuantizePosition(base.Position.Y)))
		buf.Write(tmp)
	}
	if mask&FieldPositionZ != 0 {
		tmp = EncodeDelta(tmp[:0], int32(QuantizePosition(curr.Altitude))-int32(QuantizePosition(base.Altitude)))
		buf.Write(tmp)
	}
	if mask&FieldRotationYaw != 0 {
		buf.WriteByte(byte(QuantizeRotation(curr.Yaw)))
	}
	if mask&FieldRotationPitch != 0 {
		buf.WriteByte(byte(QuantizeRotation(curr.Pitch)))
	}
	if mask&FieldVelocityX != 0 {
		var v [2]byte
		binary.BigEndian.PutUint16(v[:], uint16(QuantizeVelocity(curr.Velocity.X)))
		buf.Write(v[:])
	}
	if mask&FieldVelocityY != 0 {
		var v [2]byte
		binary.BigEndian.PutUint16(v[:], uint16(QuantizeVelocity(curr.Velocity.Y)))
		buf.Write(v[:])
	}
	if mask&FieldVelocityZ != 0 {
		var v [2]byte
		binary.BigEndian.PutUint16(v[:], uint16(QuantizeVelocity(curr.VelZ)))
		buf.Write(v[:])
	}
	if mask&FieldHealth != 0 {
		buf.WriteByte(curr.Health)
	}
	if mask&FieldAnim != 0 {
		buf.WriteByte(curr.Anim)
	}
	if mask&FieldKind != 0 {
		buf.WriteByte(byte(curr.Kind))
	}
	if mask&FieldTeam != 0 {
		var tm [4]byte
		binary.BigEndian.PutUint32(tm[:], curr.Team)
		buf.Write(tm[:])
	}
}

// DecodeEntityDelta is the inverse of EncodeEntityDelta, applying the
// decoded fields onto a copy of baseline (or a zero value for a full
// snapshot) and returning the reconstructed state plus bytes consumed.
func DecodeEntityDelta(buf []byte, baseline *EntityState) (EntityState, int, error) {
	if len(buf) < 6 {
		return EntityState{}, 0, fmt.Errorf("snapshot: truncated entity delta header")
	}
	id := world.EntityID(binary.BigEndian.Uint32(buf[0:4]))
	mask := FieldMask(binary.BigEndian.Uint16(buf[4:6]))
	off := 6

	var state EntityState
	if baseline != nil {
		state = *baseline
	}
	state.ID = id

	readDelta := func(base world.Fixed) (world.Fixed, error) {
		d, n, err := DecodeDelta(buf[off:])
		if err != nil {
			return 0, err
		}
		off += n
		return base + DequantizePosition(int16(d)), nil
	}

	if mask&FieldPositionX != 0 {
		basePos := DequantizePosition(QuantizePosition(state.Position.X))
		v, err := readDelta(basePos)
		if err != nil {
			return state, 0, err
		}
		state.Position.X = v
	}
	if mask&FieldPositionY != 0 {
		basePos := DequantizePosition(QuantizePosition(state.Position.Y))
		v, err := readDelta(basePos)
		if err != nil {
			return state, 0, err
		}
		state.Position.Y = v
	}
	if mask&FieldPositionZ != 0 {
		basePos := DequantizePosition(QuantizePosition(state.Altitude))
		v, err := readDelta(basePos)
		if err != nil {
			return state, 0, err
		}
		state.Altitude = v
	}
	if mask&FieldRotationYaw != 0 {
		if off >= len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated yaw")
		}
		state.Yaw = DequantizeRotation(int8(buf[off]))
		off++
	}
	if mask&FieldRotationPitch != 0 {
		if off >= len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated pitch")
		}
		state.Pitch = DequantizeRotation(int8(buf[off]))
		off++
	}
	if mask&FieldVelocityX != 0 {
		if off+2 > len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated velocity x")
		}
		state.Velocity.X = DequantizeVelocity(int16(binary.BigEndian.Uint16(buf[off : off+2])))
		off += 2
	}
	if mask&FieldVelocityY != 0 {
		if off+2 > len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated velocity y")
		}
		state.Velocity.Y = DequantizeVelocity(int16(binary.BigEndian.Uint16(buf[off : off+2])))
		off += 2
	}
	if mask&FieldVelocityZ != 0 {
		if off+2 > len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated velocity z")
		}
		state.VelZ = DequantizeVelocity(int16(binary.BigEndian.Uint16(buf[off : off+2])))
		off += 2
	}
	if mask&FieldHealth != 0 {
		if off >= len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated health")
		}
		state.Health = buf[off]
		off++
	}
	if mask&FieldAnim != 0 {
		if off >= len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated anim")
		}
		state.Anim = buf[off]
		off++
	}
	if mask&FieldKind != 0 {
		if off >= len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated kind")
		}
		state.Kind = world.Kind(buf[off])
		off++
	}
	if mask&FieldTeam != 0 {
		if off+4 > len(buf) {
			return state, 0, fmt.Errorf("snapshot: truncated team")
		}
		state.Team = binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
	}

	return state, off, nil
}

// Packet is a full snapshot packet, spec.md §6 "SNAPSHOT header".
type Packet struct {
	ServerTick   uint32
	BaselineTick uint32
	Removed      []world.EntityID
	Deltas       []byte
	EntityCount  uint16
}

// Encode serializes a Packet to its wire form.
func (p Packet) Encode() []byte {
	var buf bytes.Buffer
	var header [16]byte
	binary.BigEndian.PutUint32(header[0:4], p.ServerTick)
	binary.BigEndian.PutUint32(header[4:8], p.BaselineTick)
	binary.BigEndian.PutUint16(header[8:10], p.EntityCount)
	binary.BigEndian.PutUint16(header[10:12], uint16(len(p.Removed)))
	binary.BigEndian.PutUint32(header[12:16], 0) // flags, reserved
	buf.Write(header[:])
	buf.Write(p.Deltas)
	for _, id := range p.Removed {
		var idb [4]byte
		binary.BigEndian.PutUint32(idb[:], uint32(id))
		buf.Write(idb[:])
	}
	return buf.Bytes()
}

// DecodePacketHeader parses only the fixed header, returning the header
// fields and the offset at which entity/removed data begins.
func DecodePacketHeader(buf []byte) (serverTick, baselineTick uint32, entityCount, removedCount uint16, err error) {
	if len(buf) < 16 {
		return 0, 0, 0, 0, fmt.Errorf("snapshot: truncated packet header")
	}
	serverTick = binary.BigEndian.Uint32(buf[0:4])
	baselineTick = binary.BigEndian.Uint32(buf[4:8])
	entityCount = binary.BigEndian.Uint16(buf[8:10])
	removedCount = binary.BigEndian.Uint16(buf[10:12])
	return
}
