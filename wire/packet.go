// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire implements spec.md §6's external wire format: the byte-0
// packet discriminator table, the two logical channels, the INPUT/
// SNAPSHOT/EVENT payload layouts, and the disconnect-reason enumeration.
// Binary framing (INPUT, SNAPSHOT's fixed header) uses encoding/binary
// exactly as the snapshot package's codec does; EVENT and ZONE_HANDOFF
// payloads -- which spec.md leaves to "the field level" rather than a
// specific binary scheme -- are framed as json-iterator/go JSON, grounded
// on the teacher's jsoniter.go (same library, without its reflection-based
// Outbound-union machinery, which this repo has no need for: each wire
// message here already has a concrete static Go type per discriminator).
package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/boundlessrealms/zoneserver/world"
)

// PacketType is the byte-0 discriminator of spec.md §6.
type PacketType uint8

const (
	Connect     PacketType = 0x10
	ConnectAck  PacketType = 0x11
	Connected   PacketType = 0x12
	Disconnect  PacketType = 0x13
	Heartbeat   PacketType = 0x14
	Input       PacketType = 0x20
	Snapshot    PacketType = 0x21
	Event       PacketType = 0x22
	ZoneHandoff PacketType = 0x30
)

func (t PacketType) String() string {
	switch t {
	case Connect:
		return "CONNECT"
	case ConnectAck:
		return "CONNECT_ACK"
	case Connected:
		return "CONNECTED"
	case Disconnect:
		return "DISCONNECT"
	case Heartbeat:
		return "HEARTBEAT"
	case Input:
		return "INPUT"
	case Snapshot:
		return "SNAPSHOT"
	case Event:
		return "EVENT"
	case ZoneHandoff:
		return "ZONE_HANDOFF"
	default:
		return "UNKNOWN"
	}
}

// Channel is the logical channel a packet type travels on (spec.md §4.8).
type Channel uint8

const (
	Unreliable Channel = iota
	Reliable
)

// ChannelOf returns the logical channel spec.md §6's table assigns to t.
func ChannelOf(t PacketType) Channel {
	switch t {
	case Input, Snapshot, Heartbeat:
		return Unreliable
	default:
		return Reliable
	}
}

// DisconnectReason enumerates spec.md §6's disconnect reasons.
type DisconnectReason uint8

const (
	Normal DisconnectReason = iota
	Timeout
	Kick
	Ban
	ServerShutdown
	ZoneHandoffReason
	ProtocolError
	CheatDetected
	RateLimited
	ServerFull
)

func (r DisconnectReason) String() string {
	switch r {
	case Normal:
		return "NORMAL"
	case Timeout:
		return "TIMEOUT"
	case Kick:
		return "KICK"
	case Ban:
		return "BAN"
	case ServerShutdown:
		return "SERVER_SHUTDOWN"
	case ZoneHandoffReason:
		return "ZONE_HANDOFF"
	case ProtocolError:
		return "PROTOCOL_ERROR"
	case CheatDetected:
		return "CHEAT_DETECTED"
	case RateLimited:
		return "RATE_LIMITED"
	case ServerFull:
		return "SERVER_FULL"
	default:
		return "UNKNOWN"
	}
}

// InputPacket is the decoded payload of an INPUT packet (spec.md §6):
// `seq u32, ts u32, flags u8, yaw, pitch, target_id u32`. yaw/pitch travel
// as float32, matching world.Angle's native precision (quantization to the
// wire-cheap int8 form only happens on the server's outgoing SNAPSHOT).
type InputPacket struct {
	Sequence   uint32
	ClientTime uint32
	Flags      world.InputFlags
	Yaw, Pitch world.Angle
	TargetID   world.EntityID
}

const inputPayloadSize = 4 + 4 + 1 + 4 + 4 + 4

// EncodeInput serializes p to its wire form, discriminator byte included.
func EncodeInput(p InputPacket) []byte {
	buf := make([]byte, 1+inputPayloadSize)
	buf[0] = byte(Input)
	b := buf[1:]
	binary.BigEndian.PutUint32(b[0:4], p.Sequence)
	binary.BigEndian.PutUint32(b[4:8], p.ClientTime)
	b[8] = byte(p.Flags)
	binary.BigEndian.PutUint32(b[9:13], math.Float32bits(float32(p.Yaw)))
	binary.BigEndian.PutUint32(b[13:17], math.Float32bits(float32(p.Pitch)))
	binary.BigEndian.PutUint32(b[17:21], uint32(p.TargetID))
	return buf
}

// DecodeInput parses an INPUT packet payload (buf excludes the
// discriminator byte, already consumed by the caller's dispatch).
func DecodeInput(buf []byte) (InputPacket, error) {
	if len(buf) < inputPayloadSize {
		return InputPacket{}, fmt.Errorf("wire: short INPUT payload: %d bytes", len(buf))
	}
	return InputPacket{
		Sequence:   binary.BigEndian.Uint32(buf[0:4]),
		ClientTime: binary.BigEndian.Uint32(buf[4:8]),
		Flags:      world.InputFlags(buf[8]),
		Yaw:        world.Angle(math.Float32frombits(binary.BigEndian.Uint32(buf[9:13]))),
		Pitch:      world.Angle(math.Float32frombits(binary.BigEndian.Uint32(buf[13:17]))),
		TargetID:   world.EntityID(binary.BigEndian.Uint32(buf[17:21])),
	}, nil
}

// SnapshotHeader is the fixed-size prefix of a SNAPSHOT packet (spec.md
// §6): `server_tick u32, baseline_tick u32, entity_count u16,
// removed_count u16, flags u32`. The variable body (entity deltas, then
// removed_count x u32 ids) is produced by the snapshot package's codec;
// EncodeSnapshot just frames that payload for the wire.
type SnapshotHeader struct {
	ServerTick   uint32
	BaselineTick uint32
	EntityCount  uint16
	RemovedCount uint16
	Flags        uint32
}

const snapshotHeaderSize = 4 + 4 + 2 + 2 + 4

// EncodeSnapshot frames a complete SNAPSHOT packet: discriminator, header,
// the already-encoded entity-delta body, then removed_count x u32 ids.
func EncodeSnapshot(h SnapshotHeader, deltas []byte, removed []world.EntityID) []byte {
	buf := make([]byte, 1+snapshotHeaderSize+len(deltas)+4*len(removed))
	buf[0] = byte(Snapshot)
	b := buf[1:]
	binary.BigEndian.PutUint32(b[0:4], h.ServerTick)
	binary.BigEndian.PutUint32(b[4:8], h.BaselineTick)
	binary.BigEndian.PutUint16(b[8:10], h.EntityCount)
	binary.BigEndian.PutUint16(b[10:12], h.RemovedCount)
	binary.BigEndian.PutUint32(b[12:16], h.Flags)
	n := copy(b[snapshotHeaderSize:], deltas)
	tail := b[snapshotHeaderSize+n:]
	for i, id := range removed {
		binary.BigEndian.PutUint32(tail[i*4:i*4+4], uint32(id))
	}
	return buf
}

// DecodeSnapshotHeader parses the fixed-size prefix of a SNAPSHOT payload,
// returning the header and the remaining bytes (entity deltas + removed).
func DecodeSnapshotHeader(buf []byte) (SnapshotHeader, []byte, error) {
	if len(buf) < snapshotHeaderSize {
		return SnapshotHeader{}, nil, fmt.Errorf("wire: short SNAPSHOT header: %d bytes", len(buf))
	}
	h := SnapshotHeader{
		ServerTick:   binary.BigEndian.Uint32(buf[0:4]),
		BaselineTick: binary.BigEndian.Uint32(buf[4:8]),
		EntityCount:  binary.BigEndian.Uint16(buf[8:10]),
		RemovedCount: binary.BigEndian.Uint16(buf[10:12]),
		Flags:        binary.BigEndian.Uint32(buf[12:16]),
	}
	return h, buf[snapshotHeaderSize:], nil
}

// DecodeRemoved reads h.RemovedCount trailing u32 entity ids from the tail
// of a SNAPSHOT body (spec.md §6: "Removed: trailing removed_count x u32").
func DecodeRemoved(tail []byte, count uint16) ([]world.EntityID, error) {
	need := int(count) * 4
	if len(tail) < need {
		return nil, fmt.Errorf("wire: short removed-ids tail: need %d, have %d", need, len(tail))
	}
	out := make([]world.EntityID, count)
	for i := range out {
		out[i] = world.EntityID(binary.BigEndian.Uint32(tail[i*4 : i*4+4]))
	}
	return out, nil
}
