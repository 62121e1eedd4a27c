// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/boundlessrealms/zoneserver/world"
)

// jsonAPI mirrors the teacher's jsoniter.go Config choice (no HTML
// escaping, sorted map keys for deterministic EVENT payload bytes across
// replays) without its reflection-based Outbound-union machinery: every
// wire message here already has a concrete static type per discriminator.
var jsonAPI = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

// ConnectPacket is the C->S handshake opener.
type ConnectPacket struct {
	ProtocolVersion uint32 `json:"protocol_version"`
	AuthToken       string `json:"auth_token"`
	PlayerID        uint64 `json:"player_id,omitempty"` // set on a migration reconnect
}

// ConnectAckPacket is the S->C reply of spec.md §4.8's 4-way handshake.
type ConnectAckPacket struct {
	EntityID   uint32 `json:"entity_id"`
	ZoneID     uint32 `json:"zone_id"`
	ServerTick uint32 `json:"server_tick"`
}

// ConnectedPacket is the client's C->S acknowledgment completing the
// handshake.
type ConnectedPacket struct{}

// DisconnectPacket carries the enumerated reason (spec.md §6).
type DisconnectPacket struct {
	Reason  DisconnectReason `json:"reason"`
	Message string           `json:"message,omitempty"`
}

// ZoneHandoffPacket is the redirect message of spec.md §4.11's COMPLETING
// step: new host/port plus a one-time reconnect token.
type ZoneHandoffPacket struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Token string `json:"token"`
}

// EventPayload is the JSON body of an EVENT packet's payload field
// (spec.md §6: `event_id, ts, event_type, payload_length, payload`); the
// combat/migrate caller supplies EventType and a JSON-marshalable Data.
type EventPayload struct {
	EventID   uint32      `json:"event_id"`
	Type      uint8       `json:"event_type"`
	Timestamp uint32      `json:"ts"`
	Data      interface{} `json:"data"`
}

// EncodeEvent frames a complete EVENT packet: discriminator, event_id, ts,
// event_type, payload_length, then the JSON payload (spec.md §6).
func EncodeEvent(eventID uint32, ts time.Time, eventType uint8, data interface{}) ([]byte, error) {
	payload, err := jsonAPI.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal event payload: %w", err)
	}
	if len(payload) > 0xFFFF {
		return nil, fmt.Errorf("wire: event payload too large: %d bytes", len(payload))
	}
	buf := make([]byte, 1+4+4+1+2+len(payload))
	buf[0] = byte(Event)
	binary.BigEndian.PutUint32(buf[1:5], eventID)
	binary.BigEndian.PutUint32(buf[5:9], uint32(ts.UnixMilli()))
	buf[9] = eventType
	binary.BigEndian.PutUint16(buf[10:12], uint16(len(payload)))
	copy(buf[12:], payload)
	return buf, nil
}

// DecodeEventHeader parses an EVENT packet's fixed fields and returns the
// raw JSON payload slice for the caller to unmarshal into its own type.
func DecodeEventHeader(buf []byte) (eventID uint32, ts time.Time, eventType uint8, payload []byte, err error) {
	if len(buf) < 11 {
		return 0, time.Time{}, 0, nil, fmt.Errorf("wire: short EVENT header: %d bytes", len(buf))
	}
	eventID = binary.BigEndian.Uint32(buf[0:4])
	ts = time.UnixMilli(int64(binary.BigEndian.Uint32(buf[4:8])))
	eventType = buf[8]
	length := binary.BigEndian.Uint16(buf[9:11])
	if len(buf) < 11+int(length) {
		return 0, time.Time{}, 0, nil, fmt.Errorf("wire: short EVENT payload: need %d, have %d", length, len(buf)-11)
	}
	payload = buf[11 : 11+int(length)]
	return
}

// MarshalJSON and UnmarshalJSON helpers exposed for the handshake/control
// packets above and for bus.Message payloads (ENTITY_SYNC, ZONE_STATUS).
func MarshalJSON(v interface{}) ([]byte, error) { return jsonAPI.Marshal(v) }
func UnmarshalJSON(data []byte, v interface{}) error { return jsonAPI.Unmarshal(data, v) }

// EntityIDOf narrows an EventPayload's Data back to a world.EntityID when
// the caller knows the event's shape; kept here rather than in combat so
// wire stays the single place that understands event wire framing.
func EntityIDOf(raw uint32) world.EntityID { return world.EntityID(raw) }
