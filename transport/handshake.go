// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"fmt"
	"time"

	"github.com/boundlessrealms/zoneserver/wire"
	"github.com/boundlessrealms/zoneserver/world"
)

// Authenticator validates a CONNECT packet's auth_token (or migration
// reconnect token) and returns the player identity to assign. Concretely
// backed by migrate's JWT verifier for reconnects and an external auth
// service for fresh logins; transport only needs the narrow interface.
type Authenticator interface {
	Authenticate(token string, playerID uint64) (world.PlayerID, error)
}

// HandshakeResult is what the zone needs once a connection reaches ACTIVE:
// the assigned entity, to spawn or resume world state for it.
type HandshakeResult struct {
	Conn     *Conn
	PlayerID world.PlayerID
	EntityID world.EntityID
}

// HandleConnect processes a CONNECT packet (spec.md §4.8 step 1), replying
// CONNECT_ACK and advancing the connection to AWAITING_CONNECTED.
// entityID/zoneID/serverTick are supplied by the caller (the zone assigns
// the entity and knows its own id/tick); auth validates the token.
func HandleConnect(c *Conn, payload []byte, auth Authenticator, entityID world.EntityID, zoneID uint32, serverTick uint32) (world.PlayerID, error) {
	if c.State() != StateAwaitingConnect {
		return 0, fmt.Errorf("transport: CONNECT received in state %s", c.State())
	}
	var req wire.ConnectPacket
	if err := wire.UnmarshalJSON(payload, &req); err != nil {
		return 0, fmt.Errorf("transport: decode CONNECT: %w", err)
	}
	playerID, err := auth.Authenticate(req.AuthToken, req.PlayerID)
	if err != nil {
		return 0, fmt.Errorf("transport: authenticate: %w", err)
	}

	ack, err := wire.MarshalJSON(wire.ConnectAckPacket{
		EntityID:   uint32(entityID),
		ZoneID:     zoneID,
		ServerTick: serverTick,
	})
	if err != nil {
		return 0, fmt.Errorf("transport: encode CONNECT_ACK: %w", err)
	}
	c.Send(Outbound{Bytes: append([]byte{byte(wire.ConnectAck)}, ack...)})
	c.setState(StateAwaitingConnected)
	c.PlayerID = playerID
	c.EntityID = entityID
	return playerID, nil
}

// HandleConnected processes the client's CONNECTED acknowledgment (spec.md
// §4.8 step 3), completing the handshake.
func HandleConnected(c *Conn) error {
	if c.State() != StateAwaitingConnected {
		return fmt.Errorf("transport: CONNECTED received in state %s", c.State())
	}
	c.setState(StateActive)
	return nil
}

// Disconnect sends a DISCONNECT frame with the given reason and closes the
// connection (spec.md §4.8/§6).
func Disconnect(c *Conn, reason wire.DisconnectReason, message string) {
	body, err := wire.MarshalJSON(wire.DisconnectPacket{Reason: reason, Message: message})
	if err == nil {
		c.Send(Outbound{Bytes: append([]byte{byte(wire.Disconnect)}, body...)})
	}
	// Give the write pump a moment to flush before the hard close.
	time.AfterFunc(200*time.Millisecond, c.Close)
}
