// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/boundlessrealms/zoneserver/anticheat"
	"github.com/boundlessrealms/zoneserver/wire"
	"github.com/boundlessrealms/zoneserver/world"
)

type stubAuth struct{}

func (stubAuth) Authenticate(token string, playerID uint64) (world.PlayerID, error) {
	return world.PlayerID(1), nil
}

func TestHandshakeFullCycle(t *testing.T) {
	inbound := make(chan InboundPacket, 8)
	connected := make(chan *Conn, 1)
	srv := NewServer(anticheat.NewRateLimiters(), inbound, func(c *Conn) { connected <- c }, nil)

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	var c *Conn
	select {
	case c = <-connected:
	case <-time.After(time.Second):
		t.Fatal("server never accepted connection")
	}
	require.Equal(t, StateAwaitingConnect, c.State())

	req, err := wire.MarshalJSON(wire.ConnectPacket{ProtocolVersion: 1, AuthToken: "tok"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, append([]byte{byte(wire.Connect)}, req...)))

	var pkt InboundPacket
	select {
	case pkt = <-inbound:
	case <-time.After(time.Second):
		t.Fatal("server never relayed CONNECT")
	}
	require.Equal(t, wire.Connect, pkt.Type)

	playerID, err := HandleConnect(pkt.Conn, pkt.Payload, stubAuth{}, world.EntityID(42), 7, 100)
	require.NoError(t, err)
	require.Equal(t, world.PlayerID(1), playerID)
	require.Equal(t, StateAwaitingConnected, pkt.Conn.State())

	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, byte(wire.ConnectAck), data[0])
	var ack wire.ConnectAckPacket
	require.NoError(t, wire.UnmarshalJSON(data[1:], &ack))
	require.Equal(t, uint32(42), ack.EntityID)

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{byte(wire.Connected)}))
	select {
	case pkt = <-inbound:
	case <-time.After(time.Second):
		t.Fatal("server never relayed CONNECTED")
	}
	require.NoError(t, HandleConnected(pkt.Conn))
	require.Equal(t, StateActive, pkt.Conn.State())
}

func TestIPFromRequest(t *testing.T) {
	require.Equal(t, "203.0.113.5", ipFromRequest("203.0.113.5", "10.0.0.1:9000"))
	require.Equal(t, "10.0.0.1", ipFromRequest("", "10.0.0.1:9000"))
}

func TestLimiterKeyStable(t *testing.T) {
	require.Equal(t, limiterKey("1.2.3.4"), limiterKey("1.2.3.4"))
	require.NotEqual(t, limiterKey("1.2.3.4"), limiterKey("5.6.7.8"))
}
