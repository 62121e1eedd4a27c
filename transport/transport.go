// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport implements spec.md §4.8's connection layer: the 4-way
// handshake, the reliable/unreliable logical channel split, heartbeats, and
// per-IP/per-connection rate limiting, over gorilla/websocket. Grounded on
// the teacher's socket_client.go SocketClient (read/write pump goroutines,
// buffered send channel, once-guarded Destroy), generalized from mk48's
// single JSON channel to the byte-0 discriminated binary/JSON split of
// spec.md §6.
package transport

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/boundlessrealms/zoneserver/log"
	"github.com/boundlessrealms/zoneserver/wire"
	"github.com/boundlessrealms/zoneserver/world"
)

const (
	// writeWait mirrors the teacher's socket_client.go deadline.
	writeWait = 5 * time.Second
	// pongWait and heartbeatPeriod implement the heartbeat: a ping every 5s,
	// and a peer silent for 15s fails its read and the connection is closed
	// (no DISCONNECT frame is sent).
	pongWait        = 15 * time.Second
	heartbeatPeriod = 5 * time.Second
	// maxMessageSize bounds a single inbound frame; generous enough for the
	// largest EVENT payload spec.md allows.
	maxMessageSize = 8192
	// sendBacklog is the outbound queue depth before a connection is judged
	// unresponsive and torn down, mirroring socket_client.go's send channel.
	sendBacklog = 32
)

// State is a connection's position in spec.md §4.8's 4-way handshake.
type State uint8

const (
	StateAwaitingConnect State = iota
	StateAwaitingConnected
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingConnect:
		return "AWAITING_CONNECT"
	case StateAwaitingConnected:
		return "AWAITING_CONNECTED"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

var connSeq uint64

// Outbound is one queued outbound frame of already wire-encoded bytes, all
// byte-0 discriminated binary per spec.md §6.
type Outbound struct {
	Bytes []byte
}

// Conn is one zone connection: the websocket transport, handshake state,
// and outbound queue. Mirrors the teacher's SocketClient, split into
// exported fields zone/loop.go reads directly (ClientData's role) and the
// pump goroutines this package owns.
type Conn struct {
	ID       uint64
	IP       string
	ws       *websocket.Conn
	send     chan Outbound
	once     sync.Once
	closed   chan struct{}
	state    atomic.Uint32
	EntityID world.EntityID
	PlayerID world.PlayerID

	// Inbound is the zone's fan-in; the read pump decodes a frame's
	// discriminator and hands the raw payload here for the zone tick
	// thread to interpret (keeps all world-mutating logic single-threaded
	// per spec.md §9).
	Inbound chan<- InboundPacket

	onClose func(*Conn)
}

// InboundPacket is a decoded frame handed from a connection's read pump to
// the zone's ingress queue.
type InboundPacket struct {
	Conn    *Conn
	Type    wire.PacketType
	Payload []byte
}

func newConn(ws *websocket.Conn, ip string, inbound chan<- InboundPacket, onClose func(*Conn)) *Conn {
	c := &Conn{
		ID:      atomic.AddUint64(&connSeq, 1),
		IP:      ip,
		ws:      ws,
		send:    make(chan Outbound, sendBacklog),
		closed:  make(chan struct{}),
		Inbound: inbound,
		onClose: onClose,
	}
	c.state.Store(uint32(StateAwaitingConnect))
	return c
}

// State returns the connection's current handshake/lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(uint32(s)) }

// Send enqueues an outbound frame. Mirrors socket_client.go's Send: a full
// queue means the peer isn't draining fast enough, so the connection is
// torn down rather than blocking the zone tick thread.
func (c *Conn) Send(out Outbound) {
	select {
	case c.send <- out:
	default:
		log.For("transport").WithField("conn_id", c.ID).Warn("send queue full, dropping connection")
		c.Close()
	}
}

// Close tears the connection down exactly once, mirroring SocketClient's
// sync.Once-guarded Destroy.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.setState(StateClosed)
		close(c.closed)
		_ = c.ws.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// Start launches the read and write pumps, mirroring SocketClient.Init.
func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer c.Close()
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	logger := log.Conn(log.For("transport"), c.ID)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithError(err).Debug("read error")
			}
			return
		}
		if len(data) == 0 {
			continue
		}
		pt := wire.PacketType(data[0])
		select {
		case c.Inbound <- InboundPacket{Conn: c, Type: pt, Payload: data[1:]}:
		default:
			logger.Warn("zone ingress queue full, dropping frame")
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case out, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, out.Bytes); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// ipFromRequest extracts the client IP the same way the teacher's http.go
// ServeSocket does: trust X-Forwarded-For (this process sits behind a load
// balancer/edge proxy in deployment) and fall back to RemoteAddr otherwise.
func ipFromRequest(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		if ip := net.ParseIP(forwardedFor); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// limiterKey adapts anticheat.RateLimiters' uint64-category Allow to an IP
// string by hashing; catrate's Limiter accepts any comparable category, but
// a zone holds one limiter set for all connections, so a stable per-IP key
// is still needed.
func limiterKey(ip string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(ip); i++ {
		h ^= uint64(ip[i])
		h *= 1099511628211
	}
	return h
}
