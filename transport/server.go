// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boundlessrealms/zoneserver/anticheat"
	"github.com/boundlessrealms/zoneserver/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // edge proxy enforces origin; zone trusts its upstream.
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Status is the periodic snapshot served at /statusz, mirroring the
// teacher's http.go atomic-swapped status JSON (ServeIndex's h.statusJSON).
type Status struct {
	ZoneID      uint32 `json:"zone_id"`
	Tick        uint32 `json:"tick"`
	Connections int    `json:"connections"`
	Players     int    `json:"players"`
	TickBudgetOK bool  `json:"tick_budget_ok"`
}

// Server owns the HTTP surface (gorilla/mux-routed /healthz, /statusz,
// /metrics) and the websocket upgrade endpoint, applying spec.md §6's
// per-IP connection rate limit before handing a socket to the zone.
// Grounded on the teacher's http.go (ServeIndex/ServeSocket on *Hub) split
// into a standalone component so the zone package stays free of net/http.
type Server struct {
	router  *mux.Router
	http    *http.Server
	limits  *anticheat.RateLimiters
	inbound chan<- InboundPacket
	onConn  func(*Conn)
	onClose func(*Conn)

	mu      sync.RWMutex
	conns   map[uint64]*Conn
	ipConns map[string]int

	status atomic.Value // Status

	connGauge prometheus.Gauge
}

// NewServer builds a Server. inbound is the zone's fan-in channel; onConn is
// invoked once a raw websocket has been accepted and wrapped (the zone then
// drives the handshake via HandleConnect/HandleConnected); onClose is
// invoked once a connection tears down so the zone can release its entity.
func NewServer(limits *anticheat.RateLimiters, inbound chan<- InboundPacket, onConn, onClose func(*Conn)) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		limits:  limits,
		inbound: inbound,
		onConn:  onConn,
		conns:   make(map[uint64]*Conn),
		ipConns: make(map[string]int),
		connGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zoneserver_connections",
			Help: "Currently open client connections.",
		}),
	}
	s.onClose = func(c *Conn) {
		s.mu.Lock()
		delete(s.conns, c.ID)
		if c.IP != "" && s.ipConns[c.IP] > 0 {
			s.ipConns[c.IP]--
		}
		s.mu.Unlock()
		s.connGauge.Dec()
		if onClose != nil {
			onClose(c)
		}
	}
	s.status.Store(Status{})
	prometheus.MustRegister(s.connGauge)

	s.router.HandleFunc("/ws", s.serveSocket)
	s.router.HandleFunc("/healthz", s.serveHealthz)
	s.router.HandleFunc("/statusz", s.serveStatusz)
	s.router.Handle("/metrics", promhttp.Handler())
	return s
}

// PublishStatus updates the atomic /statusz snapshot; called once per tick
// (or at a lower cadence) by zone/loop.go.
func (s *Server) PublishStatus(st Status) { s.status.Store(st) }

func (s *Server) serveHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) serveStatusz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	st, _ := s.status.Load().(Status)
	_ = json.NewEncoder(w).Encode(st)
}

const maxConnsPerIP = 10

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	ip := ipFromRequest(r.Header.Get("X-Forwarded-For"), r.RemoteAddr)

	if ip != "" {
		s.mu.RLock()
		count := s.ipConns[ip]
		s.mu.RUnlock()
		if count >= maxConnsPerIP {
			http.Error(w, "too many connections", http.StatusTooManyRequests)
			return
		}
		if s.limits != nil {
			if _, ok := s.limits.ConnectionsPerIP.Allow(limiterKey(ip)); !ok {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
		}
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.For("transport").WithError(err).Debug("upgrade failed")
		return
	}

	c := newConn(ws, ip, s.inbound, s.onClose)
	s.mu.Lock()
	s.conns[c.ID] = c
	if ip != "" {
		s.ipConns[ip]++
	}
	s.mu.Unlock()
	s.connGauge.Inc()

	c.Start()
	if s.onConn != nil {
		s.onConn(c)
	}
}

// ListenAndServe starts the HTTP server on addr; blocks until it returns an
// error (including on Shutdown).
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Broadcast sends out to every ACTIVE connection; used for zone-wide
// control messages (e.g. SERVER_SHUTDOWN warnings).
func (s *Server) Broadcast(out Outbound) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		if c.State() == StateActive {
			c.Send(out)
		}
	}
}

// Conn looks up a connection by id.
func (s *Server) Conn(id uint64) (*Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

// Count returns the number of currently open connections.
func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
