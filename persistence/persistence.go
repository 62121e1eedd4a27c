// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persistence implements spec.md §4.13's two fire-and-forget
// services: a session cache (string k/v + TTL) and a durable combat-event
// log; the cross-zone pub/sub transport is package bus. Grounded on the teacher's
// cloud.go pluggable-interface-with-Offline-fallback idiom: every real
// backend and the no-op both implement Adapter, so zone/loop.go never
// branches on "is persistence configured".
package persistence

import (
	"time"

	"github.com/boundlessrealms/zoneserver/world"
)

// DefaultTTL is the default key TTL of spec.md §6 ("TTL default 3600s").
const DefaultTTL = time.Hour

// CombatLogEntry is one durable combat-history record (spec.md §4.13).
type CombatLogEntry struct {
	ZoneID    uint32
	Source    world.EntityID
	Target    world.EntityID
	Amount    float32
	Crit      bool
	EventType uint8
	Timestamp int64
}

// ZoneStatus is the periodic fleet-status record (SPEC_FULL.md §5
// "zone-fleet status broadcast"), written to the registry for an external
// topology view and also published on bus.BroadcastChannel.
type ZoneStatus struct {
	ZoneID       uint32
	Players      int
	TickBudgetOK bool
	Neighbors    []uint32
	UpdatedAt    int64
}

// ErrorFunc receives an async operation's failure; per spec.md §4.13
// "failures produce callback errors and increment a metric but never
// affect simulation correctness", never the blocking caller's return path.
type ErrorFunc func(op string, err error)

// Adapter is the fire-and-forget persistence surface the zone loop uses.
// The write methods (PutSession, LogCombatEvent, UpdateZoneStatus) return
// immediately; real work happens on a background goroutine and failures are
// reported only through ErrorFunc. GetSession and Close are synchronous.
type Adapter interface {
	// PutSession asynchronously writes key/value with the given TTL
	// (0 uses DefaultTTL) to the session cache (spec.md §6 key
	// conventions: player:<id>:session, player:<id>:pos, etc).
	PutSession(key, value string, ttl time.Duration)
	// GetSession synchronously reads a session-cache key. Unlike writes,
	// reads are not fire-and-forget (the caller needs the value), but
	// still never blocks the tick for longer than a local store lookup.
	GetSession(key string) (value string, ok bool, err error)
	// LogCombatEvent asynchronously appends a durable combat-log record.
	LogCombatEvent(entry CombatLogEntry)
	// UpdateZoneStatus asynchronously publishes this zone's fleet-status
	// record to the registry.
	UpdateZoneStatus(status ZoneStatus)
	// Close releases any held resources (connections, background workers).
	Close() error
}

// Offline is the no-op Adapter, used when no backend is configured
// (mirrors the teacher's cloud.go Offline struct exactly).
type Offline struct{}

func (Offline) PutSession(string, string, time.Duration)      {}
func (Offline) GetSession(string) (string, bool, error)       { return "", false, nil }
func (Offline) LogCombatEvent(CombatLogEntry)                 {}
func (Offline) UpdateZoneStatus(ZoneStatus)                    {}
func (Offline) Close() error                                   { return nil }

var _ Adapter = Offline{}
