// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package persistence

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/guregu/dynamo"
)

// combatLogRecord is the DynamoDB item shape for one durable combat event,
// grounded on the teacher's cloud/db/dynamodb.go Score/Server item structs
// (plain tagged fields, one table per concern).
type combatLogRecord struct {
	ZoneID    uint32 `dynamo:"zone_id"`
	Sequence  int64  `dynamo:"sequence"`
	Source    uint32 `dynamo:"source"`
	Target    uint32 `dynamo:"target"`
	Amount    float32 `dynamo:"amount"`
	Crit      bool   `dynamo:"crit"`
	EventType uint8  `dynamo:"event_type"`
	Timestamp int64  `dynamo:"timestamp"`
}

type registryRecord struct {
	ZoneID       uint32   `dynamo:"zone_id"`
	Players      int      `dynamo:"players"`
	TickBudgetOK bool     `dynamo:"tick_budget_ok"`
	Neighbors    []uint32 `dynamo:"neighbors"`
	UpdatedAt    int64    `dynamo:"updated_at"`
}

// DynamoBackend batches combat-log writes and zone-registry updates to
// AWS DynamoDB, grounded on mk48's cloud/db/dynamodb.go (dynamo.Table,
// conditional Put). Both writers are async, served by one background
// goroutine (run), per spec.md §4.13.
type DynamoBackend struct {
	combatTable   dynamo.Table
	registryTable dynamo.Table
	combatCh      chan combatLogRecord
	statusCh      chan registryRecord
	onErr         ErrorFunc
	seq           int64
	done          chan struct{}
}

// NewDynamoBackend opens the combat-log and zone-registry tables for the
// given stage (table names "zoneserver-<stage>-combatlog" and
// "zoneserver-<stage>-registry", mirroring mk48's "mk48-<stage>-scores"
// convention) and starts their async writers.
func NewDynamoBackend(sess *session.Session, stage string, onErr ErrorFunc) *DynamoBackend {
	db := dynamo.New(sess)
	if onErr == nil {
		onErr = func(string, error) {}
	}
	b := &DynamoBackend{
		combatTable:   db.Table("zoneserver-" + stage + "-combatlog"),
		registryTable: db.Table("zoneserver-" + stage + "-registry"),
		combatCh:      make(chan combatLogRecord, 512),
		statusCh:      make(chan registryRecord, 16),
		onErr:         onErr,
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *DynamoBackend) run() {
	statusClosed := false
	combatClosed := false
	for !statusClosed || !combatClosed {
		select {
		case r, ok := <-b.combatCh:
			if !ok {
				combatClosed = true
				b.combatCh = nil
				continue
			}
			if err := b.combatTable.Put(r).Run(); err != nil {
				b.onErr("combat_log_write", fmt.Errorf("persistence: dynamo combat log: %w", err))
			}
		case r, ok := <-b.statusCh:
			if !ok {
				statusClosed = true
				b.statusCh = nil
				continue
			}
			if err := b.registryTable.Put(r).Run(); err != nil {
				b.onErr("zone_status_write", fmt.Errorf("persistence: dynamo registry: %w", err))
			}
		}
	}
	close(b.done)
}

// LogCombatEvent enqueues an async durable write; never blocks the tick.
func (b *DynamoBackend) LogCombatEvent(entry CombatLogEntry) {
	b.seq++
	rec := combatLogRecord{
		ZoneID: entry.ZoneID, Sequence: b.seq,
		Source: uint32(entry.Source), Target: uint32(entry.Target),
		Amount: entry.Amount, Crit: entry.Crit,
		EventType: entry.EventType, Timestamp: entry.Timestamp,
	}
	select {
	case b.combatCh <- rec:
	default:
		b.onErr("combat_log_write", fmt.Errorf("persistence: combat log queue full, dropped sequence %d", rec.Sequence))
	}
}

// UpdateZoneStatus enqueues an async fleet-registry write.
func (b *DynamoBackend) UpdateZoneStatus(status ZoneStatus) {
	rec := registryRecord{
		ZoneID: status.ZoneID, Players: status.Players,
		TickBudgetOK: status.TickBudgetOK, Neighbors: status.Neighbors,
		UpdatedAt: status.UpdatedAt,
	}
	select {
	case b.statusCh <- rec:
	default:
		b.onErr("zone_status_write", fmt.Errorf("persistence: registry queue full, dropped zone %d update", status.ZoneID))
	}
}

// Close drains and stops both writers.
func (b *DynamoBackend) Close() error {
	close(b.combatCh)
	close(b.statusCh)
	<-b.done
	return nil
}
