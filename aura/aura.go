// Package aura implements spec.md §4.10's boundary-overlap ghost tracking:
// neighbor-owned entities mirrored read-only inside this zone's boundary
// buffer, refreshed at 20 Hz over the pub/sub bus and evicted once stale,
// plus the ownership-transfer threshold that tells zone/loop.go when to
// start a migration. No teacher equivalent exists (mk48 is a single server
// with no neighbors); grounded on this repo's own bus package for the
// transport (bus.EntitySync messages on bus.ZoneChannel) and on
// migrate/snapshot.go's EntitySnapshot for the wire shape, so a ghost
// carries exactly the fields AOI/replication need without inventing a
// second snapshot format.
package aura

import (
	"time"

	"github.com/boundlessrealms/zoneserver/bus"
	"github.com/boundlessrealms/zoneserver/migrate"
	"github.com/boundlessrealms/zoneserver/wire"
	"github.com/boundlessrealms/zoneserver/world"
)

// Buffer is the default boundary overlap band, spec.md §4.10.
const Buffer = 50.0

// MigrationThreshold is how far past the border (inside a neighbor's core)
// an owned entity must travel before migration starts (spec.md §4.10,
// boundary behavior B1: "at aura_buffer + 25m inside the neighbor's core,
// migration must have started").
const MigrationThreshold = 25.0

// HandoffThreshold is how far past the border an owned entity must travel,
// while its migration is SYNCING, before the source instructs the client to
// switch connections (spec.md §4.11 step 4, §8 scenario 4: "at aura_buffer +
// 60m, the client must have received ZONE_HANDOFF").
const HandoffThreshold = 60.0

// RefreshHz is the ghost publish rate, spec.md §4.10.
const RefreshHz = 20

// StaleAfter is how long an un-refreshed ghost is kept before eviction
// (spec.md §4.10: "ghost entries older than 200ms are removed").
const StaleAfter = 200 * time.Millisecond

// RefreshInterval is RefreshHz expressed as a tick count at world.TickRate.
const RefreshInterval = world.TickRate / RefreshHz

// Ghost is a read-only mirror of a neighbor-owned entity inside this zone's
// boundary buffer: visible to local AOI, never simulated here.
type Ghost struct {
	EntityID   world.EntityID
	OwnerZone  world.ZoneID
	Snapshot   migrate.EntitySnapshot
	ReceivedAt time.Time
}

// Direction names a boundary edge, matching config.Config.Neighbors' keys.
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
)

// Tracker owns this zone's ghost set and drives egress publication of
// locally-owned entities that fall inside the boundary buffer.
type Tracker struct {
	zoneID    world.ZoneID
	bus       *bus.Bus
	neighbors map[Direction]world.ZoneID
	ghosts    map[world.EntityID]*Ghost
	cursor    uint64
}

// NewTracker builds a Tracker for zoneID, publishing/polling on b and
// projecting into the zones listed in neighbors.
func NewTracker(zoneID world.ZoneID, b *bus.Bus, neighbors map[Direction]world.ZoneID) *Tracker {
	return &Tracker{
		zoneID:    zoneID,
		bus:       b,
		neighbors: neighbors,
		ghosts:    make(map[world.EntityID]*Ghost),
	}
}

// Ghosts returns the currently live ghost set, for AOI candidate building.
func (t *Tracker) Ghosts() map[world.EntityID]*Ghost { return t.ghosts }

// Ingest drains this zone's pub/sub inbox for ENTITY_SYNC messages from
// neighbors and refreshes the corresponding ghost, then evicts anything
// stale (spec.md §4.10 step "refreshed at 20Hz... entries older than
// 200ms are removed"). Called from the pub/sub-drain phase, once per tick.
func (t *Tracker) Ingest(now time.Time) {
	msgs, cursor, err := t.bus.Poll(bus.ZoneChannel(uint32(t.zoneID)), t.cursor)
	if err == nil {
		t.cursor = cursor
		for _, msg := range msgs {
			if msg.Type != bus.EntitySync {
				continue
			}
			var snap migrate.EntitySnapshot
			if err := wire.UnmarshalJSON(msg.Payload, &snap); err != nil {
				continue
			}
			t.ghosts[snap.EntityID] = &Ghost{
				EntityID:   snap.EntityID,
				OwnerZone:  world.ZoneID(msg.SourceZone),
				Snapshot:   snap,
				ReceivedAt: now,
			}
		}
	}

	for id, g := range t.ghosts {
		if now.Sub(g.ReceivedAt) > StaleAfter {
			delete(t.ghosts, id)
		}
	}
}

// Egress publishes an owned entity's current snapshot to every neighbor
// whose boundary buffer it currently overlaps, at RefreshInterval cadence
// (spec.md §5 phase 8, §4.10's 20Hz). distToEdge reports the signed distance
// from the entity to each named boundary (positive = still inside this zone,
// negative = past the border); an edge is published to when that distance is
// at most Buffer. The caller supplies it since only zone/loop.go knows the
// world AABB.
func (t *Tracker) Egress(tick uint32, snap migrate.EntitySnapshot, distToEdge map[Direction]float32) {
	if tick%RefreshInterval != 0 {
		return
	}
	for dir, dist := range distToEdge {
		if dist > Buffer {
			continue // not inside that edge's boundary buffer
		}
		neighbor, ok := t.neighbors[dir]
		if !ok {
			continue
		}
		payload, err := wire.MarshalJSON(snap)
		if err != nil {
			continue
		}
		_, _ = t.bus.Publish(bus.ZoneChannel(uint32(neighbor)), bus.Message{
			Type:       bus.EntitySync,
			SourceZone: uint32(t.zoneID),
			Payload:    payload,
		})
	}
}

// CrossedThreshold reports whether an owned entity at distToEdge past a
// boundary (negative = inside this zone's core, positive = inside the
// neighbor's core) has crossed the ownership-transfer threshold and
// migration should start (spec.md §4.10 boundary behavior B1).
func CrossedThreshold(distPastBorder float32) bool {
	return distPastBorder >= MigrationThreshold
}

// CrossedHandoffThreshold reports whether an entity whose migration is
// already SYNCING has gone far enough past the border to trigger
// COMPLETING (spec.md §4.11 step 4, §8 scenario 4).
func CrossedHandoffThreshold(distPastBorder float32) bool {
	return distPastBorder >= HandoffThreshold
}

// Forget drops a ghost, e.g. once its owning zone reports it migrated
// elsewhere or it left the boundary buffer entirely.
func (t *Tracker) Forget(id world.EntityID) {
	delete(t.ghosts, id)
}
