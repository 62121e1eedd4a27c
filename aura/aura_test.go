package aura

import (
	"testing"
	"time"

	"github.com/boundlessrealms/zoneserver/bus"
	"github.com/boundlessrealms/zoneserver/migrate"
	"github.com/boundlessrealms/zoneserver/world"
)

// TestCrossedThreshold exercises spec.md §8 boundary behavior B1: an entity
// exactly at the aura buffer is a ghost there, but migration only starts
// once it is MigrationThreshold past the border.
func TestCrossedThreshold(t *testing.T) {
	cases := []struct {
		distPastBorder float32
		want           bool
	}{
		{0, false},
		{MigrationThreshold - 1, false},
		{MigrationThreshold, true},
		{MigrationThreshold + 10, true},
	}
	for _, c := range cases {
		if got := CrossedThreshold(c.distPastBorder); got != c.want {
			t.Errorf("CrossedThreshold(%v) = %v, want %v", c.distPastBorder, got, c.want)
		}
	}
}

// TestEgressIngestRoundTrip verifies an owned entity published from one
// zone's Tracker arrives as a ghost in its neighbor's Tracker, and that the
// ghost is not published when the entity is outside every boundary buffer.
func TestEgressIngestRoundTrip(t *testing.T) {
	b, err := bus.New(":memory:")
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	defer b.Close()

	source := NewTracker(1, b, map[Direction]world.ZoneID{East: 2})
	target := NewTracker(2, b, map[Direction]world.ZoneID{West: 1})

	snap := migrate.EntitySnapshot{EntityID: 42}

	// Inside the east boundary buffer: should publish to zone 2.
	source.Egress(0, snap, map[Direction]float32{East: 10})
	target.Ingest(time.Now())
	if _, ok := target.Ghosts()[42]; !ok {
		t.Fatal("expected entity 42 to appear as a ghost in the neighbor zone")
	}

	// Far outside any boundary buffer: nothing new should publish. The
	// existing ghost is dropped with Forget first, so it can only reappear
	// if Egress publishes it again.
	target.Forget(42)
	source.Egress(world.TickRate, snap, map[Direction]float32{East: Buffer + 1})
	target.Ingest(time.Now())
	if _, ok := target.Ghosts()[42]; ok {
		t.Fatal("entity outside the boundary buffer should not be republished as a ghost")
	}
}

// TestIngestEvictsStaleGhosts confirms ghosts older than StaleAfter are
// removed even without a gap in publication (spec.md §4.10).
func TestIngestEvictsStaleGhosts(t *testing.T) {
	b, err := bus.New(":memory:")
	if err != nil {
		t.Fatalf("bus.New: %v", err)
	}
	defer b.Close()

	tr := NewTracker(2, b, nil)
	tr.ghosts[7] = &Ghost{EntityID: 7, ReceivedAt: time.Now().Add(-StaleAfter * 2)}
	tr.Ingest(time.Now())
	if _, ok := tr.Ghosts()[7]; ok {
		t.Fatal("ghost older than StaleAfter should have been evicted")
	}
}
