// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package snapshot

import (
	"bytes"
	"testing"

	"github.com/boundlessrealms/zoneserver/world"
)

func TestQuantizePositionRoundTrips(t *testing.T) {
	v := world.ToFixed(12.5)
	q := QuantizePosition(v)
	back := DequantizePosition(q)
	if diff := back.Float() - v.Float(); diff > 0.02 || diff < -0.02 {
		t.Fatalf("round trip drifted too much: %v vs %v", v.Float(), back.Float())
	}
}

func TestPositionChangedTolerance(t *testing.T) {
	a := world.ToFixed(10.0)
	tiny := world.ToFixed(10.02) // well under 6cm
	big := world.ToFixed(10.2)   // well over 6cm
	if PositionChanged(a, tiny) {
		t.Fatal("sub-tolerance movement should not count as changed")
	}
	if !PositionChanged(a, big) {
		t.Fatal("movement beyond tolerance should count as changed")
	}
}

func TestEncodeDecodeDeltaRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, 126, -126, 127, -127, 1000, -1000, 40000, -40000}
	for _, v := range cases {
		buf := EncodeDelta(nil, v)
		got, n, err := DecodeDelta(buf)
		if err != nil {
			t.Fatalf("DecodeDelta(%v): %v", v, err)
		}
		if n != len(buf) {
			t.Fatalf("DecodeDelta(%v) consumed %d, want %d", v, n, len(buf))
		}
		if got != v {
			t.Fatalf("round trip %v -> %v", v, got)
		}
	}
}

func TestEncodeDeltaSizeByMagnitude(t *testing.T) {
	if n := len(EncodeDelta(nil, 50)); n != 1 {
		t.Fatalf("small delta should be 1 byte, got %d", n)
	}
	if n := len(EncodeDelta(nil, 1000)); n != 3 {
		t.Fatalf("medium delta should be 3 bytes, got %d", n)
	}
	if n := len(EncodeDelta(nil, 100000)); n != 5 {
		t.Fatalf("large delta should be 5 bytes, got %d", n)
	}
}

func TestBuildMaskFullSnapshotIncludesEverything(t *testing.T) {
	curr := EntityState{ID: 1, Health: 100}
	mask := BuildMask(nil, curr)
	if mask == 0 {
		t.Fatal("full snapshot mask must be non-empty")
	}
	if mask&FieldHealth == 0 || mask&FieldPositionX == 0 {
		t.Fatal("full snapshot must include health and position")
	}
}

func TestBuildMaskOnlyFlagsChangedFields(t *testing.T) {
	base := EntityState{ID: 1, Position: world.Vec2FromFloat(0, 0), Health: 100}
	curr := base
	curr.Health = 80 // only health changes
	mask := BuildMask(&base, curr)
	if mask != FieldHealth {
		t.Fatalf("expected only FieldHealth set, got %v", mask)
	}
}

func TestEntityDeltaEncodeDecodeRoundTrip(t *testing.T) {
	base := EntityState{
		ID:       7,
		Position: world.Vec2FromFloat(100, 50),
		Yaw:      world.Angle(0.5),
		Health:   90,
		Kind:     world.KindPlayer,
	}
	curr := base
	curr.Position.X = world.ToFixed(103.0)
	curr.Health = 70

	mask := BuildMask(&base, curr)
	var buf bytes.Buffer
	EncodeEntityDelta(&buf, &base, curr, mask)

	decoded, n, err := DecodeEntityDelta(buf.Bytes(), &base)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != buf.Len() {
		t.Fatalf("consumed %d of %d bytes", n, buf.Len())
	}
	if decoded.ID != curr.ID {
		t.Fatalf("id mismatch: %v vs %v", decoded.ID, curr.ID)
	}
	if diff := decoded.Position.X.Float() - curr.Position.X.Float(); diff > 0.02 || diff < -0.02 {
		t.Fatalf("position x drifted: %v vs %v", decoded.Position.X.Float(), curr.Position.X.Float())
	}
	if decoded.Health != curr.Health {
		t.Fatalf("health mismatch: %v vs %v", decoded.Health, curr.Health)
	}
	// Unchanged field (Yaw) must be carried over from baseline.
	if decoded.Yaw != base.Yaw {
		t.Fatalf("expected unmasked yaw to carry over from baseline, got %v", decoded.Yaw)
	}
}

func TestBaselineStoreSelectFallsBackToFullOutsideWindow(t *testing.T) {
	store := NewBaselineStore()
	store.Record(5, map[world.EntityID]EntityState{1: {ID: 1, Health: 100}})

	if _, tick, full := store.SelectBaseline(0); !full || tick != 0 {
		t.Fatal("ack tick 0 must always mean full snapshot")
	}
	if _, _, full := store.SelectBaseline(999); !full {
		t.Fatal("an ack tick never recorded must fall back to full snapshot")
	}
	states, tick, full := store.SelectBaseline(5)
	if full || tick != 5 {
		t.Fatal("a recorded, in-window tick must be usable as a baseline")
	}
	if states[1].Health != 100 {
		t.Fatal("baseline states must match what was recorded")
	}
}

func TestBaselineStoreEvictsOutsideHistoryDepth(t *testing.T) {
	store := NewBaselineStore()
	store.Record(1, map[world.EntityID]EntityState{1: {ID: 1}})
	store.Record(1+HistoryDepth, map[world.EntityID]EntityState{1: {ID: 1, Health: 5}})

	if _, _, full := store.SelectBaseline(1); !full {
		t.Fatal("tick 1's slot has been overwritten by tick 1+HistoryDepth and must no longer resolve")
	}
}

func TestPacketEncodeHeaderRoundTrip(t *testing.T) {
	p := Packet{ServerTick: 42, BaselineTick: 10, Removed: []world.EntityID{3, 4}, EntityCount: 2}
	wire := p.Encode()
	st, bt, ec, rc, err := DecodePacketHeader(wire)
	if err != nil {
		t.Fatalf("DecodePacketHeader: %v", err)
	}
	if st != 42 || bt != 10 || ec != 2 || rc != 2 {
		t.Fatalf("header mismatch: %d %d %d %d", st, bt, ec, rc)
	}
}

func TestBuildOmitsUnchangedEntities(t *testing.T) {
	base := EntityState{ID: 1, Position: world.Vec2FromFloat(0, 0), Health: 100}
	baseline := map[world.EntityID]EntityState{1: base}
	visible := []EntityState{base} // identical to baseline
	pkt := Build(10, 5, visible, baseline, nil)
	if pkt.EntityCount != 0 {
		t.Fatalf("expected unchanged entity to be omitted, got count=%d", pkt.EntityCount)
	}
}

func TestBuildIncludesChangedEntities(t *testing.T) {
	base := EntityState{ID: 1, Position: world.Vec2FromFloat(0, 0), Health: 100}
	baseline := map[world.EntityID]EntityState{1: base}
	curr := base
	curr.Health = 50
	pkt := Build(10, 5, []EntityState{curr}, baseline, nil)
	if pkt.EntityCount != 1 {
		t.Fatalf("expected changed entity to be included, got count=%d", pkt.EntityCount)
	}
}
