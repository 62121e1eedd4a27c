// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package aoi

import (
	"testing"

	"github.com/boundlessrealms/zoneserver/world"
)

func TestTierOfBoundaries(t *testing.T) {
	cases := []struct {
		dist float32
		want Tier
	}{
		{0, TierNear},
		{NearRadius, TierNear},
		{NearRadius + 0.01, TierMid},
		{MidRadius, TierMid},
		{FarRadius, TierFar},
		{FarRadius + 0.01, TierBeyond},
	}
	for _, c := range cases {
		if got := TierOf(c.dist); got != c.want {
			t.Fatalf("TierOf(%v) = %v, want %v", c.dist, got, c.want)
		}
	}
}

func TestSelectExcludesBeyondAndOrdersByTierThenDistance(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, DistanceSq: 40 * 40, Tier: TierMid},
		{ID: 2, DistanceSq: 10 * 10, Tier: TierNear},
		{ID: 3, DistanceSq: 250 * 250, Tier: TierBeyond},
		{ID: 4, DistanceSq: 20 * 20, Tier: TierNear},
	}
	selected := Select(candidates, 0)
	if len(selected) != 3 {
		t.Fatalf("expected 3 candidates (beyond excluded), got %d", len(selected))
	}
	if selected[0].ID != 2 || selected[1].ID != 4 || selected[2].ID != 1 {
		t.Fatalf("expected near-closest, near-farther, mid order, got %+v", selected)
	}
}

func TestSelectRespectsCap(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, Candidate{ID: world.EntityID(i), DistanceSq: float32(i), Tier: TierNear})
	}
	selected := Select(candidates, 3)
	if len(selected) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(selected))
	}
}

func TestViewerStateEnterLeave(t *testing.T) {
	vs := NewViewerState()

	d1 := vs.Advance(0, []Candidate{{ID: 1, Tier: TierNear}, {ID: 2, Tier: TierNear}})
	if len(d1.Entered) != 2 {
		t.Fatalf("expected both entities to enter on first tick, got %+v", d1.Entered)
	}
	if len(d1.Left) != 0 {
		t.Fatalf("expected no departures on first tick, got %+v", d1.Left)
	}

	d2 := vs.Advance(1, []Candidate{{ID: 1, Tier: TierNear}})
	if len(d2.Entered) != 0 {
		t.Fatalf("expected no new entries, got %+v", d2.Entered)
	}
	if len(d2.Left) != 1 || d2.Left[0] != 2 {
		t.Fatalf("expected entity 2 to leave, got %+v", d2.Left)
	}
}

func TestViewerStateRespectsTierInterval(t *testing.T) {
	vs := NewViewerState()
	farInterval := TierFar.IntervalTicks()

	// First observation is always due.
	d0 := vs.Advance(0, []Candidate{{ID: 1, Tier: TierFar}})
	if len(d0.Due) != 1 {
		t.Fatal("expected first observation of a far entity to be due")
	}

	// Before the interval elapses, it should not be due again.
	d1 := vs.Advance(1, []Candidate{{ID: 1, Tier: TierFar}})
	if len(d1.Due) != 0 {
		t.Fatalf("expected far entity not due before interval elapses, got %+v", d1.Due)
	}

	d2 := vs.Advance(farInterval, []Candidate{{ID: 1, Tier: TierFar}})
	if len(d2.Due) != 1 {
		t.Fatalf("expected far entity due again once interval elapses, got %+v", d2.Due)
	}
}

func TestTierFieldsDropMoreAtGreaterDistance(t *testing.T) {
	near := TierNear.Fields()
	mid := TierMid.Fields()
	far := TierFar.Fields()

	if mid&FieldAnimation != 0 {
		t.Fatal("mid tier must drop animation")
	}
	if far&FieldVelocity != 0 || far&FieldAnimation != 0 {
		t.Fatal("far tier must drop velocity and animation")
	}
	if near&FieldAnimation == 0 {
		t.Fatal("near tier must retain animation")
	}
}
