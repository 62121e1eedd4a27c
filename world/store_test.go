// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "testing"

func TestStoreSpawnDespawn(t *testing.T) {
	s := NewStore(4)
	a := s.Spawn(KindPlayer, Position{}, ToFixed(1), Ownership{})
	b := s.Spawn(KindPlayer, Position{X: ToFixed(5)}, ToFixed(1), Ownership{})

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if !s.Has(a) || !s.Has(b) {
		t.Fatal("expected both entities present")
	}

	pos, ok := s.Position(b)
	if !ok || pos.X != ToFixed(5) {
		t.Fatalf("Position(b) = %v, %v", pos, ok)
	}

	if !s.Despawn(a) {
		t.Fatal("expected Despawn(a) to succeed")
	}
	if s.Has(a) {
		t.Fatal("a should no longer be present")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	// b must have survived the swap-remove unharmed.
	pos, ok = s.Position(b)
	if !ok || pos.X != ToFixed(5) {
		t.Fatalf("Position(b) after despawn(a) = %v, %v", pos, ok)
	}
}

func TestStoreDespawnUnknown(t *testing.T) {
	s := NewStore(1)
	if s.Despawn(EntityID(12345)) {
		t.Fatal("expected Despawn of unknown id to fail")
	}
}

func TestStoreComponentRoundTrip(t *testing.T) {
	s := NewStore(1)
	id := s.Spawn(KindPlayer, Position{}, ToFixed(1), Ownership{OwningZone: 7})

	s.SetVelocity(id, Velocity{X: ToFixed(3)})
	v, _ := s.Velocity(id)
	if v.X != ToFixed(3) {
		t.Fatalf("velocity = %v", v)
	}

	own, ok := s.Ownership(id)
	if !ok || own.OwningZone != 7 {
		t.Fatalf("ownership = %v, %v", own, ok)
	}
}

func TestStoreForEachMatchesIDs(t *testing.T) {
	s := NewStore(3)
	want := map[EntityID]bool{}
	for i := 0; i < 3; i++ {
		id := s.Spawn(KindLoot, Position{}, 0, Ownership{})
		want[id] = true
	}
	got := map[EntityID]bool{}
	s.ForEach(func(id EntityID, idx int) {
		got[id] = true
	})
	if len(got) != len(want) {
		t.Fatalf("ForEach saw %d entities, want %d", len(got), len(want))
	}
	for id := range want {
		if !got[id] {
			t.Errorf("ForEach missed %v", id)
		}
	}
}
