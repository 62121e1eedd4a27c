// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package sector

import (
	"testing"

	"github.com/boundlessrealms/zoneserver/world"
)

func TestIndexInsertAndQuery(t *testing.T) {
	idx := New(DefaultCellSize)
	a := world.EntityID(1)
	b := world.EntityID(2)
	far := world.EntityID(3)

	idx.Insert(a, world.Vec2FromFloat(0, 0))
	idx.Insert(b, world.Vec2FromFloat(10, 10))
	idx.Insert(far, world.Vec2FromFloat(10000, 10000))

	found := map[world.EntityID]bool{}
	idx.Query(world.Vec2FromFloat(0, 0), 50, func(id world.EntityID) {
		found[id] = true
	})

	if !found[a] || !found[b] {
		t.Fatalf("expected a and b in range, got %v", found)
	}
	if found[far] {
		t.Fatalf("did not expect far entity in range")
	}
}

func TestIndexMoveUpdatesCell(t *testing.T) {
	idx := New(DefaultCellSize)
	a := world.EntityID(1)
	idx.Insert(a, world.Vec2FromFloat(0, 0))
	idx.Move(a, world.Vec2FromFloat(10000, 10000))

	foundNear := false
	idx.Query(world.Vec2FromFloat(0, 0), 50, func(id world.EntityID) {
		if id == a {
			foundNear = true
		}
	})
	if foundNear {
		t.Fatal("entity should have moved away from its old cell")
	}

	foundFar := false
	idx.Query(world.Vec2FromFloat(10000, 10000), 50, func(id world.EntityID) {
		if id == a {
			foundFar = true
		}
	})
	if !foundFar {
		t.Fatal("entity should be found at its new position")
	}
}

func TestIndexRemove(t *testing.T) {
	idx := New(DefaultCellSize)
	a := world.EntityID(1)
	idx.Insert(a, world.Vec2FromFloat(0, 0))
	idx.Remove(a)
	if idx.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", idx.Count())
	}
}
