// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sector implements the uniform-grid spatial index of spec.md §4.1:
// a hash from 2D cell to entity set with O(1) insert/remove and square-of-
// cells range queries. Grounded on the teacher's world/sector/world.go
// sparse-set-of-sectors addressing, simplified from mk48's growable
// power-of-2 slice layout to a plain map since the spec asks only for O(1)
// access and a configurable cell size, not a specific resize strategy.
package sector

import (
	"github.com/boundlessrealms/zoneserver/world"
)

// DefaultCellSize is the default cell edge length in world units (spec.md §4.1).
const DefaultCellSize = 32

// CellID addresses one cell of the grid.
type CellID struct {
	X, Y int32
}

// Index is the spatial index. Not safe for concurrent use; only read or
// written from the tick thread (spec.md §5).
type Index struct {
	cellSize float32
	cells    map[CellID][]world.EntityID
	posOf    map[world.EntityID]CellID
}

// New creates an Index with the given cell size in world units.
func New(cellSize float32) *Index {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Index{
		cellSize: cellSize,
		cells:    make(map[CellID][]world.EntityID),
		posOf:    make(map[world.EntityID]CellID),
	}
}

func (idx *Index) cellOf(p world.Vec2) CellID {
	x, y := p.Float()
	return CellID{
		X: int32(x / idx.cellSize),
		Y: int32(y / idx.cellSize),
	}
}

// Insert adds id at position p to the index.
func (idx *Index) Insert(id world.EntityID, p world.Vec2) {
	cell := idx.cellOf(p)
	idx.cells[cell] = append(idx.cells[cell], id)
	idx.posOf[id] = cell
}

// Remove drops id from the index.
func (idx *Index) Remove(id world.EntityID) {
	cell, ok := idx.posOf[id]
	if !ok {
		return
	}
	bucket := idx.cells[cell]
	for i, other := range bucket {
		if other == id {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket = bucket[:last]
			break
		}
	}
	if len(bucket) == 0 {
		delete(idx.cells, cell)
	} else {
		idx.cells[cell] = bucket
	}
	delete(idx.posOf, id)
}

// Move updates id's position, removing the old-cell entry and inserting
// the new-cell entry only when the cell actually changed (spec.md §4.1:
// "on every movement the old-cell entry is removed and the new-cell entry
// inserted").
func (idx *Index) Move(id world.EntityID, newPos world.Vec2) {
	newCell := idx.cellOf(newPos)
	if oldCell, ok := idx.posOf[id]; ok && oldCell == newCell {
		return
	}
	idx.Remove(id)
	idx.Insert(id, newPos)
}

// Query invokes fn for every entity in the square of cells covering center
// within radius (approximate: cell-granular, not a precise circle -- callers
// that need exact distance filter again on the returned candidates, which
// every caller in this repo already does).
func (idx *Index) Query(center world.Vec2, radius float32, fn func(id world.EntityID)) {
	cx, cy := center.Float()
	cellRadius := int32(radius/idx.cellSize) + 1
	centerCell := idx.cellOf(center)
	for dy := -cellRadius; dy <= cellRadius; dy++ {
		for dx := -cellRadius; dx <= cellRadius; dx++ {
			cell := CellID{X: centerCell.X + dx, Y: centerCell.Y + dy}
			for _, id := range idx.cells[cell] {
				fn(id)
			}
		}
	}
	_ = cx
	_ = cy
}

// Count returns the number of tracked (id -> cell) entries.
func (idx *Index) Count() int {
	return len(idx.posOf)
}
