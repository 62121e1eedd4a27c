// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package aoi implements spec.md §4.6: tiered area-of-interest visibility,
// per-client enter/leave tracking, and priority selection. Grounded on the
// teacher's outbound.go Update/Contact pattern (building a per-client view
// each tick), generalized from "send everyone in radius" to the spec's
// tiered, rate-limited selection.
package aoi

import (
	"sort"

	"github.com/boundlessrealms/zoneserver/world"
)

// Tier is a distance class with its own send frequency and field-culling
// policy (spec.md glossary: "Tier (AOI)").
type Tier uint8

const (
	TierNear Tier = iota
	TierMid
	TierFar
	TierBeyond // excluded entirely
)

// Tier radii and send-rate defaults, per spec.md §4.6.
const (
	NearRadius = 50.0
	MidRadius  = 100.0
	FarRadius  = 200.0

	NearHz = 20
	MidHz  = 10
	FarHz  = 5
)

// DefaultCap is the default maximum number of visible entities per viewer
// (spec.md §4.6 step 3).
const DefaultCap = 100

func (t Tier) IntervalTicks() uint32 {
	switch t {
	case TierNear:
		return world.TickRate / NearHz
	case TierMid:
		return world.TickRate / MidHz
	case TierFar:
		return world.TickRate / FarHz
	default:
		return 0
	}
}

// TierOf classifies a distance into a Tier (spec.md §4.6 step 2).
func TierOf(distance float32) Tier {
	switch {
	case distance <= NearRadius:
		return TierNear
	case distance <= MidRadius:
		return TierMid
	case distance <= FarRadius:
		return TierFar
	default:
		return TierBeyond
	}
}

// Candidate is an entity considered for a viewer's visible set.
type Candidate struct {
	ID           world.EntityID
	DistanceSq   float32
	Tier         Tier
}

// Select reduces raw candidates to the capped, tier-then-distance-ordered
// visible list (spec.md §4.6 steps 1-3). cap<=0 uses DefaultCap.
func Select(candidates []Candidate, cap int) []Candidate {
	if cap <= 0 {
		cap = DefaultCap
	}
	filtered := candidates[:0:0]
	for _, c := range candidates {
		if c.Tier == TierBeyond {
			continue
		}
		filtered = append(filtered, c)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Tier != filtered[j].Tier {
			return filtered[i].Tier < filtered[j].Tier
		}
		return filtered[i].DistanceSq < filtered[j].DistanceSq
	})
	if len(filtered) > cap {
		filtered = filtered[:cap]
	}
	return filtered
}

// ViewerState tracks one viewer's per-candidate last-sent tick, to decide
// update-due and to compute enter/leave deltas (spec.md §4.6 steps 4-5).
type ViewerState struct {
	lastSentTick map[world.EntityID]uint32
	visible      map[world.EntityID]bool
}

func NewViewerState() *ViewerState {
	return &ViewerState{
		lastSentTick: make(map[world.EntityID]uint32),
		visible:      make(map[world.EntityID]bool),
	}
}

// Delta is the result of advancing a viewer by one tick: who to include in
// the outgoing snapshot (update-due) and who just entered/left visibility.
type Delta struct {
	Due     []world.EntityID
	Entered []world.EntityID
	Left    []world.EntityID
}

// Advance computes update-due and enter/leave deltas for currentTick given
// this tick's selected candidates (spec.md §4.6 steps 4-5).
func (vs *ViewerState) Advance(currentTick uint32, selected []Candidate) Delta {
	var d Delta
	nowVisible := make(map[world.EntityID]bool, len(selected))

	for _, c := range selected {
		nowVisible[c.ID] = true
		if !vs.visible[c.ID] {
			d.Entered = append(d.Entered, c.ID)
		}
		last, ok := vs.lastSentTick[c.ID]
		interval := c.Tier.IntervalTicks()
		if !ok || interval == 0 || currentTick-last >= interval {
			d.Due = append(d.Due, c.ID)
			vs.lastSentTick[c.ID] = currentTick
		}
	}

	for id := range vs.visible {
		if !nowVisible[id] {
			d.Left = append(d.Left, id)
			delete(vs.lastSentTick, id)
		}
	}

	vs.visible = nowVisible
	return d
}

// FieldMask controls which fields are culled for a given tier (spec.md
// §4.6: "mid tier drops animation state; far tier drops animation and
// velocity, and positions may be coarsened").
type FieldMask uint8

const (
	FieldPosition FieldMask = 1 << iota
	FieldVelocity
	FieldRotation
	FieldAnimation
	FieldHealth
)

func (t Tier) Fields() FieldMask {
	switch t {
	case TierNear:
		return FieldPosition | FieldVelocity | FieldRotation | FieldAnimation | FieldHealth
	case TierMid:
		return FieldPosition | FieldVelocity | FieldRotation | FieldHealth
	case TierFar:
		return FieldPosition | FieldRotation | FieldHealth
	default:
		return 0
	}
}
