// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package snapshot

import (
	"bytes"

	"github.com/boundlessrealms/zoneserver/world"
)

// Build assembles a full wire Packet for one viewer: visible is the set of
// entities currently selected by aoi.Select (already tier-culled), baseline
// is the prior tick's state set chosen by BaselineStore.SelectBaseline (nil
// for a full snapshot), and removed lists entities that left visibility or
// were despawned since the baseline tick.
func Build(serverTick, baselineTick uint32, visible []EntityState, baseline map[world.EntityID]EntityState, removed []world.EntityID) Packet {
	var buf bytes.Buffer
	return BuildWithBuffer(&buf, serverTick, baselineTick, visible, baseline, removed)
}

// BuildWithBuffer is Build, but encodes into a caller-supplied scratch
// buffer instead of allocating one: the zone loop pulls buf from the arena
// package's pool so the once-per-viewer-per-tick delta encode doesn't
// allocate. The returned Packet's Deltas aliases buf's backing array, so
// the caller must not reset/reuse buf until Deltas has been fully consumed
// (wire.EncodeSnapshot copies it into a fresh buffer immediately, so it is
// safe to release buf right after that call).
func BuildWithBuffer(buf *bytes.Buffer, serverTick, baselineTick uint32, visible []EntityState, baseline map[world.EntityID]EntityState, removed []world.EntityID) Packet {
	buf.Reset()
	var count uint16
	for _, curr := range visible {
		var basePtr *EntityState
		if baseline != nil {
			if b, ok := baseline[curr.ID]; ok {
				basePtr = &b
			}
		}
		mask := BuildMask(basePtr, curr)
		if mask == 0 && basePtr != nil {
			continue // unchanged since baseline; omit entirely
		}
		EncodeEntityDelta(buf, basePtr, curr, mask)
		count++
	}
	return Packet{
		ServerTick:   serverTick,
		BaselineTick: baselineTick,
		Removed:      removed,
		Deltas:       buf.Bytes(),
		EntityCount:  count,
	}
}
