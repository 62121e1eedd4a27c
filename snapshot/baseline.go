// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package snapshot

import (
	"sync"

	"github.com/boundlessrealms/zoneserver/world"
)

// HistoryDepth is the number of past ticks retained for baseline deltas,
// spec.md §4.7 "if that tick is present in the 60-tick history".
const HistoryDepth = 60

// BaselineStore retains the last HistoryDepth ticks' entity states, indexed
// by tick modulo HistoryDepth, mirroring the history package's ring shape
// but keyed by sequential tick number rather than wall-clock timestamp.
type BaselineStore struct {
	mu      sync.RWMutex
	ticks   [HistoryDepth]uint32
	states  [HistoryDepth]map[world.EntityID]EntityState
	filled  [HistoryDepth]bool
	latest  uint32
	hasData bool
}

func NewBaselineStore() *BaselineStore {
	return &BaselineStore{}
}

// Record stores the full entity state set for a tick, evicting whatever
// previously occupied that slot HistoryDepth ticks ago.
func (b *BaselineStore) Record(tick uint32, states map[world.EntityID]EntityState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot := tick % HistoryDepth
	b.ticks[slot] = tick
	b.states[slot] = states
	b.filled[slot] = true
	b.latest = tick
	b.hasData = true
}

// Get returns the recorded state set for tick, if it is still within the
// retained history window.
func (b *BaselineStore) Get(tick uint32) (map[world.EntityID]EntityState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	slot := tick % HistoryDepth
	if !b.filled[slot] || b.ticks[slot] != tick {
		return nil, false
	}
	return b.states[slot], true
}

// SelectBaseline implements spec.md §4.7's baseline-selection rule: if the
// client's last-acknowledged tick is present in the 60-tick history, delta
// against it; otherwise a full snapshot is required (baselineTick=0).
func (b *BaselineStore) SelectBaseline(lastAckedTick uint32) (states map[world.EntityID]EntityState, baselineTick uint32, full bool) {
	if lastAckedTick == 0 {
		return nil, 0, true
	}
	states, ok := b.Get(lastAckedTick)
	if !ok {
		return nil, 0, true
	}
	return states, lastAckedTick, false
}
