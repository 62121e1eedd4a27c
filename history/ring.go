// Package history implements the per-entity position-history ring and the
// lag compensator that reads it (spec.md §4.3). No direct teacher
// equivalent exists (mk48 trusts its own client), so the ring shape is
// grounded on the general append-only fixed-capacity buffer idiom the
// teacher uses for ClientList, adapted to a circular array with RWMutex
// reads, per spec.md §5's "Position-history buffers: shared reader-writer
// lock" resource policy.
package history

import (
	"sync"

	"github.com/boundlessrealms/zoneserver/world"
)

// Capacity is the ring size: 120 slots, ~2s at 60Hz (spec.md §4.3).
const Capacity = 120

// Sample is one historical record of an entity's kinematic state.
type Sample struct {
	Timestamp int64 // unix nanos
	Position  world.Vec2
	Velocity  world.Vec2
	Rotation  world.Rotation
}

// Ring is a fixed-capacity circular buffer of Samples for one entity.
// The authoritative zone never rewrites past history (invariant #2): Push
// only ever appends monotonically increasing timestamps.
type Ring struct {
	mu      sync.RWMutex
	samples [Capacity]Sample
	count   int // number of valid samples, saturates at Capacity
	next    int // index to write next
}

// Push appends a new sample, overwriting the oldest once full. Only the
// tick thread (physics phase) calls this (spec.md §5).
func (r *Ring) Push(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count > 0 {
		last := r.samples[(r.next-1+Capacity)%Capacity]
		if s.Timestamp < last.Timestamp {
			panic("history: non-monotonic push violates invariant #2")
		}
	}
	r.samples[r.next] = s
	r.next = (r.next + 1) % Capacity
	if r.count < Capacity {
		r.count++
	}
}

// ErrTooOld is returned by At when targetTime predates the oldest sample.
type ErrTooOld struct{}

func (ErrTooOld) Error() string { return "history: target timestamp older than oldest sample" }

// At interpolates the entity's state at targetTime between the two
// bracketing samples (spec.md §4.3). Safe for concurrent use alongside
// Push via the reader lock.
func (r *Ring) At(targetTime int64) (Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return Sample{}, ErrTooOld{}
	}

	oldestIdx := (r.next - r.count + Capacity) % Capacity
	oldest := r.samples[oldestIdx]
	if targetTime < oldest.Timestamp {
		return Sample{}, ErrTooOld{}
	}

	newestIdx := (r.next - 1 + Capacity) % Capacity
	newest := r.samples[newestIdx]
	if targetTime >= newest.Timestamp {
		return newest, nil
	}

	// Binary search over the logical (oldest..newest) ordering for the
	// first sample whose timestamp is >= targetTime.
	lo, hi := 0, r.count-1
	for lo < hi {
		mid := (lo + hi) / 2
		idx := (oldestIdx + mid) % Capacity
		if r.samples[idx].Timestamp < targetTime {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	afterIdx := (oldestIdx + lo) % Capacity
	after := r.samples[afterIdx]
	if after.Timestamp == targetTime || lo == 0 {
		return after, nil
	}
	beforeIdx := (oldestIdx + lo - 1 + Capacity) % Capacity
	before := r.samples[beforeIdx]

	span := after.Timestamp - before.Timestamp
	if span <= 0 {
		return after, nil
	}
	factor := float32(targetTime-before.Timestamp) / float32(span)

	return Sample{
		Timestamp: targetTime,
		Position:  before.Position.Lerp(after.Position, factor),
		Velocity:  before.Velocity.Lerp(after.Velocity, factor),
		Rotation: world.Rotation{
			Yaw:   before.Rotation.Yaw.Lerp(after.Rotation.Yaw, factor),
			Pitch: before.Rotation.Pitch.Lerp(after.Rotation.Pitch, factor),
		},
	}, nil
}

// Len returns the number of valid samples currently stored.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Store holds one Ring per entity.
type Store struct {
	mu    sync.Mutex
	rings map[world.EntityID]*Ring
}

func NewStore() *Store {
	return &Store{rings: make(map[world.EntityID]*Ring)}
}

// Ring returns (creating if necessary) the Ring for id.
func (s *Store) Ring(id world.EntityID) *Ring {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rings[id]
	if !ok {
		r = &Ring{}
		s.rings[id] = r
	}
	return r
}

// Forget drops the Ring for a despawned entity.
func (s *Store) Forget(id world.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rings, id)
}
