package history

import (
	"time"

	"github.com/boundlessrealms/zoneserver/world"
)

// MaxCompensation is the cutoff past which lag compensation is refused and
// the attack is resolved at present time instead (spec.md §4.3).
const MaxCompensation = 500 * time.Millisecond

// AttackTime computes the timestamp at which a ranged/melee claim should be
// resolved: clientTimestamp + rtt/2 (spec.md §4.3), clamped to "now" if the
// requested rewind exceeds MaxCompensation (boundary behavior B2).
func AttackTime(now time.Time, clientTimestamp time.Time, rtt time.Duration) (attackTime time.Time, compensated bool) {
	attackTime = clientTimestamp.Add(rtt / 2)
	if now.Sub(attackTime) > MaxCompensation {
		return now, false
	}
	return attackTime, true
}

// Compensator resolves a target's historical position for hit validation.
type Compensator struct {
	store *Store
}

func NewCompensator(store *Store) *Compensator {
	return &Compensator{store: store}
}

// PositionAt returns the target's compensated state at attackTime, or
// ErrTooOld if no history extends back that far. The reader lock in Ring.At
// permits concurrent lookups while the tick thread briefly holds the writer
// lock during Push (spec.md §4.3, §5).
func (c *Compensator) PositionAt(targetID world.EntityID, attackTime time.Time) (Sample, error) {
	ring := c.store.Ring(targetID)
	return ring.At(attackTime.UnixNano())
}
