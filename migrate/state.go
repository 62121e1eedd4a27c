// Package migrate implements spec.md §4.11's entity migration state machine:
// an explicit per-entity state enum with pure (state, event, now) ->
// state transitions (spec.md §9's "not a coroutine" redesign flag), a
// one-time JWT reconnect token, and capacity-aware admission control. No
// teacher equivalent exists -- mk48 is a single-server game with no zone
// handoff -- so the state machine shape is grounded directly on spec.md's
// own description, and the supporting pieces borrow from the rest of the
// pack: golang-jwt/jwt/v5 the way osakka-hd1's auth.Manager signs and
// verifies tokens, and the bus package (this repo, §4.13) for the
// cross-zone transport.
package migrate

import (
	"fmt"
	"time"
)

// State is a position in spec.md §4.11's migration state machine.
type State uint8

const (
	None State = iota
	Preparing
	Transferring
	Syncing
	Completing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case None:
		return "NONE"
	case Preparing:
		return "PREPARING"
	case Transferring:
		return "TRANSFERRING"
	case Syncing:
		return "SYNCING"
	case Completing:
		return "COMPLETING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event drives a migration state transition.
type Event uint8

const (
	// EventBorderCrossed fires when an owned entity crosses the
	// ownership-transfer threshold (spec.md §4.10: 25m past the border).
	EventBorderCrossed Event = iota
	// EventTargetAccepted is the target zone admitting the migration
	// request (not at CAPACITY).
	EventTargetAccepted
	// EventTargetDeclined is the target zone refusing admission.
	EventTargetDeclined
	// EventTargetAck is the target's periodic acknowledgment of a
	// TRANSFERRING state push, advancing to SYNCING.
	EventTargetAck
	// EventReadyToHandoff is the source deciding SYNCING has run long
	// enough / the entity has crossed the handoff geometry threshold
	// (spec.md §8 scenario 4: 60m past the border) to instruct the
	// client to switch connections.
	EventReadyToHandoff
	// EventClientReconnected is the client completing its handshake on
	// the target after receiving ZONE_HANDOFF.
	EventClientReconnected
	// EventMigrationComplete is the target's MIGRATION_COMPLETE broadcast
	// reaching the source.
	EventMigrationComplete
	// EventTimeout is a per-phase deadline expiring (spec.md §5: 5s/3s/2s
	// for PREPARING/SYNCING/COMPLETING by default).
	EventTimeout
	// EventClientDisconnected aborts an in-flight migration for that
	// player's entity (spec.md §4.11).
	EventClientDisconnected
)

func (e Event) String() string {
	switch e {
	case EventBorderCrossed:
		return "BORDER_CROSSED"
	case EventTargetAccepted:
		return "TARGET_ACCEPTED"
	case EventTargetDeclined:
		return "TARGET_DECLINED"
	case EventTargetAck:
		return "TARGET_ACK"
	case EventReadyToHandoff:
		return "READY_TO_HANDOFF"
	case EventClientReconnected:
		return "CLIENT_RECONNECTED"
	case EventMigrationComplete:
		return "MIGRATION_COMPLETE"
	case EventTimeout:
		return "TIMEOUT"
	case EventClientDisconnected:
		return "CLIENT_DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Deadlines are the default per-phase timeouts of spec.md §5.
var Deadlines = map[State]time.Duration{
	Preparing:    5 * time.Second,
	Transferring: 5 * time.Second,
	Syncing:      3 * time.Second,
	Completing:   2 * time.Second,
}

// Transition is a pure function of (current state, event, now); spec.md §9's
// redesign flag explicitly calls for this shape over a coroutine so event
// orderings can be property-tested. now is accepted but unused by the pure
// table itself -- it exists so callers (and tests) can thread a deadline
// clock through without the function needing wall-clock access internally.
func Transition(current State, event Event, _ time.Time) (State, error) {
	switch current {
	case None:
		if event == EventBorderCrossed {
			return Preparing, nil
		}
	case Preparing:
		switch event {
		case EventTargetAccepted:
			return Transferring, nil
		case EventTargetDeclined, EventTimeout, EventClientDisconnected:
			return Failed, nil
		}
	case Transferring:
		switch event {
		case EventTargetAck:
			return Syncing, nil
		case EventTimeout, EventClientDisconnected:
			return Failed, nil
		}
	case Syncing:
		switch event {
		case EventReadyToHandoff, EventClientReconnected:
			return Completing, nil
		case EventTimeout, EventClientDisconnected:
			return Failed, nil
		}
	case Completing:
		switch event {
		case EventMigrationComplete:
			return Completed, nil
		case EventTimeout, EventClientDisconnected:
			return Failed, nil
		}
	case Completed, Failed:
		// Terminal; no event advances further.
	}
	return current, fmt.Errorf("migrate: event %s invalid in state %s", event, current)
}

// Terminal reports whether s is a state from which no further transition is
// possible without starting a fresh migration.
func (s State) Terminal() bool { return s == Completed || s == Failed }
