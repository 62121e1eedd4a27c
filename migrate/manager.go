package migrate

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/boundlessrealms/zoneserver/bus"
	"github.com/boundlessrealms/zoneserver/log"
	"github.com/boundlessrealms/zoneserver/world"
)

// Migration is one entity's in-flight handoff, held on whichever side
// (source or target) is tracking it locally; the pair of records across
// the two zones are correlated by (SourceZone, Sequence).
type Migration struct {
	EntityID   world.EntityID
	PlayerID   world.PlayerID
	Sequence   uint64
	State      State
	SourceZone uint32
	TargetZone uint32
	Snapshot   EntitySnapshot
	Deadline   time.Time

	// HandoffToken, HandoffHost and HandoffPort are filled in once
	// ReadyToHandoff and SetHandoffAddr have run, and are copied onto the
	// Outcome handleComplete returns so the zone loop's ZONE_HANDOFF send
	// path has real values (spec.md §4.11 step 4).
	HandoffToken string
	HandoffHost  string
	HandoffPort  int
}

func (m *Migration) deadlineFor(s State, now time.Time) time.Time {
	if d, ok := Deadlines[s]; ok {
		return now.Add(d)
	}
	return now.Add(5 * time.Second)
}

// CapacityCheck reports whether this zone is at capacity; returning true
// causes a MIGRATION_REQUEST to be declined with a MIGRATION_STATE reply of
// state Failed (spec.md §9 Open Question resolution, see DESIGN.md).
type CapacityCheck func() (atCapacity bool)

// Manager drives spec.md §4.11's state machine for every entity currently
// migrating into or out of this zone. It owns no network transport of its
// own: all cross-zone traffic goes through the shared bus.Bus, and the
// caller (zone/loop.go) is responsible for calling Poll once per tick and
// for acting on the Completed/Failed outcomes Poll and Tick report (destroy
// the local entity, construct the shadow copy, send ZONE_HANDOFF, etc).
type Manager struct {
	zoneID  world.ZoneID
	bus     *bus.Bus
	issuer  *TokenIssuer
	cap     CapacityCheck
	cursor  uint64
	seq     uint64

	// outgoing holds migrations this zone is the source for, keyed by the
	// local entity id.
	outgoing map[world.EntityID]*Migration
	// incoming holds shadow migrations this zone is the target for, keyed
	// by (source zone, sequence) since the entity has no local id yet
	// until COMPLETING.
	incoming map[incomingKey]*Migration

	logger interface {
		Warnf(format string, args ...interface{})
	}
}

type incomingKey struct {
	sourceZone uint32
	sequence   uint64
}

// NewManager builds a Manager for zoneID, publishing/polling on b and
// signing reconnect tokens with issuer. cap is consulted on every inbound
// MIGRATION_REQUEST.
func NewManager(zoneID world.ZoneID, b *bus.Bus, issuer *TokenIssuer, cap CapacityCheck) *Manager {
	return &Manager{
		zoneID:   zoneID,
		bus:      b,
		issuer:   issuer,
		cap:      cap,
		outgoing: make(map[world.EntityID]*Migration),
		incoming: make(map[incomingKey]*Migration),
		logger:   log.For("migrate"),
	}
}

// Outcome reports a migration reaching a terminal state, for the zone loop
// to act on (destroy the local entity, finish constructing the shadow
// copy, etc).
type Outcome struct {
	Migration *Migration
	Completed bool // false means Failed
	Token     string
	TargetHost string
	TargetPort int
}

// nextSequence assigns this zone's next outgoing migration sequence number.
func (m *Manager) nextSequence() uint64 {
	return atomic.AddUint64(&m.seq, 1)
}

// Start begins an outgoing migration for entityID to targetZone (spec.md
// §4.11 PREPARING: "source zone captures a full EntitySnapshot ... and
// sends a request on zone:<target>:messages"). Fired by the zone loop when
// an owned entity crosses the ownership-transfer threshold.
func (m *Manager) Start(entityID world.EntityID, playerID world.PlayerID, targetZone world.ZoneID, snapshot EntitySnapshot, now time.Time) error {
	if _, exists := m.outgoing[entityID]; exists {
		return fmt.Errorf("migrate: entity %d already migrating", entityID)
	}
	seq := m.nextSequence()
	mig := &Migration{
		EntityID:   entityID,
		PlayerID:   playerID,
		Sequence:   seq,
		State:      Preparing,
		SourceZone: uint32(m.zoneID),
		TargetZone: uint32(targetZone),
		Snapshot:   snapshot,
	}
	mig.Deadline = mig.deadlineFor(Preparing, now)
	m.outgoing[entityID] = mig

	payload, err := encodePayload(RequestPayload{Sequence: seq, Snapshot: snapshot})
	if err != nil {
		return fmt.Errorf("migrate: encode request: %w", err)
	}
	_, err = m.bus.Publish(bus.ZoneChannel(uint32(targetZone)), bus.Message{
		Type:       bus.MigrationRequest,
		SourceZone: uint32(m.zoneID),
		Payload:    payload,
	})
	if err != nil {
		delete(m.outgoing, entityID)
		return fmt.Errorf("migrate: publish request: %w", err)
	}
	return nil
}

// PushState publishes a TRANSFERRING progress update for an outgoing
// migration (spec.md §4.11 step 2: "source pushes periodic state updates
// to the target's channel").
func (m *Manager) PushState(entityID world.EntityID, snapshot EntitySnapshot) error {
	mig, ok := m.outgoing[entityID]
	if !ok || mig.State != Transferring {
		return fmt.Errorf("migrate: entity %d not in TRANSFERRING", entityID)
	}
	mig.Snapshot = snapshot
	payload, err := encodePayload(StatePayload{Sequence: mig.Sequence, EntityID: entityID, State: Transferring, Snapshot: &snapshot})
	if err != nil {
		return err
	}
	_, err = m.bus.Publish(bus.ZoneChannel(mig.TargetZone), bus.Message{
		Type:       bus.MigrationState,
		SourceZone: uint32(m.zoneID),
		Payload:    payload,
	})
	return err
}

// ReadyToHandoff advances an outgoing migration from SYNCING to COMPLETING
// (spec.md §4.11 step 4) and mints the one-time reconnect token the zone
// loop hands to the client alongside ZONE_HANDOFF.
func (m *Manager) ReadyToHandoff(entityID world.EntityID, now time.Time) (token string, err error) {
	mig, ok := m.outgoing[entityID]
	if !ok {
		return "", fmt.Errorf("migrate: no outgoing migration for entity %d", entityID)
	}
	next, err := Transition(mig.State, EventReadyToHandoff, now)
	if err != nil {
		return "", err
	}
	mig.State = next
	mig.Deadline = mig.deadlineFor(next, now)
	token, err := m.issuer.Issue(entityID, mig.PlayerID, uint32(m.zoneID), mig.Sequence)
	if err != nil {
		return "", err
	}
	mig.HandoffToken = token
	return token, nil
}

// SetHandoffAddr records the target zone's transport address for an
// outgoing migration that has already reached COMPLETING via
// ReadyToHandoff, so the token it minted and this address travel together
// to the Outcome handleComplete eventually returns.
func (m *Manager) SetHandoffAddr(entityID world.EntityID, host string, port int) {
	if mig, ok := m.outgoing[entityID]; ok {
		mig.HandoffHost = host
		mig.HandoffPort = port
	}
}

// Cancel aborts an in-flight outgoing migration, e.g. on client disconnect
// (spec.md §4.11: "client disconnect aborts an in-flight migration for
// that player's entity").
func (m *Manager) Cancel(entityID world.EntityID, now time.Time) {
	mig, ok := m.outgoing[entityID]
	if !ok {
		return
	}
	next, err := Transition(mig.State, EventClientDisconnected, now)
	if err == nil {
		mig.State = next
	} else {
		mig.State = Failed
	}
	delete(m.outgoing, entityID)
}

// Outgoing returns the current state of an outgoing migration, if any.
func (m *Manager) Outgoing(entityID world.EntityID) (*Migration, bool) {
	mig, ok := m.outgoing[entityID]
	return mig, ok
}

// Tick advances deadlines and drains the bus inbox; called once per zone
// tick. Returns outcomes (Completed/Failed migrations) for the caller to
// act on.
func (m *Manager) Tick(now time.Time) []Outcome {
	var outcomes []Outcome

	for id, mig := range m.outgoing {
		if mig.State.Terminal() {
			continue
		}
		if now.After(mig.Deadline) {
			next, _ := Transition(mig.State, EventTimeout, now)
			mig.State = next
			if mig.State.Terminal() {
				outcomes = append(outcomes, Outcome{Migration: mig, Completed: false})
				delete(m.outgoing, id)
			}
		}
	}
	for k, mig := range m.incoming {
		if mig.State.Terminal() {
			delete(m.incoming, k)
			continue
		}
		if now.After(mig.Deadline) {
			next, _ := Transition(mig.State, EventTimeout, now)
			mig.State = next
			if mig.State.Terminal() {
				delete(m.incoming, k)
			}
		}
	}

	outcomes = append(outcomes, m.drainInbox(now)...)
	return outcomes
}

func (m *Manager) drainInbox(now time.Time) []Outcome {
	var outcomes []Outcome
	msgs, cursor, err := m.bus.Poll(bus.ZoneChannel(uint32(m.zoneID)), m.cursor)
	if err != nil {
		m.logger.Warnf("poll inbox: %v", err)
		return nil
	}
	m.cursor = cursor

	for _, msg := range msgs {
		switch msg.Type {
		case bus.MigrationRequest:
			outcomes = append(outcomes, m.handleRequest(msg, now)...)
		case bus.MigrationState:
			outcomes = append(outcomes, m.handleState(msg, now)...)
		case bus.MigrationComplete:
			outcomes = append(outcomes, m.handleComplete(msg, now)...)
		}
	}
	return outcomes
}

func (m *Manager) handleRequest(msg bus.Message, now time.Time) []Outcome {
	var req RequestPayload
	if err := decodePayload(msg.Payload, &req); err != nil {
		m.logger.Warnf("decode MIGRATION_REQUEST: %v", err)
		return nil
	}
	key := incomingKey{sourceZone: msg.SourceZone, sequence: req.Sequence}

	declined := m.cap != nil && m.cap()
	respType := Transferring
	if declined {
		respType = Failed
	}
	payload, err := encodePayload(StatePayload{Sequence: req.Sequence, EntityID: req.Snapshot.EntityID, State: respType})
	if err != nil {
		m.logger.Warnf("encode MIGRATION_STATE response: %v", err)
		return nil
	}
	if _, err := m.bus.Publish(bus.ZoneChannel(msg.SourceZone), bus.Message{
		Type:       bus.MigrationState,
		SourceZone: uint32(m.zoneID),
		Payload:    payload,
	}); err != nil {
		m.logger.Warnf("publish MIGRATION_STATE response: %v", err)
		return nil
	}

	if declined {
		return nil
	}

	m.incoming[key] = &Migration{
		EntityID:   req.Snapshot.EntityID,
		Sequence:   req.Sequence,
		State:      Transferring,
		SourceZone: msg.SourceZone,
		TargetZone: uint32(m.zoneID),
		Snapshot:   req.Snapshot,
		Deadline:   now.Add(Deadlines[Transferring]),
	}
	return nil
}

func (m *Manager) handleState(msg bus.Message, now time.Time) []Outcome {
	var sp StatePayload
	if err := decodePayload(msg.Payload, &sp); err != nil {
		m.logger.Warnf("decode MIGRATION_STATE: %v", err)
		return nil
	}

	// Source side: this is the target's reply to our PREPARING request or
	// TRANSFERRING push.
	if mig, ok := m.outgoing[sp.EntityID]; ok && mig.Sequence == sp.Sequence {
		var event Event
		switch sp.State {
		case Transferring:
			if mig.State == Preparing {
				event = EventTargetAccepted
			} else {
				event = EventTargetAck
			}
		case Failed:
			event = EventTargetDeclined
		default:
			return nil
		}
		next, err := Transition(mig.State, event, now)
		if err != nil {
			m.logger.Warnf("outgoing transition: %v", err)
			return nil
		}
		mig.State = next
		mig.Deadline = mig.deadlineFor(next, now)
		if next == Failed {
			delete(m.outgoing, sp.EntityID)
			return []Outcome{{Migration: mig, Completed: false}}
		}
		if sp.Snapshot != nil {
			mig.Snapshot = *sp.Snapshot
		}
		return nil
	}

	// Target side: an ack to our own acceptance, or a further push we
	// should echo back (spec.md §4.11 step 2's "target must echo an
	// acknowledgment").
	key := incomingKey{sourceZone: msg.SourceZone, sequence: sp.Sequence}
	if mig, ok := m.incoming[key]; ok && mig.State == Transferring {
		if sp.Snapshot != nil {
			mig.Snapshot = *sp.Snapshot
		}
		mig.State = Syncing
		mig.Deadline = now.Add(Deadlines[Syncing])
		ack, err := encodePayload(StatePayload{Sequence: sp.Sequence, EntityID: mig.EntityID, State: Transferring})
		if err == nil {
			_, _ = m.bus.Publish(bus.ZoneChannel(msg.SourceZone), bus.Message{
				Type:       bus.MigrationState,
				SourceZone: uint32(m.zoneID),
				Payload:    ack,
			})
		}
	}
	return nil
}

// ReconnectArrived is called by transport's Authenticator once a client
// presents a valid reconnect token on this (the target) zone, completing
// spec.md §4.11 step 4's "client re-handshake on the target": the target
// broadcasts MIGRATION_COMPLETE and the shadow copy becomes authoritative.
func (m *Manager) ReconnectArrived(claims ReconnectClaims, now time.Time) (*Migration, error) {
	key := incomingKey{sourceZone: claims.SourceZone, sequence: claims.Sequence}
	mig, ok := m.incoming[key]
	if !ok {
		return nil, fmt.Errorf("migrate: no incoming migration for zone %d sequence %d", claims.SourceZone, claims.Sequence)
	}
	next, err := Transition(mig.State, EventClientReconnected, now)
	if err != nil {
		return nil, err
	}
	mig.State = next

	payload, err := encodePayload(CompletePayload{Sequence: mig.Sequence, EntityID: mig.EntityID, NewZone: uint32(m.zoneID)})
	if err != nil {
		return nil, err
	}
	if _, err := m.bus.Publish(bus.ZoneChannel(claims.SourceZone), bus.Message{
		Type:       bus.MigrationComplete,
		SourceZone: uint32(m.zoneID),
		Payload:    payload,
	}); err != nil {
		return nil, fmt.Errorf("migrate: publish MIGRATION_COMPLETE: %w", err)
	}
	mig.State = Completed
	delete(m.incoming, key)
	return mig, nil
}

func (m *Manager) handleComplete(msg bus.Message, now time.Time) []Outcome {
	var cp CompletePayload
	if err := decodePayload(msg.Payload, &cp); err != nil {
		m.logger.Warnf("decode MIGRATION_COMPLETE: %v", err)
		return nil
	}
	mig, ok := m.outgoing[cp.EntityID]
	if !ok || mig.Sequence != cp.Sequence {
		return nil
	}
	next, err := Transition(mig.State, EventMigrationComplete, now)
	if err != nil {
		m.logger.Warnf("outgoing completion transition: %v", err)
		return nil
	}
	mig.State = next
	delete(m.outgoing, cp.EntityID)
	return []Outcome{{
		Migration:  mig,
		Completed:  true,
		Token:      mig.HandoffToken,
		TargetHost: mig.HandoffHost,
		TargetPort: mig.HandoffPort,
	}}
}
