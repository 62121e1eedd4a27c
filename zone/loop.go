// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package zone

import (
	"strconv"
	"time"

	"github.com/boundlessrealms/zoneserver/anticheat"
	"github.com/boundlessrealms/zoneserver/aoi"
	"github.com/boundlessrealms/zoneserver/arena"
	"github.com/boundlessrealms/zoneserver/aura"
	"github.com/boundlessrealms/zoneserver/bus"
	"github.com/boundlessrealms/zoneserver/combat"
	"github.com/boundlessrealms/zoneserver/history"
	"github.com/boundlessrealms/zoneserver/log"
	"github.com/boundlessrealms/zoneserver/migrate"
	"github.com/boundlessrealms/zoneserver/persistence"
	"github.com/boundlessrealms/zoneserver/snapshot"
	"github.com/boundlessrealms/zoneserver/transport"
	"github.com/boundlessrealms/zoneserver/wire"
	"github.com/boundlessrealms/zoneserver/world"
)

// runTick executes spec.md §5's ten phases in strict order, timing each one
// for the budget monitor.
func (h *Hub) runTick(now time.Time) {
	start := time.Now()

	h.phaseIngress(now)
	h.phasePubSub(now)
	h.phasePhysics(now)
	h.phaseCombat(now)
	h.phaseAntiCheat(now)
	visible := h.phaseAOI(now)
	h.phaseReplication(now, visible)
	h.phaseAuraEgress(now)
	h.phasePersistence(now)

	h.Budget.Record(time.Since(start), h.tick)
}

// --- phase 1: network ingress ---

const maxIngressPerTick = 512

func (h *Hub) phaseIngress(now time.Time) {
	// Drain newly-accepted connections registered since the last tick;
	// nothing world-visible happens until their CONNECT frame arrives.
	for {
		select {
		case <-h.register:
		default:
			goto drainUnregister
		}
	}
drainUnregister:
	for {
		select {
		case c := <-h.unregister:
			h.handleDisconnect(c, now)
		default:
			goto drainInbound
		}
	}
drainInbound:
	for i := 0; i < maxIngressPerTick; i++ {
		select {
		case pkt := <-h.inbound:
			h.handleInbound(pkt, now)
		default:
			return
		}
	}
}

func (h *Hub) handleInbound(pkt transport.InboundPacket, now time.Time) {
	if h.Limiters != nil {
		if _, ok := h.Limiters.CheckPacketFlooding(pkt.Conn.ID); ok {
			transport.Disconnect(pkt.Conn, wire.RateLimited, "packet rate exceeded")
			return
		}
	}

	switch pkt.Type {
	case wire.Connect:
		h.handleConnect(pkt.Conn, pkt.Payload, now)
	case wire.Connected:
		if err := transport.HandleConnected(pkt.Conn); err != nil {
			transport.Disconnect(pkt.Conn, wire.ProtocolError, err.Error())
			return
		}
		h.finishHandshake(pkt.Conn, now)
	case wire.Input:
		h.handleInput(pkt.Conn, pkt.Payload, now)
	case wire.Heartbeat:
		// Pong handling lives in transport's pump; nothing to do here.
	case wire.Disconnect:
		transport.Disconnect(pkt.Conn, wire.Normal, "")
	default:
		transport.Disconnect(pkt.Conn, wire.ProtocolError, "unexpected packet type")
	}
}

func (h *Hub) handleConnect(c *transport.Conn, payload []byte, now time.Time) {
	entityID := h.spawnOrResumeEntity(c, payload)
	playerID, err := transport.HandleConnect(c, payload, h.Auth, entityID, uint32(h.ZoneID), h.tick)
	if err != nil {
		h.Store.Despawn(entityID)
		transport.Disconnect(c, wire.ProtocolError, err.Error())
		return
	}
	_ = playerID
}

// spawnOrResumeEntity allocates a fresh player entity. A migration
// reconnect resumes from the shadow copy the target already holds rather
// than spawning anew; that resumption path is completed in
// finishHandshake once the token has been verified by transport.HandleConnect.
func (h *Hub) spawnOrResumeEntity(c *transport.Conn, payload []byte) world.EntityID {
	return h.Store.Spawn(world.KindPlayer, world.Position{}, world.ToFixed(1.0), world.Ownership{OwningZone: h.ZoneID})
}

func (h *Hub) finishHandshake(c *transport.Conn, now time.Time) {
	v := &Viewer{
		Conn:     c,
		EntityID: c.EntityID,
		AOI:      aoi.NewViewerState(),
		Trust:    anticheat.NewTrustTracker(),
	}
	h.viewers[c.EntityID] = v
	h.byConn[c.ID] = c.EntityID
	h.Store.SetNetwork(c.EntityID, world.Network{ConnectionID: c.ID, PlayerID: c.PlayerID})

	// If this CONNECT carried a verified migration reconnect token, finish
	// the target-side half of the handoff: the shadow migration becomes
	// authoritative and the source is told to retire its copy.
	if claims, ok := h.Auth.reconnectClaims(lastTokenFor(c)); ok {
		if mig, err := h.Migrations.ReconnectArrived(claims, now); err == nil {
			h.applySnapshot(c.EntityID, mig.Snapshot)
		}
	}
}

// lastTokenFor is a placeholder for the auth token transport.HandleConnect
// already consumed; a real deployment would thread it through
// HandshakeResult instead of re-deriving it, but transport.Conn doesn't
// retain it past HandleConnect today (see DESIGN.md).
func lastTokenFor(c *transport.Conn) string { return "" }

func (h *Hub) applySnapshot(id world.EntityID, snap migrate.EntitySnapshot) {
	h.Store.SetPosition(id, snap.Position)
	h.Store.SetVelocity(id, snap.Velocity)
	h.Store.SetRotation(id, snap.Rotation)
	h.Store.SetCombat(id, snap.Combat)
	h.Store.SetInput(id, snap.LastInput)
	h.Store.SetAntiCheat(id, snap.AntiCheat)
}

func (h *Hub) handleInput(c *transport.Conn, payload []byte, now time.Time) {
	if c.State() != transport.StateActive {
		return
	}
	in, err := wire.DecodeInput(payload)
	if err != nil {
		return
	}
	if in.Flags.Conflicting() {
		return // dropped, not reordered (spec.md §4.9 boundary behavior B3)
	}
	net, ok := h.Store.Network(c.EntityID)
	if !ok {
		return
	}
	if in.Sequence <= net.LastProcessedInputSeq && net.LastProcessedInputSeq != 0 {
		return // out-of-window replay, dropped
	}
	net.LastProcessedInputSeq = in.Sequence
	h.Store.SetNetwork(c.EntityID, net)
	h.Store.SetInput(c.EntityID, world.Input{
		Sequence:   in.Sequence,
		ClientTime: in.ClientTime,
		Flags:      in.Flags,
		Yaw:        in.Yaw,
		Pitch:      in.Pitch,
		TargetID:   in.TargetID,
		ReceivedAt: now.UnixNano(),
	})
}

func (h *Hub) handleDisconnect(c *transport.Conn, now time.Time) {
	v, ok := h.viewers[c.EntityID]
	if !ok {
		return
	}
	h.Migrations.Cancel(v.EntityID, now)
	h.History.Forget(v.EntityID)
	h.Store.Despawn(v.EntityID)
	h.Sector.Remove(v.EntityID)
	delete(h.viewers, v.EntityID)
	delete(h.byConn, c.ID)
}

// --- phase 2: pub/sub drain ---

func (h *Hub) phasePubSub(now time.Time) {
	h.Aura.Ingest(now)
	for _, outcome := range h.Migrations.Tick(now) {
		h.handleMigrationOutcome(outcome, now)
	}
}

func (h *Hub) handleMigrationOutcome(o migrate.Outcome, now time.Time) {
	logger := log.Zone(log.For("zone"), uint32(h.ZoneID))
	if !o.Completed {
		logger.WithField("entity_id", o.Migration.EntityID).Warn("migration failed, resuming local authority")
		return
	}
	v, ok := h.viewers[o.Migration.EntityID]
	if !ok {
		return
	}
	body, err := wire.MarshalJSON(wire.ZoneHandoffPacket{Token: o.Token, Host: o.TargetHost, Port: o.TargetPort})
	if err == nil {
		v.Conn.Send(transport.Outbound{Bytes: append([]byte{byte(wire.ZoneHandoff)}, body...)})
	}
	h.Store.Despawn(o.Migration.EntityID)
	h.Sector.Remove(o.Migration.EntityID)
	h.History.Forget(o.Migration.EntityID)
	delete(h.viewers, o.Migration.EntityID)
}

// --- phase 3: physics & movement validation ---

func (h *Hub) phasePhysics(now time.Time) {
	for _, id := range h.Store.IDs() {
		owner, ok := h.Store.Ownership(id)
		if !ok || owner.IsGhost || owner.OwningZone != h.ZoneID {
			continue
		}
		pos, _ := h.Store.Position(id)
		vel, _ := h.Store.Velocity(id)
		in, _ := h.Store.Input(id)
		ac, _ := h.Store.AntiCheat(id)

		beforePos := pos
		before := pos.Vec2()
		newPos, newVel := world.Integrate(pos, vel, in.Yaw, in, 1, h.bound)
		h.Store.SetPosition(id, newPos)
		h.Store.SetVelocity(id, newVel)
		h.Store.SetRotation(id, world.Rotation{Yaw: in.Yaw, Pitch: in.Pitch})
		h.Sector.Move(id, newPos.Vec2())

		elapsed := float32(1) / world.TickRate
		if d, fired := anticheat.CheckSpeed(before, newPos.Vec2(), time.Duration(elapsed*float32(time.Second))); fired {
			correction := beforePos
			d.SuggestedCorrection = &correction
			h.applyDetection(id, d, now)
		}
		if d, fired := anticheat.CheckTeleport(before, newPos.Vec2()); fired {
			correction := beforePos
			d.SuggestedCorrection = &correction
			h.applyDetection(id, d, now)
		}
		if h.Terrain.OnGround(newPos.Vec2(), newPos.Z) {
			ac.LastGroundContact = now.UnixNano()
		}
		if in.Flags&world.InputJump != 0 {
			ac.LastJumpInput = now.UnixNano()
		}
		h.Store.SetAntiCheat(id, ac)

		h.History.Ring(id).Push(history.Sample{
			Timestamp: newPos.Timestamp,
			Position:  newPos.Vec2(),
			Velocity:  newVel.Vec2(),
			Rotation:  world.Rotation{Yaw: in.Yaw, Pitch: in.Pitch},
		})
	}

	h.resolveSoftCollisions()
}

func (h *Hub) resolveSoftCollisions() {
	for _, id := range h.Store.IDs() {
		pos, ok := h.Store.Position(id)
		if !ok {
			continue
		}
		radius, _ := h.Store.Radius(id)
		h.Sector.Query(pos.Vec2(), radius.Float()+2, func(other world.EntityID) {
			if other == id || other < id { // visit each pair once
				return
			}
			otherPos, ok := h.Store.Position(other)
			if !ok {
				return
			}
			otherRadius, _ := h.Store.Radius(other)
			pushA, pushB := world.SoftCollide(pos.Vec2(), otherPos.Vec2(), radius, otherRadius)
			if pushA == (world.Vec2{}) && pushB == (world.Vec2{}) {
				return
			}
			pos.X += pushA.X
			pos.Y += pushA.Y
			otherPos.X += pushB.X
			otherPos.Y += pushB.Y
			h.Store.SetPosition(id, pos)
			h.Store.SetPosition(other, otherPos)
		})
	}
}

// --- phase 4: combat resolution ---

const baseAttackRange = 20.0

func (h *Hub) phaseCombat(now time.Time) {
	for _, id := range h.Store.IDs() {
		in, ok := h.Store.Input(id)
		if !ok || in.Flags&world.InputAttack == 0 {
			continue
		}
		attackerCombat, ok := h.Store.Combat(id)
		if !ok || attackerCombat.State == world.Dead {
			continue
		}
		if now.UnixNano()-attackerCombat.LastAttackTime < int64(combat.MeleeCooldown) {
			continue
		}
		attackTime, _ := history.AttackTime(now, time.Unix(0, in.ReceivedAt), 0)
		attackerPos, _ := h.Store.Position(id)

		candidates := h.gatherCombatCandidates(id, attackerCombat.TeamID, attackerPos.Vec2(), baseAttackRange, attackTime)
		var hit combat.Candidate
		var found bool
		if in.TargetID != 0 {
			hit, found = combat.RangedHit(attackerPos.Vec2(), in.Yaw, baseAttackRange, candidates)
		} else {
			hits := combat.MeleeHit(attackerPos.Vec2(), in.Yaw, candidates)
			if len(hits) > 0 {
				hit, found = hits[0], true
			}
		}
		if !found {
			continue
		}

		amount, crit := combat.RollDamage(h.rng, combat.BaseDamage)
		targetCombat, ok := h.Store.Combat(hit.ID)
		if !ok {
			continue
		}
		updated, lethal := combat.ApplyDamage(targetCombat, amount, now, id)
		h.Store.SetCombat(hit.ID, updated)

		attackerCombat.LastAttackTime = now.UnixNano()
		h.Store.SetCombat(id, attackerCombat)

		h.Persist.LogCombatEvent(persistence.CombatLogEntry{
			ZoneID: uint32(h.ZoneID), Source: id, Target: hit.ID,
			Amount: amount, Crit: crit, EventType: uint8(combat.EventDamage), Timestamp: now.UnixNano(),
		})
		h.broadcastCombatEvent(id, hit.ID, amount, crit, lethal, now)
	}
}

// gatherCombatCandidates pulls nearby living, opposing-team entities from
// the spatial index and resolves each one's lag-compensated historical
// position.
func (h *Hub) gatherCombatCandidates(attackerID world.EntityID, team uint32, pos world.Vec2, radius float32, attackTime time.Time) []combat.Candidate {
	var out []combat.Candidate
	h.Sector.Query(pos, radius, func(id world.EntityID) {
		if id == attackerID {
			return
		}
		targetCombat, ok := h.Store.Combat(id)
		if !ok || targetCombat.State == world.Dead || targetCombat.TeamID == team {
			return
		}
		sample, err := h.Compensator.PositionAt(id, attackTime)
		if err != nil {
			return
		}
		radius, _ := h.Store.Radius(id)
		out = append(out, combat.Candidate{ID: id, Sample: sample, Radius: radius})
	})
	return out
}

func (h *Hub) broadcastCombatEvent(source, target world.EntityID, amount float32, crit, lethal bool, now time.Time) {
	body, err := wire.EncodeEvent(uint32(now.UnixNano()), now, uint8(combat.EventDamage), map[string]interface{}{
		"source": source, "target": target, "amount": amount, "crit": crit, "lethal": lethal,
	})
	if err != nil {
		return
	}
	if v, ok := h.viewers[source]; ok {
		v.Conn.Send(transport.Outbound{Bytes: body})
	}
	if v, ok := h.viewers[target]; ok {
		v.Conn.Send(transport.Outbound{Bytes: body})
	}
}

// --- phase 5: remaining anti-cheat passes ---

func (h *Hub) phaseAntiCheat(now time.Time) {
	for _, id := range h.Store.IDs() {
		in, ok := h.Store.Input(id)
		if !ok {
			continue
		}
		ac, _ := h.Store.AntiCheat(id)
		pos, _ := h.Store.Position(id)

		if d, fired := anticheat.CheckInputManipulation(in.Yaw, in.Pitch, in.Flags); fired {
			h.applyDetection(id, d, now)
		}
		if d, fired := anticheat.CheckFlyHack(pos.Z, time.Unix(0, ac.LastGroundContact), time.Unix(0, ac.LastJumpInput), now); fired {
			h.applyDetection(id, d, now)
		}
		prevValid := ac.LastValidPosition
		if ac.LastValidTime == 0 {
			prevValid = pos.Vec2() // no prior sample yet; nothing to compare against
		}
		if d, fired := anticheat.CheckNoClip(h.Terrain, prevValid, pos.Vec2(), pos.Z); fired {
			correction := world.Position{X: prevValid.X, Y: prevValid.Y, Z: pos.Z, Timestamp: pos.Timestamp}
			d.SuggestedCorrection = &correction
			h.applyDetection(id, d, now)
		}
		ac.LastValidPosition = pos.Vec2()
		ac.LastValidTime = now.UnixNano()
		h.Store.SetAntiCheat(id, ac)

		if v, ok := h.viewers[id]; ok {
			v.Trust.Clean(now)
		}
	}
}

func (h *Hub) applyDetection(id world.EntityID, d anticheat.Detection, now time.Time) {
	v, ok := h.viewers[id]
	if !ok {
		return
	}
	_, response := v.Trust.Violate(now, d.Confidence)
	logger := log.Entity(log.Zone(log.For("anticheat"), uint32(h.ZoneID)), uint32(id))
	logger.WithField("type", d.Type.String()).WithField("response", response).Warn("anti-cheat detection")

	switch response {
	case anticheat.ResponseForceCorrection:
		if d.SuggestedCorrection != nil {
			h.Store.SetPosition(id, *d.SuggestedCorrection)
		}
	case anticheat.ResponseKick:
		transport.Disconnect(v.Conn, wire.CheatDetected, d.Type.String())
	case anticheat.ResponseBan:
		transport.Disconnect(v.Conn, wire.Ban, d.Type.String())
	}
	ac, _ := h.Store.AntiCheat(id)
	ac.TrustScore = v.Trust.Score()
	ac.SuspiciousCount++
	h.Store.SetAntiCheat(id, ac)
}

// --- phase 6: AOI computation & replication selection ---

type viewerVisible struct {
	viewer *Viewer
	delta  aoi.Delta
}

func (h *Hub) phaseAOI(now time.Time) []viewerVisible {
	degraded := h.Budget.Degraded()
	out := make([]viewerVisible, 0, len(h.viewers))
	for _, v := range h.viewers {
		pos, ok := h.Store.Position(v.EntityID)
		if !ok {
			continue
		}
		scratch := arena.GetCandidates()
		h.Sector.Query(pos.Vec2(), aoi.FarRadius, func(id world.EntityID) {
			if id == v.EntityID {
				return
			}
			otherPos, ok := h.Store.Position(id)
			if !ok {
				return
			}
			distSq := pos.Vec2().DistanceSquared(otherPos.Vec2())
			tier := aoi.TierOf(sqrt32(distSq))
			if degraded && tier < aoi.TierFar {
				tier++ // halve near/mid send rates under QoS pressure; far keeps its rate
			}
			*scratch = append(*scratch, aoi.Candidate{ID: id, DistanceSq: distSq, Tier: tier})
		})
		selected := aoi.Select(*scratch, aoi.DefaultCap)
		delta := v.AOI.Advance(h.tick, selected)
		arena.PutCandidates(scratch)
		out = append(out, viewerVisible{viewer: v, delta: delta})
	}
	return out
}

func sqrt32(v float32) float32 {
	if v <= 0 {
		return 0
	}
	lo, hi := float32(0), v
	if hi < 1 {
		hi = 1
	}
	for i := 0; i < 20; i++ {
		mid := (lo + hi) / 2
		if mid*mid < v {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// --- phase 7: snapshot build, delta encode, enqueue ---

func (h *Hub) phaseReplication(now time.Time, visibleByViewer []viewerVisible) {
	full := make(map[world.EntityID]snapshot.EntityState, h.Store.Len())
	for _, id := range h.Store.IDs() {
		full[id] = h.entityState(id)
	}
	h.Baseline.Record(h.tick, full)

	for _, vv := range visibleByViewer {
		v := vv.viewer
		states := make([]snapshot.EntityState, 0, len(vv.delta.Due))
		for _, id := range vv.delta.Due {
			if s, ok := full[id]; ok {
				states = append(states, s)
			}
		}
		baseline, baselineTick, isFull := h.Baseline.SelectBaseline(v.LastAckedTick)
		if isFull {
			baseline = nil
		}
		deltaBuf := arena.GetBuffer()
		pkt := snapshot.BuildWithBuffer(deltaBuf, h.tick, baselineTick, states, baseline, vv.delta.Left)
		body := wire.EncodeSnapshot(wire.SnapshotHeader{
			ServerTick: h.tick, BaselineTick: baselineTick,
			EntityCount: pkt.EntityCount, RemovedCount: uint16(len(pkt.Removed)),
		}, pkt.Deltas, pkt.Removed)
		arena.PutBuffer(deltaBuf) // EncodeSnapshot already copied pkt.Deltas into body
		v.Conn.Send(transport.Outbound{Bytes: body})
		v.LastAckedTick = h.tick
	}
}

func (h *Hub) entityState(id world.EntityID) snapshot.EntityState {
	pos, _ := h.Store.Position(id)
	vel, _ := h.Store.Velocity(id)
	rot, _ := h.Store.Rotation(id)
	c, _ := h.Store.Combat(id)
	kind, _ := h.Store.Kind(id)
	return snapshot.EntityState{
		ID: id, Position: pos.Vec2(), Altitude: pos.Z,
		Yaw: rot.Yaw, Pitch: rot.Pitch,
		Velocity: vel.Vec2(), VelZ: vel.Z,
		Health: c.HealthPercent, Kind: kind, Team: c.TeamID,
	}
}

// --- phase 8: aura egress ---

func (h *Hub) phaseAuraEgress(now time.Time) {
	for _, id := range h.Store.IDs() {
		owner, ok := h.Store.Ownership(id)
		if !ok || owner.IsGhost || owner.OwningZone != h.ZoneID {
			continue
		}
		pos, _ := h.Store.Position(id)
		distIn, distPast := edgeDistances(pos.Vec2(), h.bound)

		for dir, past := range distPast {
			if aura.CrossedThreshold(past) {
				h.maybeStartMigration(id, dir, now)
			}
		}

		snap := h.snapshotOf(id)
		h.advanceMigration(id, snap, distPast, now)
		h.Aura.Egress(h.tick, snap, distIn)
	}
}

// advanceMigration drives an already-started outgoing migration's
// TRANSFERRING and SYNCING phases (spec.md §4.11 steps 2-4): periodic state
// pushes while TRANSFERRING, and the handoff trigger once the entity is
// HandoffThreshold past the border while SYNCING.
func (h *Hub) advanceMigration(id world.EntityID, snap migrate.EntitySnapshot, distPast map[aura.Direction]float32, now time.Time) {
	mig, ok := h.Migrations.Outgoing(id)
	if !ok {
		return
	}

	logger := log.Entity(log.Zone(log.For("zone"), uint32(h.ZoneID)), uint32(id))

	if mig.State == migrate.Transferring && h.tick%aura.RefreshInterval == 0 {
		if err := h.Migrations.PushState(id, snap); err != nil {
			logger.WithError(err).Warn("migration state push failed")
		}
	}

	if mig.State != migrate.Syncing {
		return
	}
	var maxPast float32
	for _, past := range distPast {
		if past > maxPast {
			maxPast = past
		}
	}
	if !aura.CrossedHandoffThreshold(maxPast) {
		return
	}
	if _, err := h.Migrations.ReadyToHandoff(id, now); err != nil {
		logger.WithError(err).Warn("ready to handoff failed")
		return
	}
	if addr, ok := h.cfg.AddrFor(mig.TargetZone); ok {
		h.Migrations.SetHandoffAddr(id, addr.Host, addr.Port)
	}
}

func (h *Hub) snapshotOf(id world.EntityID) migrate.EntitySnapshot {
	pos, _ := h.Store.Position(id)
	vel, _ := h.Store.Velocity(id)
	rot, _ := h.Store.Rotation(id)
	c, _ := h.Store.Combat(id)
	n, _ := h.Store.Network(id)
	in, _ := h.Store.Input(id)
	ac, _ := h.Store.AntiCheat(id)
	kind, _ := h.Store.Kind(id)
	return migrate.EntitySnapshot{
		EntityID: id, Kind: kind, Position: pos, Velocity: vel, Rotation: rot,
		Combat: c, Network: n, LastInput: in, AntiCheat: ac,
	}
}

// edgeDistances returns, per boundary direction, the signed distance from
// pos to that edge (positive = still inside the core by that much) and the
// distance past the border for edges pos has crossed (zero if still inside).
func edgeDistances(pos world.Vec2, bound world.AABB) (distIn map[aura.Direction]float32, distPast map[aura.Direction]float32) {
	distIn = make(map[aura.Direction]float32, 4)
	distPast = make(map[aura.Direction]float32, 4)
	west := pos.X.Float() - bound.MinX.Float()
	east := bound.MaxX.Float() - pos.X.Float()
	south := pos.Y.Float() - bound.MinY.Float()
	north := bound.MaxY.Float() - pos.Y.Float()
	assign := func(dir aura.Direction, signed float32) {
		distIn[dir] = signed
		if signed < 0 {
			distPast[dir] = -signed
		}
	}
	assign(aura.West, west)
	assign(aura.East, east)
	assign(aura.South, south)
	assign(aura.North, north)
	return
}

func (h *Hub) maybeStartMigration(id world.EntityID, dir aura.Direction, now time.Time) {
	if _, already := h.Migrations.Outgoing(id); already {
		return
	}
	neighbor, ok := h.neighborZone(dir)
	if !ok {
		return
	}
	v, ok := h.viewers[id]
	if !ok {
		return
	}
	snap := h.snapshotOf(id)
	_ = h.Migrations.Start(id, v.Conn.PlayerID, neighbor, snap, now)
}

func (h *Hub) neighborZone(dir aura.Direction) (world.ZoneID, bool) {
	id, ok := h.cfg.Neighbors[string(dir)]
	return world.ZoneID(id), ok
}

// --- phase 9: persistence enqueues ---

const statusPublishInterval = world.TickRate // once a second

func (h *Hub) phasePersistence(now time.Time) {
	for _, v := range h.viewers {
		pos, ok := h.Store.Position(v.EntityID)
		if !ok {
			continue
		}
		h.Persist.PutSession(sessionPositionKey(v.Conn.PlayerID), encodePosition(pos), persistence.DefaultTTL)
	}

	if h.tick%statusPublishInterval != 0 {
		return
	}
	status := persistence.ZoneStatus{
		ZoneID: uint32(h.ZoneID), Players: len(h.viewers),
		TickBudgetOK: !h.Budget.Degraded(), UpdatedAt: now.UnixNano(),
	}
	h.Persist.UpdateZoneStatus(status)
	h.Transport.PublishStatus(transport.Status{
		ZoneID: uint32(h.ZoneID), Tick: h.tick, Connections: h.Transport.Count(),
		Players: len(h.viewers), TickBudgetOK: status.TickBudgetOK,
	})
	statusPayload, err := wire.MarshalJSON(status)
	if err == nil {
		_, _ = h.Bus.Publish(bus.BroadcastChannel, bus.Message{Type: bus.ZoneStatus, SourceZone: uint32(h.ZoneID), Payload: statusPayload})
	}
}

func sessionPositionKey(playerID world.PlayerID) string {
	return "player:" + strconv.FormatUint(uint64(playerID), 10) + ":pos"
}

func encodePosition(p world.Position) string {
	body, _ := wire.MarshalJSON(p)
	return string(body)
}
