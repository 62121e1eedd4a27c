// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package combat implements spec.md §4.4: melee cone and ranged ray-sphere
// hit resolution against lag-compensated historical positions, and damage
// application. Grounded on the teacher's collision-resolution pipeline in
// physics.go (candidate-filter-then-resolve, team/friendly checks), adapted
// from "resolve contact collisions now" to "resolve hits against history".
package combat

import (
	"math/rand"
	"sort"
	"time"

	"github.com/chewxy/math32"

	"github.com/boundlessrealms/zoneserver/history"
	"github.com/boundlessrealms/zoneserver/world"
)

const (
	MeleeRadius       = 2.5   // meters
	MeleeConeHalfAngle = world.Pi / 6 // 60 degree cone => 30 degrees each side
	MeleeCooldown     = 500 * time.Millisecond
	RangedSphereRadius = 0.5 // meters
	BaseDamage        = 10.0
	DamageJitter      = 0.1 // +-10%
	CritChance        = 0.10
	CritMultiplier    = 1.5
)

// EventType enumerates the combat events of spec.md §4.4.
type EventType uint8

const (
	EventDamage EventType = iota
	EventDeath
)

// Event is a resolved combat outcome, dispatched to the reliable channel.
type Event struct {
	Type     EventType
	Source   world.EntityID
	Target   world.EntityID
	Amount   float32
	Crit     bool
	Location world.Vec2
	Time     time.Time
}

// Candidate is a potential target pulled from the spatial index, already
// filtered by team/liveness by the caller (zone/loop.go), paired with its
// compensated historical sample.
type Candidate struct {
	ID     world.EntityID
	Sample history.Sample
	Radius world.Fixed
}

// MeleeHit resolves a melee cone attack. attackerPos/attackerYaw describe
// the attacker's position and facing at attack time; candidates have
// already been pulled from the spatial index within the cone's AABB.
// Returns the targets the cone actually contains, closest first.
func MeleeHit(attackerPos world.Vec2, attackerYaw world.Angle, candidates []Candidate) []Candidate {
	var hits []Candidate
	for _, c := range candidates {
		toTarget := c.Sample.Position.Sub(attackerPos)
		dist := toTarget.Length()
		if dist > MeleeRadius+c.Radius.Float() {
			continue
		}
		if dist == 0 {
			hits = append(hits, c)
			continue
		}
		angleToTarget := toTarget.Angle()
		diff := angleToTarget.Diff(attackerYaw).Abs()
		if diff <= float32(MeleeConeHalfAngle) {
			hits = append(hits, c)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Sample.Position.DistanceSquared(attackerPos) < hits[j].Sample.Position.DistanceSquared(attackerPos)
	})
	return hits
}

// RangedHit resolves a ray-sphere intersection test along the attacker's
// aim line against historical positions, returning the closest intersecting
// target (spec.md §4.4 "closest intersecting target in aim-line order").
func RangedHit(origin world.Vec2, direction world.Angle, maxRange float32, candidates []Candidate) (Candidate, bool) {
	sin, cos := direction.SinCos()
	dir := world.Vec2{X: world.ToFixed(float64(cos)), Y: world.ToFixed(float64(sin))}

	var best Candidate
	bestT := maxRange + 1
	found := false

	for _, c := range candidates {
		toCenter := c.Sample.Position.Sub(origin)
		dx, dy := dir.Float()
		tx, ty := toCenter.Float()
		t := tx*dx + ty*dy // projection of target onto the ray
		if t < 0 || t > maxRange {
			continue
		}
		closestX := dx * t
		closestY := dy * t
		distX := tx - closestX
		distY := ty - closestY
		perpDist := math32.Hypot(distX, distY)
		if perpDist > RangedSphereRadius+c.Radius.Float() {
			continue
		}
		if t < bestT {
			bestT = t
			best = c
			found = true
		}
	}
	return best, found
}

// RollDamage computes the randomized, possibly-critical damage for one hit
// (spec.md §4.4).
func RollDamage(rng *rand.Rand, base float32) (amount float32, crit bool) {
	jitter := (rng.Float32()*2 - 1) * DamageJitter
	amount = base * (1 + jitter)
	if rng.Float32() < CritChance {
		amount *= CritMultiplier
		crit = true
	}
	return
}

// ApplyDamage applies damage to a Combat component, respecting invariant #3
// (health clamped to [0,100], entering the dead substate at zero). Returns
// the updated component and whether this hit was lethal.
func ApplyDamage(c world.Combat, amount float32, now time.Time, sourceID world.EntityID) (world.Combat, bool) {
	if c.State == world.Dead {
		return c, false // already dead; caller records this as a "late" hit
	}
	healthDelta := int32(amount) // percent points; caller scales amount to [0,100] basis
	newHealth := int32(c.HealthPercent) - healthDelta
	lethal := false
	if newHealth <= 0 {
		newHealth = 0
		lethal = true
		c.State = world.Dead
	}
	c.HealthPercent = uint8(newHealth)
	c.LastAttackTime = now.UnixNano()
	c.LastAttackerID = sourceID
	return c, lethal
}
