// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package combat

import (
	"math/rand"
	"testing"
	"time"

	"github.com/boundlessrealms/zoneserver/history"
	"github.com/boundlessrealms/zoneserver/world"
)

func TestMeleeHitScenario2LagCompensated(t *testing.T) {
	// scenario 2: attacker at origin, target moving +x at 6m/s. Client sends
	// attack with client_ts = now-150ms, server RTT=150ms. Lag comp rewinds
	// 75ms; target should be at -0.45m relative to present.
	var ring history.Ring
	now := time.Now()
	// Target moving +6m/s along +x, sampled every 16ms for the last 200ms.
	start := now.Add(-200 * time.Millisecond)
	for i := 0; i <= 12; i++ {
		ts := start.Add(time.Duration(i) * (200 * time.Millisecond / 12))
		elapsed := ts.Sub(start).Seconds()
		x := elapsed * 6.0
		ring.Push(history.Sample{Timestamp: ts.UnixNano(), Position: world.Vec2FromFloat(x, 0)})
	}

	rtt := 150 * time.Millisecond
	clientTs := now.Add(-150 * time.Millisecond)
	attackTime, compensated := history.AttackTime(now, clientTs, rtt)
	if !compensated {
		t.Fatal("expected compensation to apply")
	}

	sample, err := ring.At(attackTime.UnixNano())
	if err != nil {
		t.Fatalf("ring.At: %v", err)
	}

	candidates := []Candidate{{ID: 1, Sample: sample, Radius: world.ToFixed(0.5)}}
	hits := MeleeHit(world.Vec2{}, 0, candidates)
	if len(hits) != 1 {
		t.Fatalf("expected the cone test to register a hit at the historical position, got %d hits", len(hits))
	}
}

func TestRangedHitPicksClosest(t *testing.T) {
	near := Candidate{ID: 1, Sample: history.Sample{Position: world.Vec2FromFloat(5, 0)}, Radius: world.ToFixed(0.5)}
	far := Candidate{ID: 2, Sample: history.Sample{Position: world.Vec2FromFloat(20, 0)}, Radius: world.ToFixed(0.5)}

	best, found := RangedHit(world.Vec2{}, 0, 100, []Candidate{far, near})
	if !found {
		t.Fatal("expected a hit")
	}
	if best.ID != near.ID {
		t.Fatalf("expected closest candidate (id=1), got id=%v", best.ID)
	}
}

func TestRangedHitMisses(t *testing.T) {
	offCenter := Candidate{ID: 1, Sample: history.Sample{Position: world.Vec2FromFloat(5, 10)}, Radius: world.ToFixed(0.5)}
	_, found := RangedHit(world.Vec2{}, 0, 100, []Candidate{offCenter})
	if found {
		t.Fatal("expected a miss for a target well off the aim line")
	}
}

func TestApplyDamageLethalEntersDeadState(t *testing.T) {
	c := world.Combat{HealthPercent: 10, State: world.Alive}
	updated, lethal := ApplyDamage(c, 15, time.Now(), 42)
	if !lethal {
		t.Fatal("expected lethal damage")
	}
	if updated.HealthPercent != 0 {
		t.Fatalf("expected health clamped to 0, got %d", updated.HealthPercent)
	}
	if updated.State != world.Dead {
		t.Fatal("expected dead substate")
	}
}

func TestApplyDamageToAlreadyDeadIsDiscarded(t *testing.T) {
	// spec.md §4.4: "if the target has died in the interim... the hit is
	// recorded as late and discarded."
	c := world.Combat{HealthPercent: 0, State: world.Dead}
	updated, lethal := ApplyDamage(c, 50, time.Now(), 1)
	if lethal {
		t.Fatal("a hit on an already-dead target must not be counted lethal again")
	}
	if updated.HealthPercent != 0 {
		t.Fatal("health must remain 0")
	}
}

func TestDamageEventsSumEqualsHealthChange(t *testing.T) {
	// P4: sum of damage recorded in events between two ticks equals the
	// change in victims' health (ignoring regen).
	rng := rand.New(rand.NewSource(1))
	c := world.Combat{HealthPercent: 100, State: world.Alive}
	var totalDamage float32
	for i := 0; i < 5; i++ {
		amount, _ := RollDamage(rng, BaseDamage)
		before := c.HealthPercent
		c, _ = ApplyDamage(c, amount, time.Now(), 1)
		actualDelta := float32(before) - float32(c.HealthPercent)
		// Once health reaches 0, further hits contribute nothing further,
		// so only sum what was actually applied.
		if before > 0 {
			if actualDelta > amount+0.5 {
				t.Fatalf("applied delta %v exceeds rolled damage %v", actualDelta, amount)
			}
			totalDamage += actualDelta
		}
		if c.State == world.Dead {
			break
		}
	}
	if totalDamage <= 0 {
		t.Fatal("expected some damage to have been applied")
	}
	if totalDamage > 100 {
		t.Fatalf("total damage %v exceeds starting health", totalDamage)
	}
}
