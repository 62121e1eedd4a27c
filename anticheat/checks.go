package anticheat

import (
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/boundlessrealms/zoneserver/terrain"
	"github.com/boundlessrealms/zoneserver/world"
)

// CheckSpeed implements spec.md §4.2's violation handling / §4.5 SPEED_HACK:
// if |p1-p0| exceeds the tolerance-scaled allowance, the update is rejected.
func CheckSpeed(p0, p1 world.Vec2, elapsed time.Duration) (Detection, bool) {
	deltaP := p1.Distance(p0)
	maxAllowed := world.MaxAllowedDisplacement(float32(elapsed.Seconds()))
	if deltaP <= maxAllowed {
		return Detection{}, false
	}
	confidence := clamp01((deltaP - maxAllowed) / maxAllowed)
	return Detection{
		Type:       SpeedHack,
		Confidence: confidence,
		Response:   ResponseForceCorrection,
	}, true
}

// CheckTeleport flags a single-step displacement greater than 100m
// (spec.md §4.5 TELEPORT).
func CheckTeleport(p0, p1 world.Vec2) (Detection, bool) {
	if p1.Distance(p0) <= TeleportThreshold {
		return Detection{}, false
	}
	return Detection{Type: Teleport, Confidence: 0.95, Response: ResponseForceCorrection}, true
}

// CheckFlyHack flags sustained positive vertical velocity without a recent
// jump input beyond the ground-contact grace period (spec.md §4.5).
func CheckFlyHack(velocityZ world.Fixed, lastGroundContact, lastJumpInput, now time.Time) (Detection, bool) {
	if velocityZ <= 0 {
		return Detection{}, false
	}
	sinceGround := now.Sub(lastGroundContact)
	sinceJump := now.Sub(lastJumpInput)
	if sinceGround <= GroundContactGrace || sinceJump <= GroundContactGrace {
		return Detection{}, false
	}
	return Detection{Type: FlyHack, Confidence: 0.8, Response: ResponseFlagForReview}, true
}

// CheckNoClip flags movement that crosses the static-collision surface
// (spec.md §4.5), backed by the terrain package.
func CheckNoClip(surface *terrain.Surface, prev, next world.Vec2, altitude world.Fixed) (Detection, bool) {
	if !surface.Collides(next, altitude) {
		return Detection{}, false
	}
	return Detection{Type: NoClip, Confidence: 0.9, Response: ResponseForceCorrection}, true
}

// CheckInputManipulation flags out-of-range yaw/pitch or conflicting
// direction bits (spec.md §4.5 / §4.9).
func CheckInputManipulation(yaw, pitch world.Angle, flags world.InputFlags) (Detection, bool) {
	if !world.ValidateYawPitch(yaw, pitch) {
		return Detection{Type: InputManipulation, Confidence: 1.0, Response: ResponseLogWarn}, true
	}
	if flags.Conflicting() {
		return Detection{Type: InputManipulation, Confidence: 0.5, Response: ResponseLog}, true
	}
	return Detection{}, false
}

// CheckDamage flags damage above the per-hit cap or an impossible DPS
// (spec.md §4.5 DAMAGE_HACK).
func CheckDamage(amount float32, perHitCap float32, dps float32, maxDPS float32) (Detection, bool) {
	if amount > perHitCap {
		return Detection{Type: DamageHack, Confidence: 0.95, Response: ResponseKick}, true
	}
	if dps > maxDPS {
		return Detection{Type: DamageHack, Confidence: 0.85, Response: ResponseFlagForReview}, true
	}
	return Detection{}, false
}

// CheckHitboxExtension flags a claimed hit position that diverges from the
// compensated server hitbox by more than HitboxDivergenceLimit
// (spec.md §4.5).
func CheckHitboxExtension(claimed, serverPos world.Vec2) (Detection, bool) {
	divergence := claimed.Distance(serverPos)
	if divergence <= HitboxDivergenceLimit {
		return Detection{}, false
	}
	confidence := clamp01((divergence - HitboxDivergenceLimit) / HitboxDivergenceLimit)
	return Detection{Type: HitboxExtension, Confidence: confidence, Response: ResponseFlagForReview}, true
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RateLimiters groups the token-bucket rate limits of spec.md §6's table,
// backed by joeycumines/go-catrate's sliding-window limiter.
type RateLimiters struct {
	ConnectionsPerIP    *catrate.Limiter
	PacketsPerConn      *catrate.Limiter
	ReliableMsgsPerConn *catrate.Limiter
	AttackInputs        *catrate.Limiter
}

// NewRateLimiters builds the default limiter set from the spec.md §6 table.
func NewRateLimiters() *RateLimiters {
	return &RateLimiters{
		ConnectionsPerIP: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 2,
			5 * time.Second: 10,
		}),
		PacketsPerConn: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 60,
			2 * time.Second: 120,
		}),
		ReliableMsgsPerConn: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 10,
			3 * time.Second: 30,
		}),
		AttackInputs: catrate.NewLimiter(map[time.Duration]int{
			500 * time.Millisecond: 1,
		}),
	}
}

// CheckPacketFlooding reports a PACKET_FLOODING detection when the
// per-connection packet rate limiter denies an event.
func (r *RateLimiters) CheckPacketFlooding(connID uint64) (Detection, bool) {
	if _, ok := r.PacketsPerConn.Allow(connID); ok {
		return Detection{}, false
	}
	return Detection{Type: PacketFlooding, Confidence: 0.99, Response: ResponseRateLimitedResponse()}, true
}

// ResponseRateLimitedResponse is a small indirection so the response tier
// for flooding can be tuned in one place.
func ResponseRateLimitedResponse() Response {
	return ResponseFlagForReview
}
