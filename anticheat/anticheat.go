// Package anticheat implements spec.md §4.5: the detection taxonomy, trust
// score, and response ladder. No teacher equivalent exists (mk48 trusts its
// own client); grounded on spec.md's explicit taxonomy, with mutable
// per-player state confined to the tick thread per spec.md §9 "Shared
// mutable state" and exposed to diagnostics only via Snapshot copies.
package anticheat

import (
	"time"

	"github.com/boundlessrealms/zoneserver/world"
)

// DetectionType enumerates the taxonomy of spec.md §4.5.
type DetectionType uint8

const (
	SpeedHack DetectionType = iota
	Teleport
	FlyHack
	NoClip
	InputManipulation
	PacketFlooding
	DamageHack
	HitboxExtension
)

func (d DetectionType) String() string {
	switch d {
	case SpeedHack:
		return "SPEED_HACK"
	case Teleport:
		return "TELEPORT"
	case FlyHack:
		return "FLY_HACK"
	case NoClip:
		return "NO_CLIP"
	case InputManipulation:
		return "INPUT_MANIPULATION"
	case PacketFlooding:
		return "PACKET_FLOODING"
	case DamageHack:
		return "DAMAGE_HACK"
	case HitboxExtension:
		return "HITBOX_EXTENSION"
	default:
		return "UNKNOWN"
	}
}

// Response is the ladder of actions spec.md §4.5 enumerates, from least to
// most severe.
type Response uint8

const (
	ResponseLog Response = iota
	ResponseLogWarn
	ResponseFlagForReview
	ResponseForceCorrection
	ResponseKick
	ResponseBan
)

// Detection is the outcome of a single anti-cheat check.
type Detection struct {
	Type                DetectionType
	Severity            float32 // derived from confidence, violation count, trust band
	Confidence          float32 // in [0,1]
	SuggestedCorrection *world.Position
	Response            Response
}

// Thresholds, per spec.md §4.5.
const (
	TeleportThreshold     = 100.0 // meters, one step
	GroundContactGrace    = 500 * time.Millisecond
	HitboxDivergenceLimit = 2.0 // meters
	ViolationWindow       = 5 * time.Second
)

// TrustTracker maintains the 0-100 trust score ladder for one player
// (spec.md §4.5). Confined to the tick thread.
type TrustTracker struct {
	score            float32
	violationTimes   []time.Time // within ViolationWindow, for severity derivation
	lastCleanIncrement time.Time
}

// NewTrustTracker creates a tracker at the spec's initial value of 50.
func NewTrustTracker() *TrustTracker {
	return &TrustTracker{score: float32(world.InitialTrustScore)}
}

// Score returns the current trust score, rounded to the component's uint8.
func (t *TrustTracker) Score() uint8 {
	if t.score < 0 {
		return 0
	}
	if t.score > 100 {
		return 100
	}
	return uint8(t.score)
}

// Clean records a clean tick; trust increments +1/minute capped at 100
// (spec.md §4.5).
func (t *TrustTracker) Clean(now time.Time) {
	if t.lastCleanIncrement.IsZero() {
		t.lastCleanIncrement = now
		return
	}
	if now.Sub(t.lastCleanIncrement) >= time.Minute {
		t.score += 1
		if t.score > 100 {
			t.score = 100
		}
		t.lastCleanIncrement = now
	}
}

// Violate records a violation of the given confidence and returns the
// derived severity and resulting response tier.
func (t *TrustTracker) Violate(now time.Time, confidence float32) (severity float32, response Response) {
	t.pruneWindow(now)
	t.violationTimes = append(t.violationTimes, now)

	windowCount := float32(len(t.violationTimes))
	trustBand := (100 - t.score) / 100 // higher when trust is already low

	severity = confidence * (1 + windowCount*0.25) * (1 + trustBand)
	if severity > 3 {
		severity = 3
	}

	t.score -= severity * 10
	if t.score < 0 {
		t.score = 0
	}

	response = responseForSeverity(severity, windowCount)
	return
}

func (t *TrustTracker) pruneWindow(now time.Time) {
	cutoff := now.Add(-ViolationWindow)
	i := 0
	for ; i < len(t.violationTimes); i++ {
		if t.violationTimes[i].After(cutoff) {
			break
		}
	}
	t.violationTimes = t.violationTimes[i:]
}

func responseForSeverity(severity, windowCount float32) Response {
	switch {
	case severity >= 2.5 || windowCount >= 8:
		return ResponseBan
	case severity >= 1.8 || windowCount >= 6:
		return ResponseKick
	case severity >= 1.2 || windowCount >= 4:
		return ResponseForceCorrection
	case severity >= 0.7 || windowCount >= 3:
		return ResponseFlagForReview
	case severity >= 0.3:
		return ResponseLogWarn
	default:
		return ResponseLog
	}
}

// Snapshot is a read-only copy for diagnostics, per spec.md §9 ("expose
// through a snapshot copy, not shared references").
type Snapshot struct {
	Score           uint8
	RecentViolations int
}

func (t *TrustTracker) Snapshot() Snapshot {
	return Snapshot{Score: t.Score(), RecentViolations: len(t.violationTimes)}
}
