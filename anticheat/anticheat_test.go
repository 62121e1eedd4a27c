package anticheat

import (
	"testing"
	"time"

	"github.com/boundlessrealms/zoneserver/world"
)

func TestCheckSpeedFlagsHack(t *testing.T) {
	// scenario 3: Δp=3m in one 16.67ms tick.
	p0 := world.Vec2{}
	p1 := world.Vec2FromFloat(3, 0)
	det, flagged := CheckSpeed(p0, p1, time.Second/60)
	if !flagged {
		t.Fatal("expected SPEED_HACK to be flagged")
	}
	if det.Confidence < 0.9 {
		t.Fatalf("expected confidence >= 0.9, got %v", det.Confidence)
	}
}

func TestCheckSpeedAllowsLegitMovement(t *testing.T) {
	p0 := world.Vec2{}
	p1 := world.Vec2FromFloat(0.1, 0)
	if _, flagged := CheckSpeed(p0, p1, time.Second/60); flagged {
		t.Fatal("did not expect legitimate movement to be flagged")
	}
}

func TestCheckTeleport(t *testing.T) {
	p0 := world.Vec2{}
	p1 := world.Vec2FromFloat(150, 0)
	if _, flagged := CheckTeleport(p0, p1); !flagged {
		t.Fatal("expected teleport to be flagged")
	}
}

func TestTrustTrackerDecaysOnViolationAndRecoversClean(t *testing.T) {
	tr := NewTrustTracker()
	start := tr.Score()
	now := time.Now()

	_, resp := tr.Violate(now, 0.9)
	if tr.Score() >= start {
		t.Fatalf("expected trust score to drop after violation, was %d now %d", start, tr.Score())
	}
	if resp == ResponseLog {
		t.Fatalf("expected a non-trivial response for high-confidence violation, got %v", resp)
	}

	tr.Clean(now.Add(time.Minute))
	if tr.Score() == 0 {
		t.Fatal("clean tick should not leave score at zero given a nonzero starting score")
	}
}

func TestTrustTrackerEscalatesWithRepeatedViolations(t *testing.T) {
	tr := NewTrustTracker()
	now := time.Now()
	var lastResp Response
	for i := 0; i < 8; i++ {
		_, lastResp = tr.Violate(now.Add(time.Duration(i)*time.Millisecond), 0.9)
	}
	if lastResp < ResponseKick {
		t.Fatalf("expected escalation to kick/ban after repeated violations, got %v", lastResp)
	}
}

func TestRateLimitersPacketFlooding(t *testing.T) {
	rl := NewRateLimiters()
	connID := uint64(1)
	flaggedOnce := false
	for i := 0; i < 200; i++ {
		if _, flagged := rl.CheckPacketFlooding(connID); flagged {
			flaggedOnce = true
			break
		}
	}
	if !flaggedOnce {
		t.Fatal("expected packet flooding to be flagged after bursting past the token bucket")
	}
}

func TestCheckInputManipulation(t *testing.T) {
	if _, flagged := CheckInputManipulation(world.Pi+1, 0, 0); !flagged {
		t.Fatal("expected out-of-range yaw to be flagged")
	}
	if _, flagged := CheckInputManipulation(0, 0, world.InputForward|world.InputBackward); !flagged {
		t.Fatal("expected conflicting direction bits to be flagged")
	}
	if _, flagged := CheckInputManipulation(0, 0, world.InputForward); flagged {
		t.Fatal("did not expect valid input to be flagged")
	}
}

func TestCheckHitboxExtension(t *testing.T) {
	claimed := world.Vec2FromFloat(3, 0)
	server := world.Vec2{}
	if _, flagged := CheckHitboxExtension(claimed, server); !flagged {
		t.Fatal("expected divergence > 2m to be flagged")
	}
}
