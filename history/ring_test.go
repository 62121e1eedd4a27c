package history

import (
	"testing"
	"time"

	"github.com/boundlessrealms/zoneserver/world"
)

func sampleAt(t int64, x float64) Sample {
	return Sample{Timestamp: t, Position: world.Vec2FromFloat(x, 0)}
}

func TestRingInterpolatesBetweenBracketingSamples(t *testing.T) {
	var r Ring
	r.Push(sampleAt(0, 0))
	r.Push(sampleAt(1000, 10))

	got, err := r.At(500)
	if err != nil {
		t.Fatalf("At(500) error: %v", err)
	}
	x, _ := got.Position.Float()
	if x < 4.9 || x > 5.1 {
		t.Fatalf("expected interpolated x ~5, got %v", x)
	}
}

func TestRingTooOldFails(t *testing.T) {
	var r Ring
	r.Push(sampleAt(1000, 0))
	if _, err := r.At(0); err == nil {
		t.Fatal("expected error for target older than oldest sample")
	}
}

func TestRingMonotoneTimestampOrder(t *testing.T) {
	// P2: binary search for any t within window returns bracketing samples.
	var r Ring
	for i := int64(0); i < 10; i++ {
		r.Push(sampleAt(i*100, float64(i)))
	}
	got, err := r.At(350)
	if err != nil {
		t.Fatal(err)
	}
	x, _ := got.Position.Float()
	if x < 3.4 || x > 3.6 {
		t.Fatalf("expected x ~3.5 at t=350, got %v", x)
	}
}

func TestRingEvictsOldestWhenFull(t *testing.T) {
	var r Ring
	for i := 0; i < Capacity+10; i++ {
		r.Push(sampleAt(int64(i)*1000, float64(i)))
	}
	if r.Len() != Capacity {
		t.Fatalf("Len() = %d, want %d", r.Len(), Capacity)
	}
	// The oldest surviving sample should be from i=10, i.e. timestamp 10000.
	if _, err := r.At(5000); err == nil {
		t.Fatal("expected evicted sample to be too old")
	}
}

func TestRingPanicsOnNonMonotonicPush(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on non-monotonic push")
		}
	}()
	var r Ring
	r.Push(sampleAt(1000, 0))
	r.Push(sampleAt(500, 0))
}

func TestAttackTimeCompensatesWithinWindow(t *testing.T) {
	now := time.Unix(100, 0)
	clientTs := now.Add(-150 * time.Millisecond)
	rtt := 150 * time.Millisecond

	at, compensated := AttackTime(now, clientTs, rtt)
	if !compensated {
		t.Fatal("expected compensation within the 500ms window")
	}
	wantOffset := -75 * time.Millisecond
	if got := at.Sub(now); got != wantOffset {
		t.Fatalf("attack time offset = %v, want %v", got, wantOffset)
	}
}

func TestAttackTimeRefusesBeyondWindow(t *testing.T) {
	// B2: rtt > 500ms resolves at present time, not rewound.
	now := time.Unix(100, 0)
	clientTs := now.Add(-1 * time.Second)
	rtt := 800 * time.Millisecond

	at, compensated := AttackTime(now, clientTs, rtt)
	if compensated {
		t.Fatal("expected compensation to be refused")
	}
	if !at.Equal(now) {
		t.Fatalf("expected attack resolved at present time, got %v", at)
	}
}
