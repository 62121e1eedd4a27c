package migrate

import (
	"testing"
	"time"
)

func TestTransitionHappyPath(t *testing.T) {
	now := time.Now()
	states := []struct {
		from  State
		event Event
		want  State
	}{
		{None, EventBorderCrossed, Preparing},
		{Preparing, EventTargetAccepted, Transferring},
		{Transferring, EventTargetAck, Syncing},
		{Syncing, EventReadyToHandoff, Completing},
		{Completing, EventMigrationComplete, Completed},
	}
	for _, s := range states {
		got, err := Transition(s.from, s.event, now)
		if err != nil {
			t.Fatalf("Transition(%s, %s): %v", s.from, s.event, err)
		}
		if got != s.want {
			t.Fatalf("Transition(%s, %s) = %s, want %s", s.from, s.event, got, s.want)
		}
	}
}

func TestTransitionTimeoutFailsFromAnyNonTerminal(t *testing.T) {
	now := time.Now()
	for _, from := range []State{Preparing, Transferring, Syncing, Completing} {
		got, err := Transition(from, EventTimeout, now)
		if err != nil {
			t.Fatalf("Transition(%s, TIMEOUT): %v", from, err)
		}
		if got != Failed {
			t.Fatalf("Transition(%s, TIMEOUT) = %s, want FAILED", from, got)
		}
	}
}

func TestTransitionRejectsInvalidEvent(t *testing.T) {
	if _, err := Transition(None, EventTargetAck, time.Now()); err == nil {
		t.Fatal("expected error for TARGET_ACK in NONE state")
	}
}

func TestTerminalStates(t *testing.T) {
	if !Completed.Terminal() || !Failed.Terminal() {
		t.Fatal("COMPLETED and FAILED must be terminal")
	}
	if Syncing.Terminal() {
		t.Fatal("SYNCING must not be terminal")
	}
}
