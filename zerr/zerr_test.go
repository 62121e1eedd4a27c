package zerr

import (
	"errors"
	"testing"
)

func TestWrapAndKindOf(t *testing.T) {
	base := errors.New("connection reset")
	err := Wrap(External, base, "session cache write")
	if KindOf(err) != External {
		t.Fatalf("KindOf = %v, want External", KindOf(err))
	}
	if !Is(err, External) {
		t.Fatal("Is(err, External) = false")
	}
	if Is(err, Fatal) {
		t.Fatal("Is(err, Fatal) = true")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != KindNone {
		t.Fatal("plain error should have KindNone")
	}
	if KindOf(nil) != KindNone {
		t.Fatal("nil error should have KindNone")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(Fatal, nil, "x") != nil {
		t.Fatal("Wrap(kind, nil, ...) must return nil")
	}
}

func TestRecoverable(t *testing.T) {
	cases := map[Kind]bool{
		Protocol: true,
		Rate:     true,
		Cheat:    true,
		State:    true,
		External: true,
		Timeout:  false,
		Fatal:    false,
	}
	for kind, want := range cases {
		if got := kind.Recoverable(); got != want {
			t.Errorf("%v.Recoverable() = %v, want %v", kind, got, want)
		}
	}
}
