// Package zerr implements spec.md §7's error-kind taxonomy and propagation
// mechanism. The teacher returns bare `error` throughout; this generalizes
// that to a github.com/pkg/errors-wrapped Kind so zone/loop.go can dispatch
// on Kind at each phase boundary without string-matching error text.
package zerr

import (
	"github.com/pkg/errors"
)

// Kind is the error taxonomy of spec.md §7.
type Kind uint8

const (
	// KindNone marks a bare error with no assigned kind (zerr.KindOf on a
	// plain error, or one from outside this package, returns this).
	KindNone Kind = iota
	Protocol
	Auth
	Rate
	Capacity
	Cheat
	State
	Timeout
	External
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "PROTOCOL"
	case Auth:
		return "AUTH"
	case Rate:
		return "RATE"
	case Capacity:
		return "CAPACITY"
	case Cheat:
		return "CHEAT"
	case State:
		return "STATE"
	case Timeout:
		return "TIMEOUT"
	case External:
		return "EXTERNAL"
	case Fatal:
		return "FATAL"
	default:
		return "NONE"
	}
}

// Recoverable reports whether the tick must not unwind for an error of this
// kind (spec.md §7: "Recoverable kinds... never unwind the tick"). AUTH,
// CAPACITY, TIMEOUT, FATAL and KindNone report false.
func (k Kind) Recoverable() bool {
	switch k {
	case Protocol, Rate, Cheat, State, External:
		return true
	default:
		return false
	}
}

// kindedError pairs an error with its Kind, implementing Unwrap so
// errors.Is/As and pkg/errors.Cause still see through to the wrapped cause.
type kindedError struct {
	kind Kind
	err  error
}

func (e *kindedError) Error() string { return e.err.Error() }
func (e *kindedError) Unwrap() error { return e.err }
func (e *kindedError) Cause() error  { return e.err }

// Wrap annotates err with kind and a context message, in the manner of
// pkg/errors.Wrap. Returns nil if err is nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &kindedError{kind: kind, err: errors.Wrap(err, message)}
}

// Wrapf is Wrap with a format string.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindedError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// New creates a new kinded error carrying a stack trace (pkg/errors.New).
func New(kind Kind, message string) error {
	return &kindedError{kind: kind, err: errors.New(message)}
}

// KindOf reports the Kind attached to err, walking Unwrap chains. Returns
// KindNone if err is nil or carries no Kind.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindedError); ok {
			return ke.kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindNone
}

// Is reports whether err (or anything it wraps) carries kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
