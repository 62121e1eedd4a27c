// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

// ReplayWindowSize is the size of the received-sequence bitmap (spec.md §4.9).
const ReplayWindowSize = 1024

// InputWindow tracks the last accepted input sequence per connection and a
// 1024-entry replay-protection bitmap. One InputWindow per connection;
// confined to the tick thread.
type InputWindow struct {
	lastAccepted uint32
	haveAccepted bool
	bitmap       [ReplayWindowSize / 64]uint64
}

// Accept validates and records seq, reporting whether it should be applied.
// Per spec.md §4.9 and invariant #6: sequence must be strictly increasing,
// and the same bit must never be reported twice within the window.
func (w *InputWindow) Accept(seq uint32) bool {
	if !w.haveAccepted {
		w.haveAccepted = true
		w.lastAccepted = seq
		w.setBit(seq)
		return true
	}
	if int32(seq-w.lastAccepted) <= 0 {
		// Not strictly greater -- duplicate or reordered, check replay window.
		if w.lastAccepted-seq >= ReplayWindowSize {
			return false // too old to verify, drop
		}
		if w.testBit(seq) {
			return false // already seen, drop
		}
		w.setBit(seq)
		return false // out-of-order is dropped, never reordered (spec.md §5)
	}
	w.lastAccepted = seq
	w.setBit(seq)
	return true
}

func (w *InputWindow) setBit(seq uint32) {
	i := seq % ReplayWindowSize
	w.bitmap[i/64] |= 1 << (i % 64)
}

func (w *InputWindow) testBit(seq uint32) bool {
	i := seq % ReplayWindowSize
	return w.bitmap[i/64]&(1<<(i%64)) != 0
}

// ValidateYawPitch reports whether the claimed yaw/pitch lie in their legal
// ranges (spec.md §4.9: yaw in [-pi,pi], pitch in [-pi/2, pi/2]).
func ValidateYawPitch(yaw, pitch Angle) bool {
	if !yaw.InRange(-Pi, Pi) {
		return false
	}
	if !pitch.InRange(-HalfPi, HalfPi) {
		return false
	}
	return true
}
