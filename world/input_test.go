// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "testing"

func TestInputWindowStrictlyIncreasing(t *testing.T) {
	var w InputWindow
	if !w.Accept(1) {
		t.Fatal("first sequence should be accepted")
	}
	if w.Accept(1) {
		t.Fatal("duplicate sequence must be dropped")
	}
	if w.Accept(0) {
		t.Fatal("out-of-order sequence must be dropped")
	}
	if !w.Accept(2) {
		t.Fatal("strictly greater sequence should be accepted")
	}
}

func TestInputWindowNeverDoubleReportsBit(t *testing.T) {
	// P5: the received-window bitmap never reports the same bit twice.
	var w InputWindow
	w.Accept(100)
	w.Accept(200) // lastAccepted jumps ahead
	// 100's bit is still set; replaying an old sequence whose bit collides
	// (100 % 1024 == 100+1024*k % 1024) must be rejected once already seen.
	if w.Accept(100) {
		t.Fatal("replay of previously accepted sequence must be dropped")
	}
}

func TestInputWindowTooOldDropped(t *testing.T) {
	var w InputWindow
	w.Accept(5000)
	if w.Accept(1) {
		t.Fatal("sequence older than the replay window must be dropped")
	}
}

func TestInputFlagsConflicting(t *testing.T) {
	if !(InputForward | InputBackward).Conflicting() {
		t.Error("forward+backward should conflict")
	}
	if !(InputLeft | InputRight).Conflicting() {
		t.Error("left+right should conflict")
	}
	if (InputForward | InputLeft).Conflicting() {
		t.Error("forward+left should not conflict")
	}
}

func TestValidateYawPitch(t *testing.T) {
	if !ValidateYawPitch(0, 0) {
		t.Error("0,0 should be valid")
	}
	if ValidateYawPitch(Pi+1, 0) {
		t.Error("yaw out of range should be invalid")
	}
	if ValidateYawPitch(0, HalfPi+1) {
		t.Error("pitch out of range should be invalid")
	}
}
