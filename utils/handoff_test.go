// Copyright 2024 Fantom Foundation
// This file is part of Specula, a speculative block executor for Sonic
//
// Specula is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Specula is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Specula. If not, see <http://www.gnu.org/licenses/>.

package utils

import (
	"testing"
	"time"
)

func TestHandoff_SendDoesNotBlock(t *testing.T) {
	handoff := MakeHandoff[int]()
	done := make(chan bool)
	go func() {
		handoff.Send(42)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("send blocked without a receiver")
	}
	if got, want := handoff.Receive(), 42; got != want {
		t.Errorf("unexpected value, wanted %d, got %d", want, got)
	}
}

func TestHandoff_ReceiveWaitsForSender(t *testing.T) {
	handoff := MakeHandoff[string]()
	received := make(chan string)
	go func() {
		received <- handoff.Receive()
	}()

	select {
	case <-received:
		t.Fatalf("receive returned before a value was sent")
	case <-time.After(50 * time.Millisecond):
	}

	handoff.Send("account")
	if got := <-received; got != "account" {
		t.Errorf("unexpected value, wanted %q, got %q", "account", got)
	}
}

func TestHandoff_OnlyFirstSendIsAccepted(t *testing.T) {
	handoff := MakeHandoff[int]()
	if !handoff.Send(1) {
		t.Errorf("first send should be accepted")
	}
	if handoff.Send(2) {
		t.Errorf("second send should be rejected")
	}
	if got := handoff.Receive(); got != 1 {
		t.Errorf("unexpected value, wanted 1, got %d", got)
	}
}
