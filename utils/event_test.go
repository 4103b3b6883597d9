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
	"sync"
	"testing"
	"time"
)

func TestEvent_FreshEventHasNotHappened(t *testing.T) {
	event := MakeEvent()
	if event.HasHappened() {
		t.Errorf("fresh event should not be marked as happened")
	}
	select {
	case <-event.Wait():
		t.Errorf("wait channel of a fresh event must not be closed")
	default:
	}
}

func TestEvent_RepeatedSignalsAreIgnored(t *testing.T) {
	event := MakeEvent()
	for i := 0; i < 10; i++ {
		event.Signal()
		if !event.HasHappened() {
			t.Errorf("a signaled event should be reported as happened")
		}
	}
}

func TestEvent_ConcurrentSignalsDoNotPanic(t *testing.T) {
	event := MakeEvent()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event.Signal()
		}()
	}
	wg.Wait()
	<-event.Wait()
}

func TestEvent_SignalReleasesWaiters(t *testing.T) {
	event := MakeEvent()
	released := make(chan struct{})
	go func() {
		<-event.Wait()
		close(released)
	}()

	select {
	case <-released:
		t.Fatalf("waiter released before signal")
	case <-time.After(10 * time.Millisecond):
	}

	event.Signal()
	<-released
}

func TestHandoff_ValueIsDeliveredOnce(t *testing.T) {
	handoff := MakeHandoff[int]()
	if !handoff.Send(7) {
		t.Fatalf("first send must be accepted")
	}
	if handoff.Send(8) {
		t.Errorf("second send must be rejected")
	}
	if got, want := handoff.Receive(), 7; got != want {
		t.Errorf("unexpected value, wanted %d, got %d", want, got)
	}
}

func TestHandoff_SendDoesNotBlockWithoutReceiver(t *testing.T) {
	handoff := MakeHandoff[string]()
	done := make(chan struct{})
	go func() {
		handoff.Send("x")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("send blocked although no receiver was waiting")
	}
}

func TestHandoff_ReceiveWaitsForDonor(t *testing.T) {
	handoff := MakeHandoff[int]()
	got := make(chan int)
	go func() {
		got <- handoff.Receive()
	}()

	select {
	case <-got:
		t.Fatalf("receive returned before the donor sent a value")
	case <-time.After(10 * time.Millisecond):
	}

	handoff.Send(42)
	if v := <-got; v != 42 {
		t.Errorf("unexpected value, wanted 42, got %d", v)
	}
}
