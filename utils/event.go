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

import "sync/atomic"

// Event is a one-shot signal. The scheduler creates one per block and
// verification job; signaling it asks the verification worker to abandon
// the job.
//
//	abort := MakeEvent()
//	go func() {
//	    for !abort.HasHappened() { ... }
//	}()
//	abort.Signal()
//
// All methods are thread safe; signaling more than once has no effect.
type Event interface {
	// HasHappened reports whether Signal was called.
	HasHappened() bool
	// Wait returns a channel that is closed by the first Signal.
	Wait() <-chan struct{}
	// Signal marks the event as happened and releases all waiters.
	Signal()
}

func MakeEvent() Event {
	return &event{done: make(chan struct{})}
}

type event struct {
	done     chan struct{}
	signaled atomic.Bool
}

func (e *event) HasHappened() bool {
	return e.signaled.Load()
}

func (e *event) Wait() <-chan struct{} {
	return e.done
}

func (e *event) Signal() {
	if e.signaled.CompareAndSwap(false, true) {
		close(e.done)
	}
}
