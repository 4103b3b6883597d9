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

// Handoff is a two-party rendezvous carrying exactly one value from a donor
// to a receiver. The donor never blocks: the value is parked in a single
// slot until the receiver picks it up. A handoff must not be reused, a new
// one is created for every transfer.
type Handoff[T any] struct {
	slot chan T
	sent atomic.Bool
}

func MakeHandoff[T any]() *Handoff[T] {
	return &Handoff[T]{slot: make(chan T, 1)}
}

// Send parks the value for the receiver. Only the first call is accepted,
// later calls report false and drop their value.
func (h *Handoff[T]) Send(value T) bool {
	if !h.sent.CompareAndSwap(false, true) {
		return false
	}
	h.slot <- value
	return true
}

// Receive blocks until the donor has sent its value.
func (h *Handoff[T]) Receive() T {
	return <-h.slot
}
