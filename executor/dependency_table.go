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

package executor

import "github.com/ethereum/go-ethereum/common"

// Assignment is the outcome of routing one transaction through the
// DependencyTable.
type Assignment struct {
	// Worker is the execution worker the transaction is assigned to.
	Worker int
	// Migrate is set if the cached sender account has to be moved from the
	// Donor worker to Worker before the transaction may run.
	Migrate bool
	// Donor is the worker currently holding the sender; only valid if Migrate is set.
	Donor int
}

// DependencyTable maps accounts to the execution worker considered
// authoritative for them while a block is dispatched. It is owned by the
// scheduler and is not thread safe.
type DependencyTable struct {
	owners     map[common.Address]int
	numWorkers int
	cursor     int // round-robin "best worker"
}

// NewDependencyTable creates an empty table for the given number of workers.
func NewDependencyTable(numWorkers int) *DependencyTable {
	return &DependencyTable{
		owners:     map[common.Address]int{},
		numWorkers: numWorkers,
	}
}

// Assign picks the worker for a transaction of the given sender calling the
// given target and records the resulting affinities. A zero target denotes a
// contract creation and is ignored. Must not be called on a table for zero
// workers.
func (t *DependencyTable) Assign(sender, target common.Address) Assignment {
	hasTarget := target != (common.Address{})

	level := 0
	tid0, senderKnown := t.owners[sender]
	if senderKnown {
		level += 1
	}
	tid1, targetKnown := 0, false
	if hasTarget {
		tid1, targetKnown = t.owners[target]
		if targetKnown {
			level += 2
		}
	}

	var res Assignment
	switch {
	case level == 0:
		res.Worker = t.cursor
	case level == 1:
		res.Worker = tid0
	case level == 2:
		res.Worker = tid1
	case tid0 == tid1:
		res.Worker = tid0
	default:
		res.Worker = tid1
		res.Migrate = true
		res.Donor = tid0
	}

	if !senderKnown || res.Migrate {
		t.owners[sender] = res.Worker
	}
	if hasTarget && !targetKnown {
		t.owners[target] = res.Worker
	}

	if res.Worker == t.cursor {
		t.cursor = (t.cursor + 1) % t.numWorkers
	}
	return res
}

// Owner returns the worker bound to the given address, if any.
func (t *DependencyTable) Owner(addr common.Address) (int, bool) {
	worker, found := t.owners[addr]
	return worker, found
}

// Cursor returns the worker next used for transactions without known dependencies.
func (t *DependencyTable) Cursor() int {
	return t.cursor
}

// Len returns the number of bound addresses.
func (t *DependencyTable) Len() int {
	return len(t.owners)
}

// Clear removes all bindings. The round-robin cursor is retained.
func (t *DependencyTable) Clear() {
	clear(t.owners)
}
