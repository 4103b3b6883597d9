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

package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account is the cached record of a single account inside a View. It holds
// the values as seen by the owning view: loaded from the view's base state on
// first access and updated by every write of the view. Accounts are moved
// between views by cache migration and are never shared by two views at
// the same time.
type Account struct {
	exists  bool
	balance *uint256.Int
	nonce   uint64
	code    []byte

	storage      map[common.Hash]common.Hash // slots read or written
	dirtyStorage map[common.Hash]struct{}    // slots written

	codeDirty bool
	dirty     bool // any field was written
}

func newAccount() *Account {
	return &Account{
		balance:      new(uint256.Int),
		storage:      map[common.Hash]common.Hash{},
		dirtyStorage: map[common.Hash]struct{}{},
	}
}

// Exists reports whether the account exists in the view.
func (a *Account) Exists() bool {
	return a.exists
}

// Balance returns a copy of the cached balance.
func (a *Account) Balance() *uint256.Int {
	return new(uint256.Int).Set(a.balance)
}

// Nonce returns the cached nonce.
func (a *Account) Nonce() uint64 {
	return a.nonce
}

// IsDirty reports whether the view modified the account.
func (a *Account) IsDirty() bool {
	return a.dirty
}

// Alloc is an initial balance allocation, e.g. the genesis of a workload.
type Alloc map[common.Address]*uint256.Int
