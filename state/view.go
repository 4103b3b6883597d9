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
	"bytes"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	geth "github.com/ethereum/go-ethereum/core/state"
	"github.com/holiman/uint256"
)

// View is a mutable account-state snapshot forked from a root of a Store.
// Every account read or written through the view is cached in the view; the
// set of cached addresses is the view's touched set. The base state is
// never written, so views forked from the same root do not observe each
// other. A view is owned by a single goroutine at a time.
type View struct {
	root     common.Hash
	base     *geth.StateDB
	accounts map[common.Address]*Account

	// addresses adopted through cache migration while the view already
	// held its own copy of the account
	collisions mapset.Set[common.Address]
}

func newView(root common.Hash, base *geth.StateDB) *View {
	return &View{
		root:       root,
		base:       base,
		accounts:   map[common.Address]*Account{},
		collisions: mapset.NewThreadUnsafeSet[common.Address](),
	}
}

// Root returns the root the view was forked from.
func (v *View) Root() common.Hash {
	return v.root
}

// account returns the cached account, loading it from the base state on first use.
func (v *View) account(addr common.Address) *Account {
	if acc, found := v.accounts[addr]; found {
		return acc
	}
	acc := newAccount()
	if v.base.Exist(addr) {
		acc.exists = true
		acc.balance.Set(v.base.GetBalance(addr))
		acc.nonce = v.base.GetNonce(addr)
		acc.code = common.CopyBytes(v.base.GetCode(addr))
	}
	v.accounts[addr] = acc
	return acc
}

func (v *View) Exist(addr common.Address) bool {
	return v.account(addr).exists
}

// CreateAccount marks the account as existing without altering its content.
func (v *View) CreateAccount(addr common.Address) {
	acc := v.account(addr)
	acc.exists = true
	acc.dirty = true
}

func (v *View) GetBalance(addr common.Address) *uint256.Int {
	return v.account(addr).Balance()
}

func (v *View) SetBalance(addr common.Address, amount *uint256.Int) {
	acc := v.account(addr)
	acc.balance.Set(amount)
	acc.exists = true
	acc.dirty = true
}

func (v *View) AddBalance(addr common.Address, amount *uint256.Int) {
	acc := v.account(addr)
	acc.balance.Add(acc.balance, amount)
	acc.exists = true
	acc.dirty = true
}

// SubBalance reduces the balance of the account; the caller is responsible
// for checking that the balance suffices.
func (v *View) SubBalance(addr common.Address, amount *uint256.Int) {
	acc := v.account(addr)
	acc.balance.Sub(acc.balance, amount)
	acc.exists = true
	acc.dirty = true
}

func (v *View) GetNonce(addr common.Address) uint64 {
	return v.account(addr).nonce
}

func (v *View) SetNonce(addr common.Address, nonce uint64) {
	acc := v.account(addr)
	acc.nonce = nonce
	acc.exists = true
	acc.dirty = true
}

func (v *View) GetCode(addr common.Address) []byte {
	return common.CopyBytes(v.account(addr).code)
}

func (v *View) SetCode(addr common.Address, code []byte) {
	acc := v.account(addr)
	if bytes.Equal(acc.code, code) && acc.exists {
		return
	}
	acc.code = common.CopyBytes(code)
	acc.codeDirty = true
	acc.exists = true
	acc.dirty = true
}

func (v *View) GetState(addr common.Address, key common.Hash) common.Hash {
	acc := v.account(addr)
	if value, found := acc.storage[key]; found {
		return value
	}
	value := v.base.GetState(addr, key)
	acc.storage[key] = value
	return value
}

func (v *View) SetState(addr common.Address, key common.Hash, value common.Hash) {
	acc := v.account(addr)
	acc.storage[key] = value
	acc.dirtyStorage[key] = struct{}{}
	acc.exists = true
	acc.dirty = true
}

// Touched returns the set of addresses read or written through this view.
func (v *View) Touched() mapset.Set[common.Address] {
	res := mapset.NewThreadUnsafeSet[common.Address]()
	for addr := range v.accounts {
		res.Add(addr)
	}
	return res
}

// Dirty lists the modified accounts in ascending address order.
func (v *View) Dirty() []common.Address {
	res := make([]common.Address, 0, len(v.accounts))
	for addr, acc := range v.accounts {
		if acc.dirty {
			res = append(res, addr)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i][:], res[j][:]) < 0
	})
	return res
}

// Release removes the cached record of the given account from the view and
// returns it, or nil if the view never touched the account. It is the donor
// side of a cache migration.
func (v *View) Release(addr common.Address) *Account {
	acc, found := v.accounts[addr]
	if !found {
		return nil
	}
	delete(v.accounts, addr)
	return acc
}

// Adopt installs an account record released by another view. A nil record
// means the donor never touched the account and nothing needs to be moved.
// If this view already holds its own record of the account, the migrated
// record replaces it and the address is reported as a collision, since
// earlier reads of this view may have been based on a stale copy.
func (v *View) Adopt(addr common.Address, acc *Account) {
	if acc == nil {
		return
	}
	if _, found := v.accounts[addr]; found {
		v.collisions.Add(addr)
	}
	v.accounts[addr] = acc
}

// Collisions returns the addresses adopted while already cached by this view.
func (v *View) Collisions() mapset.Set[common.Address] {
	return v.collisions.Clone()
}
