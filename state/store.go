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
	"encoding/binary"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	geth "github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
)

const (
	fileHandles    = 128
	minCacheSizeMB = 16
	namespace      = "specula/state/"
)

// headKey is the key under which the last committed (block, root) pair is kept.
var headKey = []byte("specula-head")

// ErrOverlappingWrite is reported if two views merged into the same root
// both modified an account.
var ErrOverlappingWrite = errors.New("account modified by more than one view")

// Store is the persistent account state. It hands out views forked from
// a root and merges views back into a new root. The store itself keeps no
// notion of a current root; the caller owns the root between blocks.
type Store struct {
	backend ethdb.Database
	db      geth.Database
}

// OpenStore opens (or creates) a LevelDB backed store in the given directory.
// The cache size is given in bytes.
func OpenStore(directory string, cacheSize uint64) (*Store, error) {
	cacheMB := int(cacheSize / (1024 * 1024))
	if cacheMB < minCacheSizeMB {
		cacheMB = minCacheSizeMB
	}
	ldb, err := rawdb.NewLevelDBDatabase(directory, cacheMB, fileHandles, namespace, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new Level DB; %w", err)
	}
	return newStore(ldb), nil
}

// NewMemoryStore creates a store keeping all data in memory.
func NewMemoryStore() *Store {
	return newStore(rawdb.NewMemoryDatabase())
}

func newStore(backend ethdb.Database) *Store {
	return &Store{
		backend: backend,
		db:      geth.NewDatabase(backend),
	}
}

// EmptyRoot is the root of a store without any account.
func EmptyRoot() common.Hash {
	return types.EmptyRootHash
}

// Fork creates a fresh view of the state identified by the given root.
func (s *Store) Fork(root common.Hash) (*View, error) {
	if root == (common.Hash{}) {
		root = types.EmptyRootHash
	}
	base, err := geth.New(root, s.db, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot fork state at root %x; %w", root, err)
	}
	return newView(root, base), nil
}

// Merge applies the modifications of all given views, which must have been
// forked from parent, and commits them as the state of the given block. The
// new root is returned; on error nothing is committed. Views are applied in
// the given order and must modify disjoint sets of accounts.
func (s *Store) Merge(parent common.Hash, block uint64, views ...*View) (common.Hash, error) {
	if parent == (common.Hash{}) {
		parent = types.EmptyRootHash
	}
	db, err := geth.New(parent, s.db, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("cannot open state at root %x; %w", parent, err)
	}

	written := mapset.NewThreadUnsafeSet[common.Address]()
	for i, view := range views {
		if view.root != parent {
			return common.Hash{}, fmt.Errorf("view %d was forked from %x and cannot be merged onto %x", i, view.root, parent)
		}
		for _, addr := range view.Dirty() {
			if !written.Add(addr) {
				return common.Hash{}, fmt.Errorf("cannot merge view %d; %w: %v", i, ErrOverlappingWrite, addr)
			}
			apply(db, addr, view.accounts[addr])
		}
	}
	if err := db.Error(); err != nil {
		return common.Hash{}, fmt.Errorf("failed to apply views; %w", err)
	}

	root, err := db.Commit(block, true)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to commit state of block %d; %w", block, err)
	}
	return root, nil
}

func apply(db *geth.StateDB, addr common.Address, acc *Account) {
	if !db.Exist(addr) {
		db.CreateAccount(addr)
	}
	db.SetBalance(addr, acc.balance, tracing.BalanceChangeUnspecified)
	db.SetNonce(addr, acc.nonce)
	if acc.codeDirty {
		db.SetCode(addr, acc.code)
	}
	for key := range acc.dirtyStorage {
		db.SetState(addr, key, acc.storage[key])
	}
}

// Prime writes the given allocation on top of the given root and returns the
// resulting root. It is used for initializing a fresh state with a genesis.
func (s *Store) Prime(root common.Hash, alloc Alloc) (common.Hash, error) {
	view, err := s.Fork(root)
	if err != nil {
		return common.Hash{}, err
	}
	for addr, balance := range alloc {
		view.AddBalance(addr, balance)
	}
	return s.Merge(view.Root(), 0, view)
}

// Flush writes all trie nodes reachable from the given root to the backend.
func (s *Store) Flush(root common.Hash) error {
	if root == (common.Hash{}) || root == types.EmptyRootHash {
		return nil
	}
	if err := s.db.TrieDB().Commit(root, false); err != nil {
		return fmt.Errorf("cannot flush trie of root %x; %w", root, err)
	}
	return nil
}

// SetHead records the root of the last fully processed block.
func (s *Store) SetHead(block uint64, root common.Hash) error {
	value := make([]byte, 8+common.HashLength)
	binary.BigEndian.PutUint64(value, block)
	copy(value[8:], root[:])
	return s.backend.Put(headKey, value)
}

// Head returns the last recorded (block, root) pair; found is false for a
// store that never recorded a head.
func (s *Store) Head() (block uint64, root common.Hash, found bool, err error) {
	has, err := s.backend.Has(headKey)
	if err != nil || !has {
		return 0, common.Hash{}, false, err
	}
	value, err := s.backend.Get(headKey)
	if err != nil {
		return 0, common.Hash{}, false, err
	}
	if len(value) != 8+common.HashLength {
		return 0, common.Hash{}, false, fmt.Errorf("invalid head record of length %d", len(value))
	}
	return binary.BigEndian.Uint64(value), common.BytesToHash(value[8:]), true, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return errors.Join(
		s.db.TrieDB().Close(),
		s.backend.Close(),
	)
}
