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

package txcontext

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"
)

// NumRecentHashes is the size of the window of block hashes visible to a block.
const NumRecentHashes = 256

// BlockEnvironment represents an interface for retrieving Ethereum-like blockchain environment information.
type BlockEnvironment interface {
	// GetCoinbase returns the coinbase address.
	GetCoinbase() common.Address

	// GetDifficulty returns the current difficulty level.
	GetDifficulty() *big.Int

	// GetGasLimit returns the maximum amount of gas that can be used in a block.
	GetGasLimit() uint64

	// GetNumber returns the current block number.
	GetNumber() uint64

	// GetTimestamp returns the timestamp of the current block.
	GetTimestamp() uint64

	// GetBlockHash returns the hash of the block with the given number. Only
	// the NumRecentHashes blocks preceding the current block are visible, the
	// zero hash is returned for all others.
	GetBlockHash(blockNumber uint64) common.Hash
}

// Environment is the mutable block environment shared by a scheduler with
// its workers. It is updated once per block, before any worker starts on the
// block; workers only ever see immutable snapshots of it.
type Environment struct {
	mu         sync.RWMutex
	number     uint64
	gasLimit   uint64
	difficulty *big.Int
	timestamp  uint64
	coinbase   common.Address
	hashes     *lru.Cache // block number -> block hash
}

// NewEnvironment creates an empty environment.
func NewEnvironment() (*Environment, error) {
	hashes, err := lru.New(NumRecentHashes)
	if err != nil {
		return nil, fmt.Errorf("cannot create block hash cache; %w", err)
	}
	return &Environment{
		difficulty: new(big.Int),
		hashes:     hashes,
	}, nil
}

// Update replaces the environment parameters with those of the given header.
// The header's parent hash is recorded as hash of the preceding block, hashes
// of blocks leaving the visibility window are evicted.
func (e *Environment) Update(header *types.Header) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.number = header.Number.Uint64()
	e.gasLimit = header.GasLimit
	e.timestamp = header.Time
	e.coinbase = header.Coinbase
	e.difficulty = new(big.Int)
	if header.Difficulty != nil {
		e.difficulty.Set(header.Difficulty)
	}
	if e.number > 0 {
		e.hashes.Add(e.number-1, header.ParentHash)
	}
}

// RecordHash makes the hash of an already processed block visible to
// subsequent blocks.
func (e *Environment) RecordHash(number uint64, hash common.Hash) {
	e.hashes.Add(number, hash)
}

// SeedHashes records the hashes of the blocks preceding the first block of
// a run resumed on an existing state. hashes[0] is the hash of block last,
// hashes[1] the one of its parent, and so on. Hashes beyond the visibility
// window are ignored.
func (e *Environment) SeedHashes(last uint64, hashes []common.Hash) {
	for i, hash := range hashes {
		if i >= NumRecentHashes || uint64(i) > last {
			return
		}
		e.RecordHash(last-uint64(i), hash)
	}
}

// Snapshot returns an immutable copy of the current environment.
func (e *Environment) Snapshot() BlockEnvironment {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := &environmentSnapshot{
		number:     e.number,
		gasLimit:   e.gasLimit,
		difficulty: new(big.Int).Set(e.difficulty),
		timestamp:  e.timestamp,
		coinbase:   e.coinbase,
	}
	for i := uint64(1); i <= NumRecentHashes && i <= e.number; i++ {
		value, found := e.hashes.Peek(e.number - i)
		if !found {
			break
		}
		snapshot.lastHashes = append(snapshot.lastHashes, value.(common.Hash))
	}
	return snapshot
}

// environmentSnapshot is the read-only view of an Environment handed to workers.
type environmentSnapshot struct {
	number     uint64
	gasLimit   uint64
	difficulty *big.Int
	timestamp  uint64
	coinbase   common.Address
	lastHashes []common.Hash // most recent first
}

func (s *environmentSnapshot) GetCoinbase() common.Address {
	return s.coinbase
}

func (s *environmentSnapshot) GetDifficulty() *big.Int {
	return new(big.Int).Set(s.difficulty)
}

func (s *environmentSnapshot) GetGasLimit() uint64 {
	return s.gasLimit
}

func (s *environmentSnapshot) GetNumber() uint64 {
	return s.number
}

func (s *environmentSnapshot) GetTimestamp() uint64 {
	return s.timestamp
}

func (s *environmentSnapshot) GetBlockHash(blockNumber uint64) common.Hash {
	if blockNumber >= s.number {
		return common.Hash{}
	}
	pos := s.number - blockNumber - 1
	if pos >= uint64(len(s.lastHashes)) {
		return common.Hash{}
	}
	return s.lastHashes[pos]
}
