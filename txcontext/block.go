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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Block is an ordered list of transactions together with the header they
// are executed under. Once handed to a scheduler a block is never modified.
type Block struct {
	Header       *types.Header
	Transactions types.Transactions
}

// NewBlock creates a block from its header and transactions.
func NewBlock(header *types.Header, txs types.Transactions) *Block {
	return &Block{Header: header, Transactions: txs}
}

// Number returns the block number.
func (b *Block) Number() uint64 {
	return b.Header.Number.Uint64()
}

// Hash returns the hash of the block header.
func (b *Block) Hash() common.Hash {
	return b.Header.Hash()
}

// Reward describes the balance increments applied after all transactions
// of a block have been executed.
type Reward struct {
	Miner  common.Address
	Amount *uint256.Int
	Uncles []UncleReward
}

// UncleReward is the reward credited to the miner of an uncle block.
type UncleReward struct {
	Miner  common.Address
	Amount *uint256.Int
}

// Addresses lists all accounts credited by the reward, in application order.
func (r *Reward) Addresses() []common.Address {
	if r == nil {
		return nil
	}
	res := make([]common.Address, 0, len(r.Uncles)+1)
	res = append(res, r.Miner)
	for _, uncle := range r.Uncles {
		res = append(res, uncle.Miner)
	}
	return res
}
