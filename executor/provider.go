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

//go:generate mockgen -source provider.go -destination provider_mocks.go -package executor

import (
	"github.com/Fantom-foundation/Specula/txcontext"
)

// BlockProvider is an entity capable of supplying the blocks of a block
// range in order, each together with its reward.
type BlockProvider interface {
	// Run iterates through the blocks in the range [from,to) in order,
	// forwarding each to the given consumer. Iteration is aborted if the
	// consumer returns an error.
	Run(from uint64, to uint64, consumer BlockConsumer) error

	// Close releases resources held by the provider.
	Close()
}

// BlockConsumer is a type alias for the type of function to which blocks
// can be forwarded by a BlockProvider.
type BlockConsumer func(*txcontext.Block, *txcontext.Reward) error

// NewMemoryProvider creates a provider for the given blocks. The reward of
// the i-th block is the i-th reward; missing rewards are nil.
func NewMemoryProvider(blocks []*txcontext.Block, rewards []*txcontext.Reward) BlockProvider {
	return &memoryProvider{blocks: blocks, rewards: rewards}
}

type memoryProvider struct {
	blocks  []*txcontext.Block
	rewards []*txcontext.Reward
}

func (p *memoryProvider) Run(from uint64, to uint64, consumer BlockConsumer) error {
	for i, block := range p.blocks {
		number := block.Number()
		if number < from || number >= to {
			continue
		}
		var reward *txcontext.Reward
		if i < len(p.rewards) {
			reward = p.rewards[i]
		}
		if err := consumer(block, reward); err != nil {
			return err
		}
	}
	return nil
}

func (p *memoryProvider) Close() {}
