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

import (
	"fmt"
	"testing"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const benchBlockLength = 2000

// makeIndependentTransfers creates a block in which every transaction has
// its own sender and recipient.
func makeIndependentTransfers(b *testing.B) (state.Alloc, *txcontext.Block) {
	b.Helper()
	accounts := newTestAccounts(b, benchBlockLength)
	txs := make([]*types.Transaction, 0, benchBlockLength)
	for i, acc := range accounts {
		txs = append(txs, acc.transfer(b, common.Address{0xbb, byte(i), byte(i >> 8)}, 1))
	}
	return genesisOf(accounts), makeBlock(1, txs...)
}

func BenchmarkScheduler_IndependentTransfers(b *testing.B) {
	alloc, block := makeIndependentTransfers(b)
	blocks := []*txcontext.Block{block}

	b.Run("Sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			executeSequentially(b, alloc, blocks, nil)
		}
	})

	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("Parallel_%d", workers), func(b *testing.B) {
			cfg := utils.NewTestConfig(workers, utils.OnDemandVerification, 0, 0)
			log := logger.NewLogger(cfg.LogLevel, "Bench-Scheduler")
			for i := 0; i < b.N; i++ {
				store := state.NewMemoryStore()
				root, err := store.Prime(state.EmptyRoot(), alloc)
				if err != nil {
					b.Fatalf("failed to prime store: %v", err)
				}
				scheduler, err := NewScheduler(cfg, store, root, NewTransferProcessor(), log)
				if err != nil {
					b.Fatalf("failed to create scheduler: %v", err)
				}
				res := process(b, scheduler, block, nil)
				if res.Conflict {
					b.Errorf("independent transfers must not conflict")
				}
				if err := scheduler.Close(); err != nil {
					b.Fatalf("failed to close scheduler: %v", err)
				}
				store.Close()
			}
		})
	}
}
