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

package blockdb

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func openTestDb(t *testing.T) *BlockDB {
	t.Helper()
	db, err := Open(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *utils.Config {
	cfg := utils.NewTestConfig(2, utils.OnDemandVerification, 1, 10)
	cfg.NumAccounts = 10
	cfg.BlockLength = 5
	cfg.NumBlocks = 4
	cfg.ContractShare = 0.3
	cfg.RandomSeed = 7
	return cfg
}

func TestBlockDB_StoredBlockCanBeRetrieved(t *testing.T) {
	db := openTestDb(t)
	generator, err := NewGenerator(testConfig())
	require.NoError(t, err)
	block, reward, err := generator.NextBlock(1)
	require.NoError(t, err)
	reward.Uncles = []txcontext.UncleReward{{Miner: common.Address{1}, Amount: uint256.NewInt(3)}}

	require.NoError(t, db.PutBlock(block, reward))

	gotBlock, gotReward, err := db.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, block.Hash(), gotBlock.Hash())
	require.Equal(t, len(block.Transactions), len(gotBlock.Transactions))
	for i, tx := range block.Transactions {
		require.Equal(t, tx.Hash(), gotBlock.Transactions[i].Hash())
	}
	require.Equal(t, reward.Miner, gotReward.Miner)
	require.True(t, reward.Amount.Eq(gotReward.Amount))
	require.Len(t, gotReward.Uncles, 1)
	require.True(t, gotReward.Uncles[0].Amount.Eq(uint256.NewInt(3)))
}

func TestBlockDB_BlockWithoutRewardHasNilReward(t *testing.T) {
	db := openTestDb(t)
	header := &types.Header{Number: big.NewInt(3), Difficulty: new(big.Int)}
	require.NoError(t, db.PutBlock(txcontext.NewBlock(header, nil), nil))

	block, reward, err := db.GetBlock(3)
	require.NoError(t, err)
	require.Nil(t, reward)
	require.Equal(t, uint64(3), block.Number())
	require.Empty(t, block.Transactions)
}

func TestBlockDB_MissingBlockIsNotFound(t *testing.T) {
	db := openTestDb(t)
	if _, _, err := db.GetBlock(5); !errors.Is(err, ErrNotFound) {
		t.Errorf("unexpected error, wanted %v, got %v", ErrNotFound, err)
	}
	if _, err := db.FirstBlock(); !errors.Is(err, ErrNotFound) {
		t.Errorf("unexpected error, wanted %v, got %v", ErrNotFound, err)
	}
	if _, err := db.GetGenesis(); !errors.Is(err, ErrNotFound) {
		t.Errorf("unexpected error, wanted %v, got %v", ErrNotFound, err)
	}
}

func TestBlockDB_BlockRangeIsTracked(t *testing.T) {
	db := openTestDb(t)
	for _, number := range []uint64{5, 3, 9, 7} {
		header := &types.Header{Number: new(big.Int).SetUint64(number), Difficulty: new(big.Int)}
		require.NoError(t, db.PutBlock(txcontext.NewBlock(header, nil), nil))
	}
	first, err := db.FirstBlock()
	require.NoError(t, err)
	last, err := db.LastBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(3), first)
	require.Equal(t, uint64(9), last)

	var visited []uint64
	err = db.Iterate(4, 9, func(block *txcontext.Block, _ *txcontext.Reward) error {
		visited = append(visited, block.Number())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{5, 7}, visited)
}

func TestBlockDB_IterationStopsOnError(t *testing.T) {
	db := openTestDb(t)
	for number := uint64(1); number <= 3; number++ {
		header := &types.Header{Number: new(big.Int).SetUint64(number), Difficulty: new(big.Int)}
		require.NoError(t, db.PutBlock(txcontext.NewBlock(header, nil), nil))
	}
	injected := errors.New("injected")
	count := 0
	err := db.Iterate(0, 10, func(*txcontext.Block, *txcontext.Reward) error {
		count++
		return injected
	})
	require.ErrorIs(t, err, injected)
	require.Equal(t, 1, count)
}

func TestBlockDB_GenesisIsStored(t *testing.T) {
	db := openTestDb(t)
	alloc := state.Alloc{
		{1}: uint256.NewInt(10),
		{2}: uint256.NewInt(20),
	}
	require.NoError(t, db.PutGenesis(alloc))
	got, err := db.GetGenesis()
	require.NoError(t, err)
	require.Len(t, got, 2)
	for addr, balance := range alloc {
		require.True(t, balance.Eq(got[addr]), "balance of %v", addr)
	}
}

func TestBlockDB_ReadOnlyOpenOfMissingDbFails(t *testing.T) {
	if _, err := Open(t.TempDir()+"/missing", true); err == nil {
		t.Errorf("opening a missing database read-only must fail")
	}
}

func TestGenerator_IsDeterministic(t *testing.T) {
	a, err := NewGenerator(testConfig())
	require.NoError(t, err)
	b, err := NewGenerator(testConfig())
	require.NoError(t, err)
	require.Equal(t, a.Addresses(), b.Addresses())

	for number := uint64(1); number <= 3; number++ {
		blockA, _, err := a.NextBlock(number)
		require.NoError(t, err)
		blockB, _, err := b.NextBlock(number)
		require.NoError(t, err)
		require.Equal(t, blockA.Hash(), blockB.Hash())
		for i := range blockA.Transactions {
			require.Equal(t, blockA.Transactions[i].Hash(), blockB.Transactions[i].Hash())
		}
	}
}

func TestGenerator_BlocksAreChained(t *testing.T) {
	generator, err := NewGenerator(testConfig())
	require.NoError(t, err)
	first, _, err := generator.NextBlock(1)
	require.NoError(t, err)
	second, _, err := generator.NextBlock(2)
	require.NoError(t, err)
	require.Equal(t, first.Hash(), second.Header.ParentHash)
	require.Len(t, second.Transactions, 5)
}

func TestGenerator_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.NumAccounts = 0
	if _, err := NewGenerator(cfg); err == nil {
		t.Errorf("generator without accounts must be rejected")
	}
	cfg = testConfig()
	cfg.ContractShare = 1.5
	if _, err := NewGenerator(cfg); err == nil {
		t.Errorf("contract share above 1 must be rejected")
	}
}

func TestGenerate_WritesGenesisAndBlocks(t *testing.T) {
	db := openTestDb(t)
	cfg := testConfig()
	require.NoError(t, Generate(cfg, db, logger.NewLogger("critical", "Test-Generator")))

	genesis, err := db.GetGenesis()
	require.NoError(t, err)
	require.Len(t, genesis, cfg.NumAccounts)
	first, err := db.FirstBlock()
	require.NoError(t, err)
	last, err := db.LastBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)
	require.Equal(t, cfg.NumBlocks, last)
	chainID, err := db.ChainID()
	require.NoError(t, err)
	require.Equal(t, cfg.ChainID, chainID)
}
