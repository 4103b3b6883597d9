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
	"crypto/ecdsa"
	"math/big"
	"math/rand"
	"testing"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	testSigner  = types.LatestSignerForChainID(big.NewInt(utils.DefaultChainID))
	testMiner   = common.Address{0xee}
	testUncle   = common.Address{0xef}
	testBalance = uint256.NewInt(1_000_000_000_000)
)

// testAccount is an externally owned account able to sign transactions.
type testAccount struct {
	key   *ecdsa.PrivateKey
	addr  common.Address
	nonce uint64
}

func newTestAccounts(t testing.TB, n int) []*testAccount {
	t.Helper()
	res := make([]*testAccount, n)
	for i := range res {
		key, err := crypto.ToECDSA(crypto.Keccak256([]byte{byte(i), byte(i >> 8), 0x5e}))
		if err != nil {
			t.Fatalf("failed to create key: %v", err)
		}
		res[i] = &testAccount{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
	}
	return res
}

func genesisOf(accounts []*testAccount) state.Alloc {
	alloc := state.Alloc{}
	for _, acc := range accounts {
		alloc[acc.addr] = testBalance
	}
	return alloc
}

// send creates a signed transaction of the account; a nil target creates a contract.
func (a *testAccount) send(t testing.TB, to *common.Address, value uint64, data []byte) *types.Transaction {
	t.Helper()
	tx, err := types.SignNewTx(a.key, testSigner, &types.LegacyTx{
		Nonce:    a.nonce,
		To:       to,
		Value:    new(big.Int).SetUint64(value),
		Gas:      100_000,
		GasPrice: big.NewInt(0),
		Data:     data,
	})
	if err != nil {
		t.Fatalf("failed to sign transaction: %v", err)
	}
	a.nonce++
	return tx
}

func (a *testAccount) transfer(t testing.TB, to common.Address, value uint64) *types.Transaction {
	return a.send(t, &to, value, nil)
}

func makeHeader(number uint64) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(number),
		GasLimit:   30_000_000,
		Difficulty: big.NewInt(1),
		Time:       1_700_000_000 + number,
		Coinbase:   testMiner,
		ParentHash: common.Hash{byte(number - 1)},
	}
}

func makeBlock(number uint64, txs ...*types.Transaction) *txcontext.Block {
	return txcontext.NewBlock(makeHeader(number), txs)
}

func makeReward(amount uint64) *txcontext.Reward {
	return &txcontext.Reward{
		Miner:  testMiner,
		Amount: uint256.NewInt(amount),
		Uncles: []txcontext.UncleReward{{Miner: testUncle, Amount: uint256.NewInt(amount / 2)}},
	}
}

// makeWorkload creates blocks of random transfers, contract creations and
// calls of contracts forwarding value to other accounts.
func makeWorkload(t testing.TB, seed int64, accounts []*testAccount, numBlocks, blockLength int) ([]*txcontext.Block, []*txcontext.Reward) {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	var contracts []common.Address
	var blocks []*txcontext.Block
	var rewards []*txcontext.Reward
	for b := 1; b <= numBlocks; b++ {
		txs := make([]*types.Transaction, 0, blockLength)
		for i := 0; i < blockLength; i++ {
			sender := accounts[rnd.Intn(len(accounts))]
			value := uint64(rnd.Intn(1000))
			switch r := rnd.Intn(10); {
			case r == 0:
				contracts = append(contracts, crypto.CreateAddress(sender.addr, sender.nonce))
				txs = append(txs, sender.send(t, nil, value, []byte{0x01, byte(i)}))
			case r < 3 && len(contracts) > 0:
				contract := contracts[rnd.Intn(len(contracts))]
				beneficiary := accounts[rnd.Intn(len(accounts))].addr
				txs = append(txs, sender.send(t, &contract, value+1, beneficiary.Bytes()))
			case r < 4:
				txs = append(txs, sender.transfer(t, common.Address{0xaa, byte(rnd.Intn(8))}, value))
			default:
				txs = append(txs, sender.transfer(t, accounts[rnd.Intn(len(accounts))].addr, value))
			}
		}
		blocks = append(blocks, makeBlock(uint64(b), txs...))
		rewards = append(rewards, makeReward(uint64(1000+b)))
	}
	return blocks, rewards
}

// executeSequentially computes the root of processing the given blocks one
// transaction after the other on a single view.
func executeSequentially(t testing.TB, alloc state.Alloc, blocks []*txcontext.Block, rewards []*txcontext.Reward) common.Hash {
	t.Helper()
	store := state.NewMemoryStore()
	defer store.Close()
	root, err := store.Prime(state.EmptyRoot(), alloc)
	if err != nil {
		t.Fatalf("failed to prime store: %v", err)
	}
	env, err := txcontext.NewEnvironment()
	if err != nil {
		t.Fatalf("failed to create environment: %v", err)
	}
	processor := NewTransferProcessor()
	for i, block := range blocks {
		env.Update(block.Header)
		view, err := store.Fork(root)
		if err != nil {
			t.Fatalf("failed to fork view: %v", err)
		}
		for j, tx := range block.Transactions {
			sender, err := types.Sender(testSigner, tx)
			if err != nil {
				t.Fatalf("failed to recover sender: %v", err)
			}
			if _, err := processor.Process(view, env.Snapshot(), TransactionInfo{Index: j, Sender: sender, Transaction: tx}); err != nil {
				t.Fatalf("failed to process transaction: %v", err)
			}
		}
		if i < len(rewards) && rewards[i] != nil {
			view.AddBalance(rewards[i].Miner, rewards[i].Amount)
			for _, uncle := range rewards[i].Uncles {
				view.AddBalance(uncle.Miner, uncle.Amount)
			}
		}
		if root, err = store.Merge(root, block.Number(), view); err != nil {
			t.Fatalf("failed to merge block: %v", err)
		}
	}
	return root
}

// newTestScheduler creates a scheduler on a fresh memory store primed with the given allocation.
func newTestScheduler(t testing.TB, workers int, policy utils.VerificationPolicy, processor Processor, alloc state.Alloc) *Scheduler {
	t.Helper()
	store := state.NewMemoryStore()
	root, err := store.Prime(state.EmptyRoot(), alloc)
	if err != nil {
		t.Fatalf("failed to prime store: %v", err)
	}
	cfg := utils.NewTestConfig(workers, policy, 0, 0)
	scheduler, err := NewScheduler(cfg, store, root, processor, logger.NewLogger(cfg.LogLevel, "Test-Scheduler"))
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	t.Cleanup(func() {
		if err := scheduler.Close(); err != nil {
			t.Errorf("failed to close scheduler: %v", err)
		}
		store.Close()
	})
	return scheduler
}

func process(t testing.TB, scheduler *Scheduler, block *txcontext.Block, reward *txcontext.Reward) *BlockResult {
	t.Helper()
	if err := scheduler.Enqueue(block, reward); err != nil {
		t.Fatalf("failed to enqueue block: %v", err)
	}
	res, err := scheduler.Next()
	if err != nil {
		t.Fatalf("failed to process block %d: %v", block.Number(), err)
	}
	return res
}
