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
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"math/big"
	"math/rand"
	"runtime"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

const (
	blockGasLimit = 30_000_000
	txGasLimit    = 100_000
	blockTime     = 1 // seconds between blocks
	genesisTime   = 1_700_000_000
)

var (
	// Miner receives the block rewards of generated blocks.
	Miner = common.HexToAddress("0x00000000000000000000000000000000000000ee")

	genesisBalance = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(24))
	blockReward    = uint256.NewInt(2_000_000_000_000_000_000)
	forwarderCode  = []byte{0x5f, 0x5f, 0xf3}
)

// Generator produces a deterministic synthetic workload: a genesis
// allocation funding a fixed set of accounts, and blocks of transfers
// between them mixed with deployments and calls of forwarding contracts.
type Generator struct {
	cfg       *utils.Config
	signer    types.Signer
	rnd       *rand.Rand
	keys      []*ecdsa.PrivateKey
	addresses []common.Address
	nonces    []uint64
	contracts []common.Address
	parent    common.Hash
}

// NewGenerator derives the accounts of the workload from the configured seed.
func NewGenerator(cfg *utils.Config) (*Generator, error) {
	if cfg.NumAccounts < 1 {
		return nil, fmt.Errorf("workload requires at least one account, got %d", cfg.NumAccounts)
	}
	if cfg.ContractShare < 0 || cfg.ContractShare > 1 {
		return nil, fmt.Errorf("contract share must be within [0,1], got %v", cfg.ContractShare)
	}
	g := &Generator{
		cfg:       cfg,
		signer:    types.LatestSignerForChainID(new(big.Int).SetUint64(cfg.ChainID)),
		rnd:       rand.New(rand.NewSource(cfg.RandomSeed)),
		keys:      make([]*ecdsa.PrivateKey, cfg.NumAccounts),
		addresses: make([]common.Address, cfg.NumAccounts),
		nonces:    make([]uint64, cfg.NumAccounts),
	}

	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for i := range g.keys {
		i := i
		eg.Go(func() error {
			key, err := deriveKey(cfg.RandomSeed, i)
			if err != nil {
				return err
			}
			g.keys[i] = key
			g.addresses[i] = crypto.PubkeyToAddress(key.PublicKey)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return g, nil
}

func deriveKey(seed int64, index int) (*ecdsa.PrivateKey, error) {
	var buffer [16]byte
	binary.BigEndian.PutUint64(buffer[:8], uint64(seed))
	binary.BigEndian.PutUint64(buffer[8:], uint64(index))
	for nonce := byte(0); ; nonce++ {
		key, err := crypto.ToECDSA(crypto.Keccak256(buffer[:], []byte{nonce}))
		if err == nil {
			return key, nil
		}
		if nonce == 255 {
			return nil, fmt.Errorf("cannot derive key %d; %w", index, err)
		}
	}
}

// Addresses lists the accounts of the workload.
func (g *Generator) Addresses() []common.Address {
	return g.addresses
}

// Genesis returns the allocation funding all accounts of the workload.
func (g *Generator) Genesis() state.Alloc {
	alloc := make(state.Alloc, len(g.addresses))
	for _, addr := range g.addresses {
		alloc[addr] = new(uint256.Int).Set(genesisBalance)
	}
	return alloc
}

type pendingTx struct {
	sender int
	tx     *types.LegacyTx
}

// NextBlock generates the block with the given number. Blocks must be
// generated in order.
func (g *Generator) NextBlock(number uint64) (*txcontext.Block, *txcontext.Reward, error) {
	pending := make([]pendingTx, g.cfg.BlockLength)
	for i := range pending {
		pending[i] = g.nextTransaction()
	}

	txs := make(types.Transactions, len(pending))
	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for i := range pending {
		i := i
		eg.Go(func() error {
			tx, err := types.SignNewTx(g.keys[pending[i].sender], g.signer, pending[i].tx)
			if err != nil {
				return fmt.Errorf("cannot sign transaction %d of block %d; %w", i, number, err)
			}
			txs[i] = tx
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	header := &types.Header{
		ParentHash: g.parent,
		Coinbase:   Miner,
		Number:     new(big.Int).SetUint64(number),
		GasLimit:   blockGasLimit,
		Time:       genesisTime + number*blockTime,
		Difficulty: new(big.Int),
	}
	g.parent = header.Hash()
	reward := &txcontext.Reward{Miner: Miner, Amount: new(uint256.Int).Set(blockReward)}
	return txcontext.NewBlock(header, txs), reward, nil
}

func (g *Generator) nextTransaction() pendingTx {
	sender := g.rnd.Intn(len(g.keys))
	tx := &types.LegacyTx{
		Nonce:    g.nonces[sender],
		Gas:      txGasLimit,
		GasPrice: new(big.Int),
		Value:    big.NewInt(g.rnd.Int63n(1_000_000) + 1),
	}
	g.nonces[sender]++

	if g.rnd.Float64() < g.cfg.ContractShare {
		if len(g.contracts) == 0 || g.rnd.Intn(4) == 0 {
			g.contracts = append(g.contracts, crypto.CreateAddress(g.addresses[sender], tx.Nonce))
			tx.Data = common.CopyBytes(forwarderCode)
			return pendingTx{sender: sender, tx: tx}
		}
		contract := g.contracts[g.rnd.Intn(len(g.contracts))]
		beneficiary := g.addresses[g.rnd.Intn(len(g.addresses))]
		tx.To = &contract
		tx.Data = beneficiary.Bytes()
		return pendingTx{sender: sender, tx: tx}
	}

	to := g.addresses[g.rnd.Intn(len(g.addresses))]
	tx.To = &to
	return pendingTx{sender: sender, tx: tx}
}

// Generate writes the genesis and the configured number of blocks, starting
// at block 1, into the given database.
func Generate(cfg *utils.Config, db *BlockDB, log logger.Logger) error {
	generator, err := NewGenerator(cfg)
	if err != nil {
		return err
	}
	if err := db.PutGenesis(generator.Genesis()); err != nil {
		return err
	}
	if err := db.SetChainID(cfg.ChainID); err != nil {
		return err
	}
	log.Noticef("Generating %d blocks of %d transactions for %d accounts", cfg.NumBlocks, cfg.BlockLength, cfg.NumAccounts)
	for number := uint64(1); number <= cfg.NumBlocks; number++ {
		block, reward, err := generator.NextBlock(number)
		if err != nil {
			return err
		}
		if err := db.PutBlock(block, reward); err != nil {
			return err
		}
		if cfg.ReportFrequency > 0 && number%uint64(cfg.ReportFrequency) == 0 {
			log.Infof("Generated block %d", number)
		}
	}
	return nil
}
