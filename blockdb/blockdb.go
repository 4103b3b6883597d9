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

// Package blockdb stores blocks, their rewards, and the genesis allocation
// of a workload in a LevelDB instance.
package blockdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	BlockPrefix    = "bl"
	MetadataPrefix = "md"

	FirstBlockKey = MetadataPrefix + "fb"
	LastBlockKey  = MetadataPrefix + "lb"
	ChainIDKey    = MetadataPrefix + "ci"
	GenesisKey    = MetadataPrefix + "ge"
)

// ErrNotFound is returned for blocks or metadata missing in the database.
var ErrNotFound = errors.New("not found")

// BlockDB is a LevelDB backed store of blocks indexed by block number.
type BlockDB struct {
	db *leveldb.DB
}

// Open opens the block database at the given path. A missing database is
// created unless it is opened read-only.
func Open(path string, readOnly bool) (*BlockDB, error) {
	options := &opt.Options{
		BlockCacheCapacity:     64 * opt.MiB,
		OpenFilesCacheCapacity: 50,
		ErrorIfMissing:         readOnly,
		ReadOnly:               readOnly,
	}
	db, err := leveldb.OpenFile(path, options)
	if err != nil {
		return nil, fmt.Errorf("cannot open block db %s; %w", path, err)
	}
	return &BlockDB{db: db}, nil
}

// Close closes the database.
func (d *BlockDB) Close() error {
	return d.db.Close()
}

// BlockKey returns the key of the given block.
func BlockKey(number uint64) []byte {
	key := make([]byte, len(BlockPrefix)+8)
	copy(key, BlockPrefix)
	binary.BigEndian.PutUint64(key[len(BlockPrefix):], number)
	return key
}

type blockRecord struct {
	Header       *types.Header
	Transactions []*types.Transaction
	HasReward    bool
	Reward       rewardRecord
}

type rewardRecord struct {
	Miner  common.Address
	Amount *big.Int
	Uncles []uncleRecord
}

type uncleRecord struct {
	Miner  common.Address
	Amount *big.Int
}

type allocRecord struct {
	Address common.Address
	Balance *big.Int
}

func toBig(value *uint256.Int) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	return value.ToBig()
}

func fromBig(value *big.Int) (*uint256.Int, error) {
	res, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("value %v exceeds 256 bits", value)
	}
	return res, nil
}

func encodeBlock(block *txcontext.Block, reward *txcontext.Reward) ([]byte, error) {
	record := blockRecord{
		Header:       block.Header,
		Transactions: block.Transactions,
	}
	if reward != nil {
		record.HasReward = true
		record.Reward = rewardRecord{Miner: reward.Miner, Amount: toBig(reward.Amount)}
		for _, uncle := range reward.Uncles {
			record.Reward.Uncles = append(record.Reward.Uncles, uncleRecord{Miner: uncle.Miner, Amount: toBig(uncle.Amount)})
		}
	}
	return rlp.EncodeToBytes(&record)
}

func decodeBlock(data []byte) (*txcontext.Block, *txcontext.Reward, error) {
	var record blockRecord
	if err := rlp.DecodeBytes(data, &record); err != nil {
		return nil, nil, err
	}
	block := txcontext.NewBlock(record.Header, record.Transactions)
	if !record.HasReward {
		return block, nil, nil
	}
	amount, err := fromBig(record.Reward.Amount)
	if err != nil {
		return nil, nil, err
	}
	reward := &txcontext.Reward{Miner: record.Reward.Miner, Amount: amount}
	for _, uncle := range record.Reward.Uncles {
		amount, err := fromBig(uncle.Amount)
		if err != nil {
			return nil, nil, err
		}
		reward.Uncles = append(reward.Uncles, txcontext.UncleReward{Miner: uncle.Miner, Amount: amount})
	}
	return block, reward, nil
}

// PutBlock stores the block and its reward and extends the recorded block range.
func (d *BlockDB) PutBlock(block *txcontext.Block, reward *txcontext.Reward) error {
	number := block.Number()
	data, err := encodeBlock(block, reward)
	if err != nil {
		return fmt.Errorf("cannot encode block %d; %w", number, err)
	}

	batch := new(leveldb.Batch)
	batch.Put(BlockKey(number), data)
	first, err := d.FirstBlock()
	if errors.Is(err, ErrNotFound) || (err == nil && number < first) {
		batch.Put([]byte(FirstBlockKey), uint64ToBytes(number))
	} else if err != nil {
		return err
	}
	last, err := d.LastBlock()
	if errors.Is(err, ErrNotFound) || (err == nil && number > last) {
		batch.Put([]byte(LastBlockKey), uint64ToBytes(number))
	} else if err != nil {
		return err
	}
	if err := d.db.Write(batch, nil); err != nil {
		return fmt.Errorf("cannot put block %d; %w", number, err)
	}
	return nil
}

// GetBlock retrieves the block with the given number and its reward.
func (d *BlockDB) GetBlock(number uint64) (*txcontext.Block, *txcontext.Reward, error) {
	data, err := d.db.Get(BlockKey(number), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil, fmt.Errorf("block %d: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	block, reward, err := decodeBlock(data)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot decode block %d; %w", number, err)
	}
	return block, reward, nil
}

// Iterate visits all stored blocks in the range [from,to) in ascending order.
func (d *BlockDB) Iterate(from, to uint64, visit func(*txcontext.Block, *txcontext.Reward) error) error {
	if from >= to {
		return nil
	}
	iter := d.db.NewIterator(&util.Range{Start: BlockKey(from), Limit: BlockKey(to)}, nil)
	defer iter.Release()
	for iter.Next() {
		block, reward, err := decodeBlock(iter.Value())
		if err != nil {
			return fmt.Errorf("cannot decode block at key %x; %w", iter.Key(), err)
		}
		if err := visit(block, reward); err != nil {
			return err
		}
	}
	return iter.Error()
}

// PutGenesis stores the allocation of the initial state.
func (d *BlockDB) PutGenesis(alloc state.Alloc) error {
	records := make([]allocRecord, 0, len(alloc))
	for addr, balance := range alloc {
		records = append(records, allocRecord{Address: addr, Balance: toBig(balance)})
	}
	sort.Slice(records, func(i, j int) bool {
		return bytes.Compare(records[i].Address[:], records[j].Address[:]) < 0
	})
	data, err := rlp.EncodeToBytes(records)
	if err != nil {
		return fmt.Errorf("cannot encode genesis; %w", err)
	}
	return d.db.Put([]byte(GenesisKey), data, nil)
}

// GetGenesis retrieves the allocation of the initial state.
func (d *BlockDB) GetGenesis() (state.Alloc, error) {
	data, err := d.db.Get([]byte(GenesisKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("genesis: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var records []allocRecord
	if err := rlp.DecodeBytes(data, &records); err != nil {
		return nil, fmt.Errorf("cannot decode genesis; %w", err)
	}
	alloc := make(state.Alloc, len(records))
	for _, record := range records {
		balance, err := fromBig(record.Balance)
		if err != nil {
			return nil, err
		}
		alloc[record.Address] = balance
	}
	return alloc, nil
}

// FirstBlock returns the lowest stored block number.
func (d *BlockDB) FirstBlock() (uint64, error) {
	return d.getUint64(FirstBlockKey)
}

// LastBlock returns the highest stored block number.
func (d *BlockDB) LastBlock() (uint64, error) {
	return d.getUint64(LastBlockKey)
}

// ChainID returns the chain id the transactions were signed for.
func (d *BlockDB) ChainID() (uint64, error) {
	return d.getUint64(ChainIDKey)
}

// SetChainID records the chain id the transactions were signed for.
func (d *BlockDB) SetChainID(chainID uint64) error {
	return d.db.Put([]byte(ChainIDKey), uint64ToBytes(chainID), nil)
}

func (d *BlockDB) getUint64(key string) (uint64, error) {
	data, err := d.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid value of %s: %x", key, data)
	}
	return binary.BigEndian.Uint64(data), nil
}

func uint64ToBytes(value uint64) []byte {
	res := make([]byte, 8)
	binary.BigEndian.PutUint64(res, value)
	return res
}
