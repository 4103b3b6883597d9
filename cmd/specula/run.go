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

package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Fantom-foundation/Specula/blockdb"
	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension/logger"
	"github.com/Fantom-foundation/Specula/executor/extension/profiler"
	"github.com/Fantom-foundation/Specula/executor/extension/validator"
	log "github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

// RunBlocks executes the block range given by the command line arguments.
func RunBlocks(ctx *cli.Context) error {
	cfg, err := utils.NewConfig(ctx, utils.BlockRangeArgs)
	if err != nil {
		return err
	}

	db, err := blockdb.Open(cfg.BlockDb, true)
	if err != nil {
		return err
	}
	// the chain id of the block database wins unless given explicitly
	if !ctx.IsSet(utils.ChainIDFlag.Name) {
		if chainID, err := db.ChainID(); err == nil {
			cfg.ChainID = chainID
		}
	}
	return run(cfg, db, executor.NewTransferProcessor())
}

func run(cfg *utils.Config, db *blockdb.BlockDB, processor executor.Processor) (err error) {
	l := log.NewLogger(cfg.LogLevel, "Run")
	provider := executor.NewBlockDbProvider(db)
	defer provider.Close()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	head, root, err := prepareState(store, db, l)
	if err != nil {
		return err
	}
	if err := adjustBlockRange(cfg, head, db); err != nil {
		return err
	}
	if cfg.First > cfg.Last {
		l.Noticef("State is already at block %d, nothing to do", head)
		return nil
	}

	scheduler, err := executor.NewScheduler(cfg, store, root, processor, l)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, scheduler.Close())
	}()

	hashes, err := recentHashes(db, head)
	if err != nil {
		return err
	}
	scheduler.Environment().SeedHashes(head, hashes)

	l.Noticef("Executing blocks %d-%d with %d workers and %v verification", cfg.First, cfg.Last, cfg.Workers, cfg.VerificationPolicy)

	// order of extensionList has to be maintained
	extensionList := []executor.Extension{
		profiler.MakeCpuProfiler(cfg),
		profiler.MakeMemoryProfiler(cfg),
		logger.MakeProgressLogger(cfg, cfg.ReportFrequency),
		profiler.MakeStatisticsPrinter(cfg),
		profiler.MakeSpeculationProfiler(cfg),
		validator.MakeStateRootValidator(cfg),
	}

	return scheduler.Run(
		executor.Params{
			From:     cfg.First,
			To:       cfg.Last + 1,
			Provider: provider,
		},
		extensionList,
	)
}

func openStore(cfg *utils.Config) (*state.Store, error) {
	if cfg.StateDb == "" {
		return state.NewMemoryStore(), nil
	}
	return state.OpenStore(cfg.StateDb, cfg.StateDbCache)
}

// prepareState returns the head of the store. A store without a head is
// primed with the genesis of the block database.
func prepareState(store *state.Store, db *blockdb.BlockDB, l log.Logger) (uint64, common.Hash, error) {
	block, root, found, err := store.Head()
	if err != nil {
		return 0, common.Hash{}, fmt.Errorf("cannot read head of state; %w", err)
	}
	if found {
		l.Infof("Continuing from block %d with root %x", block, root)
		return block, root, nil
	}

	genesis, err := db.GetGenesis()
	if err != nil {
		return 0, common.Hash{}, fmt.Errorf("cannot read genesis; %w", err)
	}
	root, err = store.Prime(state.EmptyRoot(), genesis)
	if err != nil {
		return 0, common.Hash{}, fmt.Errorf("cannot prime state; %w", err)
	}
	if err := store.Flush(root); err != nil {
		return 0, common.Hash{}, err
	}
	if err := store.SetHead(0, root); err != nil {
		return 0, common.Hash{}, err
	}
	l.Noticef("Primed state with %d genesis accounts, root %x", len(genesis), root)
	return 0, root, nil
}

// recentHashes returns the hashes of the blocks up to and including head that
// are visible to the block following it, most recent first. Only the
// contiguous sequence of stored blocks ending at head is returned.
func recentHashes(db *blockdb.BlockDB, head uint64) ([]common.Hash, error) {
	from := uint64(0)
	if head+1 > txcontext.NumRecentHashes {
		from = head + 1 - txcontext.NumRecentHashes
	}
	var hashes []common.Hash
	next := from
	err := db.Iterate(from, head+1, func(block *txcontext.Block, _ *txcontext.Reward) error {
		if block.Number() != next {
			hashes = hashes[:0]
		}
		hashes = append(hashes, block.Hash())
		next = block.Number() + 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot read recent block hashes; %w", err)
	}
	if next != head+1 {
		return nil, nil
	}
	slices.Reverse(hashes)
	return hashes, nil
}

// adjustBlockRange aligns the configured range with the head of the state
// and the content of the block database.
func adjustBlockRange(cfg *utils.Config, head uint64, db *blockdb.BlockDB) error {
	if cfg.First == 0 {
		cfg.First = head + 1
	}
	if cfg.First != head+1 {
		return fmt.Errorf("state is at block %d, the run has to start at block %d, not %d", head, head+1, cfg.First)
	}
	last, err := db.LastBlock()
	if errors.Is(err, blockdb.ErrNotFound) {
		cfg.Last = head
		return nil
	}
	if err != nil {
		return err
	}
	if cfg.Last > last {
		cfg.Last = last
	}
	return nil
}
