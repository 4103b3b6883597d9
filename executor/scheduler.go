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
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/Fantom-foundation/Specula/utils"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"
)

// ErrSchedulerClosed is returned by operations on a closed scheduler.
var ErrSchedulerClosed = errors.New("scheduler is closed")

// Phase is the stage of the block execution protocol a scheduler is in.
type Phase int

const (
	Idle Phase = iota
	BlockBegun
	Dispatching
	AwaitingResults
	Reconciling
	Committed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case BlockBegun:
		return "BlockBegun"
	case Dispatching:
		return "Dispatching"
	case AwaitingResults:
		return "AwaitingResults"
	case Reconciling:
		return "Reconciling"
	case Committed:
		return "Committed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// BlockResult summarizes the execution of a single block.
type BlockResult struct {
	Block uint64
	Root  common.Hash

	// Conflict is set if the speculative results were discarded in favour
	// of the sequential re-execution.
	Conflict bool
	// Conflicts lists the accounts touched by more than one worker, in
	// ascending order.
	Conflicts []common.Address

	// Assignments lists the worker of each transaction, -1 if the block was
	// not dispatched to any execution worker.
	Assignments []int
	Migrations  int

	Receipts types.Receipts
	GasUsed  uint64
	Duration time.Duration
}

// Params summarizes input parameters for a run of the scheduler.
type Params struct {
	// From is the begin of the range of blocks to be processed (inclusive).
	From uint64
	// To is the end of the range of blocks to be processed (exclusive).
	To uint64
	// Provider is the source of the blocks.
	Provider BlockProvider
}

type pendingBlock struct {
	block  *txcontext.Block
	reward *txcontext.Reward
}

// Scheduler executes blocks speculatively on a fixed pool of execution
// workers. Transactions are routed to workers using a DependencyTable built
// from senders and call targets. After a block, the accounts touched by the
// workers are compared; if no account was touched by more than one worker
// the workers' views are merged, otherwise the block is committed as
// executed sequentially by the verification worker. Either way, the resulting
// state root equals the one of a sequential execution.
//
// A Scheduler is not thread safe; all methods must be called by the same
// goroutine.
type Scheduler struct {
	cfg    *utils.Config
	store  *state.Store
	root   common.Hash
	signer types.Signer
	log    logger.Logger

	env      *txcontext.Environment
	table    *DependencyTable
	workers  []*ExecutionWorker
	verifier *VerificationWorker

	queue []pendingBlock
	phase Phase

	last      uint64 // last committed block
	committed bool   // whether any block was committed
	closed    bool
}

// NewScheduler creates a scheduler committing to the given store, starting
// at the given root, and starts its workers.
func NewScheduler(cfg *utils.Config, store *state.Store, root common.Hash, processor Processor, log logger.Logger) (*Scheduler, error) {
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("number of workers must not be negative, got %d", cfg.Workers)
	}
	env, err := txcontext.NewEnvironment()
	if err != nil {
		return nil, err
	}
	if root == (common.Hash{}) {
		root = state.EmptyRoot()
	}

	s := &Scheduler{
		cfg:      cfg,
		store:    store,
		root:     root,
		signer:   types.LatestSignerForChainID(new(big.Int).SetUint64(cfg.ChainID)),
		log:      log,
		env:      env,
		table:    NewDependencyTable(cfg.Workers),
		workers:  make([]*ExecutionWorker, cfg.Workers),
		verifier: NewVerificationWorker(processor, log),
	}
	for i := range s.workers {
		s.workers[i] = NewExecutionWorker(i, processor, log)
	}
	return s, nil
}

// Root returns the state root after the last committed block.
func (s *Scheduler) Root() common.Hash {
	return s.root
}

// Phase returns the current stage of the block execution protocol.
func (s *Scheduler) Phase() Phase {
	return s.phase
}

// Environment returns the block environment shared with the workers.
func (s *Scheduler) Environment() *txcontext.Environment {
	return s.env
}

// Pending returns the number of queued blocks.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Enqueue appends a block and its reward to the queue of blocks to be executed.
func (s *Scheduler) Enqueue(block *txcontext.Block, reward *txcontext.Reward) error {
	if s.closed {
		return ErrSchedulerClosed
	}
	s.queue = append(s.queue, pendingBlock{block: block, reward: reward})
	return nil
}

// Run executes all blocks in the range of the given parameters and performs
// the needed call-backs on the provided extensions.
func (s *Scheduler) Run(params Params, extensions []Extension) (err error) {
	state := State{Block: params.From}
	context := Context{Store: s.store, Root: s.root}

	defer func() {
		// Skip PostRun actions if a panic occurred.
		if r := recover(); r != nil {
			panic(r) // just forward
		}
		err = errors.Join(
			err,
			signalPostRun(state, &context, err, extensions),
		)
	}()

	if err := signalPreRun(state, &context, extensions); err != nil {
		return err
	}

	err = params.Provider.Run(params.From, params.To, func(block *txcontext.Block, reward *txcontext.Reward) error {
		state = State{Block: block.Number(), Data: block, Reward: reward}
		if err := signalPreBlock(state, &context, extensions); err != nil {
			return err
		}
		if err := s.Enqueue(block, reward); err != nil {
			return err
		}
		res, err := s.Next()
		if err != nil {
			return err
		}
		state.Result = res
		context.Root = s.root
		return signalPostBlock(state, &context, extensions)
	})
	if err != nil {
		return err
	}
	state = State{Block: params.To}
	return nil
}

// Next executes the next queued block. If the queue is empty, nil is
// returned without any effect. On error the block is dropped and the
// root is not advanced.
func (s *Scheduler) Next() (*BlockResult, error) {
	if s.closed {
		return nil, ErrSchedulerClosed
	}
	if len(s.queue) == 0 {
		return nil, nil
	}
	next := s.queue[0]
	s.queue[0] = pendingBlock{}
	s.queue = s.queue[1:]

	defer func() {
		s.table.Clear()
		s.setPhase(Idle)
	}()
	return s.execute(next.block, next.reward)
}

func (s *Scheduler) execute(block *txcontext.Block, reward *txcontext.Reward) (*BlockResult, error) {
	start := time.Now()
	number := block.Number()
	s.setPhase(BlockBegun)

	s.env.Update(block.Header)
	senders, err := s.recoverSenders(block)
	if err != nil {
		return nil, fmt.Errorf("invalid block %d; %w", number, err)
	}
	job := &blockJob{
		block:   block,
		senders: senders,
		env:     s.env.Snapshot(),
	}

	eager := s.cfg.VerificationPolicy == utils.EagerVerification
	views := make([]*state.View, len(s.workers))
	for i := range views {
		if views[i], err = s.store.Fork(s.root); err != nil {
			return nil, err
		}
	}
	if eager {
		view, err := s.store.Fork(s.root)
		if err != nil {
			return nil, err
		}
		s.verifier.BeginBlock(view, job)
	}
	for i, worker := range s.workers {
		worker.BeginBlock(views[i], job)
	}

	s.setPhase(Dispatching)
	result := &BlockResult{Block: number}
	result.Assignments, result.Migrations = s.dispatch(job)
	for _, worker := range s.workers {
		worker.EndBlock()
	}

	s.setPhase(AwaitingResults)
	results := make([]WorkerResult, len(s.workers))
	for i, worker := range s.workers {
		results[i] = worker.WaitResult()
		if results[i].Err != nil {
			s.log.Warningf("block %d: %v", number, results[i].Err)
		}
	}

	s.setPhase(Reconciling)
	conflict, conflicts := detectConflicts(results)
	result.Conflict = conflict
	result.Conflicts = conflicts

	var merged common.Hash
	var receipts map[int]*types.Receipt
	if conflict {
		s.log.Noticef("block %d: speculation failed, %d conflicting accounts; committing sequential execution", number, len(conflicts))
		if !eager {
			view, err := s.store.Fork(s.root)
			if err != nil {
				return nil, err
			}
			s.verifier.BeginBlock(view, job)
		}
		res := s.verifier.WaitResult()
		if res.Err != nil {
			return nil, fmt.Errorf("cannot verify block %d; %w", number, res.Err)
		}
		if merged, err = s.store.Merge(s.root, number, res.View); err != nil {
			return nil, fmt.Errorf("cannot merge block %d; %w", number, err)
		}
		receipts = res.Receipts
	} else {
		if eager {
			s.verifier.Terminate()
		}
		speculative := make([]*state.View, 0, len(results))
		receipts = make(map[int]*types.Receipt, job.size())
		for i := len(results) - 1; i >= 0; i-- {
			speculative = append(speculative, results[i].View)
			for index, receipt := range results[i].Receipts {
				receipts[index] = receipt
			}
		}
		if merged, err = s.store.Merge(s.root, number, speculative...); err != nil {
			return nil, fmt.Errorf("cannot merge block %d; %w", number, err)
		}
	}

	root, err := s.applyReward(merged, number, reward)
	if err != nil {
		return nil, fmt.Errorf("cannot apply reward of block %d; %w", number, err)
	}
	s.root = root
	s.last, s.committed = number, true
	s.setPhase(Committed)

	if err := s.persist(number); err != nil {
		return nil, err
	}

	result.Root = root
	if result.Receipts, err = orderReceipts(block, receipts); err != nil {
		return nil, err
	}
	if len(result.Receipts) > 0 {
		result.GasUsed = result.Receipts[len(result.Receipts)-1].CumulativeGasUsed
	}
	result.Duration = time.Since(start)
	s.log.Infof("block %d: %d txs, %d migrations, conflict: %t, root %x", number, job.size(), result.Migrations, conflict, root)
	return result, nil
}

// dispatch routes all transactions of the block to the execution workers.
// It returns the worker of each transaction and the number of migrations.
func (s *Scheduler) dispatch(job *blockJob) ([]int, int) {
	assignments := make([]int, job.size())
	if len(s.workers) == 0 {
		for i := range assignments {
			assignments[i] = -1
		}
		return assignments, 0
	}
	migrations := 0
	for i := range assignments {
		tx := job.transaction(i)
		a := s.table.Assign(tx.Sender, tx.Target())
		if a.Migrate {
			handoff := utils.MakeHandoff[*state.Account]()
			s.workers[a.Donor].Offer(tx.Sender, handoff)
			s.workers[a.Worker].Accept(tx.Sender, handoff)
			migrations++
			s.log.Debugf("tx %d: migrating %v from worker %d to worker %d", i, tx.Sender, a.Donor, a.Worker)
		}
		s.workers[a.Worker].Transact(i)
		assignments[i] = a.Worker
	}
	return assignments, migrations
}

func (s *Scheduler) recoverSenders(block *txcontext.Block) ([]common.Address, error) {
	senders := make([]common.Address, len(block.Transactions))
	for i, tx := range block.Transactions {
		sender, err := types.Sender(s.signer, tx)
		if err != nil {
			return nil, fmt.Errorf("cannot recover sender of transaction %d; %w", i, err)
		}
		senders[i] = sender
	}
	return senders, nil
}

func (s *Scheduler) applyReward(root common.Hash, block uint64, reward *txcontext.Reward) (common.Hash, error) {
	view, err := s.store.Fork(root)
	if err != nil {
		return common.Hash{}, err
	}
	if reward != nil {
		if reward.Amount != nil {
			view.AddBalance(reward.Miner, reward.Amount)
		}
		for _, uncle := range reward.Uncles {
			if uncle.Amount != nil {
				view.AddBalance(uncle.Miner, uncle.Amount)
			}
		}
	}
	return s.store.Merge(root, block, view)
}

// persist flushes the state and records the head every FlushInterval blocks.
func (s *Scheduler) persist(block uint64) error {
	if s.cfg.FlushInterval == 0 || (block+1)%s.cfg.FlushInterval != 0 {
		return nil
	}
	return s.flush()
}

func (s *Scheduler) flush() error {
	if !s.committed {
		return nil
	}
	if err := s.store.Flush(s.root); err != nil {
		return err
	}
	if err := s.store.SetHead(s.last, s.root); err != nil {
		return fmt.Errorf("cannot record head of block %d; %w", s.last, err)
	}
	return nil
}

func (s *Scheduler) setPhase(phase Phase) {
	if s.phase == phase {
		return
	}
	s.log.Debugf("%v -> %v", s.phase, phase)
	s.phase = phase
}

// Close stops all workers and persists the last committed state. The store
// is not closed.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var g errgroup.Group
	for _, worker := range s.workers {
		worker := worker
		g.Go(func() error {
			worker.Stop()
			return nil
		})
	}
	g.Go(func() error {
		s.verifier.Stop()
		return nil
	})
	return errors.Join(g.Wait(), s.flush())
}

// detectConflicts reports whether the speculative results must be
// discarded, together with all accounts touched by more than one worker.
func detectConflicts(results []WorkerResult) (bool, []common.Address) {
	if len(results) == 0 {
		return true, nil
	}
	conflict := false
	owners := map[common.Address]int{}
	conflicts := mapset.NewThreadUnsafeSet[common.Address]()
	for id, res := range results {
		if res.Err != nil {
			conflict = true
		}
		if res.View != nil {
			res.View.Collisions().Each(func(addr common.Address) bool {
				conflicts.Add(addr)
				return false
			})
		}
		res.Touched.Each(func(addr common.Address) bool {
			if _, found := owners[addr]; found {
				conflicts.Add(addr)
			} else {
				owners[addr] = id
			}
			return false
		})
	}
	if conflicts.Cardinality() > 0 {
		conflict = true
	}
	list := conflicts.ToSlice()
	sort.Slice(list, func(i, j int) bool {
		return bytes.Compare(list[i][:], list[j][:]) < 0
	})
	return conflict, list
}

// orderReceipts lists the receipts in block order and fills in their block-level fields.
func orderReceipts(block *txcontext.Block, receipts map[int]*types.Receipt) (types.Receipts, error) {
	res := make(types.Receipts, len(block.Transactions))
	hash := block.Hash()
	var cumulative uint64
	for i := range res {
		receipt, found := receipts[i]
		if !found || receipt == nil {
			return nil, fmt.Errorf("missing receipt of transaction %d in block %d", i, block.Number())
		}
		cumulative += receipt.GasUsed
		receipt.CumulativeGasUsed = cumulative
		receipt.TransactionIndex = uint(i)
		receipt.BlockHash = hash
		receipt.BlockNumber = new(big.Int).Set(block.Header.Number)
		res[i] = receipt
	}
	return res, nil
}
