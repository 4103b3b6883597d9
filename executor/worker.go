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
	"sync"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/utils"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// WorkerResult is the outcome of a worker's execution of a block.
type WorkerResult struct {
	// View holds all modifications of the worker.
	View *state.View
	// Touched lists every account read or written by the worker.
	Touched mapset.Set[common.Address]
	// Receipts of the transactions processed by the worker, by index in the block.
	Receipts map[int]*types.Receipt
	// Err is set if the processor failed on any of the worker's transactions.
	Err error
}

type messageKind int

const (
	beginMsg messageKind = iota
	transactMsg
	offerMsg
	acceptMsg
	endMsg
	stopMsg
)

type message struct {
	kind    messageKind
	view    *state.View
	job     *blockJob
	index   int
	addr    common.Address
	handoff *utils.Handoff[*state.Account]
}

// ExecutionWorker is a long-lived goroutine speculatively executing the
// transactions assigned to it. Operations are enqueued in a private,
// unbounded mailbox and never block the caller, with the exception of
// WaitResult and Stop. Messages are processed strictly in enqueue order.
type ExecutionWorker struct {
	id        int
	processor Processor
	log       logger.Logger

	mu      sync.Mutex
	mailbox []message
	notify  chan struct{}
	results chan WorkerResult
	done    chan struct{}

	// only accessed by the worker goroutine
	view     *state.View
	job      *blockJob
	receipts map[int]*types.Receipt
	err      error
}

// NewExecutionWorker starts a worker with the given id.
func NewExecutionWorker(id int, processor Processor, log logger.Logger) *ExecutionWorker {
	w := &ExecutionWorker{
		id:        id,
		processor: processor,
		log:       log,
		notify:    make(chan struct{}, 1),
		results:   make(chan WorkerResult, 1),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// ID returns the worker id.
func (w *ExecutionWorker) ID() int {
	return w.id
}

// BeginBlock starts a new block executed on top of the given view.
func (w *ExecutionWorker) BeginBlock(view *state.View, job *blockJob) {
	w.enqueue(message{kind: beginMsg, view: view, job: job})
}

// Transact enqueues the transaction with the given index of the current block.
func (w *ExecutionWorker) Transact(index int) {
	w.enqueue(message{kind: transactMsg, index: index})
}

// Offer hands the cached record of the given account over to another worker
// once all operations enqueued before are done.
func (w *ExecutionWorker) Offer(addr common.Address, handoff *utils.Handoff[*state.Account]) {
	w.enqueue(message{kind: offerMsg, addr: addr, handoff: handoff})
}

// Accept waits, once all operations enqueued before are done, for the record
// of the given account offered by another worker and installs it in the view.
func (w *ExecutionWorker) Accept(addr common.Address, handoff *utils.Handoff[*state.Account]) {
	w.enqueue(message{kind: acceptMsg, addr: addr, handoff: handoff})
}

// EndBlock signals that no more transactions are assigned for the current block.
func (w *ExecutionWorker) EndBlock() {
	w.enqueue(message{kind: endMsg})
}

// WaitResult blocks until the worker has processed the current block.
func (w *ExecutionWorker) WaitResult() WorkerResult {
	return <-w.results
}

// Stop processes all pending messages and terminates the worker.
func (w *ExecutionWorker) Stop() {
	w.enqueue(message{kind: stopMsg})
	<-w.done
}

func (w *ExecutionWorker) enqueue(msg message) {
	w.mu.Lock()
	w.mailbox = append(w.mailbox, msg)
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// next returns all pending messages, waiting if there are none.
func (w *ExecutionWorker) next() []message {
	for {
		w.mu.Lock()
		msgs := w.mailbox
		w.mailbox = nil
		w.mu.Unlock()
		if len(msgs) > 0 {
			return msgs
		}
		<-w.notify
	}
}

func (w *ExecutionWorker) run() {
	defer close(w.done)
	for {
		for _, msg := range w.next() {
			if msg.kind == stopMsg {
				return
			}
			w.handle(msg)
		}
	}
}

func (w *ExecutionWorker) handle(msg message) {
	switch msg.kind {
	case beginMsg:
		w.view = msg.view
		w.job = msg.job
		w.receipts = map[int]*types.Receipt{}
		w.err = nil

	case transactMsg:
		// once failed, the worker's result is discarded anyway
		if w.err != nil {
			return
		}
		w.err = w.transact(msg.index)

	case offerMsg:
		var acc *state.Account
		if w.view != nil {
			acc = w.view.Release(msg.addr)
		}
		msg.handoff.Send(acc)
		w.log.Debugf("worker %d released %v", w.id, msg.addr)

	case acceptMsg:
		acc := msg.handoff.Receive()
		if w.view != nil {
			w.view.Adopt(msg.addr, acc)
		}
		w.log.Debugf("worker %d adopted %v", w.id, msg.addr)

	case endMsg:
		res := WorkerResult{
			View:     w.view,
			Receipts: w.receipts,
			Err:      w.err,
		}
		if w.view != nil {
			res.Touched = w.view.Touched()
		} else {
			res.Touched = mapset.NewThreadUnsafeSet[common.Address]()
		}
		w.view, w.job, w.receipts, w.err = nil, nil, nil, nil
		w.results <- res
	}
}

func (w *ExecutionWorker) transact(index int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked on transaction %d; %v", w.id, index, r)
		}
	}()
	if w.job == nil || index < 0 || index >= w.job.size() {
		return fmt.Errorf("worker %d received unknown transaction %d", w.id, index)
	}
	receipt, err := w.processor.Process(w.view, w.job.env, w.job.transaction(index))
	if err != nil {
		return fmt.Errorf("worker %d failed to process transaction %d; %w", w.id, index, err)
	}
	w.receipts[index] = receipt
	return nil
}
