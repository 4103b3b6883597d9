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

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/core/types"
)

type verification struct {
	view     *state.View
	job      *blockJob
	abort    utils.Event
	finished chan struct{}
}

// VerificationWorker is a long-lived goroutine executing entire blocks
// sequentially. Its result is the reference for every speculative attempt.
type VerificationWorker struct {
	processor Processor
	log       logger.Logger

	jobs    chan *verification
	results chan WorkerResult
	done    chan struct{}

	current *verification // owned by the caller
}

// NewVerificationWorker starts a verification worker.
func NewVerificationWorker(processor Processor, log logger.Logger) *VerificationWorker {
	w := &VerificationWorker{
		processor: processor,
		log:       log,
		jobs:      make(chan *verification, 1),
		results:   make(chan WorkerResult, 1),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// BeginBlock starts the sequential execution of the entire block on top of the given view.
func (w *VerificationWorker) BeginBlock(view *state.View, job *blockJob) {
	w.current = &verification{
		view:     view,
		job:      job,
		abort:    utils.MakeEvent(),
		finished: make(chan struct{}),
	}
	w.jobs <- w.current
}

// EndBlock is a no-op; the worker always processes the full block.
func (w *VerificationWorker) EndBlock() {}

// WaitResult blocks until the current block is processed.
func (w *VerificationWorker) WaitResult() WorkerResult {
	res := <-w.results
	w.current = nil
	return res
}

// Terminate abandons the current block. No result is reported for it.
func (w *VerificationWorker) Terminate() {
	if w.current == nil {
		return
	}
	w.current.abort.Signal()
	<-w.current.finished
	select {
	case <-w.results:
	default:
	}
	w.current = nil
}

// Stop abandons any in-flight block and terminates the worker.
func (w *VerificationWorker) Stop() {
	w.Terminate()
	close(w.jobs)
	<-w.done
}

func (w *VerificationWorker) run() {
	defer close(w.done)
	for v := range w.jobs {
		res, completed := w.verify(v)
		if completed {
			w.results <- res
		} else {
			w.log.Debugf("verification of block %d abandoned", v.job.block.Number())
		}
		close(v.finished)
	}
}

func (w *VerificationWorker) verify(v *verification) (res WorkerResult, completed bool) {
	res = WorkerResult{
		View:     v.view,
		Receipts: make(map[int]*types.Receipt, v.job.size()),
	}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("verification panicked; %v", r)
			completed = true
		}
		res.Touched = v.view.Touched()
	}()
	for i := 0; i < v.job.size(); i++ {
		if v.abort.HasHappened() {
			return res, false
		}
		receipt, err := w.processor.Process(v.view, v.job.env, v.job.transaction(i))
		if err != nil {
			res.Err = fmt.Errorf("verification failed to process transaction %d; %w", i, err)
			return res, true
		}
		res.Receipts[i] = receipt
	}
	return res, true
}
