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

//go:generate mockgen -source executor.go -destination executor_mocks.go -package executor

import (
	"errors"

	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/ethereum/go-ethereum/common"
)

// ----------------------------------------------------------------------------
//                                 Interfaces
// ----------------------------------------------------------------------------

// Extension is an interface for modular annotations to the execution of a
// range of blocks by a Scheduler. During various stages, methods of
// extensions are called, enabling them to monitor and/or interfere with the
// execution. The general execution is structured as follows:
//
//	PreRun()
//	for each block {
//	   PreBlock()
//	   speculate, verify, commit
//	   PostBlock()
//	}
//	PostRun()
//
// PreXXX events are delivered to the extensions in the given order, while
// PostXXX events are delivered in reverse order. If any of the extensions
// reports an error during processing of an event, the same event is still
// delivered to the remaining extensions before processing is aborted.
// All call-backs are issued by the scheduler's goroutine.
type Extension interface {
	// PreRun is called before the begin of the execution of a block range,
	// even if the range is empty. For every run, PreRun is only called once,
	// before any other call-back.
	PreRun(State, *Context) error

	// PostRun is guaranteed to be called at the end of each execution. In
	// case of a successful execution the provided state lists the first
	// block after the range, in an error case the block attempted to be
	// processed. The second parameter holds the error causing the abort.
	PostRun(State, *Context, error) error

	// PreBlock is called before a block is handed to the scheduler. The
	// state lists the block and its reward.
	PreBlock(State, *Context) error

	// PostBlock is called after a block was committed. In addition to the
	// block the state carries the result of its execution, and the context
	// holds the new state root.
	PostBlock(State, *Context) error
}

// State summarizes the current state of an execution and is passed to
// Extensions as an input for their actions.
type State struct {
	// Block is the current block number, valid for all call-backs.
	Block uint64

	// Data is the current block. It is only valid for Pre- and PostBlock.
	Data *txcontext.Block

	// Reward is the reward of the current block, may be nil.
	Reward *txcontext.Reward

	// Result is the outcome of the current block. It is only valid for PostBlock.
	Result *BlockResult
}

// Context summarizes context data for the current execution.
type Context struct {
	// Store is the persistent state the blocks are committed to.
	Store *state.Store

	// Root is the state root after the last committed block.
	Root common.Hash
}

// ----------------------------------------------------------------------------
//                               Implementations
// ----------------------------------------------------------------------------

func signalPreRun(state State, context *Context, extensions []Extension) error {
	return forEachForward(extensions, func(extension Extension) error {
		return extension.PreRun(state, context)
	})
}

func signalPostRun(state State, context *Context, err error, extensions []Extension) error {
	return forEachBackward(extensions, func(extension Extension) error {
		return extension.PostRun(state, context, err)
	})
}

func signalPreBlock(state State, context *Context, extensions []Extension) error {
	return forEachForward(extensions, func(extension Extension) error {
		return extension.PreBlock(state, context)
	})
}

func signalPostBlock(state State, context *Context, extensions []Extension) error {
	return forEachBackward(extensions, func(extension Extension) error {
		return extension.PostBlock(state, context)
	})
}

func forEachForward(extensions []Extension, op func(extension Extension) error) error {
	errs := []error{}
	for _, extension := range extensions {
		if err := op(extension); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func forEachBackward(extensions []Extension, op func(extension Extension) error) error {
	errs := []error{}
	for i := len(extensions) - 1; i >= 0; i-- {
		if err := op(extensions[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
