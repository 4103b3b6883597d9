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

//go:generate mockgen -source processor.go -destination processor_mocks.go -package executor

import (
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Processor applies a single transaction to a state view. Processors are
// shared by all workers and must thus be thread safe; the view and the
// environment passed to a call are owned by the calling worker.
type Processor interface {
	// Process applies the given transaction to the view. A transaction that
	// fails or reverts is reported through the status of the receipt, a
	// returned error is reserved for failures of the processor itself.
	Process(view *state.View, env txcontext.BlockEnvironment, tx TransactionInfo) (*types.Receipt, error)
}

// TransactionInfo is a transaction of the block in flight together with
// its position in the block and its recovered sender.
type TransactionInfo struct {
	Index       int
	Sender      common.Address
	Transaction *types.Transaction
}

// Target returns the called account, or the zero address for contract creations.
func (t TransactionInfo) Target() common.Address {
	if to := t.Transaction.To(); to != nil {
		return *to
	}
	return common.Address{}
}

// blockJob is the read-only description of the block in flight handed to
// workers by the scheduler.
type blockJob struct {
	block   *txcontext.Block
	senders []common.Address
	env     txcontext.BlockEnvironment
}

func (j *blockJob) size() int {
	return len(j.block.Transactions)
}

func (j *blockJob) transaction(index int) TransactionInfo {
	return TransactionInfo{
		Index:       index,
		Sender:      j.senders[index],
		Transaction: j.block.Transactions[index],
	}
}
