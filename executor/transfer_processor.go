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
	"math/big"

	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	TxGas            uint64 = 21000 // gas of a plain transfer
	TxDataGasPerByte uint64 = 16    // gas per byte of call data

	forwardAddressLength = common.AddressLength
)

// counterSlot is the storage slot incremented by every call of a contract.
var counterSlot = common.Hash{}

// TransferProcessor is a minimal transaction processor supporting value
// transfers, contract creations, and calls of a built-in forwarding
// contract. Every account with code behaves like this contract: a call
// increments its counter slot and, if the call data starts with an address,
// forwards the received value to that address. No fees are charged.
type TransferProcessor struct{}

// NewTransferProcessor creates a new transfer processor.
func NewTransferProcessor() *TransferProcessor {
	return &TransferProcessor{}
}

// IntrinsicGas returns the gas consumed by the given transaction.
func IntrinsicGas(tx *types.Transaction) uint64 {
	return TxGas + TxDataGasPerByte*uint64(len(tx.Data()))
}

func (p *TransferProcessor) Process(view *state.View, env txcontext.BlockEnvironment, info TransactionInfo) (*types.Receipt, error) {
	tx := info.Transaction
	if tx == nil {
		return nil, fmt.Errorf("transaction %d is missing", info.Index)
	}
	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusFailed,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(env.GetNumber()),
		Logs:        []*types.Log{},
	}

	sender := info.Sender
	nonce := view.GetNonce(sender)
	if tx.Nonce() != nonce {
		return receipt, nil
	}

	gas := IntrinsicGas(tx)
	if gas > tx.Gas() {
		view.SetNonce(sender, nonce+1)
		receipt.GasUsed = tx.Gas()
		return receipt, nil
	}
	receipt.GasUsed = gas

	value, overflow := uint256.FromBig(tx.Value())
	if overflow || view.GetBalance(sender).Lt(value) {
		view.SetNonce(sender, nonce+1)
		return receipt, nil
	}
	view.SetNonce(sender, nonce+1)
	view.SubBalance(sender, value)

	if info.Target() == (common.Address{}) {
		contract := crypto.CreateAddress(sender, nonce)
		if len(view.GetCode(contract)) > 0 || view.GetNonce(contract) > 0 {
			// address collision, the value is refunded
			view.AddBalance(sender, value)
			return receipt, nil
		}
		view.AddBalance(contract, value)
		view.SetNonce(contract, 1)
		view.SetCode(contract, tx.Data())
		receipt.ContractAddress = contract
		receipt.Status = types.ReceiptStatusSuccessful
		return receipt, nil
	}

	target := info.Target()
	view.AddBalance(target, value)
	if code := view.GetCode(target); len(code) > 0 {
		counter := new(uint256.Int).SetBytes(view.GetState(target, counterSlot).Bytes())
		counter.AddUint64(counter, 1)
		view.SetState(target, counterSlot, common.Hash(counter.Bytes32()))

		if data := tx.Data(); len(data) >= forwardAddressLength && !value.IsZero() {
			beneficiary := common.BytesToAddress(data[:forwardAddressLength])
			view.SubBalance(target, value)
			view.AddBalance(beneficiary, value)
		}
	}
	receipt.Status = types.ReceiptStatusSuccessful
	return receipt, nil
}
