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

package validator

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension"
	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/txcontext"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/mock/gomock"
)

func blockWithRoot(number uint64, root common.Hash) *txcontext.Block {
	return txcontext.NewBlock(&types.Header{Number: new(big.Int).SetUint64(number), Root: root}, nil)
}

func TestStateRootValidator_NoValidatorIsCreatedIfDisabled(t *testing.T) {
	cfg := &utils.Config{}
	ext := MakeStateRootValidator(cfg)
	if _, ok := ext.(extension.NilExtension); !ok {
		t.Errorf("validator is enabled although not set in configuration")
	}
}

func TestStateRootValidator_ValidatorIsCreatedIfEnabled(t *testing.T) {
	cfg := &utils.Config{ValidateStateRoot: true, LogLevel: "critical"}
	ext := MakeStateRootValidator(cfg)
	if _, ok := ext.(*stateRootValidator); !ok {
		t.Errorf("validator is not created although enabled in configuration")
	}
}

func TestStateRootValidator_MatchingRootIsAccepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)
	ext := makeStateRootValidator(log)

	root := common.Hash{1, 2, 3}
	state := executor.State{Block: 5, Data: blockWithRoot(5, root)}
	if err := ext.PostBlock(state, &executor.Context{Root: root}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	log.EXPECT().Noticef(gomock.Any(), 1, 0)
	if err := ext.PostRun(executor.State{Block: 6}, nil, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStateRootValidator_MismatchIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)
	ext := makeStateRootValidator(log)

	state := executor.State{Block: 5, Data: blockWithRoot(5, common.Hash{1})}
	err := ext.PostBlock(state, &executor.Context{Root: common.Hash{2}})
	if err == nil {
		t.Fatalf("mismatching root was not detected")
	}
	if !strings.Contains(err.Error(), "block 5") {
		t.Errorf("error does not name the block: %v", err)
	}
}

func TestStateRootValidator_BlocksWithoutRootAreSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)
	ext := makeStateRootValidator(log)

	state := executor.State{Block: 5, Data: blockWithRoot(5, common.Hash{})}
	if err := ext.PostBlock(state, &executor.Context{Root: common.Hash{2}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	log.EXPECT().Noticef(gomock.Any(), 0, 1)
	ext.PostRun(executor.State{Block: 6}, nil, nil)
}

func TestStateRootValidator_NoSummaryAfterFailedRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)
	ext := makeStateRootValidator(log)

	if err := ext.PostRun(executor.State{Block: 6}, nil, errors.New("injected")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
