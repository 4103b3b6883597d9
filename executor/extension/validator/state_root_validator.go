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
	"fmt"

	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension"
	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/common"
)

// MakeStateRootValidator creates an extension comparing the state root
// after every committed block with the root recorded in the block header.
func MakeStateRootValidator(cfg *utils.Config) executor.Extension {
	if !cfg.ValidateStateRoot {
		return extension.NilExtension{}
	}
	return makeStateRootValidator(logger.NewLogger(cfg.LogLevel, "State-Root-Validator"))
}

func makeStateRootValidator(log logger.Logger) *stateRootValidator {
	return &stateRootValidator{log: log}
}

type stateRootValidator struct {
	extension.NilExtension
	log       logger.Logger
	validated int
	skipped   int
}

func (v *stateRootValidator) PostBlock(state executor.State, ctx *executor.Context) error {
	if state.Data == nil || state.Data.Header == nil {
		return nil
	}
	want := state.Data.Header.Root
	// headers of synthetic workloads do not carry a root
	if want == (common.Hash{}) {
		v.skipped++
		return nil
	}
	if got := ctx.Root; got != want {
		return fmt.Errorf("unexpected state root for block %d\nwanted %v\n   got %v", state.Block, want, got)
	}
	v.validated++
	return nil
}

func (v *stateRootValidator) PostRun(_ executor.State, _ *executor.Context, err error) error {
	if err != nil {
		return nil
	}
	v.log.Noticef("Validated state roots of %d blocks, %d blocks without root were skipped", v.validated, v.skipped)
	return nil
}
