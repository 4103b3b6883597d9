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

package profiler

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension"
	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/profile/speculation"
	"github.com/Fantom-foundation/Specula/utils"
)

// MakeSpeculationProfiler creates an extension recording the outcome of the
// speculative execution of every block in the profile database.
func MakeSpeculationProfiler(cfg *utils.Config) executor.Extension {
	if cfg.ProfileDb == "" {
		return extension.NilExtension{}
	}
	return makeSpeculationProfiler(cfg, logger.NewLogger(cfg.LogLevel, "Speculation-Profiler"))
}

func makeSpeculationProfiler(cfg *utils.Config, log logger.Logger) *speculationProfiler {
	return &speculationProfiler{cfg: cfg, log: log}
}

type speculationProfiler struct {
	extension.NilExtension
	cfg       *utils.Config
	log       logger.Logger
	profileDb *speculation.ProfileDB
}

// PreRun opens the profile database and removes stale records of the processed range.
func (p *speculationProfiler) PreRun(executor.State, *executor.Context) error {
	var err error
	p.profileDb, err = speculation.NewProfileDB(p.cfg.ProfileDb)
	if err != nil {
		return fmt.Errorf("cannot create profile-db; %w", err)
	}

	p.log.Notice("Deleting old data from ProfileDB")
	if _, err = p.profileDb.DeleteByBlockRange(p.cfg.First, p.cfg.Last); err != nil {
		return fmt.Errorf("cannot delete old data from profile-db; %w", err)
	}
	return nil
}

// PostBlock records the result of the block.
func (p *speculationProfiler) PostBlock(state executor.State, _ *executor.Context) error {
	res := state.Result
	if res == nil {
		return nil
	}
	err := p.profileDb.Add(speculation.ProfileData{
		Block:        res.Block,
		NumTx:        len(res.Receipts),
		Workers:      p.cfg.Workers,
		Conflict:     res.Conflict,
		NumConflicts: len(res.Conflicts),
		Migrations:   res.Migrations,
		GasUsed:      res.GasUsed,
		Duration:     res.Duration,
	})
	if err != nil {
		return fmt.Errorf("cannot add data to profile-db; %w", err)
	}
	return nil
}

// PostRun writes the remaining records and closes the database.
func (p *speculationProfiler) PostRun(executor.State, *executor.Context, error) error {
	if p.profileDb == nil {
		return nil
	}
	err := p.profileDb.Close()
	p.profileDb = nil
	if err != nil {
		return errors.Join(errors.New("cannot close profile-db"), err)
	}
	return nil
}
