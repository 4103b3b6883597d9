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

	"github.com/Fantom-foundation/Specula/blockdb"
	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/urfave/cli/v2"
)

// GenerateBlocks writes a synthetic workload into the block database.
func GenerateBlocks(ctx *cli.Context) (err error) {
	cfg, err := utils.NewConfig(ctx, utils.NoArgs)
	if err != nil {
		return err
	}
	db, err := blockdb.Open(cfg.BlockDb, false)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()

	log := logger.NewLogger(cfg.LogLevel, "Generate")
	if err := blockdb.Generate(cfg, db, log); err != nil {
		return err
	}
	log.Noticef("Block database %v is ready", cfg.BlockDb)
	return nil
}
