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
	"fmt"
	"io"
	"strconv"

	"github.com/Fantom-foundation/Specula/blockdb"
	"github.com/Fantom-foundation/Specula/state"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

// PrintInfo displays the content of the block database and, if given,
// the head of the state database.
func PrintInfo(ctx *cli.Context) error {
	cfg, err := utils.NewConfig(ctx, utils.NoArgs)
	if err != nil {
		return err
	}
	if cfg.Account != "" && !common.IsHexAddress(cfg.Account) {
		return fmt.Errorf("invalid account address %q", cfg.Account)
	}

	db, err := blockdb.Open(cfg.BlockDb, true)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := blockDbInfo(ctx.App.Writer, db); err != nil {
		return err
	}

	if cfg.StateDb == "" {
		return nil
	}
	store, err := state.OpenStore(cfg.StateDb, cfg.StateDbCache)
	if err != nil {
		return err
	}
	return errors.Join(
		stateInfo(ctx.App.Writer, store, cfg.Account),
		store.Close(),
	)
}

func blockDbInfo(w io.Writer, db *blockdb.BlockDB) error {
	bold := color.New(color.Bold).SprintfFunc()

	first, err := db.FirstBlock()
	if errors.Is(err, blockdb.ErrNotFound) {
		output(w, "Blocks:\t\t%s\n", bold("none"))
	} else if err != nil {
		return err
	} else {
		last, err := db.LastBlock()
		if err != nil {
			return err
		}
		output(w, "Blocks:\t\t%s\n", bold("%d-%d", first, last))
	}

	chainID, err := db.ChainID()
	if err != nil && !errors.Is(err, blockdb.ErrNotFound) {
		return err
	}
	output(w, "Chain ID:\t%s\n", bold("%d", chainID))

	genesis, err := db.GetGenesis()
	if err != nil && !errors.Is(err, blockdb.ErrNotFound) {
		return err
	}
	output(w, "Genesis:\t%s accounts\n", bold("%d", len(genesis)))
	return nil
}

func stateInfo(w io.Writer, store *state.Store, account string) error {
	bold := color.New(color.Bold).SprintfFunc()
	colored := color.New(color.FgBlue, color.Bold).SprintfFunc()

	block, root, found, err := store.Head()
	if err != nil {
		return err
	}
	if !found {
		output(w, "State head:\t%s\n", colored("none"))
		return nil
	}
	output(w, "State head:\t%s\n", bold("%d", block))
	output(w, "State root:\t%s\n", bold(root.Hex()))

	if account == "" {
		return nil
	}
	view, err := store.Fork(root)
	if err != nil {
		return err
	}
	addr := common.HexToAddress(account)

	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Account", "Balance", "Nonce", "Code Length"})
	tbl.SetBorder(true)
	tbl.Append([]string{
		addr.Hex(),
		view.GetBalance(addr).Dec(),
		strconv.FormatUint(view.GetNonce(addr), 10),
		strconv.Itoa(len(view.GetCode(addr))),
	})
	tbl.Render()
	return nil
}

func output(w io.Writer, format string, a ...any) {
	if _, err := fmt.Fprintf(w, format, a...); err != nil {
		color.Red("output error %v", err)
	}
}
