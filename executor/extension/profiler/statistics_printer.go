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
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// MakeStatisticsPrinter creates an extension printing a summary of the
// speculation outcomes at the end of a run.
func MakeStatisticsPrinter(cfg *utils.Config) executor.Extension {
	if !cfg.Statistics {
		return extension.NilExtension{}
	}
	return makeStatisticsPrinter(cfg, os.Stdout)
}

func makeStatisticsPrinter(cfg *utils.Config, w io.Writer) *statisticsPrinter {
	return &statisticsPrinter{
		cfg:          cfg,
		w:            w,
		txsPerWorker: make([]uint64, cfg.Workers),
	}
}

type statisticsPrinter struct {
	extension.NilExtension
	cfg *utils.Config
	w   io.Writer

	blocks       uint64
	conflicts    uint64
	migrations   uint64
	txs          uint64
	gas          uint64
	duration     time.Duration
	txsPerWorker []uint64
}

func (p *statisticsPrinter) PostBlock(state executor.State, _ *executor.Context) error {
	res := state.Result
	if res == nil {
		return nil
	}
	p.blocks++
	if res.Conflict {
		p.conflicts++
	}
	p.migrations += uint64(res.Migrations)
	p.txs += uint64(len(res.Receipts))
	p.gas += res.GasUsed
	p.duration += res.Duration
	for _, worker := range res.Assignments {
		if worker >= 0 && worker < len(p.txsPerWorker) {
			p.txsPerWorker[worker]++
		}
	}
	return nil
}

func (p *statisticsPrinter) PostRun(state executor.State, _ *executor.Context, err error) error {
	bold := color.New(color.Bold).SprintfFunc()
	status := color.New(color.FgGreen, color.Bold).SprintFunc()
	if err != nil {
		status = color.New(color.FgRed, color.Bold).SprintFunc()
	}

	if _, werr := fmt.Fprintf(p.w, "Speculation statistics: %s\n", bold("%d workers, %v verification", p.cfg.Workers, p.cfg.VerificationPolicy)); werr != nil {
		return werr
	}

	tbl := tablewriter.NewWriter(p.w)
	tbl.SetHeader([]string{"Metric", "Value"})
	tbl.SetBorder(true)
	tbl.Append([]string{"Blocks", strconv.FormatUint(p.blocks, 10)})
	tbl.Append([]string{"Transactions", strconv.FormatUint(p.txs, 10)})
	tbl.Append([]string{"Gas used", strconv.FormatUint(p.gas, 10)})
	tbl.Append([]string{"Blocks in conflict", fmt.Sprintf("%d (%s)", p.conflicts, percent(p.conflicts, p.blocks))})
	tbl.Append([]string{"Cache migrations", strconv.FormatUint(p.migrations, 10)})
	tbl.Append([]string{"Execution time", p.duration.Round(time.Millisecond).String()})
	for i, txs := range p.txsPerWorker {
		tbl.Append([]string{fmt.Sprintf("Worker %d", i), fmt.Sprintf("%d txs (%s)", txs, percent(txs, p.txs))})
	}
	if err != nil {
		tbl.Append([]string{"Status", status(fmt.Sprintf("aborted at block %d", state.Block))})
	} else {
		tbl.Append([]string{"Status", status("completed")})
	}
	tbl.Render()
	return nil
}

func percent(part, total uint64) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(part)/float64(total))
}
