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

package logger

import (
	"sync"
	"time"

	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension"
	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/utils"
)

const (
	ProgressLoggerDefaultReportFrequency = 1000 // in blocks

	progressLoggerReportFormat       = "Elapsed time: %v; current block %d; last interval rate ~%.2f Tx/s, ~%.2f MGas/s; %d of %d blocks in conflict"
	finalSummaryProgressReportFormat = "Total elapsed time: %v; last block %d; total transaction rate ~%.2f Tx/s, ~%.2f MGas/s; conflict ratio %.2f%%"
)

// MakeProgressLogger creates a progress logger reporting every reportFrequency
// blocks. If reportFrequency is not positive, ProgressLoggerDefaultReportFrequency is used.
func MakeProgressLogger(cfg *utils.Config, reportFrequency int) executor.Extension {
	if cfg.Quiet {
		return extension.NilExtension{}
	}

	if reportFrequency <= 0 {
		reportFrequency = ProgressLoggerDefaultReportFrequency
	}

	return makeProgressLogger(cfg, reportFrequency, logger.NewLogger(cfg.LogLevel, "Progress-Logger"))
}

func makeProgressLogger(cfg *utils.Config, reportFrequency int, log logger.Logger) *progressLogger {
	return &progressLogger{
		cfg:             cfg,
		log:             log,
		inputCh:         make(chan blockProgressInfo, 10),
		wg:              new(sync.WaitGroup),
		reportFrequency: reportFrequency,
	}
}

// blockProgressInfo keeps information to be reported from a committed block.
type blockProgressInfo struct {
	block    uint64
	numTx    int
	gasUsed  uint64
	conflict bool
}

// progressLogger logs human-readable information about the progress of a
// run and about how often speculation had to fall back to verification.
type progressLogger struct {
	extension.NilExtension
	cfg             *utils.Config
	log             logger.Logger
	inputCh         chan blockProgressInfo
	wg              *sync.WaitGroup
	reportFrequency int
}

// PreRun starts the report goroutine
func (l *progressLogger) PreRun(executor.State, *executor.Context) error {
	l.wg.Add(1)
	go l.startReport(l.reportFrequency)
	return nil
}

// PostRun closes the input and awaits the final summary.
func (l *progressLogger) PostRun(executor.State, *executor.Context, error) error {
	close(l.inputCh)
	l.wg.Wait()
	return nil
}

func (l *progressLogger) PostBlock(state executor.State, _ *executor.Context) error {
	info := blockProgressInfo{block: state.Block}
	if state.Result != nil {
		info.numTx = len(state.Result.Receipts)
		info.gasUsed = state.Result.GasUsed
		info.conflict = state.Result.Conflict
	}
	l.inputCh <- info
	return nil
}

// startReport runs in its own goroutine and consumes the blocks sent by PostBlock.
func (l *progressLogger) startReport(reportFrequency int) {
	defer l.wg.Done()

	var (
		currentBlock                      uint64
		totalBlocks, totalConflicts       int
		intervalBlocks, intervalConflicts int
		totalTx, currentIntervalTx        uint64
		totalGas, currentIntervalGas      uint64
	)

	start := time.Now()
	lastReport := start

	defer func() {
		elapsed := time.Since(start)
		txRate := float64(totalTx) / elapsed.Seconds()
		gasRate := float64(totalGas) / elapsed.Seconds()
		var ratio float64
		if totalBlocks > 0 {
			ratio = 100 * float64(totalConflicts) / float64(totalBlocks)
		}
		l.log.Noticef(finalSummaryProgressReportFormat, elapsed.Round(time.Second), currentBlock, txRate, gasRate/1e6, ratio)
	}()

	for in := range l.inputCh {
		currentBlock = in.block
		totalBlocks++
		intervalBlocks++
		totalTx += uint64(in.numTx)
		currentIntervalTx += uint64(in.numTx)
		totalGas += in.gasUsed
		currentIntervalGas += in.gasUsed
		if in.conflict {
			totalConflicts++
			intervalConflicts++
		}

		if intervalBlocks < reportFrequency {
			continue
		}

		now := time.Now()
		interval := now.Sub(lastReport).Seconds()
		txRate := float64(currentIntervalTx) / interval
		gasRate := float64(currentIntervalGas) / interval
		l.log.Infof(progressLoggerReportFormat, now.Sub(start).Round(time.Second), currentBlock, txRate, gasRate/1e6, intervalConflicts, intervalBlocks)

		lastReport = now
		intervalBlocks, intervalConflicts = 0, 0
		currentIntervalTx, currentIntervalGas = 0, 0
	}
}
