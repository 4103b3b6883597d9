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
	"testing"
	"time"

	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension"
	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/mock/gomock"
)

const testProgressReportFrequency = 2

func makeState(block uint64, numTx int, conflict bool) executor.State {
	return executor.State{
		Block: block,
		Result: &executor.BlockResult{
			Block:    block,
			Conflict: conflict,
			Receipts: make(types.Receipts, numTx),
			GasUsed:  uint64(numTx) * 21_000,
		},
	}
}

func TestProgressLoggerExtension_CorrectClose(t *testing.T) {
	cfg := &utils.Config{LogLevel: "critical"}
	ext := MakeProgressLogger(cfg, testProgressReportFrequency)

	ext.PreRun(executor.State{}, nil)

	// make sure PostRun is not blocking.
	done := make(chan bool)
	go func() {
		ext.PostRun(executor.State{}, nil, nil)
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(time.Second):
		t.Fatalf("PostRun blocked unexpectedly")
	}
}

func TestProgressLoggerExtension_NoLoggerIsCreatedIfDisabled(t *testing.T) {
	cfg := &utils.Config{}
	cfg.Quiet = true
	ext := MakeProgressLogger(cfg, testProgressReportFrequency)
	if _, ok := ext.(extension.NilExtension); !ok {
		t.Errorf("logger is enabled although not set in configuration")
	}
}

func TestProgressLoggerExtension_DefaultFrequencyIsUsedForNonPositiveValues(t *testing.T) {
	cfg := &utils.Config{LogLevel: "critical"}
	ext, ok := MakeProgressLogger(cfg, 0).(*progressLogger)
	if !ok {
		t.Fatalf("unexpected extension type")
	}
	if got, want := ext.reportFrequency, ProgressLoggerDefaultReportFrequency; got != want {
		t.Errorf("unexpected report frequency, wanted %d, got %d", want, got)
	}
}

func TestProgressLoggerExtension_ReportsEveryIntervalOfBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)

	cfg := &utils.Config{}
	ext := makeProgressLogger(cfg, testProgressReportFrequency, log)

	gomock.InOrder(
		log.EXPECT().Infof(progressLoggerReportFormat,
			gomock.Any(), uint64(2),
			executor.MatchRate(executor.Gt(0), "txRate"),
			executor.MatchRate(executor.Gt(0), "gasRate"),
			1, 2,
		),
		log.EXPECT().Infof(progressLoggerReportFormat,
			gomock.Any(), uint64(4),
			executor.MatchRate(executor.Gt(0), "txRate"),
			executor.MatchRate(executor.Gt(0), "gasRate"),
			0, 2,
		),
		// a conflict in 1 of 5 blocks
		log.EXPECT().Noticef(finalSummaryProgressReportFormat,
			gomock.Any(), uint64(5),
			executor.MatchRate(executor.Gt(0), "txRate"),
			executor.MatchRate(executor.Gt(0), "gasRate"),
			executor.MatchRate(gomock.All(executor.Gt(19.9), executor.Lt(20.1)), "conflictRatio"),
		),
	)

	ext.PreRun(executor.State{}, nil)
	for block := uint64(1); block <= 5; block++ {
		ext.PostBlock(makeState(block, 10, block == 2), nil)
	}
	ext.PostRun(executor.State{Block: 6}, nil, nil)
}

func TestProgressLoggerExtension_SummaryIsLoggedWithoutBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := logger.NewMockLogger(ctrl)

	ext := makeProgressLogger(&utils.Config{}, testProgressReportFrequency, log)

	log.EXPECT().Noticef(finalSummaryProgressReportFormat, gomock.Any(), uint64(0), gomock.Any(), gomock.Any(), float64(0))

	ext.PreRun(executor.State{}, nil)
	ext.PostRun(executor.State{}, nil, nil)
}
