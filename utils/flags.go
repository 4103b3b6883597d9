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

package utils

import (
	"github.com/urfave/cli/v2"
)

// Command line options shared by the specula sub-commands.
var (
	WorkersFlag = cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"w"},
		Usage:   "number of speculative execution workers; 0 routes every block through the verification worker",
		Value:   4,
	}
	VerificationPolicyFlag = cli.StringFlag{
		Name:  "verification",
		Usage: "when the sequential verification runs: \"on-demand\" (only after a conflict) or \"eager\" (alongside every block)",
		Value: OnDemandVerification.String(),
	}
	ChainIDFlag = cli.Uint64Flag{
		Name:  "chainid",
		Usage: "chain id used for recovering transaction senders",
		Value: DefaultChainID,
	}
	BlockDbFlag = cli.PathFlag{
		Name:     "block-db",
		Usage:    "path to the block database",
		Required: true,
	}
	StateDbFlag = cli.PathFlag{
		Name:  "state-db",
		Usage: "path to the state database; an in-memory state is used if omitted",
	}
	StateDbCacheFlag = cli.StringFlag{
		Name:  "statedb-cache",
		Usage: "size of the LevelDB cache of the state database (e.g. 256MB, 1GB)",
		Value: "512MB",
	}
	FlushIntervalFlag = cli.Uint64Flag{
		Name:  "flush-interval",
		Usage: "number of blocks after which the state tries are flushed to disk; 0 flushes only at the end",
		Value: 1000,
	}
	ProfileDbFlag = cli.PathFlag{
		Name:  "profile-db",
		Usage: "sqlite3 file recording per-block speculation statistics",
	}
	ValidateStateRootFlag = cli.BoolFlag{
		Name:  "validate-state-root",
		Usage: "compare the committed state root with the root recorded in the block header",
	}
	StatisticsFlag = cli.BoolFlag{
		Name:  "statistics",
		Usage: "print a table of speculation statistics at the end of the run",
	}
	CpuProfileFlag = cli.PathFlag{
		Name:  "cpu-profile",
		Usage: "enables CPU profiling",
	}
	CpuProfilePerIntervalFlag = cli.BoolFlag{
		Name:  "cpu-profile-per-interval",
		Usage: "enables CPU profiling for individual intervals of blocks",
	}
	CpuProfileIntervalFlag = cli.Uint64Flag{
		Name:  "cpu-profile-interval",
		Usage: "number of blocks covered by one CPU profile",
		Value: 100_000,
	}
	MemoryProfileFlag = cli.PathFlag{
		Name:  "memory-profile",
		Usage: "enables memory allocation profiling",
	}
	QuietFlag = cli.BoolFlag{
		Name:  "quiet",
		Usage: "disable progress report",
	}
	ReportFrequencyFlag = cli.IntFlag{
		Name:  "report-frequency",
		Usage: "number of blocks between two progress reports",
		Value: 1000,
	}
	NumAccountsFlag = cli.IntFlag{
		Name:  "num-accounts",
		Usage: "number of funded accounts of the generated workload",
		Value: 1000,
	}
	BlockLengthFlag = cli.IntFlag{
		Name:  "block-length",
		Usage: "number of transactions per generated block",
		Value: 100,
	}
	NumBlocksFlag = cli.Uint64Flag{
		Name:  "num-blocks",
		Usage: "number of generated blocks",
		Value: 1000,
	}
	ContractShareFlag = cli.Float64Flag{
		Name:  "contract-share",
		Usage: "share of generated transactions deploying or calling contracts",
		Value: 0.1,
	}
	RandomSeedFlag = cli.Int64Flag{
		Name:  "random-seed",
		Usage: "seed of the workload generator",
		Value: 42,
	}
	AccountFlag = cli.StringFlag{
		Name:  "account",
		Usage: "address of an account to be displayed",
	}
)
