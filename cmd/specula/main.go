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
	"fmt"
	"os"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/Fantom-foundation/Specula/utils"
	"github.com/urfave/cli/v2"
)

// SpeculaApp data structure
var SpeculaApp = cli.App{
	Name:      "Specula",
	HelpName:  "specula",
	Usage:     "speculative parallel block execution",
	Copyright: "(c) 2024 Fantom Foundation",
	Commands: []*cli.Command{
		&RunCmd,
		&GenerateCmd,
		&InfoCmd,
	},
}

var RunCmd = cli.Command{
	Action:    RunBlocks,
	Name:      "run",
	Usage:     "Executes a range of blocks speculatively on parallel workers",
	ArgsUsage: "<blockNumFirst> <blockNumLast>",
	Flags: []cli.Flag{
		// BlockDb
		&utils.BlockDbFlag,

		// StateDb
		&utils.StateDbFlag,
		&utils.StateDbCacheFlag,
		&utils.FlushIntervalFlag,
		&utils.ValidateStateRootFlag,

		// Scheduler
		&utils.WorkersFlag,
		&utils.VerificationPolicyFlag,
		&utils.ChainIDFlag,

		// Profiling
		&utils.ProfileDbFlag,
		&utils.StatisticsFlag,
		&utils.CpuProfileFlag,
		&utils.CpuProfilePerIntervalFlag,
		&utils.CpuProfileIntervalFlag,
		&utils.MemoryProfileFlag,

		// Utils
		&logger.LogLevelFlag,
		&utils.QuietFlag,
		&utils.ReportFrequencyFlag,
	},
	Description: `
The specula run command requires two arguments: <blockNumFirst> <blockNumLast>

<blockNumFirst> and <blockNumLast> are the first and last block of
the inclusive range of blocks. The range has to continue the state
recorded in the state database; "first" continues from its head and
"last" runs up to the last block of the block database.`,
}

var GenerateCmd = cli.Command{
	Action: GenerateBlocks,
	Name:   "generate",
	Usage:  "Generates a synthetic transfer workload into a block database",
	Flags: []cli.Flag{
		&utils.BlockDbFlag,
		&utils.NumAccountsFlag,
		&utils.BlockLengthFlag,
		&utils.NumBlocksFlag,
		&utils.ContractShareFlag,
		&utils.RandomSeedFlag,
		&utils.ChainIDFlag,
		&utils.ReportFrequencyFlag,
		&logger.LogLevelFlag,
	},
}

var InfoCmd = cli.Command{
	Action: PrintInfo,
	Name:   "info",
	Usage:  "Prints information about a block database and a state database",
	Flags: []cli.Flag{
		&utils.BlockDbFlag,
		&utils.StateDbFlag,
		&utils.AccountFlag,
		&logger.LogLevelFlag,
	},
}

// main implements the specula cli.
func main() {
	if err := SpeculaApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
