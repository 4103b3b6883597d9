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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/c2h5oh/datasize"
	"github.com/urfave/cli/v2"
)

type ArgumentMode int

// An enums of argument modes used by specula subcommands
const (
	BlockRangeArgs ArgumentMode = iota // requires 2 arguments: first block and last block
	NoArgs                             // requires no arguments
)

// DefaultChainID is the Sonic mainnet chain id.
const DefaultChainID = 146

const maxLastBlock = math.MaxUint64 - 1

// VerificationPolicy controls when the verification worker re-executes a block.
type VerificationPolicy int

const (
	// OnDemandVerification runs the sequential re-execution only after a conflict was detected.
	OnDemandVerification VerificationPolicy = iota
	// EagerVerification runs the sequential re-execution alongside every speculative attempt.
	EagerVerification
)

func (p VerificationPolicy) String() string {
	switch p {
	case OnDemandVerification:
		return "on-demand"
	case EagerVerification:
		return "eager"
	}
	return fmt.Sprintf("VerificationPolicy(%d)", int(p))
}

// ParseVerificationPolicy converts a flag value into a policy.
func ParseVerificationPolicy(s string) (VerificationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on-demand", "ondemand", "on_demand", "":
		return OnDemandVerification, nil
	case "eager":
		return EagerVerification, nil
	}
	return 0, fmt.Errorf("unknown verification policy %q; expected \"on-demand\" or \"eager\"", s)
}

// Config summarizes the user-defined parameters of a specula run.
type Config struct {
	AppName string

	First uint64 // first block of the range (inclusive)
	Last  uint64 // last block of the range (inclusive)

	Workers            int                // number of speculative execution workers
	VerificationPolicy VerificationPolicy // timing of the sequential re-execution
	ChainID            uint64             // chain id for sender recovery

	BlockDb       string // path to the block database
	StateDb       string // path to the state database, in-memory if empty
	StateDbCache  uint64 // LevelDB cache of the state database in bytes
	FlushInterval uint64 // blocks between two trie flushes

	ProfileDb         string // sqlite3 speculation profile, disabled if empty
	ValidateStateRoot bool   // compare roots against block headers
	Statistics        bool   // print speculation statistics table

	CPUProfile            string // pprof CPU profile file, disabled if empty
	CPUProfilePerInterval bool   // split the CPU profile into block intervals
	CPUProfileInterval    uint64 // blocks per CPU profile file
	MemoryProfile         string // pprof heap profile written at the end, disabled if empty

	LogLevel        string
	Quiet           bool
	ReportFrequency int

	// workload generator
	NumAccounts   int
	BlockLength   int
	NumBlocks     uint64
	ContractShare float64
	RandomSeed    int64

	Account string // account displayed by the info command
}

// NewConfig creates and initializes Config with commandline arguments.
func NewConfig(ctx *cli.Context, mode ArgumentMode) (*Config, error) {
	cfg := &Config{
		AppName:         ctx.App.Name,
		Workers:         ctx.Int(WorkersFlag.Name),
		ChainID:         ctx.Uint64(ChainIDFlag.Name),
		BlockDb:         ctx.Path(BlockDbFlag.Name),
		StateDb:         ctx.Path(StateDbFlag.Name),
		FlushInterval:   ctx.Uint64(FlushIntervalFlag.Name),
		ProfileDb:       ctx.Path(ProfileDbFlag.Name),
		LogLevel:        ctx.String(logger.LogLevelFlag.Name),
		Quiet:           ctx.Bool(QuietFlag.Name),
		ReportFrequency: ctx.Int(ReportFrequencyFlag.Name),

		ValidateStateRoot: ctx.Bool(ValidateStateRootFlag.Name),
		Statistics:        ctx.Bool(StatisticsFlag.Name),

		CPUProfile:            ctx.Path(CpuProfileFlag.Name),
		CPUProfilePerInterval: ctx.Bool(CpuProfilePerIntervalFlag.Name),
		CPUProfileInterval:    ctx.Uint64(CpuProfileIntervalFlag.Name),
		MemoryProfile:         ctx.Path(MemoryProfileFlag.Name),

		NumAccounts:   ctx.Int(NumAccountsFlag.Name),
		BlockLength:   ctx.Int(BlockLengthFlag.Name),
		NumBlocks:     ctx.Uint64(NumBlocksFlag.Name),
		ContractShare: ctx.Float64(ContractShareFlag.Name),
		RandomSeed:    ctx.Int64(RandomSeedFlag.Name),
		Account:       ctx.String(AccountFlag.Name),
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = logger.LogLevelFlag.Value
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("number of workers must not be negative, got %d", cfg.Workers)
	}

	policy, err := ParseVerificationPolicy(ctx.String(VerificationPolicyFlag.Name))
	if err != nil {
		return nil, err
	}
	cfg.VerificationPolicy = policy

	cfg.StateDbCache, err = parseCacheSize(ctx.String(StateDbCacheFlag.Name))
	if err != nil {
		return nil, err
	}

	switch mode {
	case BlockRangeArgs:
		if ctx.Args().Len() != 2 {
			return nil, fmt.Errorf("command requires exactly 2 arguments: <blockNumFirst> <blockNumLast>")
		}
		cfg.First, cfg.Last, err = SetBlockRange(ctx.Args().Get(0), ctx.Args().Get(1))
		if err != nil {
			return nil, err
		}
	case NoArgs:
		if ctx.Args().Len() != 0 {
			return nil, fmt.Errorf("command does not take arguments")
		}
	}
	return cfg, nil
}

// NewTestConfig creates a config for test purposes.
func NewTestConfig(workers int, policy VerificationPolicy, first, last uint64) *Config {
	return &Config{
		First:              first,
		Last:               last,
		Workers:            workers,
		VerificationPolicy: policy,
		ChainID:            DefaultChainID,
		LogLevel:           "critical",
		Quiet:              true,
	}
}

// SetBlockRange parses the block range arguments. Besides plain numbers
// the keywords "first" and "last" are accepted.
func SetBlockRange(firstArg string, lastArg string) (uint64, uint64, error) {
	first, err := parseBlockNumber(firstArg)
	if err != nil {
		return 0, 0, err
	}
	last, err := parseBlockNumber(lastArg)
	if err != nil {
		return 0, 0, err
	}
	if first > last {
		return 0, 0, fmt.Errorf("first block %v has larger number than last block %v", first, last)
	}
	return first, last, nil
}

func parseBlockNumber(arg string) (uint64, error) {
	switch strings.ToLower(arg) {
	case "first", "zero":
		return 0, nil
	case "last":
		return maxLastBlock, nil
	}
	num, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q; %w", arg, err)
	}
	return num, nil
}

func parseCacheSize(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	size, err := datasize.ParseString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid cache size %q; %w", s, err)
	}
	return size.Bytes(), nil
}
