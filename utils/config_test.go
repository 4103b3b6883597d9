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
	"testing"

	"github.com/Fantom-foundation/Specula/logger"
	"github.com/urfave/cli/v2"
)

func runWithConfig(t *testing.T, mode ArgumentMode, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg    *Config
		cfgErr error
	)
	app := cli.NewApp()
	app.Name = "specula-test"
	app.Flags = []cli.Flag{
		&WorkersFlag,
		&VerificationPolicyFlag,
		&ChainIDFlag,
		&BlockDbFlag,
		&StateDbFlag,
		&StateDbCacheFlag,
		&FlushIntervalFlag,
		&logger.LogLevelFlag,
	}
	app.Action = func(ctx *cli.Context) error {
		cfg, cfgErr = NewConfig(ctx, mode)
		return nil
	}
	if err := app.Run(append([]string{"specula-test"}, args...)); err != nil {
		t.Fatalf("failed to run app: %v", err)
	}
	return cfg, cfgErr
}

func TestConfig_FlagsAreParsed(t *testing.T) {
	cfg, err := runWithConfig(t, BlockRangeArgs,
		"--workers", "3",
		"--verification", "eager",
		"--block-db", "/tmp/blocks",
		"--statedb-cache", "64MB",
		"5", "10",
	)
	if err != nil {
		t.Fatalf("failed to create config: %v", err)
	}
	if got, want := cfg.Workers, 3; got != want {
		t.Errorf("unexpected number of workers, wanted %d, got %d", want, got)
	}
	if got, want := cfg.VerificationPolicy, EagerVerification; got != want {
		t.Errorf("unexpected policy, wanted %v, got %v", want, got)
	}
	if got, want := cfg.StateDbCache, uint64(64*1024*1024); got != want {
		t.Errorf("unexpected cache size, wanted %d, got %d", want, got)
	}
	if cfg.First != 5 || cfg.Last != 10 {
		t.Errorf("unexpected block range, wanted [5,10], got [%d,%d]", cfg.First, cfg.Last)
	}
	if got, want := cfg.ChainID, uint64(DefaultChainID); got != want {
		t.Errorf("unexpected chain id, wanted %d, got %d", want, got)
	}
}

func TestConfig_UnknownPolicyIsRejected(t *testing.T) {
	_, err := runWithConfig(t, BlockRangeArgs, "--verification", "sometimes", "--block-db", "x", "1", "2")
	if err == nil {
		t.Errorf("unknown verification policy must be rejected")
	}
}

func TestConfig_NegativeWorkersAreRejected(t *testing.T) {
	_, err := runWithConfig(t, BlockRangeArgs, "--workers", "-1", "--block-db", "x", "1", "2")
	if err == nil {
		t.Errorf("negative number of workers must be rejected")
	}
}

func TestConfig_MissingBlockRangeIsRejected(t *testing.T) {
	_, err := runWithConfig(t, BlockRangeArgs, "--block-db", "x", "1")
	if err == nil {
		t.Errorf("missing block range argument must be rejected")
	}
}

func TestSetBlockRange(t *testing.T) {
	tests := []struct {
		first, last string
		wantFirst   uint64
		wantLast    uint64
		wantErr     bool
	}{
		{"0", "10", 0, 10, false},
		{"first", "last", 0, maxLastBlock, false},
		{"7", "7", 7, 7, false},
		{"10", "5", 0, 0, true},
		{"abc", "5", 0, 0, true},
	}
	for _, test := range tests {
		first, last, err := SetBlockRange(test.first, test.last)
		if test.wantErr {
			if err == nil {
				t.Errorf("expected error for range [%s,%s]", test.first, test.last)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for range [%s,%s]: %v", test.first, test.last, err)
			continue
		}
		if first != test.wantFirst || last != test.wantLast {
			t.Errorf("unexpected range, wanted [%d,%d], got [%d,%d]", test.wantFirst, test.wantLast, first, last)
		}
	}
}

func TestParseVerificationPolicy(t *testing.T) {
	for _, policy := range []VerificationPolicy{OnDemandVerification, EagerVerification} {
		got, err := ParseVerificationPolicy(policy.String())
		if err != nil {
			t.Errorf("failed to parse %v: %v", policy, err)
		}
		if got != policy {
			t.Errorf("unexpected policy, wanted %v, got %v", policy, got)
		}
	}
}
