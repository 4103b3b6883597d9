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
	"os"
	"runtime/pprof"

	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension"
	"github.com/Fantom-foundation/Specula/utils"
)

// DefaultCpuProfileInterval is the number of blocks covered by one CPU
// profile file if profiles are split into intervals.
const DefaultCpuProfileInterval = 100_000

// MakeCpuProfiler creates an executor.Extension that records CPU profiling
// data for the duration of a run if enabled in the configuration.
func MakeCpuProfiler(cfg *utils.Config) executor.Extension {
	if cfg.CPUProfile == "" {
		return extension.NilExtension{}
	}
	interval := cfg.CPUProfileInterval
	if interval == 0 {
		interval = DefaultCpuProfileInterval
	}
	return &cpuProfiler{cfg: cfg, interval: interval}
}

type cpuProfiler struct {
	extension.NilExtension
	cfg            *utils.Config
	interval       uint64
	sequenceNumber uint64
}

func (p *cpuProfiler) PreRun(state executor.State, _ *executor.Context) error {
	filename := p.cfg.CPUProfile
	if p.cfg.CPUProfilePerInterval {
		p.sequenceNumber = state.Block / p.interval
		filename = p.getFileNameFor(p.sequenceNumber)
	}
	return startCpuProfiler(filename)
}

func (p *cpuProfiler) PreBlock(state executor.State, _ *executor.Context) error {
	if !p.cfg.CPUProfilePerInterval {
		return nil
	}
	number := state.Block / p.interval
	if p.sequenceNumber == number {
		return nil
	}
	pprof.StopCPUProfile()
	p.sequenceNumber = number
	return startCpuProfiler(p.getFileNameFor(number))
}

func (p *cpuProfiler) PostRun(executor.State, *executor.Context, error) error {
	pprof.StopCPUProfile()
	return nil
}

func (p *cpuProfiler) getFileNameFor(sequenceNumber uint64) string {
	return fmt.Sprintf("%s_%05d", p.cfg.CPUProfile, sequenceNumber)
}

func startCpuProfiler(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %s", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %s", err)
	}
	return nil
}
