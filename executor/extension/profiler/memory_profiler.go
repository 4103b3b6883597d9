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
	"runtime"
	"runtime/pprof"

	"github.com/Fantom-foundation/Specula/executor"
	"github.com/Fantom-foundation/Specula/executor/extension"
	"github.com/Fantom-foundation/Specula/utils"
)

// MakeMemoryProfiler creates an executor.Extension that records a heap
// profile at the end of a run if enabled in the configuration.
func MakeMemoryProfiler(cfg *utils.Config) executor.Extension {
	if cfg.MemoryProfile == "" {
		return extension.NilExtension{}
	}
	return &memoryProfiler{cfg: cfg}
}

type memoryProfiler struct {
	extension.NilExtension
	cfg *utils.Config
}

func (p *memoryProfiler) PostRun(executor.State, *executor.Context, error) error {
	f, err := os.Create(p.cfg.MemoryProfile)
	if err != nil {
		return fmt.Errorf("could not create memory profile: %s", err)
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("could not write memory profile: %s", err)
	}
	return nil
}
