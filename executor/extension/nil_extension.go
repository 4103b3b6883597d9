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

package extension

import (
	"github.com/Fantom-foundation/Specula/executor"
)

// NilExtension is an executor.Extension ignoring all events. It can be
// embedded by extensions interested in a subset of the events only.
type NilExtension struct{}

func (NilExtension) PreRun(executor.State, *executor.Context) error         { return nil }
func (NilExtension) PostRun(executor.State, *executor.Context, error) error { return nil }
func (NilExtension) PreBlock(executor.State, *executor.Context) error       { return nil }
func (NilExtension) PostBlock(executor.State, *executor.Context) error      { return nil }
